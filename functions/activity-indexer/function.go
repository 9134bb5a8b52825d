package activityindexer

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	cloudevents "github.com/cloudevents/sdk-go/v2"

	shared "github.com/peakline/server/pkg"
	"github.com/peakline/server/pkg/bootstrap"
	"github.com/peakline/server/pkg/framework"
	"github.com/peakline/server/pkg/types"
)

var (
	svc     *bootstrap.Service
	svcOnce sync.Once
	svcErr  error
)

func init() {
	functions.CloudEvent("IndexActivity", IndexActivity)
}

func initService(ctx context.Context) (*bootstrap.Service, error) {
	if svc != nil {
		return svc, nil
	}
	svcOnce.Do(func() {
		svc, svcErr = bootstrap.NewService(ctx)
	})
	return svc, svcErr
}

// IndexActivity is the entry point
func IndexActivity(ctx context.Context, e cloudevents.Event) error {
	svc, err := initService(ctx)
	if err != nil {
		return fmt.Errorf("service init failed: %v", err)
	}
	return framework.WrapCloudEvent("activity-indexer", svc, indexHandler)(ctx, e)
}

// indexHandler mirrors a finalized raw activity object into the queryable
// store. Re-finalizing the same object overwrites the same document, so
// replays are harmless.
func indexHandler(ctx context.Context, e cloudevents.Event, fwCtx *framework.FrameworkContext) (interface{}, error) {
	var obj types.StorageObjectData
	if err := e.DataAs(&obj); err != nil {
		return nil, fmt.Errorf("decode storage event: %w", err)
	}

	kind, athleteID, activityID, ok := shared.ParseRawObjectName(obj.Name)
	if !ok || kind != shared.ObjectKindActivity {
		fwCtx.Logger.Debug("Ignoring non-activity object", "object", obj.Name)
		return map[string]interface{}{"object": obj.Name, "status": "IGNORED"}, nil
	}

	data, err := fwCtx.Service.Store.Read(ctx, obj.Bucket, obj.Name)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", obj.Name, err)
	}

	var activity types.RawActivity
	if err := json.Unmarshal(data, &activity); err != nil {
		return nil, fmt.Errorf("decode activity object %s: %w", obj.Name, err)
	}
	if activity.ActivityID == 0 {
		activity.ActivityID = activityID
	}
	if activity.AthleteID == 0 {
		activity.AthleteID = athleteID
	}

	if err := fwCtx.Service.DB.SetActivity(ctx, &activity); err != nil {
		return nil, fmt.Errorf("index activity %d: %w", activity.ActivityID, err)
	}

	fwCtx.Logger.Info("Indexed activity",
		"athlete_id", activity.AthleteID, "activity_id", activity.ActivityID, "type", activity.Type)
	return map[string]interface{}{
		"athlete_id":  activity.AthleteID,
		"activity_id": activity.ActivityID,
	}, nil
}
