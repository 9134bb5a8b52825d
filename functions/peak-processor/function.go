package peakprocessor

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	cloudevents "github.com/cloudevents/sdk-go/v2"

	shared "github.com/peakline/server/pkg"
	"github.com/peakline/server/pkg/bootstrap"
	"github.com/peakline/server/pkg/domain/peaks"
	"github.com/peakline/server/pkg/domain/stream"
	"github.com/peakline/server/pkg/framework"
	infrapubsub "github.com/peakline/server/pkg/infrastructure/pubsub"
	infrastorage "github.com/peakline/server/pkg/infrastructure/storage"
	"github.com/peakline/server/pkg/types"
)

// loadActivity fetches the indexed activity, falling back to the raw object
// when the indexer has not caught up with the finalize event yet.
func loadActivity(ctx context.Context, fwCtx *framework.FrameworkContext, bucket string, athleteID, activityID int64) (*types.RawActivity, error) {
	activity, err := fwCtx.Service.DB.GetActivity(ctx, athleteID, activityID)
	if err == nil {
		return activity, nil
	}

	raw, readErr := fwCtx.Service.Store.Read(ctx, bucket, shared.ActivityObjectName(athleteID, activityID))
	if readErr != nil {
		if infrastorage.IsNotExist(readErr) {
			return nil, fmt.Errorf("activity %d not indexed and no raw object: %w", activityID, err)
		}
		return nil, fmt.Errorf("load activity %d for athlete %d: %w", activityID, athleteID, err)
	}

	fwCtx.Logger.Info("Activity not indexed yet, using raw object", "activity_id", activityID)
	activity = &types.RawActivity{}
	if err := json.Unmarshal(raw, activity); err != nil {
		return nil, fmt.Errorf("decode raw activity %d: %w", activityID, err)
	}
	if activity.ActivityID == 0 {
		activity.ActivityID = activityID
	}
	if activity.AthleteID == 0 {
		activity.AthleteID = athleteID
	}
	return activity, nil
}

var (
	svc     *bootstrap.Service
	svcOnce sync.Once
	svcErr  error
)

func init() {
	functions.CloudEvent("ProcessPeaks", ProcessPeaks)
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

// ProcessPeaks is the entry point
func ProcessPeaks(ctx context.Context, e cloudevents.Event) error {
	svc, err := initService(ctx)
	if err != nil {
		return fmt.Errorf("service init failed: %v", err)
	}
	return framework.WrapCloudEvent("peak-processor", svc, processHandler)(ctx, e)
}

// processHandler runs peak extraction for one finalized streams object:
// normalize the series, extract every standard peak, persist, then queue a
// leaderboard recompute for the athlete.
func processHandler(ctx context.Context, e cloudevents.Event, fwCtx *framework.FrameworkContext) (interface{}, error) {
	var obj types.StorageObjectData
	if err := e.DataAs(&obj); err != nil {
		return nil, fmt.Errorf("decode storage event: %w", err)
	}

	kind, athleteID, activityID, ok := shared.ParseRawObjectName(obj.Name)
	if !ok || kind != shared.ObjectKindStreams {
		fwCtx.Logger.Debug("Ignoring non-streams object", "object", obj.Name)
		return map[string]interface{}{"object": obj.Name, "status": "IGNORED"}, nil
	}

	data, err := fwCtx.Service.Store.Read(ctx, obj.Bucket, obj.Name)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", obj.Name, err)
	}
	var set types.StreamSet
	if err := json.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("decode streams object %s: %w", obj.Name, err)
	}

	activity, err := loadActivity(ctx, fwCtx, obj.Bucket, athleteID, activityID)
	if err != nil {
		return nil, err
	}

	normalized := stream.Normalize(set)
	if normalized == nil {
		fwCtx.Logger.Info("Streams have no time axis, skipping", "activity_id", activityID)
		return map[string]interface{}{"activity_id": activityID, "status": "NO_TIME_AXIS"}, nil
	}
	for metric := range set {
		if metric == "time" {
			continue
		}
		if _, ok := normalized[metric]; !ok {
			fwCtx.Logger.Warn("Dropping malformed stream, length disagrees with time axis",
				"activity_id", activityID, "metric", metric)
		}
	}

	extracted := peaks.Build(activity, normalized, time.Now().UTC())
	if len(extracted) > 0 {
		if err := fwCtx.Service.DB.SavePeaks(ctx, extracted); err != nil {
			return nil, fmt.Errorf("save peaks for activity %d: %w", activityID, err)
		}
	}
	fwCtx.Logger.Info("Extracted peaks", "activity_id", activityID, "peak_count", len(extracted))

	recompute := types.RecomputeJob{Job: types.JobRecomputeRecent, AthleteID: athleteID}
	recomputeEvent, err := infrapubsub.NewCloudEvent(infrapubsub.EventSource, infrapubsub.EventTypeRecomputeRecent, recompute)
	if err != nil {
		return nil, fmt.Errorf("create recompute event: %w", err)
	}
	if _, err := fwCtx.Service.Pub.PublishCloudEvent(ctx, shared.TopicRecentPeaks, recomputeEvent); err != nil {
		return nil, fmt.Errorf("queue recompute for athlete %d: %w", athleteID, err)
	}

	return map[string]interface{}{
		"athlete_id":  athleteID,
		"activity_id": activityID,
		"peak_count":  len(extracted),
	}, nil
}
