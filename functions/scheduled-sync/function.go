package scheduledsync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	cloudevents "github.com/cloudevents/sdk-go/v2"

	shared "github.com/peakline/server/pkg"
	"github.com/peakline/server/pkg/bootstrap"
	"github.com/peakline/server/pkg/framework"
	infrapubsub "github.com/peakline/server/pkg/infrastructure/pubsub"
	"github.com/peakline/server/pkg/types"
)

// syncOverlap is re-fetched on every incremental sync. Provider-side edits
// shortly after an activity finishes (name changes, privacy flags) land in
// the overlap instead of being missed forever.
const syncOverlap = 24 * time.Hour

var (
	svc     *bootstrap.Service
	svcOnce sync.Once
	svcErr  error
)

func init() {
	functions.CloudEvent("SyncAthletes", SyncAthletes)
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

// SyncAthletes is the entry point
func SyncAthletes(ctx context.Context, e cloudevents.Event) error {
	svc, err := initService(ctx)
	if err != nil {
		return fmt.Errorf("service init failed: %v", err)
	}
	return framework.WrapCloudEvent("scheduled-sync", svc, syncHandler)(ctx, e)
}

// syncHandler queues one incremental fetch per linked athlete. Athletes that
// have never synced get a window starting at the overlap boundary; everyone
// else continues from their last sync minus the overlap.
func syncHandler(ctx context.Context, e cloudevents.Event, fwCtx *framework.FrameworkContext) (interface{}, error) {
	creds, err := fwCtx.Service.DB.ListCredentials(ctx)
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}

	now := time.Now().UTC()
	queued := 0
	skipped := 0
	for _, cred := range creds {
		if cred.AthleteID == 0 {
			skipped++
			continue
		}

		after := now.Add(-syncOverlap)
		if cred.LastSyncAt > 0 {
			after = time.Unix(cred.LastSyncAt, 0).UTC().Add(-syncOverlap)
		}

		job := types.FetchJob{
			Job:       types.JobFetchStravaActivity,
			UserID:    cred.UserID,
			AthleteID: cred.AthleteID,
			After:     after.Format(time.RFC3339),
			Before:    now.Format(time.RFC3339),
		}
		fetchEvent, err := infrapubsub.NewCloudEvent(infrapubsub.EventSource, infrapubsub.EventTypeFetchJob, job)
		if err != nil {
			return nil, fmt.Errorf("create fetch event: %w", err)
		}
		if _, err := fwCtx.Service.Pub.PublishCloudEvent(ctx, shared.TopicStravaAPI, fetchEvent); err != nil {
			fwCtx.Logger.Error("Failed to queue sync, continuing",
				"athlete_id", cred.AthleteID, "error", err)
			skipped++
			continue
		}

		cred.LastSyncAt = now.Unix()
		if err := fwCtx.Service.DB.PutCredential(ctx, cred); err != nil {
			fwCtx.Logger.Error("Failed to record sync time",
				"athlete_id", cred.AthleteID, "error", err)
		}
		queued++
	}

	fwCtx.Logger.Info("Scheduled sync complete", "queued", queued, "skipped", skipped)
	return map[string]interface{}{
		"athletes": len(creds),
		"queued":   queued,
		"skipped":  skipped,
	}, nil
}
