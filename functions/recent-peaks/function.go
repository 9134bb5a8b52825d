package recentpeaks

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
	"github.com/peakline/server/pkg/domain/recent"
	"github.com/peakline/server/pkg/framework"
	"github.com/peakline/server/pkg/types"
)

var (
	svc     *bootstrap.Service
	svcOnce sync.Once
	svcErr  error
)

func init() {
	functions.CloudEvent("RecomputeRecent", RecomputeRecent)
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

// RecomputeRecent is the entry point
func RecomputeRecent(ctx context.Context, e cloudevents.Event) error {
	svc, err := initService(ctx)
	if err != nil {
		return fmt.Errorf("service init failed: %v", err)
	}
	return framework.WrapCloudEvent("recent-peaks", svc, recomputeHandler)(ctx, e)
}

// recomputeHandler rebuilds every trailing-window leaderboard for one athlete
// from their full peak history, and refreshes the raw snapshot object. The
// recompute is wholesale, so concurrent triggers for the same athlete
// converge on the same result.
func recomputeHandler(ctx context.Context, e cloudevents.Event, fwCtx *framework.FrameworkContext) (interface{}, error) {
	var msg types.PubSubMessage
	if err := e.DataAs(&msg); err != nil {
		return nil, fmt.Errorf("decode pubsub envelope: %w", err)
	}

	var job types.RecomputeJob
	if err := json.Unmarshal(msg.Message.Data, &job); err != nil {
		return nil, fmt.Errorf("decode recompute job: %w", err)
	}
	if job.Job != types.JobRecomputeRecent {
		return nil, fmt.Errorf("unexpected job %q", job.Job)
	}
	if job.AthleteID == 0 {
		return nil, fmt.Errorf("recompute job missing athlete_id")
	}

	allPeaks, err := fwCtx.Service.DB.QueryAllPeaks(ctx, job.AthleteID)
	if err != nil {
		return nil, fmt.Errorf("query peaks for athlete %d: %w", job.AthleteID, err)
	}

	buckets := recent.Compute(job.AthleteID, allPeaks, time.Now().UTC())
	if err := fwCtx.Service.DB.SetRecentPeakBuckets(ctx, buckets); err != nil {
		return nil, fmt.Errorf("store recent buckets for athlete %d: %w", job.AthleteID, err)
	}

	// Snapshot the full peak set alongside the raw objects so the history can
	// be rebuilt or inspected without walking the store.
	snapshot, err := json.Marshal(allPeaks)
	if err != nil {
		return nil, fmt.Errorf("marshal peak snapshot: %w", err)
	}
	object := shared.PeaksSnapshotName(job.AthleteID)
	if err := fwCtx.Service.Store.Write(ctx, fwCtx.Service.Config.RawBucket, object, snapshot); err != nil {
		return nil, fmt.Errorf("write %s: %w", object, err)
	}

	fwCtx.Logger.Info("Recomputed recent peaks",
		"athlete_id", job.AthleteID, "peak_count", len(allPeaks), "bucket_count", len(buckets))
	return map[string]interface{}{
		"athlete_id":   job.AthleteID,
		"peak_count":   len(allPeaks),
		"bucket_count": len(buckets),
	}, nil
}
