package backfillplanner

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
	"github.com/peakline/server/pkg/domain/backfill"
	"github.com/peakline/server/pkg/framework"
	infrapubsub "github.com/peakline/server/pkg/infrastructure/pubsub"
	"github.com/peakline/server/pkg/types"
)

// defaultHistoryStart bounds a backfill when the request carries no explicit
// start date. Strava has no activities before its launch year.
var defaultHistoryStart = time.Date(2009, 1, 1, 0, 0, 0, 0, time.UTC)

var (
	svc     *bootstrap.Service
	svcOnce sync.Once
	svcErr  error
)

func init() {
	functions.CloudEvent("PlanBackfill", PlanBackfill)
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

// PlanBackfill is the entry point
func PlanBackfill(ctx context.Context, e cloudevents.Event) error {
	svc, err := initService(ctx)
	if err != nil {
		return fmt.Errorf("service init failed: %v", err)
	}
	return framework.WrapCloudEvent("backfill-planner", svc, planHandler)(ctx, e)
}

// backfillRequest is the queue payload that starts a backfill.
type backfillRequest struct {
	Job       string `json:"job"`
	UserID    string `json:"user_id"`
	AthleteID int64  `json:"athlete_id"`
	Start     string `json:"start,omitempty"` // RFC 3339, optional
}

func planHandler(ctx context.Context, e cloudevents.Event, fwCtx *framework.FrameworkContext) (interface{}, error) {
	var msg types.PubSubMessage
	if err := e.DataAs(&msg); err != nil {
		return nil, fmt.Errorf("decode pubsub envelope: %w", err)
	}

	var req backfillRequest
	if err := json.Unmarshal(msg.Message.Data, &req); err != nil {
		return nil, fmt.Errorf("decode backfill request: %w", err)
	}
	if req.Job != types.JobBackfillAthlete {
		return nil, fmt.Errorf("unexpected job %q", req.Job)
	}
	if req.UserID == "" || req.AthleteID == 0 {
		return nil, fmt.Errorf("backfill request missing identity: user=%q athlete=%d", req.UserID, req.AthleteID)
	}

	start := defaultHistoryStart
	if req.Start != "" {
		parsed, err := time.Parse(time.RFC3339, req.Start)
		if err != nil {
			return nil, fmt.Errorf("invalid start date %q: %w", req.Start, err)
		}
		start = parsed
	}

	windows := backfill.PlanFor(req.UserID, req.AthleteID, start, time.Now().UTC())
	fwCtx.Logger.Info("Planned backfill windows",
		"athlete_id", req.AthleteID, "start", start, "window_count", len(windows))

	published := 0
	for _, w := range windows {
		job := types.FetchJob{
			Job:       types.JobFetchStravaActivity,
			UserID:    w.UserID,
			AthleteID: w.AthleteID,
			After:     w.Start.Format(time.RFC3339),
			Before:    w.End.Format(time.RFC3339),
		}
		fetchEvent, err := infrapubsub.NewCloudEvent(infrapubsub.EventSource, infrapubsub.EventTypeFetchJob, job)
		if err != nil {
			return nil, fmt.Errorf("create fetch event: %w", err)
		}
		if _, err := fwCtx.Service.Pub.PublishCloudEvent(ctx, shared.TopicStravaAPI, fetchEvent); err != nil {
			return nil, fmt.Errorf("publish window [%s, %s): %w", job.After, job.Before, err)
		}
		published++
	}

	return map[string]interface{}{
		"athlete_id":        req.AthleteID,
		"start":             start.Format(time.RFC3339),
		"windows_planned":   len(windows),
		"windows_published": published,
	}, nil
}
