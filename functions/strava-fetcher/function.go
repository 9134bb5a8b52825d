package stravafetcher

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
	"github.com/peakline/server/pkg/framework"
	"github.com/peakline/server/pkg/infrastructure/oauth"
	infrapubsub "github.com/peakline/server/pkg/infrastructure/pubsub"
	"github.com/peakline/server/pkg/integrations/strava"
	"github.com/peakline/server/pkg/types"
)

var (
	svc     *bootstrap.Service
	svcOnce sync.Once
	svcErr  error
)

func init() {
	functions.CloudEvent("FetchStrava", FetchStrava)
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

// FetchStrava is the entry point
func FetchStrava(ctx context.Context, e cloudevents.Event) error {
	svc, err := initService(ctx)
	if err != nil {
		return fmt.Errorf("service init failed: %v", err)
	}
	return framework.WrapCloudEvent("strava-fetcher", svc, fetchHandler)(ctx, e)
}

// newAPIClient builds a Strava client whose requests authenticate as the
// given user and share the global rate-limit budget.
//
// Overridable in tests to point at a stub server.
var newAPIClient = func(svc *bootstrap.Service, userID string) *strava.Client {
	source := oauth.NewCredentialSource(svc.DB, svc.Secrets, userID)
	httpClient := oauth.NewHTTPClient(source)
	httpClient.Timeout = 30 * time.Second
	return strava.NewClient(httpClient, svc.Limiter)
}

func fetchHandler(ctx context.Context, e cloudevents.Event, fwCtx *framework.FrameworkContext) (interface{}, error) {
	var msg types.PubSubMessage
	if err := e.DataAs(&msg); err != nil {
		return nil, fmt.Errorf("decode pubsub envelope: %w", err)
	}

	var job types.FetchJob
	if err := json.Unmarshal(msg.Message.Data, &job); err != nil {
		return nil, fmt.Errorf("decode fetch job: %w", err)
	}

	client := newAPIClient(fwCtx.Service, job.UserID)

	switch job.Job {
	case types.JobFetchStravaActivity:
		return fetchActivities(ctx, fwCtx, client, job)
	case types.JobFetchStravaStream:
		return fetchStreams(ctx, fwCtx, client, job)
	default:
		return nil, fmt.Errorf("unexpected job %q", job.Job)
	}
}

// fetchActivities lists one window of activity summaries, persists each to
// the raw bucket, and queues a stream fetch per activity.
func fetchActivities(ctx context.Context, fwCtx *framework.FrameworkContext, client *strava.Client, job types.FetchJob) (interface{}, error) {
	after, err := time.Parse(time.RFC3339, job.After)
	if err != nil {
		return nil, fmt.Errorf("invalid after %q: %w", job.After, err)
	}
	before, err := time.Parse(time.RFC3339, job.Before)
	if err != nil {
		return nil, fmt.Errorf("invalid before %q: %w", job.Before, err)
	}

	activities, err := client.ListActivities(ctx, job.AthleteID, after, before)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	fwCtx.Logger.Info("Listed activities",
		"athlete_id", job.AthleteID, "after", job.After, "before", job.Before, "count", len(activities))

	bucket := fwCtx.Service.Config.RawBucket
	queued := 0
	for _, activity := range activities {
		data, err := json.Marshal(activity)
		if err != nil {
			return nil, fmt.Errorf("marshal activity %d: %w", activity.ActivityID, err)
		}
		object := shared.ActivityObjectName(activity.AthleteID, activity.ActivityID)
		if err := fwCtx.Service.Store.Write(ctx, bucket, object, data); err != nil {
			return nil, fmt.Errorf("write %s: %w", object, err)
		}

		streamJob := types.FetchJob{
			Job:        types.JobFetchStravaStream,
			UserID:     job.UserID,
			AthleteID:  activity.AthleteID,
			ActivityID: activity.ActivityID,
		}
		streamEvent, err := infrapubsub.NewCloudEvent(infrapubsub.EventSource, infrapubsub.EventTypeFetchJob, streamJob)
		if err != nil {
			return nil, fmt.Errorf("create stream event: %w", err)
		}
		if _, err := fwCtx.Service.Pub.PublishCloudEvent(ctx, shared.TopicStravaAPI, streamEvent); err != nil {
			return nil, fmt.Errorf("queue stream fetch for activity %d: %w", activity.ActivityID, err)
		}
		queued++
	}

	return map[string]interface{}{
		"athlete_id":     job.AthleteID,
		"activity_count": len(activities),
		"streams_queued": queued,
	}, nil
}

// fetchStreams pulls the sample series for one activity and persists them.
// The raw-bucket finalize event drives peak extraction from there.
func fetchStreams(ctx context.Context, fwCtx *framework.FrameworkContext, client *strava.Client, job types.FetchJob) (interface{}, error) {
	if job.ActivityID == 0 {
		return nil, fmt.Errorf("stream job missing activity_id")
	}

	set, err := client.GetStreams(ctx, job.ActivityID)
	if err != nil {
		return nil, fmt.Errorf("get streams: %w", err)
	}
	if set == nil {
		// Manual entries and trainer rides without sensors have no streams.
		fwCtx.Logger.Info("Activity has no streams, skipping", "activity_id", job.ActivityID)
		return map[string]interface{}{
			"activity_id": job.ActivityID,
			"status":      "NO_STREAMS",
		}, nil
	}

	data, err := json.Marshal(set)
	if err != nil {
		return nil, fmt.Errorf("marshal streams for activity %d: %w", job.ActivityID, err)
	}
	object := shared.StreamsObjectName(job.AthleteID, job.ActivityID)
	if err := fwCtx.Service.Store.Write(ctx, fwCtx.Service.Config.RawBucket, object, data); err != nil {
		return nil, fmt.Errorf("write %s: %w", object, err)
	}

	fwCtx.Logger.Info("Stored streams", "activity_id", job.ActivityID, "object", object, "series", len(set))
	return map[string]interface{}{
		"activity_id": job.ActivityID,
		"object":      object,
	}, nil
}
