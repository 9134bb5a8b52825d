package scheduledsync

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/cloudevents/sdk-go/v2/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	shared "github.com/peakline/server/pkg"
	"github.com/peakline/server/pkg/bootstrap"
	"github.com/peakline/server/pkg/framework"
	"github.com/peakline/server/pkg/testing/mocks"
	"github.com/peakline/server/pkg/types"
)

func tickEvent(t *testing.T) cloudevents.Event {
	t.Helper()
	e := cloudevents.NewEvent()
	e.SetType("google.cloud.pubsub.topic.v1.messagePublished")
	e.SetSource("//test")
	require.NoError(t, e.SetData(cloudevents.ApplicationJSON,
		map[string]interface{}{"message": map[string]interface{}{"data": []byte(`{}`)}}))
	return e
}

func testContext(db *mocks.MockDatabase, pub *mocks.MockPublisher) *framework.FrameworkContext {
	return &framework.FrameworkContext{
		Service: &bootstrap.Service{
			DB:     db,
			Pub:    pub,
			Config: &bootstrap.Config{RawBucket: "raw-test"},
		},
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		ExecutionID: "exec-test",
	}
}

func TestSyncHandlerQueuesIncrementalFetchPerAthlete(t *testing.T) {
	lastSync := time.Now().UTC().Add(-6 * time.Hour)
	creds := []*types.AthleteCredential{
		{UserID: "user-1", AthleteID: 42, AccessToken: "t1", LastSyncAt: lastSync.Unix()},
		{UserID: "user-2", AthleteID: 43, AccessToken: "t2"},
	}

	var updated []*types.AthleteCredential
	db := &mocks.MockDatabase{
		ListCredentialsFunc: func(ctx context.Context) ([]*types.AthleteCredential, error) {
			return creds, nil
		},
		PutCredentialFunc: func(ctx context.Context, cred *types.AthleteCredential) error {
			updated = append(updated, cred)
			return nil
		},
	}
	var queued []types.FetchJob
	pub := &mocks.MockPublisher{
		PublishCloudEventFunc: func(ctx context.Context, topic string, e event.Event) (string, error) {
			assert.Equal(t, shared.TopicStravaAPI, topic)
			var job types.FetchJob
			require.NoError(t, e.DataAs(&job))
			queued = append(queued, job)
			return "msg-id", nil
		},
	}

	out, err := syncHandler(context.Background(), tickEvent(t), testContext(db, pub))
	require.NoError(t, err)

	require.Len(t, queued, 2)
	assert.Equal(t, types.JobFetchStravaActivity, queued[0].Job)
	assert.Equal(t, int64(42), queued[0].AthleteID)

	// The window re-covers one day before the last sync.
	after, err := time.Parse(time.RFC3339, queued[0].After)
	require.NoError(t, err)
	assert.WithinDuration(t, lastSync.Add(-syncOverlap), after, time.Second)

	// Never-synced athletes start at the overlap boundary.
	after, err = time.Parse(time.RFC3339, queued[1].After)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().UTC().Add(-syncOverlap), after, 5*time.Second)

	require.Len(t, updated, 2, "sync time recorded for every queued athlete")
	assert.InDelta(t, time.Now().Unix(), updated[0].LastSyncAt, 5)

	outputs := out.(map[string]interface{})
	assert.Equal(t, 2, outputs["queued"])
	assert.Equal(t, 0, outputs["skipped"])
}

func TestSyncHandlerSkipsUnlinkedCredentials(t *testing.T) {
	db := &mocks.MockDatabase{
		ListCredentialsFunc: func(ctx context.Context) ([]*types.AthleteCredential, error) {
			return []*types.AthleteCredential{{UserID: "user-1", AccessToken: "t1"}}, nil
		},
	}
	pub := &mocks.MockPublisher{
		PublishCloudEventFunc: func(ctx context.Context, topic string, e event.Event) (string, error) {
			t.Fatal("unlinked credentials must not queue fetches")
			return "", nil
		},
	}

	out, err := syncHandler(context.Background(), tickEvent(t), testContext(db, pub))
	require.NoError(t, err)

	outputs := out.(map[string]interface{})
	assert.Equal(t, 0, outputs["queued"])
	assert.Equal(t, 1, outputs["skipped"])
}

func TestSyncHandlerContinuesPastPublishFailures(t *testing.T) {
	db := &mocks.MockDatabase{
		ListCredentialsFunc: func(ctx context.Context) ([]*types.AthleteCredential, error) {
			return []*types.AthleteCredential{
				{UserID: "user-1", AthleteID: 42, AccessToken: "t1"},
				{UserID: "user-2", AthleteID: 43, AccessToken: "t2"},
			}, nil
		},
	}
	calls := 0
	pub := &mocks.MockPublisher{
		PublishCloudEventFunc: func(ctx context.Context, topic string, e event.Event) (string, error) {
			calls++
			if calls == 1 {
				return "", assert.AnError
			}
			return "msg-id", nil
		},
	}

	out, err := syncHandler(context.Background(), tickEvent(t), testContext(db, pub))
	require.NoError(t, err)

	outputs := out.(map[string]interface{})
	assert.Equal(t, 1, outputs["queued"])
	assert.Equal(t, 1, outputs["skipped"])
}
