package shared

import (
	"context"

	"github.com/cloudevents/sdk-go/v2/event"

	"github.com/peakline/server/pkg/types"
)

// --- Persistence Interfaces ---

type Database interface {
	SetExecution(ctx context.Context, record *types.ExecutionRecord) error
	UpdateExecution(ctx context.Context, id string, data map[string]interface{}) error

	// Credentials
	GetCredential(ctx context.Context, userID string) (*types.AthleteCredential, error)
	PutCredential(ctx context.Context, cred *types.AthleteCredential) error
	// SwapCredential replaces the stored token fields only if the stored
	// expires_at still equals prevExpiresAt; a superseded refresh must not
	// resurrect a stale refresh token.
	SwapCredential(ctx context.Context, cred *types.AthleteCredential, prevExpiresAt int64) error
	ListCredentials(ctx context.Context) ([]*types.AthleteCredential, error)

	// Activities
	SetActivity(ctx context.Context, activity *types.RawActivity) error
	GetActivity(ctx context.Context, athleteID, activityID int64) (*types.RawActivity, error)

	// Peaks
	SavePeaks(ctx context.Context, peaks []*types.Peak) error
	QueryPeaksByType(ctx context.Context, athleteID int64, peakType string, limit int) ([]*types.Peak, error)
	QueryAllPeaks(ctx context.Context, athleteID int64) ([]*types.Peak, error)

	// Recent buckets
	SetRecentPeakBuckets(ctx context.Context, buckets []*types.RecentPeakBucket) error
}

// --- Messaging Interfaces ---

type Publisher interface {
	PublishCloudEvent(ctx context.Context, topic string, e event.Event) (string, error)
}

// --- Storage Interfaces ---

type BlobStore interface {
	Write(ctx context.Context, bucket, object string, data []byte) error
	Read(ctx context.Context, bucket, object string) ([]byte, error)
}

// --- Secrets Interfaces ---

type SecretStore interface {
	GetSecret(ctx context.Context, name string) (string, error)
}
