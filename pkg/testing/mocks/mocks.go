package mocks

import (
	"context"
	"fmt"

	"github.com/cloudevents/sdk-go/v2/event"

	"github.com/peakline/server/pkg/types"
)

// --- Mock Database ---
type MockDatabase struct {
	SetExecutionFunc    func(ctx context.Context, record *types.ExecutionRecord) error
	UpdateExecutionFunc func(ctx context.Context, id string, data map[string]interface{}) error

	GetCredentialFunc   func(ctx context.Context, userID string) (*types.AthleteCredential, error)
	PutCredentialFunc   func(ctx context.Context, cred *types.AthleteCredential) error
	SwapCredentialFunc  func(ctx context.Context, cred *types.AthleteCredential, prevExpiresAt int64) error
	ListCredentialsFunc func(ctx context.Context) ([]*types.AthleteCredential, error)

	SetActivityFunc func(ctx context.Context, activity *types.RawActivity) error
	GetActivityFunc func(ctx context.Context, athleteID, activityID int64) (*types.RawActivity, error)

	SavePeaksFunc        func(ctx context.Context, peaks []*types.Peak) error
	QueryPeaksByTypeFunc func(ctx context.Context, athleteID int64, peakType string, limit int) ([]*types.Peak, error)
	QueryAllPeaksFunc    func(ctx context.Context, athleteID int64) ([]*types.Peak, error)

	SetRecentPeakBucketsFunc func(ctx context.Context, buckets []*types.RecentPeakBucket) error
}

func (m *MockDatabase) SetExecution(ctx context.Context, record *types.ExecutionRecord) error {
	if m.SetExecutionFunc != nil {
		return m.SetExecutionFunc(ctx, record)
	}
	return nil
}

func (m *MockDatabase) UpdateExecution(ctx context.Context, id string, data map[string]interface{}) error {
	if m.UpdateExecutionFunc != nil {
		return m.UpdateExecutionFunc(ctx, id, data)
	}
	return nil
}

func (m *MockDatabase) GetCredential(ctx context.Context, userID string) (*types.AthleteCredential, error) {
	if m.GetCredentialFunc != nil {
		return m.GetCredentialFunc(ctx, userID)
	}
	return nil, fmt.Errorf("credential not found")
}

func (m *MockDatabase) PutCredential(ctx context.Context, cred *types.AthleteCredential) error {
	if m.PutCredentialFunc != nil {
		return m.PutCredentialFunc(ctx, cred)
	}
	return nil
}

func (m *MockDatabase) SwapCredential(ctx context.Context, cred *types.AthleteCredential, prevExpiresAt int64) error {
	if m.SwapCredentialFunc != nil {
		return m.SwapCredentialFunc(ctx, cred, prevExpiresAt)
	}
	return nil
}

func (m *MockDatabase) ListCredentials(ctx context.Context) ([]*types.AthleteCredential, error) {
	if m.ListCredentialsFunc != nil {
		return m.ListCredentialsFunc(ctx)
	}
	return nil, nil
}

func (m *MockDatabase) SetActivity(ctx context.Context, activity *types.RawActivity) error {
	if m.SetActivityFunc != nil {
		return m.SetActivityFunc(ctx, activity)
	}
	return nil
}

func (m *MockDatabase) GetActivity(ctx context.Context, athleteID, activityID int64) (*types.RawActivity, error) {
	if m.GetActivityFunc != nil {
		return m.GetActivityFunc(ctx, athleteID, activityID)
	}
	return nil, fmt.Errorf("activity not found")
}

func (m *MockDatabase) SavePeaks(ctx context.Context, peaks []*types.Peak) error {
	if m.SavePeaksFunc != nil {
		return m.SavePeaksFunc(ctx, peaks)
	}
	return nil
}

func (m *MockDatabase) QueryPeaksByType(ctx context.Context, athleteID int64, peakType string, limit int) ([]*types.Peak, error) {
	if m.QueryPeaksByTypeFunc != nil {
		return m.QueryPeaksByTypeFunc(ctx, athleteID, peakType, limit)
	}
	return nil, nil
}

func (m *MockDatabase) QueryAllPeaks(ctx context.Context, athleteID int64) ([]*types.Peak, error) {
	if m.QueryAllPeaksFunc != nil {
		return m.QueryAllPeaksFunc(ctx, athleteID)
	}
	return nil, nil
}

func (m *MockDatabase) SetRecentPeakBuckets(ctx context.Context, buckets []*types.RecentPeakBucket) error {
	if m.SetRecentPeakBucketsFunc != nil {
		return m.SetRecentPeakBucketsFunc(ctx, buckets)
	}
	return nil
}

// --- Mock Publisher ---
type MockPublisher struct {
	PublishCloudEventFunc func(ctx context.Context, topic string, e event.Event) (string, error)
}

func (m *MockPublisher) PublishCloudEvent(ctx context.Context, topic string, e event.Event) (string, error) {
	if m.PublishCloudEventFunc != nil {
		return m.PublishCloudEventFunc(ctx, topic, e)
	}
	return "msg-id", nil
}

// --- Mock Storage ---
type MockBlobStore struct {
	WriteFunc func(ctx context.Context, bucket, object string, data []byte) error
	ReadFunc  func(ctx context.Context, bucket, object string) ([]byte, error)
}

func (m *MockBlobStore) Write(ctx context.Context, bucket, object string, data []byte) error {
	if m.WriteFunc != nil {
		return m.WriteFunc(ctx, bucket, object, data)
	}
	return nil
}

func (m *MockBlobStore) Read(ctx context.Context, bucket, object string) ([]byte, error) {
	if m.ReadFunc != nil {
		return m.ReadFunc(ctx, bucket, object)
	}
	return []byte("mock-data"), nil
}

// --- Mock Secrets ---
type MockSecretStore struct {
	GetSecretFunc func(ctx context.Context, name string) (string, error)
}

func (m *MockSecretStore) GetSecret(ctx context.Context, name string) (string, error) {
	if m.GetSecretFunc != nil {
		return m.GetSecretFunc(ctx, name)
	}
	return "mock-secret-value", nil
}

// --- Mock Limiter ---
type MockLimiter struct {
	AcquireFunc func(ctx context.Context) error
	Calls       int
}

func (m *MockLimiter) Acquire(ctx context.Context) error {
	m.Calls++
	if m.AcquireFunc != nil {
		return m.AcquireFunc(ctx)
	}
	return nil
}
