package database

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	storage "github.com/peakline/server/pkg/storage/firestore"
	"github.com/peakline/server/pkg/types"
)

// ErrSuperseded is returned by SwapCredential when the stored credential no
// longer matches the state the caller's refresh was based on. The caller must
// re-read and use the winning token instead of overwriting it.
var ErrSuperseded = errors.New("credential refresh superseded by a concurrent write")

// queryPageSize bounds one page of the full-peaks scan.
const queryPageSize = 1000

// FirestoreAdapter provides database operations using Firestore.
// It wraps the typed storage client.
type FirestoreAdapter struct {
	Client  *firestore.Client
	storage *storage.Client
}

func NewFirestoreAdapter(client *firestore.Client) *FirestoreAdapter {
	return &FirestoreAdapter{
		Client:  client,
		storage: storage.NewClient(client),
	}
}

// --- Executions ---

func (a *FirestoreAdapter) SetExecution(ctx context.Context, record *types.ExecutionRecord) error {
	return a.storage.Executions().Doc(record.ExecutionID).Set(ctx, record)
}

func (a *FirestoreAdapter) UpdateExecution(ctx context.Context, id string, data map[string]interface{}) error {
	return a.storage.Executions().Doc(id).Update(ctx, data)
}

// --- Credentials ---

func (a *FirestoreAdapter) GetCredential(ctx context.Context, userID string) (*types.AthleteCredential, error) {
	return a.storage.Credentials().Doc(userID).Get(ctx)
}

func (a *FirestoreAdapter) PutCredential(ctx context.Context, cred *types.AthleteCredential) error {
	return a.storage.Credentials().Doc(cred.UserID).Set(ctx, cred)
}

// SwapCredential persists refreshed tokens in a transaction conditioned on the
// expires_at value the refresh was based on. Concurrent refreshes race on the
// token endpoint; accepting a stale one here would resurrect a dead refresh
// token, so the loser gets ErrSuperseded and must re-read.
func (a *FirestoreAdapter) SwapCredential(ctx context.Context, cred *types.AthleteCredential, prevExpiresAt int64) error {
	ref := a.storage.Credentials().Doc(cred.UserID).Ref
	return a.Client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		stored := storage.FirestoreToCredential(snap.Data())
		if stored.ExpiresAt != prevExpiresAt {
			return ErrSuperseded
		}
		return tx.Set(ref, storage.CredentialToFirestore(cred), firestore.MergeAll)
	})
}

func (a *FirestoreAdapter) ListCredentials(ctx context.Context) ([]*types.AthleteCredential, error) {
	var creds []*types.AthleteCredential
	iter := a.storage.Credentials().Query().Documents(ctx)
	defer iter.Stop()
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list credentials: %w", err)
		}
		cred := storage.FirestoreToCredential(snap.Data())
		if cred.AccessToken == "" {
			// Partially linked record; the athlete never finished authorizing.
			continue
		}
		creds = append(creds, cred)
	}
	return creds, nil
}

// --- Activities ---

func (a *FirestoreAdapter) SetActivity(ctx context.Context, activity *types.RawActivity) error {
	id := strconv.FormatInt(activity.ActivityID, 10)
	return a.storage.Activities(activity.AthleteID).Doc(id).Set(ctx, activity)
}

func (a *FirestoreAdapter) GetActivity(ctx context.Context, athleteID, activityID int64) (*types.RawActivity, error) {
	id := strconv.FormatInt(activityID, 10)
	return a.storage.Activities(athleteID).Doc(id).Get(ctx)
}

// --- Peaks ---

// SavePeaks upserts a batch of peaks keyed by peak_id. Re-saving the same
// batch is a no-op overwrite, which is what makes queue redelivery safe.
func (a *FirestoreAdapter) SavePeaks(ctx context.Context, peaks []*types.Peak) error {
	if len(peaks) == 0 {
		return nil
	}

	bw := a.Client.BulkWriter(ctx)
	jobs := make([]*firestore.BulkWriterJob, 0, len(peaks))
	for _, p := range peaks {
		col := a.storage.Peaks(p.AthleteID)
		job, err := bw.Set(col.Doc(p.PeakID).Ref, storage.PeakToFirestore(p), firestore.MergeAll)
		if err != nil {
			bw.End()
			return fmt.Errorf("queue peak write %s: %w", p.PeakID, err)
		}
		jobs = append(jobs, job)
	}
	bw.End()

	for i, job := range jobs {
		if _, err := job.Results(); err != nil {
			return fmt.Errorf("write peak %s: %w", peaks[i].PeakID, err)
		}
	}
	return nil
}

func (a *FirestoreAdapter) QueryPeaksByType(ctx context.Context, athleteID int64, peakType string, limit int) ([]*types.Peak, error) {
	q := a.storage.Peaks(athleteID).Query().
		Where("peak_type", "==", peakType).
		OrderBy("value", firestore.Desc).
		Limit(limit)

	var peaks []*types.Peak
	iter := q.Documents(ctx)
	defer iter.Stop()
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("query peaks %q: %w", peakType, err)
		}
		peaks = append(peaks, q.Decode(snap.Data()))
	}
	return peaks, nil
}

// QueryAllPeaks pages through the athlete's whole peak history and aggregates
// the pages for the caller.
func (a *FirestoreAdapter) QueryAllPeaks(ctx context.Context, athleteID int64) ([]*types.Peak, error) {
	col := a.storage.Peaks(athleteID)

	var peaks []*types.Peak
	cursor := ""
	for {
		q := col.Query().OrderBy("peak_id", firestore.Asc).Limit(queryPageSize)
		if cursor != "" {
			q = q.StartAfter(cursor)
		}

		count := 0
		iter := q.Documents(ctx)
		for {
			snap, err := iter.Next()
			if errors.Is(err, iterator.Done) {
				break
			}
			if err != nil {
				iter.Stop()
				return nil, fmt.Errorf("scan peaks for athlete %d: %w", athleteID, err)
			}
			p := q.Decode(snap.Data())
			peaks = append(peaks, p)
			cursor = p.PeakID
			count++
		}
		iter.Stop()

		if count < queryPageSize {
			return peaks, nil
		}
	}
}

// --- Recent buckets ---

func (a *FirestoreAdapter) SetRecentPeakBuckets(ctx context.Context, buckets []*types.RecentPeakBucket) error {
	for _, b := range buckets {
		// Wholesale overwrite: a recompute fully replaces the bucket, it
		// never merges with entries from an earlier run.
		if err := a.storage.RecentPeaks(b.AthleteID).Doc(b.PeakType).Replace(ctx, b); err != nil {
			return fmt.Errorf("write recent bucket %s: %w", b.PeakType, err)
		}
	}
	return nil
}
