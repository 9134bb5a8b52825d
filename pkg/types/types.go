// Package types holds the records and queue payloads shared by all pipeline stages.
package types

import "time"

// PubSubMessage is the payload of a Pub/Sub event via Cloud Event.
type PubSubMessage struct {
	Message struct {
		Data       []byte            `json:"data"`
		Attributes map[string]string `json:"attributes"`
	} `json:"message"`
}

// StorageObjectData is the payload of a Cloud Storage finalize event.
type StorageObjectData struct {
	Bucket string `json:"bucket"`
	Name   string `json:"name"`
}

// Job names carried in queue payloads.
const (
	JobBackfillAthlete     = "BACKFILL_ATHLETE"
	JobFetchStravaActivity = "FETCH_STRAVA_ACTIVITY"
	JobFetchStravaStream   = "FETCH_STRAVA_STREAM"
	JobRecomputeRecent     = "RECOMPUTE_RECENT"
)

// FetchJob is the message body for all Strava API work. Before/After bound an
// activity listing window (FETCH_STRAVA_ACTIVITY); ActivityID selects a stream
// fetch (FETCH_STRAVA_STREAM).
type FetchJob struct {
	Job        string `json:"job"`
	UserID     string `json:"user_id"`
	AthleteID  int64  `json:"athlete_id"`
	Before     string `json:"before,omitempty"` // RFC 3339
	After      string `json:"after,omitempty"`  // RFC 3339
	ActivityID int64  `json:"activity_id,omitempty"`
}

// RecomputeJob triggers a recent-peaks recompute for one athlete.
type RecomputeJob struct {
	Job       string `json:"job"`
	AthleteID int64  `json:"athlete_id"`
}

// AthleteCredential is the stored OAuth grant for one athlete. It is owned by
// the credential store: only the refresh transaction mutates the token fields,
// and ExpiresAt strictly increases across successful refreshes.
type AthleteCredential struct {
	UserID       string `json:"user_id"`
	AthleteID    int64  `json:"athlete_id"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at"` // epoch seconds
	LastSyncAt   int64  `json:"last_sync_at,omitempty"`
}

// Expired reports whether the access token is unusable at t, with a one minute
// margin so a token never expires mid-request.
func (c *AthleteCredential) Expired(t time.Time) bool {
	return c.ExpiresAt <= t.Add(time.Minute).Unix()
}

// RawActivity is the activity summary as fetched from the provider. Written
// idempotently; re-fetching the same activity overwrites the same keys.
type RawActivity struct {
	ActivityID     int64    `json:"activity_id"`
	AthleteID      int64    `json:"athlete_id"`
	StartDateLocal string   `json:"start_date_local"`
	Name           string   `json:"name"`
	Type           string   `json:"type"`
	Distance       float64  `json:"distance"`
	ElapsedTime    int64    `json:"elapsed_time"`
	Trainer        bool     `json:"trainer"`
	SufferScore    *float64 `json:"suffer_score,omitempty"`
}

// StreamSet maps a metric name to its sample sequence, including the "time"
// axis. This is exactly the JSON shape persisted to the raw object store.
type StreamSet map[string][]float64

// Time returns the time axis, or nil if the provider sent none.
func (s StreamSet) Time() []float64 { return s["time"] }

// Peak is one best-sustained-effort record: the maximum average of Metric held
// for Duration seconds within one activity. Value is stored in raw SI units;
// display conversion happens read-side only.
type Peak struct {
	PeakID         string    `json:"peak_id"`
	PeakType       string    `json:"peak_type"`
	AthleteID      int64     `json:"athlete_id"`
	ActivityID     int64     `json:"activity_id"`
	Metric         string    `json:"metric"`
	Duration       int       `json:"duration"`
	Value          float64   `json:"value"`
	StartDateLocal string    `json:"start_date_local"`
	Name           string    `json:"name"`
	Type           string    `json:"type"`
	Distance       float64   `json:"distance"`
	ElapsedTime    int64     `json:"elapsed_time"`
	Trainer        bool      `json:"trainer"`
	SufferScore    *float64  `json:"suffer_score,omitempty"`
	LastUpdated    time.Time `json:"last_updated"`
}

// RankedPeak is a Peak plus its position inside a recent bucket.
type RankedPeak struct {
	Peak
	Rank int `json:"rank"`
}

// RecentPeakBucket is the trailing-window top-N view for one (athlete, peak
// type). Buckets are recomputed wholesale; they are never merged with a
// previously stored bucket of the same type.
type RecentPeakBucket struct {
	AthleteID int64        `json:"athlete_id"`
	PeakType  string       `json:"peak_type"`
	Entries   []RankedPeak `json:"entries"`
}

// BackfillWindow is an ephemeral fetch-job descriptor; it lives only on the
// queue and is never persisted.
type BackfillWindow struct {
	AthleteID int64
	UserID    string
	Start     time.Time
	End       time.Time
}

// ExecutionRecord is the audit row written for every function invocation.
type ExecutionRecord struct {
	ExecutionID string    `json:"execution_id"`
	Service     string    `json:"service"`
	UserID      string    `json:"user_id,omitempty"`
	TriggerType string    `json:"trigger_type"`
	Status      string    `json:"status"`
	Error       string    `json:"error,omitempty"`
	OutputsJSON string    `json:"outputs_json,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at,omitempty"`
}

// Execution statuses.
const (
	StatusStarted = "STATUS_STARTED"
	StatusSuccess = "STATUS_SUCCESS"
	StatusFailure = "STATUS_FAILURE"
)
