package firestore

import (
	"strconv"

	"cloud.google.com/go/firestore"

	"github.com/peakline/server/pkg/types"
)

type Client struct {
	fs *firestore.Client
}

func NewClient(client *firestore.Client) *Client {
	return &Client{fs: client}
}

func (c *Client) Close() error {
	return c.fs.Close()
}

// Raw exposes the underlying client for transactions (credential CAS, shared
// rate limiter).
func (c *Client) Raw() *firestore.Client {
	return c.fs
}

// Credentials is a top-level collection: strava_credentials/{user_id}
func (c *Client) Credentials() *Collection[types.AthleteCredential] {
	return &Collection[types.AthleteCredential]{
		Ref:           c.fs.Collection("strava_credentials"),
		ToFirestore:   CredentialToFirestore,
		FromFirestore: FirestoreToCredential,
	}
}

// Activities are sub-collections of athletes: athletes/{athlete_id}/activities/{activity_id}
func (c *Client) Activities(athleteID int64) *Collection[types.RawActivity] {
	return &Collection[types.RawActivity]{
		Ref:           c.athlete(athleteID).Collection("activities"),
		ToFirestore:   ActivityToFirestore,
		FromFirestore: FirestoreToActivity,
	}
}

// Peaks are sub-collections of athletes: athletes/{athlete_id}/peaks/{peak_id}
func (c *Client) Peaks(athleteID int64) *Collection[types.Peak] {
	return &Collection[types.Peak]{
		Ref:           c.athlete(athleteID).Collection("peaks"),
		ToFirestore:   PeakToFirestore,
		FromFirestore: FirestoreToPeak,
	}
}

// RecentPeaks are sub-collections of athletes: athletes/{athlete_id}/recent_peaks/{peak_type}
func (c *Client) RecentPeaks(athleteID int64) *Collection[types.RecentPeakBucket] {
	return &Collection[types.RecentPeakBucket]{
		Ref:           c.athlete(athleteID).Collection("recent_peaks"),
		ToFirestore:   RecentBucketToFirestore,
		FromFirestore: FirestoreToRecentBucket,
	}
}

// Executions is a top-level collection: executions/{execution_id}
func (c *Client) Executions() *Collection[types.ExecutionRecord] {
	return &Collection[types.ExecutionRecord]{
		Ref:           c.fs.Collection("executions"),
		ToFirestore:   ExecutionToFirestore,
		FromFirestore: FirestoreToExecution,
	}
}

func (c *Client) athlete(athleteID int64) *firestore.DocumentRef {
	return c.fs.Collection("athletes").Doc(strconv.FormatInt(athleteID, 10))
}
