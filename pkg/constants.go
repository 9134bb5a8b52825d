package shared

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	ProjectID = "peakline-project" // Can be overridden by env var in main if needed

	TopicBackfill    = "topic-backfill-athlete"
	TopicStravaAPI   = "topic-strava-api" // FETCH_STRAVA_ACTIVITY and FETCH_STRAVA_STREAM jobs
	TopicRecentPeaks = "topic-recent-peaks"

	CollectionCredentials = "strava_credentials"
	CollectionAthletes    = "athletes"
	CollectionExecutions  = "executions"
	CollectionRateLimits  = "rate_limits"
)

// Raw object naming. The read-side handlers and the indexing stages parse
// athlete/activity ids back out of these names, so the format is load-bearing.
func ActivityObjectName(athleteID, activityID int64) string {
	return fmt.Sprintf("activity_%d_%d.json", athleteID, activityID)
}

func StreamsObjectName(athleteID, activityID int64) string {
	return fmt.Sprintf("streams_%d_%d.json", athleteID, activityID)
}

func PeaksSnapshotName(athleteID int64) string {
	return fmt.Sprintf("peaks_%d.json", athleteID)
}

// Raw object kinds as encoded in the object-name prefix.
const (
	ObjectKindActivity = "activity"
	ObjectKindStreams  = "streams"
)

// ParseRawObjectName recovers the object kind and ids from a raw object name.
// Returns ok=false for names this pipeline did not write.
func ParseRawObjectName(name string) (kind string, athleteID, activityID int64, ok bool) {
	base, found := strings.CutSuffix(name, ".json")
	if !found {
		return "", 0, 0, false
	}

	parts := strings.Split(base, "_")
	if len(parts) != 3 {
		return "", 0, 0, false
	}
	if parts[0] != ObjectKindActivity && parts[0] != ObjectKindStreams {
		return "", 0, 0, false
	}

	athleteID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return "", 0, 0, false
	}
	activityID, err = strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return "", 0, 0, false
	}
	return parts[0], athleteID, activityID, true
}
