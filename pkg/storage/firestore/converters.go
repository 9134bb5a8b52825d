package firestore

import (
	"time"

	"github.com/peakline/server/pkg/types"
)

// Helper to safely get string from map
func getString(m map[string]interface{}, key string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// Helper to safely get int64 from map (Firestore numbers decode as int64 or float64)
func getInt64(m map[string]interface{}, key string) int64 {
	switch v := m[key].(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	}
	return 0
}

// Helper to safely get float64 from map
func getFloat(m map[string]interface{}, key string) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	}
	return 0
}

func getFloatPtr(m map[string]interface{}, key string) *float64 {
	if _, ok := m[key]; !ok {
		return nil
	}
	f := getFloat(m, key)
	return &f
}

func getBool(m map[string]interface{}, key string) bool {
	if v, ok := m[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return false
}

func getTime(m map[string]interface{}, key string) time.Time {
	if v, ok := m[key]; ok {
		if t, ok := v.(time.Time); ok {
			return t
		}
	}
	return time.Time{}
}

// --- AthleteCredential Converters ---

func CredentialToFirestore(c *types.AthleteCredential) map[string]interface{} {
	return map[string]interface{}{
		"user_id":       c.UserID,
		"athlete_id":    c.AthleteID,
		"access_token":  c.AccessToken,
		"refresh_token": c.RefreshToken,
		"expires_at":    c.ExpiresAt,
		"last_sync_at":  c.LastSyncAt,
	}
}

func FirestoreToCredential(m map[string]interface{}) *types.AthleteCredential {
	return &types.AthleteCredential{
		UserID:       getString(m, "user_id"),
		AthleteID:    getInt64(m, "athlete_id"),
		AccessToken:  getString(m, "access_token"),
		RefreshToken: getString(m, "refresh_token"),
		ExpiresAt:    getInt64(m, "expires_at"),
		LastSyncAt:   getInt64(m, "last_sync_at"),
	}
}

// --- RawActivity Converters ---

func ActivityToFirestore(a *types.RawActivity) map[string]interface{} {
	m := map[string]interface{}{
		"activity_id":      a.ActivityID,
		"athlete_id":       a.AthleteID,
		"start_date_local": a.StartDateLocal,
		"name":             a.Name,
		"type":             a.Type,
		"distance":         a.Distance,
		"elapsed_time":     a.ElapsedTime,
		"trainer":          a.Trainer,
	}
	if a.SufferScore != nil {
		m["suffer_score"] = *a.SufferScore
	}
	return m
}

func FirestoreToActivity(m map[string]interface{}) *types.RawActivity {
	return &types.RawActivity{
		ActivityID:     getInt64(m, "activity_id"),
		AthleteID:      getInt64(m, "athlete_id"),
		StartDateLocal: getString(m, "start_date_local"),
		Name:           getString(m, "name"),
		Type:           getString(m, "type"),
		Distance:       getFloat(m, "distance"),
		ElapsedTime:    getInt64(m, "elapsed_time"),
		Trainer:        getBool(m, "trainer"),
		SufferScore:    getFloatPtr(m, "suffer_score"),
	}
}

// --- Peak Converters ---

func PeakToFirestore(p *types.Peak) map[string]interface{} {
	m := map[string]interface{}{
		"peak_id":          p.PeakID,
		"peak_type":        p.PeakType,
		"athlete_id":       p.AthleteID,
		"activity_id":      p.ActivityID,
		"metric":           p.Metric,
		"duration":         p.Duration,
		"value":            p.Value,
		"start_date_local": p.StartDateLocal,
		"name":             p.Name,
		"type":             p.Type,
		"distance":         p.Distance,
		"elapsed_time":     p.ElapsedTime,
		"trainer":          p.Trainer,
		"last_updated":     p.LastUpdated,
	}
	if p.SufferScore != nil {
		m["suffer_score"] = *p.SufferScore
	}
	return m
}

func FirestoreToPeak(m map[string]interface{}) *types.Peak {
	return &types.Peak{
		PeakID:         getString(m, "peak_id"),
		PeakType:       getString(m, "peak_type"),
		AthleteID:      getInt64(m, "athlete_id"),
		ActivityID:     getInt64(m, "activity_id"),
		Metric:         getString(m, "metric"),
		Duration:       int(getInt64(m, "duration")),
		Value:          getFloat(m, "value"),
		StartDateLocal: getString(m, "start_date_local"),
		Name:           getString(m, "name"),
		Type:           getString(m, "type"),
		Distance:       getFloat(m, "distance"),
		ElapsedTime:    getInt64(m, "elapsed_time"),
		Trainer:        getBool(m, "trainer"),
		SufferScore:    getFloatPtr(m, "suffer_score"),
		LastUpdated:    getTime(m, "last_updated"),
	}
}

// --- RecentPeakBucket Converters ---

func RecentBucketToFirestore(b *types.RecentPeakBucket) map[string]interface{} {
	entries := make([]interface{}, 0, len(b.Entries))
	for i := range b.Entries {
		e := PeakToFirestore(&b.Entries[i].Peak)
		e["rank"] = b.Entries[i].Rank
		entries = append(entries, e)
	}
	return map[string]interface{}{
		"athlete_id": b.AthleteID,
		"peak_type":  b.PeakType,
		"entries":    entries,
	}
}

func FirestoreToRecentBucket(m map[string]interface{}) *types.RecentPeakBucket {
	bucket := &types.RecentPeakBucket{
		AthleteID: getInt64(m, "athlete_id"),
		PeakType:  getString(m, "peak_type"),
	}
	if raw, ok := m["entries"].([]interface{}); ok {
		for _, item := range raw {
			em, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			bucket.Entries = append(bucket.Entries, types.RankedPeak{
				Peak: *FirestoreToPeak(em),
				Rank: int(getInt64(em, "rank")),
			})
		}
	}
	return bucket
}

// --- ExecutionRecord Converters ---

func ExecutionToFirestore(r *types.ExecutionRecord) map[string]interface{} {
	m := map[string]interface{}{
		"execution_id": r.ExecutionID,
		"service":      r.Service,
		"trigger_type": r.TriggerType,
		"status":       r.Status,
		"started_at":   r.StartedAt,
	}
	if r.UserID != "" {
		m["user_id"] = r.UserID
	}
	if r.Error != "" {
		m["error"] = r.Error
	}
	if r.OutputsJSON != "" {
		m["outputs_json"] = r.OutputsJSON
	}
	if !r.FinishedAt.IsZero() {
		m["finished_at"] = r.FinishedAt
	}
	return m
}

func FirestoreToExecution(m map[string]interface{}) *types.ExecutionRecord {
	return &types.ExecutionRecord{
		ExecutionID: getString(m, "execution_id"),
		Service:     getString(m, "service"),
		UserID:      getString(m, "user_id"),
		TriggerType: getString(m, "trigger_type"),
		Status:      getString(m, "status"),
		Error:       getString(m, "error"),
		OutputsJSON: getString(m, "outputs_json"),
		StartedAt:   getTime(m, "started_at"),
		FinishedAt:  getTime(m, "finished_at"),
	}
}
