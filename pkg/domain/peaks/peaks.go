// Package peaks derives best-sustained-effort records from per-second series.
package peaks

import (
	"fmt"
	"strings"
	"time"

	"github.com/peakline/server/pkg/types"
)

// Metrics are the stream series peaks are extracted from.
var Metrics = []string{"heartrate", "watts", "velocity_smooth"}

// Durations are the standard effort windows, in seconds.
var Durations = []int{5, 60, 300, 600, 1200, 3600, 5400}

// metersPerSecondToMPH converts stored velocity values for display. Values
// are persisted in SI units; conversion happens read-side only.
const metersPerSecondToMPH = 2.23694

// PeakID identifies one (activity, metric, duration) record. Re-processing
// the same activity regenerates the same IDs, so saves are idempotent.
func PeakID(activityID int64, metric string, duration int) string {
	return fmt.Sprintf("%d_%s_%d", activityID, metric, duration)
}

// PeakType groups comparable efforts across activities: same sport, same
// metric, same window. Lowercased so provider casing drift cannot split a
// group.
func PeakType(activityType, metric string, duration int) string {
	return strings.ToLower(fmt.Sprintf("%s_%s_%d", activityType, metric, duration))
}

// Build extracts every standard peak from the normalized streams of one
// activity. Metrics the provider did not record, and windows longer than the
// activity, produce no record.
func Build(activity *types.RawActivity, streams types.StreamSet, now time.Time) []*types.Peak {
	var out []*types.Peak
	for _, metric := range Metrics {
		data := streams[metric]
		if len(data) == 0 {
			continue
		}
		for _, duration := range Durations {
			value, ok := Extract(data, duration)
			if !ok {
				continue
			}
			out = append(out, &types.Peak{
				PeakID:         PeakID(activity.ActivityID, metric, duration),
				PeakType:       PeakType(activity.Type, metric, duration),
				AthleteID:      activity.AthleteID,
				ActivityID:     activity.ActivityID,
				Metric:         metric,
				Duration:       duration,
				Value:          value,
				StartDateLocal: activity.StartDateLocal,
				Name:           activity.Name,
				Type:           activity.Type,
				Distance:       activity.Distance,
				ElapsedTime:    activity.ElapsedTime,
				Trainer:        activity.Trainer,
				SufferScore:    activity.SufferScore,
				LastUpdated:    now,
			})
		}
	}
	return out
}

// DisplayValue renders a stored peak value in its display unit: velocity
// converts from m/s to mph, everything else is shown as stored.
func DisplayValue(metric string, value float64) float64 {
	if metric == "velocity_smooth" {
		return value * metersPerSecondToMPH
	}
	return value
}
