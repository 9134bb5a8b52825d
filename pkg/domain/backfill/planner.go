// Package backfill slices an athlete's history into fetchable windows.
package backfill

import (
	"time"

	"github.com/peakline/server/pkg/types"
)

// WindowLength is the width of every backfill window. Seven days keeps a
// window comfortably under one activity-listing page for any real athlete.
const WindowLength = 7 * 24 * time.Hour

// Plan returns consecutive full-width windows covering [start, now). Windows
// never shrink: the last one may extend past now, which just makes its
// listing call return fewer activities. Planning stops once a window start
// reaches now, so replanning later emits only genuinely new windows.
func Plan(start, now time.Time) []types.BackfillWindow {
	var windows []types.BackfillWindow
	for cursor := start; cursor.Before(now); cursor = cursor.Add(WindowLength) {
		windows = append(windows, types.BackfillWindow{
			Start: cursor,
			End:   cursor.Add(WindowLength),
		})
	}
	return windows
}

// PlanFor is Plan with the athlete identity stamped onto every window.
func PlanFor(userID string, athleteID int64, start, now time.Time) []types.BackfillWindow {
	windows := Plan(start, now)
	for i := range windows {
		windows[i].UserID = userID
		windows[i].AthleteID = athleteID
	}
	return windows
}
