// Package recent computes the trailing-window leaderboard per peak type.
package recent

import (
	"sort"
	"time"

	"github.com/peakline/server/pkg/types"
)

const (
	// Window is how far back an effort still counts as recent.
	Window = 30 * 24 * time.Hour

	// BucketSize caps each leaderboard.
	BucketSize = 9
)

// parseStart reads the provider's local start timestamp. Providers emit
// RFC 3339 with and without a zone suffix.
func parseStart(s string) (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.Parse("2006-01-02T15:04:05", s); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// Compute rebuilds every bucket for one athlete from their full peak set. A
// bucket is emitted for every peak type present in the input, even when no
// effort of that type survives the trailing window; writing the empty bucket
// is what clears a stale leaderboard.
func Compute(athleteID int64, peaks []*types.Peak, now time.Time) []*types.RecentPeakBucket {
	cutoff := now.Add(-Window)

	byType := make(map[string][]*types.Peak)
	for _, p := range peaks {
		byType[p.PeakType] = append(byType[p.PeakType], p)
	}

	peakTypes := make([]string, 0, len(byType))
	for pt := range byType {
		peakTypes = append(peakTypes, pt)
	}
	sort.Strings(peakTypes)

	buckets := make([]*types.RecentPeakBucket, 0, len(peakTypes))
	for _, pt := range peakTypes {
		ranked := byType[pt]
		sort.Slice(ranked, func(i, j int) bool {
			if ranked[i].Value != ranked[j].Value {
				return ranked[i].Value > ranked[j].Value
			}
			return ranked[i].PeakID < ranked[j].PeakID
		})

		// The leaderboard is the athlete's all-time top N; the trailing
		// window then hides aged-out rows. Rank is the all-time position,
		// so filtering can leave gaps but never promotes a lesser effort
		// into the top N.
		if len(ranked) > BucketSize {
			ranked = ranked[:BucketSize]
		}

		entries := make([]types.RankedPeak, 0, len(ranked))
		for i, p := range ranked {
			start, ok := parseStart(p.StartDateLocal)
			if !ok || start.Before(cutoff) {
				continue
			}
			entries = append(entries, types.RankedPeak{Peak: *p, Rank: i + 1})
		}
		buckets = append(buckets, &types.RecentPeakBucket{
			AthleteID: athleteID,
			PeakType:  pt,
			Entries:   entries,
		})
	}
	return buckets
}
