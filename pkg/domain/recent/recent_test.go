package recent

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peakline/server/pkg/types"
)

var now = time.Date(2015, 6, 1, 0, 0, 0, 0, time.UTC)

func peakAt(id int64, peakType string, value float64, start time.Time) *types.Peak {
	return &types.Peak{
		PeakID:         fmt.Sprintf("%d_watts_300", id),
		PeakType:       peakType,
		ActivityID:     id,
		Value:          value,
		StartDateLocal: start.Format(time.RFC3339),
	}
}

func TestComputeRanksByValue(t *testing.T) {
	peaks := []*types.Peak{
		peakAt(1, "ride_watts_300", 250, now.Add(-24*time.Hour)),
		peakAt(2, "ride_watts_300", 310, now.Add(-48*time.Hour)),
		peakAt(3, "ride_watts_300", 280, now.Add(-72*time.Hour)),
	}

	buckets := Compute(42, peaks, now)
	require.Len(t, buckets, 1)

	b := buckets[0]
	assert.Equal(t, int64(42), b.AthleteID)
	assert.Equal(t, "ride_watts_300", b.PeakType)
	require.Len(t, b.Entries, 3)
	assert.Equal(t, 310.0, b.Entries[0].Value)
	assert.Equal(t, 1, b.Entries[0].Rank)
	assert.Equal(t, 280.0, b.Entries[1].Value)
	assert.Equal(t, 2, b.Entries[1].Rank)
	assert.Equal(t, 250.0, b.Entries[2].Value)
	assert.Equal(t, 3, b.Entries[2].Rank)
}

func TestComputeCapsBucketSize(t *testing.T) {
	var peaks []*types.Peak
	for i := 0; i < 15; i++ {
		peaks = append(peaks, peakAt(int64(i), "ride_watts_300", float64(100+i), now.Add(-time.Hour)))
	}

	buckets := Compute(42, peaks, now)
	require.Len(t, buckets, 1)
	require.Len(t, buckets[0].Entries, BucketSize)
	assert.Equal(t, 114.0, buckets[0].Entries[0].Value, "highest value wins rank 1")
	assert.Equal(t, BucketSize, buckets[0].Entries[BucketSize-1].Rank)
}

func TestComputeFiltersTrailingWindow(t *testing.T) {
	peaks := []*types.Peak{
		peakAt(1, "ride_watts_300", 400, now.Add(-31*24*time.Hour)),
		peakAt(2, "ride_watts_300", 200, now.Add(-29*24*time.Hour)),
	}

	buckets := Compute(42, peaks, now)
	require.Len(t, buckets, 1)
	require.Len(t, buckets[0].Entries, 1)
	assert.Equal(t, 200.0, buckets[0].Entries[0].Value, "the higher effort aged out")
	assert.Equal(t, 2, buckets[0].Entries[0].Rank, "all-time rank survives the filter")
}

func TestComputeSelectsTopNineBeforeWindowFilter(t *testing.T) {
	// Ten efforts, and the all-time best is older than the window. The cap
	// applies to the all-time ranking, so the aged-out best consumes a top-nine
	// slot and the weakest effort never makes the board, leaving eight rows.
	peaks := []*types.Peak{
		peakAt(1, "ride_watts_300", 500, now.Add(-40*24*time.Hour)),
	}
	for i := 2; i <= 10; i++ {
		peaks = append(peaks, peakAt(int64(i), "ride_watts_300", float64(100+10*i), now.Add(-time.Hour)))
	}

	buckets := Compute(42, peaks, now)
	require.Len(t, buckets, 1)

	entries := buckets[0].Entries
	require.Len(t, entries, 8)
	for _, e := range entries {
		assert.NotEqual(t, 120.0, e.Value, "the weakest effort stays off the board")
	}
	assert.Equal(t, 200.0, entries[0].Value)
	assert.Equal(t, 2, entries[0].Rank, "rank one belongs to the aged-out best")
	assert.Equal(t, 9, entries[len(entries)-1].Rank)
}

func TestComputeEmitsEmptyBucketForStaleType(t *testing.T) {
	// Every effort of the type is older than the window. The bucket must
	// still be produced so the stored leaderboard gets overwritten to empty.
	peaks := []*types.Peak{
		peakAt(1, "run_heartrate_60", 180, now.Add(-90*24*time.Hour)),
	}

	buckets := Compute(42, peaks, now)
	require.Len(t, buckets, 1)
	assert.Equal(t, "run_heartrate_60", buckets[0].PeakType)
	assert.Empty(t, buckets[0].Entries)
}

func TestComputeGroupsByType(t *testing.T) {
	peaks := []*types.Peak{
		peakAt(1, "ride_watts_300", 250, now.Add(-time.Hour)),
		peakAt(2, "run_heartrate_60", 175, now.Add(-time.Hour)),
	}

	buckets := Compute(42, peaks, now)
	require.Len(t, buckets, 2)
	// Deterministic bucket order.
	assert.Equal(t, "ride_watts_300", buckets[0].PeakType)
	assert.Equal(t, "run_heartrate_60", buckets[1].PeakType)
}

func TestComputeSkipsUnparsableStartDates(t *testing.T) {
	p := peakAt(1, "ride_watts_300", 250, now.Add(-time.Hour))
	p.StartDateLocal = "not-a-date"

	buckets := Compute(42, []*types.Peak{p}, now)
	require.Len(t, buckets, 1)
	assert.Empty(t, buckets[0].Entries)
}

func TestComputeAcceptsZonelessTimestamps(t *testing.T) {
	p := peakAt(1, "ride_watts_300", 250, now.Add(-time.Hour))
	p.StartDateLocal = now.Add(-time.Hour).Format("2006-01-02T15:04:05")

	buckets := Compute(42, []*types.Peak{p}, now)
	require.Len(t, buckets, 1)
	require.Len(t, buckets[0].Entries, 1)
}
