package peaks

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peakline/server/pkg/types"
)

func TestExtract(t *testing.T) {
	data := []float64{100, 110, 120, 130, 140, 150, 160}

	v, ok := Extract(data, 5)
	require.True(t, ok)
	assert.Equal(t, 140.0, v, "best 5s window is the last one")

	v, ok = Extract(data, 1)
	require.True(t, ok)
	assert.Equal(t, 160.0, v)

	v, ok = Extract(data, 7)
	require.True(t, ok)
	assert.Equal(t, 130.0, v, "full-length window averages everything")
}

func TestExtractWindowLongerThanSeries(t *testing.T) {
	_, ok := Extract([]float64{1, 2, 3}, 5)
	assert.False(t, ok)
}

func TestExtractEmptySeriesIsZero(t *testing.T) {
	v, ok := Extract(nil, 5)
	require.True(t, ok)
	assert.Zero(t, v)
}

func TestExtractConstantSeries(t *testing.T) {
	data := []float64{42, 42, 42, 42}
	v, ok := Extract(data, 3)
	require.True(t, ok)
	assert.Equal(t, 42.0, v)
}

func TestExtractZeroSeries(t *testing.T) {
	v, ok := Extract([]float64{0, 0, 0, 0}, 2)
	require.True(t, ok)
	assert.Zero(t, v)
}

func TestExtractPrefersEarlyPeak(t *testing.T) {
	data := []float64{200, 200, 50, 50, 50}
	v, ok := Extract(data, 2)
	require.True(t, ok)
	assert.Equal(t, 200.0, v)
}

func TestPeakIdentifiers(t *testing.T) {
	assert.Equal(t, "123_watts_300", PeakID(123, "watts", 300))
	assert.Equal(t, "ride_watts_300", PeakType("Ride", "watts", 300))
	assert.Equal(t, "virtualride_heartrate_60", PeakType("VirtualRide", "heartrate", 60))
}

func TestBuild(t *testing.T) {
	activity := &types.RawActivity{
		ActivityID:     555,
		AthleteID:      42,
		StartDateLocal: "2015-01-03T08:00:00Z",
		Name:           "Morning Ride",
		Type:           "Ride",
		Distance:       30000,
		ElapsedTime:    3700,
	}
	streams := make(types.StreamSet)
	watts := make([]float64, 3600)
	for i := range watts {
		watts[i] = 200
	}
	streams["watts"] = watts
	now := time.Date(2015, 1, 3, 12, 0, 0, 0, time.UTC)

	got := Build(activity, streams, now)

	// Six of the seven windows fit in a 3600-sample series; 5400 does not.
	// heartrate and velocity_smooth were not recorded.
	require.Len(t, got, 6)
	for _, p := range got {
		assert.Equal(t, "watts", p.Metric)
		assert.Equal(t, 200.0, p.Value)
		assert.Equal(t, int64(555), p.ActivityID)
		assert.Equal(t, int64(42), p.AthleteID)
		assert.Equal(t, "Morning Ride", p.Name)
		assert.Equal(t, now, p.LastUpdated)
	}
	assert.Equal(t, "555_watts_5", got[0].PeakID)
	assert.Equal(t, "ride_watts_5", got[0].PeakType)
}

func TestBuildEmptyStreams(t *testing.T) {
	activity := &types.RawActivity{ActivityID: 555, Type: "Ride"}
	assert.Empty(t, Build(activity, types.StreamSet{}, time.Now()))
}

func TestDisplayValue(t *testing.T) {
	assert.InDelta(t, 22.3694, DisplayValue("velocity_smooth", 10), 1e-9)
	assert.Equal(t, 185.0, DisplayValue("heartrate", 185))
	assert.Equal(t, 300.0, DisplayValue("watts", 300))
}
