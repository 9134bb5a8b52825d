package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peakline/server/pkg/types"
)

func TestFillGaplessPassThrough(t *testing.T) {
	times := []float64{0, 1, 2, 3}
	data := []float64{10, 20, 30, 40}

	assert.Equal(t, data, Fill(times, data))
}

func TestFillSingleGap(t *testing.T) {
	// One 4-second gap inserts 3 values, all strictly between the endpoints.
	times := []float64{0, 1, 5}
	data := []float64{100, 100, 200}

	got := Fill(times, data)
	require.Len(t, got, len(data)+3)
	assert.Equal(t, []float64{100, 100, 125, 150, 175, 200}, got)
	for _, v := range got[2:5] {
		assert.Greater(t, v, 100.0)
		assert.Less(t, v, 200.0)
	}
}

func TestFillDescendingValues(t *testing.T) {
	times := []float64{0, 3}
	data := []float64{90, 60}

	assert.Equal(t, []float64{90, 80, 70, 60}, Fill(times, data))
}

func TestFillEdges(t *testing.T) {
	assert.Nil(t, Fill(nil, nil))
	assert.Equal(t, []float64{7}, Fill([]float64{0}, []float64{7}))
}

func TestFillRejectsMismatchedLengths(t *testing.T) {
	// A series that disagrees with the clock is malformed, not truncatable.
	assert.Nil(t, Fill([]float64{0, 1}, []float64{1, 2, 3}))
	assert.Nil(t, Fill([]float64{0, 1, 2, 3, 4}, []float64{10, 20, 30}))
}

func TestNormalize(t *testing.T) {
	set := types.StreamSet{
		"time":  {0, 1, 2, 5, 6},
		"watts": {100, 110, 120, 150, 160},
	}

	got := Normalize(set)
	require.NotNil(t, got)
	assert.Equal(t, []float64{100, 110, 120, 130, 140, 150, 160}, got["watts"])
	assert.Equal(t, []float64{0, 1, 2, 3, 4, 5, 6}, got.Time())
}

func TestNormalizeDropsMismatchedMetric(t *testing.T) {
	set := types.StreamSet{
		"time":      {0, 1, 2},
		"watts":     {100, 110, 120},
		"heartrate": {140, 150},
	}

	got := Normalize(set)
	require.NotNil(t, got)
	assert.Equal(t, []float64{100, 110, 120}, got["watts"])
	_, ok := got["heartrate"]
	assert.False(t, ok, "the misaligned series must not survive")
}

func TestNormalizeWithoutTimeAxis(t *testing.T) {
	set := types.StreamSet{"watts": {100, 110}}
	assert.Nil(t, Normalize(set))
}
