// Package stream turns raw provider sample series into per-second series.
//
// Providers record samples against a time axis that can skip seconds (auto
// pause, dropped GPS fix). Peak extraction assumes one sample per second, so
// gaps are filled by linear interpolation before any window math runs.
package stream

import (
	"github.com/peakline/server/pkg/types"
)

// Fill expands data onto a per-second axis using times as the sample clock.
// For every gap of g seconds between consecutive samples it inserts g-1
// linearly interpolated values. A contiguous axis passes through unchanged.
//
// The result length equals times[len-1]-times[0]+1 for a strictly increasing
// axis. Non-increasing steps are treated as adjacent samples. A series whose
// length differs from the axis is malformed and returns nil; there is no
// defensible way to pair its samples with seconds.
func Fill(times, data []float64) []float64 {
	n := len(times)
	if len(data) != n || n == 0 {
		return nil
	}

	filled := make([]float64, 0, n)
	for i := 0; i < n-1; i++ {
		filled = append(filled, data[i])

		gap := times[i+1] - times[i]
		if gap <= 1 {
			continue
		}
		step := (data[i+1] - data[i]) / gap
		for j := 1.0; j < gap; j++ {
			filled = append(filled, data[i]+step*j)
		}
	}
	return append(filled, data[n-1])
}

// Normalize fills every metric series in the set against its time axis and
// rebuilds the time axis itself as a contiguous sequence. A set without a
// time axis cannot be aligned and returns nil. A metric series that does not
// line up with the axis is dropped; the well-formed metrics still normalize.
func Normalize(set types.StreamSet) types.StreamSet {
	times := set.Time()
	if len(times) == 0 {
		return nil
	}

	out := make(types.StreamSet, len(set))
	for metric, data := range set {
		if metric == "time" {
			continue
		}
		if filled := Fill(times, data); filled != nil {
			out[metric] = filled
		}
	}

	span := int(times[len(times)-1]-times[0]) + 1
	if span < 1 {
		span = 1
	}
	axis := make([]float64, span)
	for i := range axis {
		axis[i] = times[0] + float64(i)
	}
	out["time"] = axis
	return out
}
