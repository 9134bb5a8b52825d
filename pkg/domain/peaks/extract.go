package peaks

// Extract returns the best average of data sustained over a window of the
// given duration, in samples. The second return is false when the series is
// shorter than the window, which means no effort of that duration exists in
// the activity at all; that is different from a best average of zero. An
// empty series reports zero, not absence.
func Extract(data []float64, duration int) (float64, bool) {
	if len(data) == 0 {
		return 0, true
	}
	if duration <= 0 || duration > len(data) {
		return 0, false
	}

	var sum float64
	for _, v := range data[:duration] {
		sum += v
	}

	best := sum
	for i := duration; i < len(data); i++ {
		sum += data[i] - data[i-duration]
		if sum > best {
			best = sum
		}
	}
	return best / float64(duration), true
}
