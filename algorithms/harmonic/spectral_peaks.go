package harmonic

import (
	"sort"
)

// DetectPeaks returns the ascending bin indices of the local maxima in frame,
// keeping only peaks more than minDistance bins away from any taller peak.
//
// A local maximum is the rising edge of a peak: frame[i-1] < frame[i] and
// frame[i] >= frame[i+1], so the first bin of a plateau counts. The first and
// last bins are never peaks. Competing maxima are resolved by visiting peaks
// from tallest to shortest (earlier bin first on equal height) and discarding
// every unvisited peak within ±minDistance of a kept one.
func DetectPeaks(frame []float64, minDistance int) []int {
	if len(frame) < 3 {
		return nil
	}

	var candidates []int
	for i := 1; i < len(frame)-1; i++ {
		if frame[i] > frame[i-1] && frame[i] >= frame[i+1] {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	if minDistance < 1 {
		return candidates
	}

	order := make([]int, len(candidates))
	copy(order, candidates)
	sort.SliceStable(order, func(a, b int) bool {
		return frame[order[a]] > frame[order[b]]
	})

	removed := make(map[int]bool, len(order))
	for _, peak := range order {
		if removed[peak] {
			continue
		}
		for _, other := range candidates {
			if other != peak && other >= peak-minDistance && other <= peak+minDistance {
				removed[other] = true
			}
		}
	}

	peaks := candidates[:0]
	for _, peak := range candidates {
		if !removed[peak] {
			peaks = append(peaks, peak)
		}
	}
	return peaks
}
