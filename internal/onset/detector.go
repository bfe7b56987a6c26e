// Package onset picks discrete event peaks out of a normalized amplitude channel.
package onset

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// Params holds the peak picking thresholds. There are no defaults: the
// thresholds depend on the recording setup and must be supplied.
type Params struct {
	MinHeight          float64 // normalized amplitude a peak must reach
	MinDistanceSeconds float64 // minimum time between two accepted peaks
	MinProminence      float64 // trough depth filter, 0 disables it
}

// ErrInvalidParams is returned by Validate for unusable thresholds.
var ErrInvalidParams = errors.New("invalid onset parameters")

// Validate reports whether the thresholds can be used for detection.
func (p Params) Validate() error {
	if p.MinHeight <= 0 {
		return fmt.Errorf("%w: min height must be > 0, got %g", ErrInvalidParams, p.MinHeight)
	}
	if p.MinDistanceSeconds <= 0 {
		return fmt.Errorf("%w: min distance must be > 0s, got %g", ErrInvalidParams, p.MinDistanceSeconds)
	}
	if p.MinProminence < 0 {
		return fmt.Errorf("%w: min prominence must be >= 0, got %g", ErrInvalidParams, p.MinProminence)
	}
	return nil
}

// DistanceSamples converts the minimum separation to whole samples (at least 1).
func (p Params) DistanceSamples(sampleRate int) int {
	d := int(math.Ceil(p.MinDistanceSeconds * float64(sampleRate)))
	if d < 1 {
		d = 1
	}
	return d
}

// Detect returns the sample indices of the accepted peaks of signal, ascending.
//
// A peak is a local maximum whose value reaches MinHeight; a flat top counts
// once, at its first sample. Peaks are then thinned highest first: every
// accepted peak suppresses all other candidates closer than the minimum
// distance. With MinProminence set, a survivor must also rise at least that
// much above the lower of its two nearest troughs.
//
// The signal is not rescaled. An empty or too short signal yields no onsets.
func Detect(signal []float64, sampleRate int, p Params) []int {
	onsets := []int{}
	if len(signal) < 3 {
		return onsets
	}

	candidates := localMaxima(signal, p.MinHeight)
	if len(candidates) == 0 {
		return onsets
	}

	kept := selectByDistance(signal, candidates, p.DistanceSamples(sampleRate))

	for _, idx := range kept {
		if p.MinProminence > 0 && prominence(signal, idx) < p.MinProminence {
			continue
		}
		onsets = append(onsets, idx)
	}
	return onsets
}

// localMaxima finds rising edges followed by a falling edge, skipping over
// plateaus. The first and the last sample are never maxima.
func localMaxima(x []float64, minHeight float64) []int {
	var peaks []int
	last := len(x) - 1

	i := 1
	for i < last {
		if x[i-1] < x[i] {
			ahead := i + 1
			for ahead < last && x[ahead] == x[i] {
				ahead++
			}
			if x[ahead] < x[i] {
				if x[i] >= minHeight {
					peaks = append(peaks, i)
				}
				i = ahead
			}
		}
		i++
	}
	return peaks
}

// selectByDistance keeps the highest candidate of every cluster. peaks must be
// ascending; the result is ascending too.
//
// Accepted peaks are at least d apart, so a candidate can be reached by the
// suppression walk of at most two accepted peaks and the walk is linear
// overall. The ranking sort dominates.
func selectByDistance(x []float64, peaks []int, d int) []int {
	ranked := make([]int, len(peaks))
	for i := range ranked {
		ranked[i] = i
	}
	// stable: equal heights keep their position order, the earliest wins
	sort.SliceStable(ranked, func(a, b int) bool {
		return x[peaks[ranked[a]]] > x[peaks[ranked[b]]]
	})

	suppressed := make([]bool, len(peaks))
	for _, k := range ranked {
		if suppressed[k] {
			continue
		}
		for j := k - 1; j >= 0 && peaks[k]-peaks[j] < d; j-- {
			suppressed[j] = true
		}
		for j := k + 1; j < len(peaks) && peaks[j]-peaks[k] < d; j++ {
			suppressed[j] = true
		}
	}

	kept := make([]int, 0, len(peaks))
	for k, idx := range peaks {
		if !suppressed[k] {
			kept = append(kept, idx)
		}
	}
	return kept
}

// prominence measures a peak against the lower of its nearest troughs.
func prominence(x []float64, peak int) float64 {
	return x[peak] - math.Min(trough(x, peak, -1), trough(x, peak, 1))
}

// trough descends from peak in direction step until the signal rises again
// or the edge is reached, and returns the lowest value seen.
func trough(x []float64, peak, step int) float64 {
	low := x[peak]
	for i := peak + step; i >= 0 && i < len(x); i += step {
		if x[i] > low {
			break
		}
		low = x[i]
	}
	return low
}
