// Package trial cuts full-recording channels into per-trial sub-signals.
package trial

import (
	"errors"
	"fmt"
	"math"

	"github.com/himanishpuri/TapAlign/internal/model"
)

// InvalidTrialError reports a trial interval that selects no samples.
type InvalidTrialError struct {
	Trial  model.Trial
	Reason string
}

func (e *InvalidTrialError) Error() string {
	return fmt.Sprintf("invalid trial %d [%gs, %gs): %s", e.Trial.Ordinal, e.Trial.Start, e.Trial.End, e.Reason)
}

// Window is the part of a channel covered by one trial. Signal shares memory
// with the full channel and must not be modified. A local index i in Signal
// is sample i+Offset of the recording.
type Window struct {
	Trial  model.Trial
	Signal []float64
	Offset int
}

// Absolute converts a local sample index back to the recording.
func (w Window) Absolute(local int) int {
	return local + w.Offset
}

// Cut returns the window of signal covered by t, clipped to the signal bounds.
func Cut(signal []float64, sampleRate int, t model.Trial) (Window, error) {
	if !(t.Start < t.End) {
		return Window{}, &InvalidTrialError{Trial: t, Reason: "start is not before end"}
	}

	start := sampleIndex(t.Start, sampleRate, len(signal))
	end := sampleIndex(t.End, sampleRate, len(signal))
	if start >= end {
		return Window{}, &InvalidTrialError{Trial: t, Reason: fmt.Sprintf("outside signal of %d samples", len(signal))}
	}

	return Window{Trial: t, Signal: signal[start:end], Offset: start}, nil
}

// Slice cuts every trial in order. Invalid trials are left out of the result
// and reported together in the returned error.
func Slice(signal []float64, sampleRate int, trials []model.Trial) ([]Window, error) {
	windows := make([]Window, 0, len(trials))
	var errs []error
	for _, t := range trials {
		w, err := Cut(signal, sampleRate, t)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		windows = append(windows, w)
	}
	return windows, errors.Join(errs...)
}

// sampleIndex converts a time to a sample index in [0, n]. Clipping happens
// before the int conversion so huge or infinite bounds cannot overflow.
func sampleIndex(seconds float64, sampleRate, n int) int {
	v := math.Floor(seconds * float64(sampleRate))
	if !(v > 0) {
		return 0
	}
	if v > float64(n) {
		return n
	}
	return int(v)
}
