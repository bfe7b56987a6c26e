package trial

import (
	"errors"
	"math"
	"testing"

	"github.com/himanishpuri/TapAlign/internal/model"
)

func ramp(n int) []float64 {
	x := make([]float64, n)
	for i := range x {
		x[i] = float64(i)
	}
	return x
}

func TestCut(t *testing.T) {
	signal := ramp(100)

	tests := []struct {
		name        string
		trial       model.Trial
		expectedOff int
		expectedLen int
	}{
		{"inside", model.Trial{Ordinal: 1, Start: 0.2, End: 0.5}, 20, 30},
		{"floor on both bounds", model.Trial{Ordinal: 2, Start: 0.215, End: 0.509}, 21, 29},
		{"past the end is truncated", model.Trial{Ordinal: 3, Start: 0.9, End: 2.0}, 90, 10},
		{"negative start is clipped", model.Trial{Ordinal: 4, Start: -1, End: 0.1}, 0, 10},
		{"infinite end runs to the end", model.Trial{Ordinal: 5, Start: 0.2, End: math.Inf(1)}, 20, 80},
		{"huge end runs to the end", model.Trial{Ordinal: 6, Start: 0.2, End: 1e19}, 20, 80},
		{"infinite start is clipped", model.Trial{Ordinal: 7, Start: math.Inf(-1), End: 0.3}, 0, 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := Cut(signal, 100, tt.trial)
			if err != nil {
				t.Fatalf("Cut() unexpected error: %v", err)
			}
			if w.Offset != tt.expectedOff {
				t.Errorf("Offset = %d, expected %d", w.Offset, tt.expectedOff)
			}
			if len(w.Signal) != tt.expectedLen {
				t.Errorf("len(Signal) = %d, expected %d", len(w.Signal), tt.expectedLen)
			}
			if w.Trial != tt.trial {
				t.Errorf("Trial = %+v, expected %+v", w.Trial, tt.trial)
			}
			// local index 0 must map back to the first sample of the window
			if got := signal[w.Absolute(0)]; got != w.Signal[0] {
				t.Errorf("Absolute(0) sample = %g, expected %g", got, w.Signal[0])
			}
		})
	}
}

func TestCutInvalid(t *testing.T) {
	signal := ramp(100)

	tests := []struct {
		name  string
		trial model.Trial
	}{
		{"empty interval", model.Trial{Ordinal: 1, Start: 0.5, End: 0.5}},
		{"reversed interval", model.Trial{Ordinal: 2, Start: 0.6, End: 0.5}},
		{"after the signal", model.Trial{Ordinal: 3, Start: 1.5, End: 2.0}},
		{"before the signal", model.Trial{Ordinal: 4, Start: -2, End: -1}},
		{"rounds to nothing", model.Trial{Ordinal: 5, Start: 0.501, End: 0.509}},
		{"huge start", model.Trial{Ordinal: 6, Start: 1e19, End: math.Inf(1)}},
		{"not a number", model.Trial{Ordinal: 7, Start: math.NaN(), End: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Cut(signal, 100, tt.trial)
			var invalid *InvalidTrialError
			if !errors.As(err, &invalid) {
				t.Fatalf("Cut() error = %v, expected *InvalidTrialError", err)
			}
			if invalid.Trial.Ordinal != tt.trial.Ordinal {
				t.Errorf("error trial = %d, expected %d", invalid.Trial.Ordinal, tt.trial.Ordinal)
			}
		})
	}
}

func TestSliceSkipsInvalidTrials(t *testing.T) {
	signal := ramp(1000)
	trials := []model.Trial{
		{Ordinal: 1, Start: 0.0, End: 2.0},
		{Ordinal: 2, Start: 3.0, End: 2.0},
		{Ordinal: 3, Start: 5.0, End: 12.0},
		{Ordinal: 4, Start: 20.0, End: 30.0},
	}

	windows, err := Slice(signal, 100, trials)
	if err == nil {
		t.Fatal("expected an error for the invalid trials")
	}

	var invalid *InvalidTrialError
	if !errors.As(err, &invalid) {
		t.Errorf("joined error does not expose *InvalidTrialError: %v", err)
	}

	if len(windows) != 2 {
		t.Fatalf("expected 2 windows, got %d", len(windows))
	}
	if windows[0].Trial.Ordinal != 1 || windows[1].Trial.Ordinal != 3 {
		t.Errorf("unexpected trial order: %d, %d", windows[0].Trial.Ordinal, windows[1].Trial.Ordinal)
	}
	if want := 1000 - 500; len(windows[1].Signal) != want {
		t.Errorf("truncated window length = %d, expected %d", len(windows[1].Signal), want)
	}
}

func TestSliceAllValid(t *testing.T) {
	windows, err := Slice(ramp(50), 10, []model.Trial{{Ordinal: 1, Start: 1, End: 2}})
	if err != nil {
		t.Fatalf("Slice() unexpected error: %v", err)
	}
	if len(windows) != 1 || windows[0].Offset != 10 || len(windows[0].Signal) != 10 {
		t.Errorf("unexpected windows: %+v", windows)
	}
}
