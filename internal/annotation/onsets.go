package annotation

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/himanishpuri/TapAlign/internal/processor"
)

// OnsetsSuffix names the onset dump written next to a recording.
const OnsetsSuffix = ".onsets.json"

// TrialOnsets is the inspection record of one trial.
type TrialOnsets struct {
	Trial   int       `json:"trial"`
	Label   string    `json:"label,omitempty"`
	Start   float64   `json:"start"`
	End     float64   `json:"end"`
	Beats   []float64 `json:"beats"`
	Taps    []float64 `json:"taps"`
	Matched int       `json:"matched"`
	Skipped string    `json:"skipped,omitempty"`
}

// OnsetFile is the document written by WriteOnsets.
type OnsetFile struct {
	File   string        `json:"file"`
	Trials []TrialOnsets `json:"trials"`
}

// OnsetsPathFor returns the onset dump path for audioPath.
func OnsetsPathFor(audioPath string) string {
	return strings.TrimSuffix(TrialsPathFor(audioPath), TrialsSuffix) + OnsetsSuffix
}

// NewOnsetFile converts processing reports into their inspection form.
func NewOnsetFile(file string, reports []processor.TrialReport) OnsetFile {
	out := OnsetFile{File: file, Trials: make([]TrialOnsets, 0, len(reports))}
	for _, r := range reports {
		t := TrialOnsets{
			Trial:   r.Trial.Ordinal,
			Label:   r.Trial.Label,
			Start:   r.Trial.Start,
			End:     r.Trial.End,
			Beats:   nonNil(r.Beats),
			Taps:    nonNil(r.Taps),
			Matched: r.Matched,
		}
		if r.Skipped != nil {
			t.Skipped = r.Skipped.Error()
		}
		out.Trials = append(out.Trials, t)
	}
	return out
}

// WriteOnsets writes the detected beat and tap onsets of every trial as
// indented JSON.
func WriteOnsets(path, file string, reports []processor.TrialReport) error {
	data, err := json.MarshalIndent(NewOnsetFile(file, reports), "", "  ")
	if err != nil {
		return fmt.Errorf("encoding onsets: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("writing onsets: %w", err)
	}
	return nil
}

func nonNil(x []float64) []float64 {
	if x == nil {
		return []float64{}
	}
	return x
}
