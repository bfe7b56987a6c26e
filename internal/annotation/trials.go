// Package annotation reads trial boundaries and writes detected onsets back
// next to a recording.
package annotation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/himanishpuri/TapAlign/internal/model"
)

// TrialsSuffix is appended to a recording's base name to find its trial list.
const TrialsSuffix = ".trials.json"

type trialEntry struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Label string  `json:"label,omitempty"`
}

type trialFile struct {
	Trials []trialEntry `json:"trials"`
}

// TrialsPathFor returns the trial list expected next to audioPath.
func TrialsPathFor(audioPath string) string {
	return strings.TrimSuffix(audioPath, filepath.Ext(audioPath)) + TrialsSuffix
}

// LoadTrials reads a trial list from path.
func LoadTrials(path string) ([]model.Trial, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading trials: %w", err)
	}
	trials, err := ParseTrials(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return trials, nil
}

// ParseTrials decodes either a bare JSON array of {start, end, label} objects
// or an object with a "trials" array. Ordinals are assigned from 1 in file
// order; intervals are not validated here.
func ParseTrials(data []byte) ([]model.Trial, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("empty trial list")
	}

	var entries []trialEntry
	if data[0] == '[' {
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, fmt.Errorf("parsing trials: %w", err)
		}
	} else {
		var f trialFile
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parsing trials: %w", err)
		}
		entries = f.Trials
	}

	trials := make([]model.Trial, len(entries))
	for i, e := range entries {
		trials[i] = model.Trial{
			Ordinal: i + 1,
			Start:   e.Start,
			End:     e.End,
			Label:   e.Label,
		}
	}
	return trials, nil
}
