package processor

import (
	"fmt"
	"math"
	"testing"

	"github.com/himanishpuri/TapAlign/internal/model"
	"github.com/himanishpuri/TapAlign/internal/onset"
)

type recordingLogger struct {
	debug []string
	warn  []string
}

func (l *recordingLogger) Debugf(format string, args ...any) {
	l.debug = append(l.debug, fmt.Sprintf(format, args...))
}

func (l *recordingLogger) Warnf(format string, args ...any) {
	l.warn = append(l.warn, fmt.Sprintf(format, args...))
}

const testRate = 1000

// pulses builds a channel of n samples with a short triangular pulse at every
// given time.
func pulses(n int, times ...float64) []float64 {
	x := make([]float64, n)
	for _, t := range times {
		k := int(math.Round(t * testRate))
		x[k-1], x[k], x[k+1] = 0.5, 1, 0.5
	}
	return x
}

var testParams = ChannelParams{
	Beat: onset.Params{MinHeight: 0.5, MinDistanceSeconds: 0.3},
	Tap:  onset.Params{MinHeight: 0.5, MinDistanceSeconds: 0.2},
}

func TestProcessSynchronous(t *testing.T) {
	beat := pulses(4000, 1.0, 2.0, 3.0)
	tap := pulses(4000, 1.05, 2.10, 2.95)
	trials := []model.Trial{{Ordinal: 1, Start: 0.5, End: 3.5, Label: "train"}}

	log := &recordingLogger{}
	res := Process(beat, tap, testRate, trials, model.Synchronous, testParams, log)

	expected := []model.MatchRecord{
		{Trial: 1, Beat: 0, BeatTime: 1.0, TapTime: 1.05, Rule: model.RuleSynchronous},
		{Trial: 1, Beat: 1, BeatTime: 2.0, TapTime: 2.10, Rule: model.RuleSynchronous},
		{Trial: 1, Beat: 2, BeatTime: 3.0, TapTime: 2.95, Rule: model.RuleSynchronous},
	}
	if len(res.Records) != len(expected) {
		t.Fatalf("expected %d records, got %d: %+v", len(expected), len(res.Records), res.Records)
	}
	for i := range expected {
		if res.Records[i] != expected[i] {
			t.Errorf("record %d = %+v, expected %+v", i, res.Records[i], expected[i])
		}
	}

	if len(res.Trials) != 1 || res.Trials[0].Matched != 3 {
		t.Errorf("unexpected trial reports: %+v", res.Trials)
	}
	if len(log.warn) != 0 {
		t.Errorf("unexpected warnings: %v", log.warn)
	}
}

func TestProcessRestoresTrialOffset(t *testing.T) {
	beat := pulses(6000, 1.0, 4.0, 5.0)
	tap := pulses(6000, 1.02, 4.02, 5.01)
	trials := []model.Trial{
		{Ordinal: 1, Start: 0, End: 2},
		{Ordinal: 2, Start: 3.5, End: 6},
	}

	res := Process(beat, tap, testRate, trials, model.Free, testParams, &recordingLogger{})

	if len(res.Records) != 3 {
		t.Fatalf("expected 3 records, got %+v", res.Records)
	}
	second := res.Records[1]
	if second.Trial != 2 || second.Beat != 0 || second.BeatTime != 4.0 || second.TapTime != 4.02 {
		t.Errorf("second trial first record = %+v", second)
	}
	if got := res.Trials[1].Beats; len(got) != 2 || got[1] != 5.0 {
		t.Errorf("second trial beats = %v", got)
	}
}

func TestProcessSkipsBadTrials(t *testing.T) {
	beat := pulses(4000, 1.0, 2.0)
	tap := pulses(4000, 1.01, 2.01)
	trials := []model.Trial{
		{Ordinal: 1, Start: 5, End: 6},
		{Ordinal: 2, Start: 0.5, End: 2.5},
		{Ordinal: 3, Start: 3.2, End: 3.9},
		{Ordinal: 4, Start: 2, End: 1},
	}

	log := &recordingLogger{}
	res := Process(beat, tap, testRate, trials, model.Synchronous, testParams, log)

	if len(res.Records) != 2 {
		t.Fatalf("expected 2 records from trial 2, got %+v", res.Records)
	}
	for _, r := range res.Records {
		if r.Trial != 2 {
			t.Errorf("record from unexpected trial %d", r.Trial)
		}
	}

	if len(res.Trials) != 4 {
		t.Fatalf("expected a report per trial, got %d", len(res.Trials))
	}
	if res.SkippedTrials() != 2 {
		t.Errorf("SkippedTrials() = %d, expected 2", res.SkippedTrials())
	}
	if res.Trials[2].Skipped != nil || res.Trials[2].Matched != 0 {
		t.Errorf("empty trial should be reported, not skipped: %+v", res.Trials[2])
	}
	if len(log.warn) != 2 {
		t.Errorf("expected 2 warnings, got %v", log.warn)
	}
}

func TestProcessNoTrials(t *testing.T) {
	res := Process(nil, nil, testRate, nil, model.Free, testParams, &recordingLogger{})
	if len(res.Records) != 0 || len(res.Trials) != 0 {
		t.Errorf("expected empty result, got %+v", res)
	}
}

func TestChannelParamsValidate(t *testing.T) {
	if err := testParams.Validate(); err != nil {
		t.Errorf("Validate() unexpected error: %v", err)
	}
	bad := testParams
	bad.Tap.MinDistanceSeconds = 0
	if err := bad.Validate(); err == nil {
		t.Error("expected error for missing tap distance")
	}
}

func TestProcessOpenEndedTrial(t *testing.T) {
	beat := pulses(4000, 1.0, 2.0, 3.0)
	tap := pulses(4000, 1.05, 2.10, 2.95)
	trials := []model.Trial{{Ordinal: 1, Start: 0.5, End: math.Inf(1)}}

	res := Process(beat, tap, testRate, trials, model.Synchronous, testParams, &recordingLogger{})

	if res.SkippedTrials() != 0 {
		t.Fatalf("open-ended trial was skipped: %+v", res.Trials)
	}
	if len(res.Records) != 3 {
		t.Errorf("expected 3 records, got %+v", res.Records)
	}
}

func TestProcessShorterTapChannel(t *testing.T) {
	beat := pulses(4000, 1.0, 3.0)
	tap := pulses(2000, 1.02)
	trials := []model.Trial{
		{Ordinal: 1, Start: 2.5, End: 3.5},
		{Ordinal: 2, Start: 0.5, End: 1.5},
		{Ordinal: 3, Start: 5, End: 6},
	}

	log := &recordingLogger{}
	res := Process(beat, tap, testRate, trials, model.Free, testParams, log)

	if len(res.Trials) != 3 {
		t.Fatalf("expected a report per trial, got %d", len(res.Trials))
	}
	if res.Trials[0].Skipped == nil || res.Trials[2].Skipped == nil {
		t.Errorf("trials outside the tap channel should be skipped: %+v", res.Trials)
	}
	if res.Trials[1].Skipped != nil || res.Trials[1].Matched != 1 {
		t.Errorf("trial 2 = %+v, expected one match", res.Trials[1])
	}
	if len(res.Records) != 1 || res.Records[0].Trial != 2 || res.Records[0].TapTime != 1.02 {
		t.Errorf("unexpected records: %+v", res.Records)
	}
	if len(log.warn) != 2 {
		t.Errorf("expected 2 warnings, got %v", log.warn)
	}
}
