// Package processor runs windowing, onset detection and matching over every
// trial of one recording.
package processor

import (
	"github.com/himanishpuri/TapAlign/internal/correspond"
	"github.com/himanishpuri/TapAlign/internal/model"
	"github.com/himanishpuri/TapAlign/internal/onset"
	"github.com/himanishpuri/TapAlign/internal/trial"
)

// Logger is the subset of the application logger used here.
type Logger interface {
	Debugf(format string, args ...any)
	Warnf(format string, args ...any)
}

// ChannelParams holds the detector thresholds of each channel.
type ChannelParams struct {
	Beat onset.Params
	Tap  onset.Params
}

// Validate checks both channel thresholds.
func (p ChannelParams) Validate() error {
	if err := p.Beat.Validate(); err != nil {
		return err
	}
	return p.Tap.Validate()
}

// TrialReport summarizes one trial. Skipped is set when the trial could not be
// windowed; Beats and Taps hold the detected onset times in seconds.
type TrialReport struct {
	Trial   model.Trial
	Beats   []float64
	Taps    []float64
	Matched int
	Skipped error
}

// Result is the outcome of processing one recording.
type Result struct {
	Records []model.MatchRecord
	Trials  []TrialReport
}

// SkippedTrials counts the trials that yielded no window.
func (r Result) SkippedTrials() int {
	n := 0
	for _, t := range r.Trials {
		if t.Skipped != nil {
			n++
		}
	}
	return n
}

// Process matches beats and taps trial by trial, in annotation order. beat and
// tap are the normalized channels of the full recording. Trials that cannot be
// windowed are logged and skipped; the others always contribute a report.
func Process(beat, tap []float64, sampleRate int, trials []model.Trial, condition model.Condition, params ChannelParams, log Logger) Result {
	var res Result

	beatCuts := sliceChannel(beat, sampleRate, trials)
	tapCuts := sliceChannel(tap, sampleRate, trials)

	for _, t := range trials {
		report := TrialReport{Trial: t}

		beatWin, beatErr := beatCuts.next(t)
		tapWin, tapErr := tapCuts.next(t)
		err := beatErr
		if err == nil {
			err = tapErr
		}
		if err != nil {
			log.Warnf("Skipping trial %d: %v", t.Ordinal, err)
			report.Skipped = err
			res.Trials = append(res.Trials, report)
			continue
		}
		report.Beats = onsetTimes(beatWin, sampleRate, params.Beat)
		report.Taps = onsetTimes(tapWin, sampleRate, params.Tap)

		if len(report.Beats) == 0 || len(report.Taps) == 0 {
			log.Debugf("Trial %d: %d beats, %d taps, nothing to match", t.Ordinal, len(report.Beats), len(report.Taps))
			res.Trials = append(res.Trials, report)
			continue
		}

		c := correspond.Match(report.Beats, report.Taps, condition)
		for _, p := range c.Pairs() {
			res.Records = append(res.Records, model.MatchRecord{
				Trial:    t.Ordinal,
				Beat:     p.Beat,
				BeatTime: report.Beats[p.Beat],
				TapTime:  p.Tap,
				Rule:     p.Rule,
			})
		}
		report.Matched = c.Len()
		log.Debugf("Trial %d: %d beats, %d taps, %d matched", t.Ordinal, len(report.Beats), len(report.Taps), report.Matched)

		res.Trials = append(res.Trials, report)
	}

	return res
}

// channelCuts walks the result of trial.Slice in trial order. Every trial
// yields either the next window or the next error, so the two cursors stay
// aligned with the trial list.
type channelCuts struct {
	windows []trial.Window
	errs    []error
}

func sliceChannel(signal []float64, sampleRate int, trials []model.Trial) *channelCuts {
	windows, err := trial.Slice(signal, sampleRate, trials)
	c := &channelCuts{windows: windows}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		c.errs = joined.Unwrap()
	} else if err != nil {
		c.errs = []error{err}
	}
	return c
}

func (c *channelCuts) next(t model.Trial) (trial.Window, error) {
	if len(c.windows) > 0 && c.windows[0].Trial == t {
		w := c.windows[0]
		c.windows = c.windows[1:]
		return w, nil
	}
	if len(c.errs) > 0 {
		err := c.errs[0]
		c.errs = c.errs[1:]
		return trial.Window{}, err
	}
	return trial.Window{}, &trial.InvalidTrialError{Trial: t, Reason: "no window"}
}

// onsetTimes detects the onsets of a window and returns them as absolute seconds.
func onsetTimes(w trial.Window, sampleRate int, p onset.Params) []float64 {
	idx := onset.Detect(w.Signal, sampleRate, p)
	times := make([]float64, len(idx))
	for i, local := range idx {
		times[i] = float64(w.Absolute(local)) / float64(sampleRate)
	}
	return times
}
