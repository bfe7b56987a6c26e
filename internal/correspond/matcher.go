// Package correspond pairs the beats of a trial with the taps meant to answer them.
package correspond

import (
	"math"
	"sort"

	"github.com/himanishpuri/TapAlign/internal/model"
)

// GuardFraction is the share of an inter-beat interval, counted back from the
// next beat, in which a tap is attributed to the next beat.
const GuardFraction = 0.25

// Pair maps one beat index to its tap time.
type Pair struct {
	Beat int
	Tap  float64
	Rule model.Rule
}

// Correspondence is the beat to tap mapping of one trial. Beats without an
// acceptable tap are absent. The value is never modified after Match returns.
type Correspondence struct {
	pairs []Pair
}

// Len returns the number of matched beats.
func (c Correspondence) Len() int { return len(c.pairs) }

// Tap returns the tap matched to beat, if any.
func (c Correspondence) Tap(beat int) (float64, bool) {
	i := sort.Search(len(c.pairs), func(i int) bool { return c.pairs[i].Beat >= beat })
	if i < len(c.pairs) && c.pairs[i].Beat == beat {
		return c.pairs[i].Tap, true
	}
	return 0, false
}

// Pairs returns a copy of the pairs ordered by beat index.
func (c Correspondence) Pairs() []Pair {
	out := make([]Pair, len(c.pairs))
	copy(out, c.pairs)
	return out
}

// Match pairs beats with taps, both ascending times in seconds, using the
// policy of the condition. An unknown condition matches nothing.
func Match(beats, taps []float64, condition model.Condition) Correspondence {
	switch condition {
	case model.Synchronous:
		return matchSynchronous(beats, taps)
	case model.Free:
		return matchFree(beats, taps)
	default:
		return Correspondence{}
	}
}

// guard returns the time from which a tap belongs to the beat after n.
// The last beat has no guard.
func guard(beats []float64, n int) float64 {
	if n+1 >= len(beats) {
		return math.Inf(1)
	}
	next := beats[n+1]
	return next - GuardFraction*(next-beats[n])
}

// matchSynchronous expects one tap right around each beat. A tap is eligible
// for beat n from the previous beat's guard (the beat itself for the first
// one) up to beat n's guard. The first eligible tap is consumed.
func matchSynchronous(beats, taps []float64) Correspondence {
	consumed := make([]bool, len(taps))
	var pairs []Pair

	for n := range beats {
		lower := beats[0]
		if n > 0 {
			lower = guard(beats, n-1)
		}
		upper := guard(beats, n)

		for i, t := range taps {
			if t >= upper {
				break
			}
			if consumed[i] || t < lower {
				continue
			}
			consumed[i] = true
			pairs = append(pairs, Pair{Beat: n, Tap: t, Rule: model.RuleSynchronous})
			break
		}
	}
	return Correspondence{pairs: pairs}
}

// matchFree collects for beat n every tap still in the pool since the
// previous beat (time 0 for the first beat) and before beat n's guard.
//
// One or two taps: the earliest is matched and leaves the pool, a second one
// stays available to the next beat. Three or more taps are ambiguous: the last
// one is matched and all collected taps leave the pool.
// TODO: the ambiguous branch is a heuristic kept from the lab scripts; have it
// reviewed against the experiment protocol.
func matchFree(beats, taps []float64) Correspondence {
	removed := make([]bool, len(taps))
	var pairs []Pair

	lastBeat := 0.0
	for n, beat := range beats {
		upper := guard(beats, n)

		var collected []int
		for i := sort.SearchFloat64s(taps, lastBeat); i < len(taps) && taps[i] < upper; i++ {
			if !removed[i] {
				collected = append(collected, i)
			}
		}

		switch {
		case len(collected) == 0:
		case len(collected) <= 2:
			first := collected[0]
			removed[first] = true
			pairs = append(pairs, Pair{Beat: n, Tap: taps[first], Rule: model.RuleFirstOfFew})
		default:
			last := collected[len(collected)-1]
			for _, i := range collected {
				removed[i] = true
			}
			pairs = append(pairs, Pair{Beat: n, Tap: taps[last], Rule: model.RuleAmbiguousLast})
		}

		lastBeat = beat
	}
	return Correspondence{pairs: pairs}
}
