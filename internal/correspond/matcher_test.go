package correspond

import (
	"math/rand"
	"reflect"
	"sort"
	"testing"

	"github.com/himanishpuri/TapAlign/internal/model"
)

// asMap flattens a correspondence into beat index -> tap time.
func asMap(c Correspondence) map[int]float64 {
	m := make(map[int]float64, c.Len())
	for _, p := range c.Pairs() {
		m[p.Beat] = p.Tap
	}
	return m
}

func TestMatchScenarios(t *testing.T) {
	tests := []struct {
		name      string
		beats     []float64
		taps      []float64
		condition model.Condition
		expected  map[int]float64
	}{
		{
			name:      "synchronous clean data",
			beats:     []float64{1.0, 2.0, 3.0},
			taps:      []float64{1.05, 2.10, 2.95},
			condition: model.Synchronous,
			expected:  map[int]float64{0: 1.05, 1: 2.10, 2: 2.95},
		},
		{
			name:      "synchronous late tap goes to the next beat",
			beats:     []float64{1.0, 2.0},
			taps:      []float64{1.05, 1.98},
			condition: model.Synchronous,
			expected:  map[int]float64{0: 1.05, 1: 1.98},
		},
		{
			name:      "synchronous extra tap is rejected",
			beats:     []float64{1.0, 2.0, 3.0},
			taps:      []float64{1.02, 1.30, 2.01, 3.03},
			condition: model.Synchronous,
			expected:  map[int]float64{0: 1.02, 1: 2.01, 2: 3.03},
		},
		{
			name:      "synchronous missed beat",
			beats:     []float64{1.0, 2.0, 3.0},
			taps:      []float64{1.05, 3.05},
			condition: model.Synchronous,
			expected:  map[int]float64{0: 1.05, 2: 3.05},
		},
		{
			name:      "synchronous tap before the first beat is ignored",
			beats:     []float64{1.0, 2.0},
			taps:      []float64{0.9, 2.02},
			condition: model.Synchronous,
			expected:  map[int]float64{1: 2.02},
		},
		{
			name:      "free two taps in one interval",
			beats:     []float64{1.0, 2.0, 3.0},
			taps:      []float64{1.3, 1.6},
			condition: model.Free,
			expected:  map[int]float64{0: 1.3, 1: 1.6},
		},
		{
			name:      "free three taps are ambiguous",
			beats:     []float64{1.0, 2.0},
			taps:      []float64{1.1, 1.3, 1.5},
			condition: model.Free,
			expected:  map[int]float64{0: 1.5},
		},
		{
			name:      "free anticipatory tap after the previous beat",
			beats:     []float64{1.0, 2.0, 3.0},
			taps:      []float64{0.95, 2.05, 2.8},
			condition: model.Free,
			expected:  map[int]float64{0: 0.95, 1: 2.05, 2: 2.8},
		},
		{
			name:      "free no taps",
			beats:     []float64{1.0, 2.0},
			taps:      nil,
			condition: model.Free,
			expected:  map[int]float64{},
		},
		{
			name:      "unknown condition",
			beats:     []float64{1.0},
			taps:      []float64{1.0},
			condition: model.Condition(0),
			expected:  map[int]float64{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := asMap(Match(tt.beats, tt.taps, tt.condition))
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("Match() = %v, expected %v", got, tt.expected)
			}
		})
	}
}

func TestMatchRules(t *testing.T) {
	sync := Match([]float64{1, 2}, []float64{1.01, 2.01}, model.Synchronous)
	for _, p := range sync.Pairs() {
		if p.Rule != model.RuleSynchronous {
			t.Errorf("beat %d: rule %q, expected %q", p.Beat, p.Rule, model.RuleSynchronous)
		}
	}

	free := Match([]float64{1, 2, 3}, []float64{0.5, 1.8, 1.9, 2.0, 2.9}, model.Free)
	expected := []Pair{
		{Beat: 0, Tap: 0.5, Rule: model.RuleFirstOfFew},
		{Beat: 1, Tap: 2.0, Rule: model.RuleAmbiguousLast},
		{Beat: 2, Tap: 2.9, Rule: model.RuleFirstOfFew},
	}
	if got := free.Pairs(); !reflect.DeepEqual(got, expected) {
		t.Errorf("Pairs() = %+v, expected %+v", got, expected)
	}
}

func TestCorrespondenceAccessors(t *testing.T) {
	c := Match([]float64{1, 2, 3}, []float64{1.05, 3.05}, model.Synchronous)

	if c.Len() != 2 {
		t.Fatalf("Len() = %d, expected 2", c.Len())
	}
	if tap, ok := c.Tap(2); !ok || tap != 3.05 {
		t.Errorf("Tap(2) = %g, %v", tap, ok)
	}
	if _, ok := c.Tap(1); ok {
		t.Error("Tap(1) should be unmatched")
	}
	if _, ok := c.Tap(7); ok {
		t.Error("Tap(7) should be unmatched")
	}

	pairs := c.Pairs()
	pairs[0].Tap = 99
	if tap, _ := c.Tap(0); tap != 1.05 {
		t.Error("modifying Pairs() leaked into the correspondence")
	}
}

func sortedTimes(rng *rand.Rand, n int, span float64) []float64 {
	x := make([]float64, n)
	for i := range x {
		x[i] = rng.Float64() * span
	}
	sort.Float64s(x)
	return x
}

func TestSynchronousIsInjective(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for round := 0; round < 200; round++ {
		beats := sortedTimes(rng, 1+rng.Intn(20), 30)
		taps := sortedTimes(rng, rng.Intn(40), 30)

		c := Match(beats, taps, model.Synchronous)
		seen := make(map[float64]int)
		for _, p := range c.Pairs() {
			if prev, dup := seen[p.Tap]; dup {
				t.Fatalf("round %d: tap %g matched to beats %d and %d", round, p.Tap, prev, p.Beat)
			}
			seen[p.Tap] = p.Beat
			if p.Beat < 0 || p.Beat >= len(beats) {
				t.Fatalf("round %d: beat index %d out of range", round, p.Beat)
			}
		}
	}
}

func TestFreeStaysWithinOneInterval(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	for round := 0; round < 200; round++ {
		beats := sortedTimes(rng, 2+rng.Intn(20), 30)
		taps := sortedTimes(rng, rng.Intn(40), 30)

		c := Match(beats, taps, model.Free)
		used := make(map[float64]bool)
		for _, p := range c.Pairs() {
			if p.Beat > 0 {
				interval := beats[p.Beat] - beats[p.Beat-1]
				if p.Tap < beats[p.Beat]-interval {
					t.Fatalf("round %d: beat %d at %g matched tap %g earlier than one interval", round, p.Beat, beats[p.Beat], p.Tap)
				}
			}
			if used[p.Tap] {
				t.Fatalf("round %d: tap %g reused", round, p.Tap)
			}
			used[p.Tap] = true
		}
	}
}
