package model

import (
	"fmt"
	"strings"
)

// Condition selects the matching policy applied to a recording.
type Condition int

const (
	// Synchronous is tapping along with a periodic stimulus ("PeriodicAlong").
	Synchronous Condition = iota + 1
	// Free is self-paced tapping ("Aperiodic").
	Free
)

func (c Condition) String() string {
	switch c {
	case Synchronous:
		return "synchronous"
	case Free:
		return "free"
	default:
		return "unknown"
	}
}

// ParseCondition accepts the policy names as well as the labels used by the
// recording folders.
func ParseCondition(s string) (Condition, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "synchronous", "sync", "periodic", "periodicalong":
		return Synchronous, nil
	case "free", "aperiodic":
		return Free, nil
	default:
		return 0, fmt.Errorf("unknown condition %q", s)
	}
}

// Trial is a half-open interval [Start, End) in seconds over a full recording.
// Ordinal is 1-based and follows annotation order.
type Trial struct {
	Ordinal int
	Start   float64
	End     float64
	Label   string
}

// Rule names the matching branch that produced a pair.
type Rule string

const (
	RuleSynchronous   Rule = "synchronous"
	RuleFirstOfFew    Rule = "first-of-few"
	RuleAmbiguousLast Rule = "ambiguous-last"
)

// MatchRecord is one matched beat/tap pair of a trial.
// Beat is the 0-based index into the trial's beat onsets; times are absolute seconds.
type MatchRecord struct {
	Trial    int
	Beat     int
	BeatTime float64
	TapTime  float64
	Rule     Rule
}
