package models

import "time"

// Recording is a processed audio file and its summary counts.
type Recording struct {
	ID            string // Database ID (UUID)
	Path          string // Source path as given at processing time
	Subject       string
	Group         string
	GroupCode     int
	Condition     string
	ConditionCode int
	File          string // Base name without extension
	SampleRate    int
	DurationMs    int
	SizeBytes     int64
	TrialCount    int
	SkippedTrials int
	MatchCount    int
	CreatedAt     time.Time
}

// MatchRow is one matched beat/tap pair in export form.
type MatchRow struct {
	Subject     string
	Group       int     // Group code
	Condition   int     // Condition code
	File        string
	Trial       int     // 1-based trial ordinal
	BeatNb      int     // 1-based beat ordinal within the trial
	BeatInstant float64 // Seconds from the start of the recording
	TapInstant  float64
	Rule        string // Matching branch that produced the pair
}
