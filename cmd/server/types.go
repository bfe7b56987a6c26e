package main

import (
	"time"

	"github.com/himanishpuri/TapAlign/pkg/models"
	"github.com/himanishpuri/TapAlign/pkg/tapalign"
)

// MaxUploadBytes bounds the multipart body of POST /api/process
const MaxUploadBytes = 200 << 20

// RecordingDTO represents a recording in API responses
type RecordingDTO struct {
	ID            string    `json:"id"`
	Path          string    `json:"path"`
	Subject       string    `json:"subject"`
	Group         string    `json:"group"`
	GroupCode     int       `json:"group_code"`
	Condition     string    `json:"condition"`
	ConditionCode int       `json:"condition_code"`
	File          string    `json:"file"`
	SampleRate    int       `json:"sample_rate"`
	DurationMs    int       `json:"duration_ms"`
	SizeBytes     int64     `json:"size_bytes"`
	TrialCount    int       `json:"trial_count"`
	SkippedTrials int       `json:"skipped_trials"`
	MatchCount    int       `json:"match_count"`
	CreatedAt     time.Time `json:"created_at"`
}

func newRecordingDTO(rec models.Recording) RecordingDTO {
	return RecordingDTO{
		ID:            rec.ID,
		Path:          rec.Path,
		Subject:       rec.Subject,
		Group:         rec.Group,
		GroupCode:     rec.GroupCode,
		Condition:     rec.Condition,
		ConditionCode: rec.ConditionCode,
		File:          rec.File,
		SampleRate:    rec.SampleRate,
		DurationMs:    rec.DurationMs,
		SizeBytes:     rec.SizeBytes,
		TrialCount:    rec.TrialCount,
		SkippedTrials: rec.SkippedTrials,
		MatchCount:    rec.MatchCount,
		CreatedAt:     rec.CreatedAt,
	}
}

// MatchDTO is one beat/tap pair
type MatchDTO struct {
	Trial       int     `json:"trial"`
	BeatNb      int     `json:"beat_nb"`
	BeatInstant float64 `json:"beat_instant"`
	TapInstant  float64 `json:"tap_instant"`
	Rule        string  `json:"rule"`
}

func newMatchDTOs(rows []models.MatchRow) []MatchDTO {
	out := make([]MatchDTO, len(rows))
	for i, r := range rows {
		out[i] = MatchDTO{
			Trial:       r.Trial,
			BeatNb:      r.BeatNb,
			BeatInstant: r.BeatInstant,
			TapInstant:  r.TapInstant,
			Rule:        r.Rule,
		}
	}
	return out
}

// TrialDTO summarizes one trial of a processed recording
type TrialDTO struct {
	Trial   int       `json:"trial"`
	Label   string    `json:"label,omitempty"`
	Start   float64   `json:"start"`
	End     float64   `json:"end"`
	Beats   []float64 `json:"beats"`
	Taps    []float64 `json:"taps"`
	Matched int       `json:"matched"`
	Skipped string    `json:"skipped,omitempty"`
}

func newTrialDTOs(reports []tapalign.TrialReport) []TrialDTO {
	out := make([]TrialDTO, len(reports))
	for i, r := range reports {
		out[i] = TrialDTO{
			Trial:   r.Trial.Ordinal,
			Label:   r.Trial.Label,
			Start:   r.Trial.Start,
			End:     r.Trial.End,
			Beats:   nonNil(r.Beats),
			Taps:    nonNil(r.Taps),
			Matched: r.Matched,
		}
		if r.Skipped != nil {
			out[i].Skipped = r.Skipped.Error()
		}
	}
	return out
}

func nonNil(x []float64) []float64 {
	if x == nil {
		return []float64{}
	}
	return x
}

// ProcessResponse is the response for POST /api/process
type ProcessResponse struct {
	Message   string       `json:"message"`
	Recording RecordingDTO `json:"recording"`
	Trials    []TrialDTO   `json:"trials"`
	Matches   []MatchDTO   `json:"matches"`
}

// ListRecordingsResponse is the response for GET /api/recordings
type ListRecordingsResponse struct {
	Recordings []RecordingDTO `json:"recordings"`
	Count      int            `json:"count"`
}

// MatchesResponse is the response for GET /api/recordings/{id}/matches
type MatchesResponse struct {
	RecordingID string     `json:"recording_id"`
	Matches     []MatchDTO `json:"matches"`
	Count       int        `json:"count"`
}

// DeleteRecordingResponse is the response for DELETE /api/recordings/{id}
type DeleteRecordingResponse struct {
	Message string `json:"message"`
	ID      string `json:"id"`
}

// MetricsResponse provides server health and database metrics
type MetricsResponse struct {
	Status         string `json:"status"`
	DatabasePath   string `json:"database_path"`
	RecordingCount int64  `json:"recording_count"`
	MatchCount     int64  `json:"match_count"`
	Workers        int    `json:"workers"`
}

// ErrorResponse is the standard error response format
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}
