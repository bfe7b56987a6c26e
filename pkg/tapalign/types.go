package tapalign

import (
	"github.com/himanishpuri/TapAlign/internal/model"
	"github.com/himanishpuri/TapAlign/internal/processor"
	"github.com/himanishpuri/TapAlign/pkg/models"
)

type (
	// Trial is one annotated interval of a recording.
	Trial = model.Trial
	// TrialReport is the per-trial outcome of processing.
	TrialReport = processor.TrialReport
)

// FileJob describes one recording to process.
type FileJob struct {
	AudioPath  string    // WAV file, or any format ffmpeg can convert
	TrialsPath string    // Defaults to <base>.trials.json next to AudioPath
	Trials     []Trial   // Used instead of TrialsPath when non-nil
	Info       *FileInfo // Used instead of parsing AudioPath when set
	Key        string    // Storage key; defaults to AudioPath
}

// FileResult is the outcome of one FileJob. Err is set when the file could
// not be processed; the other fields are then partial.
type FileResult struct {
	Job         FileJob
	RecordingID string
	Recording   models.Recording
	Rows        []models.MatchRow
	Trials      []TrialReport
	Err         error
}

// Stats summarizes stored data.
type Stats struct {
	Recordings int64
	Matches    int64
}
