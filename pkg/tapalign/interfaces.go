package tapalign

import (
	"context"

	"github.com/himanishpuri/TapAlign/pkg/models"
)

type Service interface {
	ProcessFile(ctx context.Context, job FileJob) (*FileResult, error)
	ProcessBatch(ctx context.Context, jobs []FileJob) ([]FileResult, error)
	ListRecordings() ([]models.Recording, error)
	GetRecording(id string) (*models.Recording, error)
	GetMatches(id string) ([]models.MatchRow, error)
	ExportRows() ([]models.MatchRow, error)
	DeleteRecording(id string) error
	Stats() (Stats, error)
	Close() error
}

type Storage interface {
	SaveRecording(rec models.Recording, rows []models.MatchRow) (string, error)
	GetRecordingByID(id string) (models.Recording, error)
	ListRecordings() ([]models.Recording, error)
	GetMatches(id string) ([]models.MatchRow, error)
	AllRows() ([]models.MatchRow, error)
	DeleteRecordingByID(id string) error
	CountRecordings() (int64, error)
	CountMatches() (int64, error)
	Close() error
}

type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Debugf(format string, args ...any)
}
