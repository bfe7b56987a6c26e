package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/himanishpuri/TapAlign/pkg/models"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DefaultDBFile is used when no database path is configured.
const DefaultDBFile = "tapalign.sqlite3"
const errDBClientNil = "db client is nil"

// ErrNotFound is returned when a recording ID does not exist.
var ErrNotFound = errors.New("recording not found")

type DBClient struct {
	DB *gorm.DB
	db *sql.DB
}

type Recording struct {
	ID            string `gorm:"primaryKey;type:varchar(36)"`
	Path          string `gorm:"uniqueIndex:idx_recording_path"`
	Subject       string `gorm:"index:idx_recording_subject"`
	Group         string `gorm:"column:group_label"`
	GroupCode     int
	Condition     string `gorm:"column:condition_label"`
	ConditionCode int
	File          string
	SampleRate    int
	DurationMs    int
	SizeBytes     int64
	TrialCount    int
	SkippedTrials int
	MatchCount    int
	CreatedAt     time.Time
	Matches       []Match `gorm:"foreignKey:RecordingID;constraint:OnDelete:CASCADE"`
}

type Match struct {
	ID          uint    `gorm:"primaryKey;autoIncrement"`
	RecordingID string  `gorm:"type:varchar(36);index:idx_match_recording"`
	Trial       int     `json:"trial"`
	BeatNb      int     `json:"beat_nb"`
	BeatInstant float64 `json:"beat_instant"`
	TapInstant  float64 `json:"tap_instant"`
	Rule        string  `json:"rule"`
}

func NewDBClientWithPath(dbPath string) (*DBClient, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db dir: %w", err)
		}
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	db, err := gorm.Open(sqlite.Open(dbPath+"?_pragma=foreign_keys(1)"), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB from gorm: %w", err)
	}

	// sqlite serializes writers; a single connection avoids SQLITE_BUSY.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&Recording{}, &Match{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	return &DBClient{DB: db, db: sqlDB}, nil
}

func (c *DBClient) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// SaveRecording stores a recording and its matches, replacing any earlier
// run for the same path. It returns the new recording ID.
func (c *DBClient) SaveRecording(rec models.Recording, rows []models.MatchRow) (string, error) {
	if c == nil || c.DB == nil {
		return "", errors.New(errDBClientNil)
	}

	row := Recording{
		ID:            uuid.NewString(),
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
		MatchCount:    len(rows),
	}

	matches := make([]Match, 0, len(rows))
	for _, r := range rows {
		matches = append(matches, Match{
			RecordingID: row.ID,
			Trial:       r.Trial,
			BeatNb:      r.BeatNb,
			BeatInstant: r.BeatInstant,
			TapInstant:  r.TapInstant,
			Rule:        r.Rule,
		})
	}

	err := c.DB.Transaction(func(tx *gorm.DB) error {
		var previous []Recording
		if err := tx.Where("path = ?", rec.Path).Find(&previous).Error; err != nil {
			return fmt.Errorf("querying existing recording: %w", err)
		}
		for _, p := range previous {
			if err := deleteRecording(tx, p.ID); err != nil {
				return fmt.Errorf("replacing recording %s: %w", p.ID, err)
			}
		}

		if err := tx.Omit("Matches").Create(&row).Error; err != nil {
			return fmt.Errorf("creating recording: %w", err)
		}
		if len(matches) > 0 {
			if err := tx.CreateInBatches(matches, 500).Error; err != nil {
				return fmt.Errorf("batch insert matches: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return row.ID, nil
}

func (c *DBClient) GetRecordingByID(id string) (models.Recording, error) {
	if c == nil || c.DB == nil {
		return models.Recording{}, errors.New(errDBClientNil)
	}
	var rec Recording
	err := c.DB.Where("id = ?", id).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Recording{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return models.Recording{}, fmt.Errorf("querying recording: %w", err)
	}
	return rec.toModel(), nil
}

func (c *DBClient) ListRecordings() ([]models.Recording, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}
	var recs []Recording
	if err := c.DB.Order("subject, path").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("listing recordings: %w", err)
	}
	out := make([]models.Recording, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.toModel())
	}
	return out, nil
}

// GetMatches returns the rows of one recording ordered by trial and beat.
func (c *DBClient) GetMatches(id string) ([]models.MatchRow, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}
	var rec Recording
	err := c.DB.Preload("Matches", orderMatches).Where("id = ?", id).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("querying matches: %w", err)
	}
	return rec.rows(), nil
}

// AllRows returns every stored match in export order.
func (c *DBClient) AllRows() ([]models.MatchRow, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}
	var recs []Recording
	if err := c.DB.Preload("Matches", orderMatches).Order("subject, path").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("querying rows: %w", err)
	}
	var out []models.MatchRow
	for _, r := range recs {
		out = append(out, r.rows()...)
	}
	return out, nil
}

func (c *DBClient) DeleteRecordingByID(id string) error {
	if c == nil || c.DB == nil {
		return errors.New(errDBClientNil)
	}
	return c.DB.Transaction(func(tx *gorm.DB) error {
		return deleteRecording(tx, id)
	})
}

func (c *DBClient) CountMatches() (int64, error) {
	if c == nil || c.DB == nil {
		return 0, errors.New(errDBClientNil)
	}
	var n int64
	if err := c.DB.Model(&Match{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("counting matches: %w", err)
	}
	return n, nil
}

func (c *DBClient) CountRecordings() (int64, error) {
	if c == nil || c.DB == nil {
		return 0, errors.New(errDBClientNil)
	}
	var n int64
	if err := c.DB.Model(&Recording{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("counting recordings: %w", err)
	}
	return n, nil
}

func deleteRecording(tx *gorm.DB, id string) error {
	if err := tx.Where("recording_id = ?", id).Delete(&Match{}).Error; err != nil {
		return err
	}
	res := tx.Where("id = ?", id).Delete(&Recording{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func orderMatches(db *gorm.DB) *gorm.DB {
	return db.Order("trial, beat_nb")
}

func (r Recording) toModel() models.Recording {
	return models.Recording{
		ID:            r.ID,
		Path:          r.Path,
		Subject:       r.Subject,
		Group:         r.Group,
		GroupCode:     r.GroupCode,
		Condition:     r.Condition,
		ConditionCode: r.ConditionCode,
		File:          r.File,
		SampleRate:    r.SampleRate,
		DurationMs:    r.DurationMs,
		SizeBytes:     r.SizeBytes,
		TrialCount:    r.TrialCount,
		SkippedTrials: r.SkippedTrials,
		MatchCount:    r.MatchCount,
		CreatedAt:     r.CreatedAt,
	}
}

func (r Recording) rows() []models.MatchRow {
	out := make([]models.MatchRow, 0, len(r.Matches))
	for _, m := range r.Matches {
		out = append(out, models.MatchRow{
			Subject:     r.Subject,
			Group:       r.GroupCode,
			Condition:   r.ConditionCode,
			File:        r.File,
			Trial:       m.Trial,
			BeatNb:      m.BeatNb,
			BeatInstant: m.BeatInstant,
			TapInstant:  m.TapInstant,
			Rule:        m.Rule,
		})
	}
	return out
}
