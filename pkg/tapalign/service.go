package tapalign

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/himanishpuri/TapAlign/internal/annotation"
	"github.com/himanishpuri/TapAlign/internal/audio"
	"github.com/himanishpuri/TapAlign/internal/export"
	"github.com/himanishpuri/TapAlign/internal/processor"
	"github.com/himanishpuri/TapAlign/pkg/logger"
	"github.com/himanishpuri/TapAlign/pkg/models"
	"golang.org/x/sync/errgroup"
)

// ErrMissingParams is returned when files are processed without onset thresholds.
var ErrMissingParams = errors.New("onset detection thresholds are not configured")

// tapService is the default implementation of the Service interface.
type tapService struct {
	storage Storage
	log     Logger
	config  *Config
}

func NewService(opts ...Option) (Service, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	// Set default logger if none provided
	if cfg.Logger == nil {
		cfg.Logger = logger.GetLogger()
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}

	// Create or use provided storage
	var stor Storage
	var err error
	if cfg.Storage != nil {
		stor = cfg.Storage
	} else {
		stor, err = NewSQLiteStorage(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage: %w", err)
		}
	}

	return &tapService{
		storage: stor,
		log:     cfg.Logger,
		config:  cfg,
	}, nil
}

// ProcessFile analyzes one recording and stores its matches, replacing any
// earlier result for the same key.
func (s *tapService) ProcessFile(ctx context.Context, job FileJob) (*FileResult, error) {
	s.log.Infof("Processing recording: %s", job.AudioPath)

	res := s.analyze(ctx, job)
	if res.Err != nil {
		return &res, res.Err
	}
	if err := s.persist(&res); err != nil {
		return &res, err
	}

	s.log.Infof("Stored %s as %s: %d trials (%d skipped), %d matches",
		filepath.Base(job.AudioPath), res.RecordingID, res.Recording.TrialCount, res.Recording.SkippedTrials, len(res.Rows))
	return &res, nil
}

// ProcessBatch analyzes jobs on a pool of workers and stores each result as it
// arrives. Results are returned in job order; a failed file only sets the Err
// of its own result. Cancelling ctx stops handing out new files; jobs that
// never started carry the context error.
func (s *tapService) ProcessBatch(ctx context.Context, jobs []FileJob) ([]FileResult, error) {
	results := make([]FileResult, len(jobs))
	for i, job := range jobs {
		results[i].Job = job
	}
	if len(jobs) == 0 {
		return results, nil
	}

	workers := min(s.config.Workers, len(jobs))
	s.log.Infof("Processing %d recordings with %d workers", len(jobs), workers)

	type done struct {
		index  int
		result FileResult
	}
	indexes := make(chan int)
	finished := make(chan done)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(indexes)
		for i := range jobs {
			select {
			case indexes <- i:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for i := range indexes {
				finished <- done{index: i, result: s.analyze(gctx, jobs[i])}
			}
			return nil
		})
	}
	go func() {
		g.Wait()
		close(finished)
	}()

	// sqlite writes stay on this goroutine.
	started := make([]bool, len(jobs))
	failed := 0
	for d := range finished {
		r := d.result
		if r.Err == nil {
			if err := s.persist(&r); err != nil {
				r.Err = err
			}
		}
		if r.Err != nil {
			failed++
			s.log.Errorf("Failed to process %s: %v", r.Job.AudioPath, r.Err)
		} else {
			s.log.Debugf("Stored %s as %s", r.Job.AudioPath, r.RecordingID)
		}
		results[d.index] = r
		started[d.index] = true
	}

	if err := ctx.Err(); err != nil {
		for i := range results {
			if !started[i] {
				results[i].Err = err
			}
		}
		return results, err
	}

	s.log.Infof("Batch finished: %d processed, %d failed", len(jobs)-failed, failed)
	return results, nil
}

func (s *tapService) analyze(ctx context.Context, job FileJob) FileResult {
	res := FileResult{Job: job}
	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}
	if err := s.config.Detector.Validate(); err != nil {
		res.Err = fmt.Errorf("%w: %v", ErrMissingParams, err)
		return res
	}

	info, err := s.fileInfo(job)
	if err != nil {
		res.Err = err
		return res
	}

	trials, err := s.trials(job)
	if err != nil {
		res.Err = err
		return res
	}

	wavPath, cleanup, err := s.wavFor(ctx, job.AudioPath)
	if err != nil {
		res.Err = fmt.Errorf("audio conversion failed: %w", err)
		return res
	}
	defer cleanup()

	rec, err := audio.ReadStereoWav(wavPath)
	if err != nil {
		res.Err = fmt.Errorf("failed to read WAV file: %w", err)
		return res
	}

	out := processor.Process(
		audio.Normalize(rec.Beats),
		audio.Normalize(rec.Taps),
		rec.SampleRate,
		trials,
		info.Condition,
		s.config.Detector,
		s.fileLog(job.AudioPath),
	)

	res.Trials = out.Trials
	res.Rows = export.Rows(info, out.Records)

	var size int64
	if st, err := os.Stat(job.AudioPath); err == nil {
		size = st.Size()
	}

	key := job.Key
	if key == "" {
		key = job.AudioPath
	}
	res.Recording = models.Recording{
		Path:          key,
		Subject:       info.Subject,
		Group:         info.Group,
		GroupCode:     info.GroupCode,
		Condition:     info.ConditionLabel,
		ConditionCode: info.ConditionCode,
		File:          info.File,
		SampleRate:    rec.SampleRate,
		DurationMs:    int(rec.Duration().Milliseconds()),
		SizeBytes:     size,
		TrialCount:    len(trials),
		SkippedTrials: out.SkippedTrials(),
		MatchCount:    len(res.Rows),
	}

	if s.config.WriteOnsets {
		path := annotation.OnsetsPathFor(job.AudioPath)
		if err := annotation.WriteOnsets(path, filepath.Base(job.AudioPath), out.Trials); err != nil {
			s.log.Warnf("Could not write onsets for %s: %v", job.AudioPath, err)
		}
	}

	return res
}

func (s *tapService) persist(res *FileResult) error {
	id, err := s.storage.SaveRecording(res.Recording, res.Rows)
	if err != nil {
		return fmt.Errorf("failed to store recording: %w", err)
	}
	res.RecordingID = id
	res.Recording.ID = id
	return nil
}

func (s *tapService) fileInfo(job FileJob) (FileInfo, error) {
	if job.Info != nil {
		return *job.Info, nil
	}
	return s.config.Schema.ParsePath(job.AudioPath)
}

func (s *tapService) trials(job FileJob) ([]Trial, error) {
	if job.Trials != nil {
		return job.Trials, nil
	}
	path := job.TrialsPath
	if path == "" {
		path = annotation.TrialsPathFor(job.AudioPath)
	}
	return annotation.LoadTrials(path)
}

// wavFor returns a WAV version of path, converting it in a private temp
// directory when needed.
func (s *tapService) wavFor(ctx context.Context, path string) (string, func(), error) {
	if audio.IsWav(path) {
		return path, func() {}, nil
	}

	if err := os.MkdirAll(s.config.TempDir, 0o755); err != nil {
		return "", nil, err
	}
	dir, err := os.MkdirTemp(s.config.TempDir, "tapalign-*")
	if err != nil {
		return "", nil, err
	}
	cleanup := func() { os.RemoveAll(dir) }

	wavPath, err := audio.ConvertToStereoWAV(ctx, path, dir, audio.ConvertWAVConfig{})
	if err != nil {
		cleanup()
		return "", nil, err
	}
	return wavPath, cleanup, nil
}

func (s *tapService) fileLog(path string) processor.Logger {
	name := filepath.Base(path) + ":"
	if l, ok := s.log.(*logger.Logger); ok {
		return l.WithPrefix(name)
	}
	return prefixLogger{log: s.log, prefix: strings.ReplaceAll(name, "%", "%%") + " "}
}

type prefixLogger struct {
	log    Logger
	prefix string
}

func (l prefixLogger) Debugf(format string, args ...any) {
	l.log.Debugf(l.prefix+format, args...)
}

func (l prefixLogger) Warnf(format string, args ...any) {
	l.log.Warnf(l.prefix+format, args...)
}

func (s *tapService) ListRecordings() ([]models.Recording, error) {
	return s.storage.ListRecordings()
}

func (s *tapService) GetRecording(id string) (*models.Recording, error) {
	rec, err := s.storage.GetRecordingByID(id)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *tapService) GetMatches(id string) ([]models.MatchRow, error) {
	return s.storage.GetMatches(id)
}

// ExportRows returns every stored match in export order.
func (s *tapService) ExportRows() ([]models.MatchRow, error) {
	return s.storage.AllRows()
}

func (s *tapService) DeleteRecording(id string) error {
	s.log.Infof("Deleting recording %s", id)
	return s.storage.DeleteRecordingByID(id)
}

func (s *tapService) Stats() (Stats, error) {
	recordings, err := s.storage.CountRecordings()
	if err != nil {
		return Stats{}, err
	}
	matches, err := s.storage.CountMatches()
	if err != nil {
		return Stats{}, err
	}
	return Stats{Recordings: recordings, Matches: matches}, nil
}

func (s *tapService) Close() error {
	return s.storage.Close()
}
