// Package ingestion drives song-metadata and activity-log files through
// extraction, resolution and loading, one transaction per file.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rpattn/sparkify/internal/discovery"
	"github.com/rpattn/sparkify/internal/domain"
	"github.com/rpattn/sparkify/internal/extract"
	"github.com/rpattn/sparkify/internal/load"
	"github.com/rpattn/sparkify/internal/repository"
	"github.com/rpattn/sparkify/internal/resolve"
)

// DefaultExtension is the file extension of both input trees.
const DefaultExtension = ".json"

// FileError identifies the file whose load aborted the run.
type FileError struct {
	Phase domain.Phase
	Path  string
	Err   error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s file %s: %v", e.Phase, e.Path, e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }

// Progress is reported after each file commit.
type Progress struct {
	Phase     domain.Phase
	File      string
	Processed int
	Total     int
}

// Options tune a Service. Zero values select defaults, except Tolerance
// where zero requires an exact duration match.
type Options struct {
	Extension string
	Tolerance float64
	Location  *time.Location
	Logger    *slog.Logger
	// OnProgress is called after every committed file.
	OnProgress func(Progress)
}

// Service loads input trees into the star schema.
type Service struct {
	tx        repository.Transactor
	logRepo   repository.LoadLogRepository
	runID     uuid.UUID
	extension string
	tolerance float64
	location  *time.Location
	logger    *slog.Logger
	progress  func(Progress)
}

// NewService creates a service. logRepo may be nil when file outcomes need
// not be recorded.
func NewService(tx repository.Transactor, logRepo repository.LoadLogRepository, opts Options) *Service {
	s := &Service{
		tx:        tx,
		logRepo:   logRepo,
		runID:     uuid.New(),
		extension: opts.Extension,
		tolerance: opts.Tolerance,
		location:  opts.Location,
		logger:    opts.Logger,
		progress:  opts.OnProgress,
	}
	if s.extension == "" {
		s.extension = DefaultExtension
	}
	if s.location == nil {
		s.location = time.UTC
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("run_id", s.runID)
	return s
}

// RunID identifies this service's load log entries.
func (s *Service) RunID() uuid.UUID { return s.runID }

// Summary describes one completed phase.
type Summary struct {
	Phase      domain.Phase
	Root       string
	FilesFound int
	Processed  int
	Songs      load.Counts
	Artists    load.Counts
	Time       load.Counts
	Users      load.Counts
	Songplays  load.Counts
	Unresolved int
}

// LogValue implements slog.LogValuer.
func (s Summary) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("phase", string(s.Phase)),
		slog.Int("files", s.Processed),
		slog.Any("songs", s.Songs),
		slog.Any("artists", s.Artists),
		slog.Any("time", s.Time),
		slog.Any("users", s.Users),
		slog.Any("songplays", s.Songplays),
		slog.Int("unresolved", s.Unresolved),
	)
}

func (s *Summary) merge(f fileResult) {
	addCounts(&s.Songs, f.songs)
	addCounts(&s.Artists, f.artists)
	addCounts(&s.Time, f.time)
	addCounts(&s.Users, f.users)
	addCounts(&s.Songplays, f.songplays)
	s.Unresolved += f.unresolved
}

func addCounts(dst *load.Counts, src load.Counts) {
	dst.Inserted += src.Inserted
	dst.Updated += src.Updated
	dst.Skipped += src.Skipped
}

type fileResult struct {
	songs      load.Counts
	artists    load.Counts
	time       load.Counts
	users      load.Counts
	songplays  load.Counts
	unresolved int
}

func (f fileResult) rows() int {
	return f.songs.Written() + f.artists.Written() + f.time.Written() + f.users.Written() + f.songplays.Written()
}

// RunAll loads the song-metadata tree, then the activity-log tree.
func (s *Service) RunAll(ctx context.Context, songRoot, logRoot string) ([]Summary, error) {
	var summaries []Summary
	for _, phase := range []struct {
		phase domain.Phase
		root  string
	}{
		{domain.PhaseSongs, songRoot},
		{domain.PhaseLogs, logRoot},
	} {
		summary, err := s.Run(ctx, phase.phase, phase.root)
		summaries = append(summaries, summary)
		if err != nil {
			return summaries, err
		}
	}
	return summaries, nil
}

// Run loads every file under root for phase. Each file is committed on its
// own; the first failure rolls back that file and stops the run, leaving
// earlier files committed.
func (s *Service) Run(ctx context.Context, phase domain.Phase, root string) (Summary, error) {
	summary := Summary{Phase: phase, Root: root}

	handler, err := s.handlerFor(phase)
	if err != nil {
		return summary, err
	}

	files, err := discovery.Find(root, s.extension)
	if err != nil {
		return summary, err
	}
	summary.FilesFound = len(files)
	s.logger.Info(fmt.Sprintf("%d files found in %s", len(files), root), "phase", phase, "files", len(files))

	for i, path := range files {
		if err := ctx.Err(); err != nil {
			return summary, &FileError{Phase: phase, Path: path, Err: err}
		}

		var result fileResult
		err := s.tx.InTx(ctx, func(store repository.StarStore) error {
			var handlerErr error
			result, handlerErr = handler(ctx, store, path)
			return handlerErr
		})
		if err != nil {
			s.record(ctx, phase, path, domain.LoadStatusFailed, 0, err)
			s.logger.Error("file load failed", "phase", phase, "file", path, "error", err)
			return summary, &FileError{Phase: phase, Path: path, Err: err}
		}

		summary.Processed++
		summary.merge(result)
		s.record(ctx, phase, path, domain.LoadStatusCommitted, result.rows(), nil)

		s.logger.Info(fmt.Sprintf("%d/%d files processed.", i+1, len(files)),
			"phase", phase, "processed", i+1, "total", len(files))
		if s.progress != nil {
			s.progress(Progress{Phase: phase, File: path, Processed: i + 1, Total: len(files)})
		}
	}

	s.logger.Info("phase complete", "summary", summary)
	return summary, nil
}

type fileHandler func(ctx context.Context, store repository.StarStore, path string) (fileResult, error)

func (s *Service) handlerFor(phase domain.Phase) (fileHandler, error) {
	switch phase {
	case domain.PhaseSongs:
		return s.processSongFile, nil
	case domain.PhaseLogs:
		return s.processLogFile, nil
	default:
		return nil, fmt.Errorf("unknown phase %q", phase)
	}
}

func (s *Service) processSongFile(ctx context.Context, store repository.StarStore, path string) (fileResult, error) {
	song, artist, err := extract.ExtractSongFile(path)
	if err != nil {
		return fileResult{}, err
	}

	dims := load.NewDimensionLoader(store)
	if err := dims.LoadSong(ctx, song); err != nil {
		return fileResult{}, err
	}
	if err := dims.LoadArtist(ctx, artist); err != nil {
		return fileResult{}, err
	}

	return fileResult{
		songs:   dims.Counts(repository.EntitySong),
		artists: dims.Counts(repository.EntityArtist),
	}, nil
}

func (s *Service) processLogFile(ctx context.Context, store repository.StarStore, path string) (fileResult, error) {
	dims := load.NewDimensionLoader(store)
	facts := load.NewFactLoader(store)
	resolver, err := resolve.NewResolver(store, s.tolerance)
	if err != nil {
		return fileResult{}, err
	}

	var result fileResult
	for event, err := range extract.ExtractEventLog(path) {
		if err != nil {
			return fileResult{}, err
		}

		rec, err := domain.DeriveTime(event.Timestamp, s.location)
		if err != nil {
			return fileResult{}, err
		}
		if err := dims.LoadTime(ctx, rec); err != nil {
			return fileResult{}, err
		}
		if err := dims.LoadUser(ctx, event.User(rec.StartTime)); err != nil {
			return fileResult{}, err
		}

		match, err := resolver.Resolve(ctx, event.Song, event.Artist, event.Length)
		if err != nil {
			return fileResult{}, err
		}
		if !match.Found {
			result.unresolved++
		}
		if err := facts.Add(domain.NewSongplay(event, rec.StartTime, match)); err != nil {
			return fileResult{}, err
		}
	}

	if _, err := facts.Flush(ctx); err != nil {
		return fileResult{}, err
	}

	result.time = dims.Counts(repository.EntityTime)
	result.users = dims.Counts(repository.EntityUser)
	result.songplays = facts.Counts()
	return result, nil
}

func (s *Service) record(ctx context.Context, phase domain.Phase, path string, status domain.LoadStatus, rows int, cause error) {
	if s.logRepo == nil {
		return
	}
	entry := domain.NewLoadLogEntry(s.runID, phase, path, status, rows, cause)
	if err := s.logRepo.Record(context.WithoutCancel(ctx), entry); err != nil {
		s.logger.Warn("failed to record load log entry", "file", path, "status", status, "error", err)
	}
}

// AsFileError returns the failed file load wrapped in err, if any.
func AsFileError(err error) (*FileError, bool) {
	var target *FileError
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// RunTally totals the load log entries written by one run.
type RunTally struct {
	Committed int
	Failed    int
	Rows      int
}

// LogValue implements slog.LogValuer.
func (t RunTally) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("committed", t.Committed),
		slog.Int("failed", t.Failed),
		slog.Int("rows", t.Rows),
	)
}

// Tally reads back this run's load log entries. It returns a zero tally when
// the service records no load log.
func (s *Service) Tally(ctx context.Context) (RunTally, error) {
	var tally RunTally
	if s.logRepo == nil {
		return tally, nil
	}

	entries, err := s.logRepo.ListRun(ctx, s.runID)
	if err != nil {
		return tally, fmt.Errorf("failed to list load log for run %s: %w", s.runID, err)
	}
	for _, entry := range entries {
		switch entry.Status {
		case domain.LoadStatusCommitted:
			tally.Committed++
			tally.Rows += entry.RowsLoaded
		case domain.LoadStatusFailed:
			tally.Failed++
		}
	}
	return tally, nil
}
