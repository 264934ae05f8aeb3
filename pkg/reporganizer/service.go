package reporganizer

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/himanishpuri/RepOrganizer/pkg/logger"
	"github.com/himanishpuri/RepOrganizer/pkg/models"
	"github.com/himanishpuri/RepOrganizer/pkg/reporganizer/correlate"
	"github.com/himanishpuri/RepOrganizer/pkg/reporganizer/placement"
	"github.com/himanishpuri/RepOrganizer/pkg/reporganizer/results"
	"github.com/himanishpuri/RepOrganizer/pkg/utils"
)

// organizerService is the default implementation of the Service interface.
type organizerService struct {
	storage Storage // nil until the history is first needed
	log     Logger
	config  *Config
}

// historyMode says how far opening the move history may touch the disk.
type historyMode int

const (
	historyCreate   historyMode = iota // create and migrate the file if needed
	historyExisting                    // open read-write, only if the file exists
	historyReadOnly                    // open read-only, only if the file exists
)

func NewService(opts ...Option) (Service, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	// Set default logger if none provided
	if cfg.Logger == nil {
		cfg.Logger = logger.GetLogger()
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = correlate.DefaultSkewTolerance
	}

	if !utils.IsDir(cfg.GameDir) {
		return nil, &EnvironmentPreconditionError{
			Path:   cfg.GameDir,
			Reason: "game directory does not exist",
		}
	}
	// Recorded moves must stay valid whatever the working directory of a
	// later undo is.
	gameDir, err := filepath.Abs(cfg.GameDir)
	if err != nil {
		return nil, fmt.Errorf("resolving game directory: %w", err)
	}
	cfg.GameDir = gameDir

	s := &organizerService{
		log:    cfg.Logger,
		config: cfg,
	}
	switch {
	case cfg.Storage != nil:
		s.storage = cfg.Storage
	case cfg.DisableHistory:
		s.storage = nopStorage{}
	}
	return s, nil
}

// history returns the move history, opening it on first use. Nothing is
// created on disk unless mode is historyCreate; a missing file then reads as
// an empty history. A dry-run service only ever opens it read-only.
func (s *organizerService) history(mode historyMode) (Storage, error) {
	if s.storage != nil {
		return s.storage, nil
	}
	if s.config.DryRun {
		mode = historyReadOnly
	}

	path := s.config.dbPath()
	if mode != historyCreate && !utils.FileExists(path) {
		return emptyStorage{}, nil
	}

	var (
		stor Storage
		err  error
	)
	if mode == historyReadOnly {
		stor, err = NewReadOnlySQLiteStorage(path)
	} else {
		stor, err = NewSQLiteStorage(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open move history: %w", err)
	}
	s.storage = stor
	return stor, nil
}

// Organize validates the game directory and results log, then moves every
// replay it can correlate into its opponent folder.
//
// Environment and log problems are fatal and are all returned together
// before anything is moved. Problems with a single replay are logged and
// counted in the summary; the batch continues.
func (s *organizerService) Organize(ctx context.Context) (*models.Summary, error) {
	cfg := s.config

	var errs []error
	if err := checkEnvironment(cfg); err != nil {
		errs = append(errs, err)
	}
	records, err := results.Load(cfg.resultsPath())
	if err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	replays, err := listReplays(cfg.replayPath())
	if err != nil {
		return nil, fmt.Errorf("listing replays: %w", err)
	}

	summary := &models.Summary{
		RunID:   utils.GenerateUUID(),
		DryRun:  cfg.DryRun,
		Scanned: len(replays),
	}
	if len(replays) == 0 {
		s.log.Warnf("No replay files were found in %s", cfg.replayPath())
		return summary, nil
	}

	stor, err := s.history(historyCreate)
	if err != nil {
		return nil, err
	}
	s.log.Infof("Loaded %d results entries; %d replay(s) to organize", len(records), len(replays))

	correlator := correlate.New(records, cfg.Tolerance, cfg.Location)
	s.log.Debugf("Skew tolerance %s, replay times in %s", correlator.Tolerance(), cfg.Location)
	placer := placement.New(cfg.outputPath(), cfg.Location)
	claimed := make(map[int64]string)

	for _, path := range replays {
		if err := ctx.Err(); err != nil {
			return summary, fmt.Errorf("organize interrupted after %d move(s): %w", summary.Moved, err)
		}

		corr, err := correlator.Correlate(path)
		if err != nil {
			s.recordSkip(summary, path, err)
			continue
		}

		plan := placer.Plan(path, corr.Record)
		s.checkDuplicate(stor, summary, corr, claimed)

		move := models.Move{
			RunID:           summary.RunID,
			Source:          path,
			Opponent:        plan.Opponent,
			RecordTimestamp: corr.Record.Timestamp,
			ReplayTimestamp: corr.Replay.Timestamp,
		}

		if cfg.DryRun {
			move.Destination = placer.Reserve(plan)
			s.log.Infof("Would move %s -> %s", corr.Replay.Name, move.Destination)
		} else {
			dst, err := placer.Place(plan)
			if err != nil {
				summary.Failed++
				s.log.Errorf("Couldn't move %s: %v. Skipping...", corr.Replay.Name, err)
				continue
			}
			move.Destination = dst
			move.MovedAt = time.Now()
			if err := stor.RecordMove(&move); err != nil {
				s.log.Warnf("Moved %s but couldn't record it in the move history: %v", corr.Replay.Name, err)
			}
			s.log.Debugf("Moved %s -> %s (skew %ds, results line %d)",
				corr.Replay.Name, dst, corr.SkewSeconds, corr.Record.Line)
		}

		claimed[corr.Record.Timestamp] = move.Destination
		summary.Moved++
		summary.Moves = append(summary.Moves, move)
	}

	s.log.Infof("Run %s: %d moved, %d skipped", summary.RunID, summary.Moved, summary.Skipped())
	return summary, nil
}

func (s *organizerService) recordSkip(summary *models.Summary, path string, err error) {
	var unparsable *correlate.UnparsableFilenameError
	switch {
	case errors.As(err, &unparsable):
		summary.Unparsable++
		s.log.Warnf("Couldn't get a valid date from file %s. Skipping...", filepath.Base(path))
	case errors.Is(err, correlate.ErrNoCorrelation):
		summary.Unmatched++
		s.log.Warnf("Couldn't find an entry in %s corresponding to %s. Skipping...",
			filepath.Base(s.config.resultsPath()), filepath.Base(path))
	default:
		summary.Failed++
		s.log.Errorf("Couldn't process %s: %v. Skipping...", filepath.Base(path), err)
	}
}

// checkDuplicate warns when the log row behind corr already produced a
// replay, in this run or an earlier one. The replay is still placed; the
// collision suffix keeps both files.
func (s *organizerService) checkDuplicate(stor Storage, summary *models.Summary, corr models.Correlation, claimed map[int64]string) {
	prev, ok := claimed[corr.Record.Timestamp]
	if !ok {
		m, err := stor.FindActiveByRecordTimestamp(corr.Record.Timestamp)
		if err != nil {
			s.log.Warnf("Couldn't query the move history: %v", err)
			return
		}
		if m == nil {
			return
		}
		prev = m.Destination
	}
	summary.Duplicates++
	s.log.Warnf("%s matches results line %d, which was already used for %s",
		corr.Replay.Name, corr.Record.Line, prev)
}

// Match correlates a single replay name without moving anything.
func (s *organizerService) Match(ctx context.Context, replayName string) (*models.Correlation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	records, err := results.Load(s.config.resultsPath())
	if err != nil {
		return nil, err
	}

	path := replayName
	if filepath.Base(path) == path {
		path = filepath.Join(s.config.replayPath(), replayName)
	}

	correlator := correlate.New(records, s.config.Tolerance, s.config.Location)
	corr, err := correlator.Correlate(path)
	if err != nil {
		return nil, err
	}

	placer := placement.New(s.config.outputPath(), s.config.Location)
	corr.Destination = placer.Resolve(placer.Plan(path, corr.Record))
	return &corr, nil
}

// History returns recorded moves, newest first.
func (s *organizerService) History(limit int) ([]models.Move, error) {
	stor, err := s.history(historyExisting)
	if err != nil {
		return nil, err
	}
	return stor.ListMoves(limit)
}

// Undo moves the replays of one run back to where they came from. An empty
// runID selects the most recent run that has not been undone.
func (s *organizerService) Undo(ctx context.Context, runID string) (int, error) {
	stor, err := s.history(historyExisting)
	if err != nil {
		return 0, err
	}

	if runID == "" {
		latest, err := stor.LatestRunID()
		if err != nil {
			return 0, err
		}
		if latest == "" {
			return 0, ErrNoRuns
		}
		runID = latest
	}

	moves, err := stor.MovesForRun(runID)
	if err != nil {
		return 0, err
	}
	if len(moves) == 0 {
		return 0, fmt.Errorf("%w: %s", ErrNoRuns, runID)
	}

	restored := 0
	var errs []error
	for _, m := range moves {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if m.Undone {
			continue
		}
		if err := utils.MoveFile(m.Destination, m.Source); err != nil {
			errs = append(errs, err)
			continue
		}
		if err := utils.RemoveDirIfEmpty(filepath.Dir(m.Destination)); err != nil {
			s.log.Debugf("Leaving %s in place: %v", filepath.Dir(m.Destination), err)
		}
		if err := stor.MarkUndone(m.ID); err != nil {
			errs = append(errs, err)
		}
		restored++
	}

	s.log.Infof("Run %s: restored %d replay(s)", runID, restored)
	return restored, errors.Join(errs...)
}

// Close releases all resources held by the service.
func (s *organizerService) Close() error {
	if s.storage == nil {
		return nil
	}
	return s.storage.Close()
}
