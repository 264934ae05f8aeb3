package reporganizer

import (
	"time"

	"github.com/himanishpuri/RepOrganizer/pkg/models"
	"github.com/himanishpuri/RepOrganizer/pkg/reporganizer/storage"
)

// storageAdapter adapts the storage.DBClient to implement the Storage interface.
type storageAdapter struct {
	db *storage.DBClient
}

// NewSQLiteStorage creates a new SQLite move history.
func NewSQLiteStorage(dbPath string) (Storage, error) {
	db, err := storage.NewDBClientWithPath(dbPath)
	if err != nil {
		return nil, err
	}
	return &storageAdapter{db: db}, nil
}

// NewReadOnlySQLiteStorage opens an existing move history for reading only.
func NewReadOnlySQLiteStorage(dbPath string) (Storage, error) {
	db, err := storage.NewReadOnlyDBClient(dbPath)
	if err != nil {
		return nil, err
	}
	return &storageAdapter{db: db}, nil
}

func (s *storageAdapter) RecordMove(move *models.Move) error {
	row := toRow(move)
	if err := s.db.RecordMove(row); err != nil {
		return err
	}
	move.ID = row.ID
	move.MovedAt = row.MovedAt
	return nil
}

func (s *storageAdapter) FindActiveByRecordTimestamp(ts int64) (*models.Move, error) {
	row, err := s.db.FindActiveByRecordTimestamp(ts)
	if err != nil || row == nil {
		return nil, err
	}
	m := fromRow(*row)
	return &m, nil
}

func (s *storageAdapter) ListMoves(limit int) ([]models.Move, error) {
	rows, err := s.db.ListMoves(limit)
	if err != nil {
		return nil, err
	}
	return fromRows(rows), nil
}

func (s *storageAdapter) LatestRunID() (string, error) {
	return s.db.LatestRunID()
}

func (s *storageAdapter) MovesForRun(runID string) ([]models.Move, error) {
	rows, err := s.db.MovesForRun(runID)
	if err != nil {
		return nil, err
	}
	return fromRows(rows), nil
}

func (s *storageAdapter) MarkUndone(id uint) error {
	return s.db.MarkUndone(id, time.Now())
}

func (s *storageAdapter) Close() error {
	return s.db.Close()
}

func toRow(m *models.Move) *storage.Move {
	return &storage.Move{
		ID:              m.ID,
		RunID:           m.RunID,
		Source:          m.Source,
		Destination:     m.Destination,
		Opponent:        m.Opponent,
		RecordTimestamp: m.RecordTimestamp,
		ReplayTimestamp: m.ReplayTimestamp,
		MovedAt:         m.MovedAt,
	}
}

func fromRow(r storage.Move) models.Move {
	return models.Move{
		ID:              r.ID,
		RunID:           r.RunID,
		Source:          r.Source,
		Destination:     r.Destination,
		Opponent:        r.Opponent,
		RecordTimestamp: r.RecordTimestamp,
		ReplayTimestamp: r.ReplayTimestamp,
		MovedAt:         r.MovedAt,
		Undone:          r.UndoneAt != nil,
	}
}

func fromRows(rows []storage.Move) []models.Move {
	out := make([]models.Move, len(rows))
	for i, r := range rows {
		out[i] = fromRow(r)
	}
	return out
}

// nopStorage is used when the move history is disabled.
type nopStorage struct{}

func (nopStorage) RecordMove(*models.Move) error { return nil }

func (nopStorage) FindActiveByRecordTimestamp(int64) (*models.Move, error) { return nil, nil }

func (nopStorage) ListMoves(int) ([]models.Move, error) { return nil, ErrHistoryDisabled }

func (nopStorage) LatestRunID() (string, error) { return "", ErrHistoryDisabled }

func (nopStorage) MovesForRun(string) ([]models.Move, error) { return nil, ErrHistoryDisabled }

func (nopStorage) MarkUndone(uint) error { return ErrHistoryDisabled }

func (nopStorage) Close() error { return nil }

// emptyStorage stands in for a move history file that does not exist yet.
type emptyStorage struct {
	nopStorage
}

func (emptyStorage) ListMoves(int) ([]models.Move, error) { return nil, nil }

func (emptyStorage) LatestRunID() (string, error) { return "", nil }

func (emptyStorage) MovesForRun(string) ([]models.Move, error) { return nil, nil }
