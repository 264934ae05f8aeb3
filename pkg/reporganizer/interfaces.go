package reporganizer

import (
	"context"

	"github.com/himanishpuri/RepOrganizer/pkg/models"
)

type Service interface {
	Organize(ctx context.Context) (*models.Summary, error)
	Match(ctx context.Context, replayName string) (*models.Correlation, error)
	History(limit int) ([]models.Move, error)
	Undo(ctx context.Context, runID string) (int, error)
	Close() error
}

type Storage interface {
	RecordMove(move *models.Move) error
	FindActiveByRecordTimestamp(ts int64) (*models.Move, error)
	ListMoves(limit int) ([]models.Move, error)
	LatestRunID() (string, error)
	MovesForRun(runID string) ([]models.Move, error)
	MarkUndone(id uint) error
	Close() error
}

type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Debugf(format string, args ...any)
}
