package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const errDBClientNil = "db client is nil"

type DBClient struct {
	DB *gorm.DB
	db *sql.DB
}

// Move is the persisted form of one replay relocation.
type Move struct {
	ID              uint   `gorm:"primaryKey;autoIncrement"`
	RunID           string `gorm:"type:varchar(36);index:idx_run"`
	Source          string `gorm:"not null"`
	Destination     string `gorm:"not null"`
	Opponent        string `gorm:"index:idx_opponent"`
	RecordTimestamp int64  `gorm:"index:idx_record_ts"`
	ReplayTimestamp int64
	MovedAt         time.Time `gorm:"index:idx_moved_at"`
	UndoneAt        *time.Time
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

	db, err := gorm.Open(sqlite.Open(dbPath+"?_pragma=busy_timeout(5000)"), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB from gorm: %w", err)
	}

	// One process, one writer.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&Move{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	return &DBClient{DB: db, db: sqlDB}, nil
}

// NewReadOnlyDBClient opens an existing history database without writing to
// it. The file is neither created nor migrated.
func NewReadOnlyDBClient(dbPath string) (*DBClient, error) {
	if _, err := os.Stat(dbPath); err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	// The file: prefix hands the query to SQLite, which honours mode=ro.
	dsn := "file:" + filepath.ToSlash(dbPath) + "?mode=ro&_pragma=busy_timeout(5000)"
	db, err := gorm.Open(sqlite.Open(dsn), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB from gorm: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	return &DBClient{DB: db, db: sqlDB}, nil
}

func (c *DBClient) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// RecordMove stores m and fills in its ID.
func (c *DBClient) RecordMove(m *Move) error {
	if c == nil || c.DB == nil {
		return errors.New(errDBClientNil)
	}
	if m.MovedAt.IsZero() {
		m.MovedAt = time.Now()
	}
	if err := c.DB.Create(m).Error; err != nil {
		return fmt.Errorf("recording move: %w", err)
	}
	return nil
}

// FindActiveByRecordTimestamp returns the most recent move, not undone, for
// the log row with timestamp ts, or nil if there is none.
func (c *DBClient) FindActiveByRecordTimestamp(ts int64) (*Move, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}
	var m Move
	err := c.DB.Where("record_timestamp = ? AND undone_at IS NULL", ts).
		Order("id DESC").
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying moves by record timestamp: %w", err)
	}
	return &m, nil
}

// ListMoves returns the newest moves first. limit <= 0 means no limit.
func (c *DBClient) ListMoves(limit int) ([]Move, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}
	q := c.DB.Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []Move
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing moves: %w", err)
	}
	return rows, nil
}

// LatestRunID returns the run ID of the newest move that has not been
// undone, or "" when there is none.
func (c *DBClient) LatestRunID() (string, error) {
	if c == nil || c.DB == nil {
		return "", errors.New(errDBClientNil)
	}
	var m Move
	err := c.DB.Where("undone_at IS NULL").Order("id DESC").First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("querying latest run: %w", err)
	}
	return m.RunID, nil
}

// MovesForRun returns every move of runID in reverse order of execution.
func (c *DBClient) MovesForRun(runID string) ([]Move, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}
	var rows []Move
	if err := c.DB.Where("run_id = ?", runID).Order("id DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("querying run %s: %w", runID, err)
	}
	return rows, nil
}

// MarkUndone flags the move as reverted.
func (c *DBClient) MarkUndone(id uint, at time.Time) error {
	if c == nil || c.DB == nil {
		return errors.New(errDBClientNil)
	}
	res := c.DB.Model(&Move{}).Where("id = ?", id).Update("undone_at", at)
	if res.Error != nil {
		return fmt.Errorf("marking move %d undone: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("marking move %d undone: %w", id, gorm.ErrRecordNotFound)
	}
	return nil
}
