package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gcottom/go-zaplog"
	"github.com/gcottom/yt-dl-queue/internal/services/downloader"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const DefaultLimit = 50

// Entry is one finished task as stored in the journal.
type Entry struct {
	ID         string    `json:"id"`
	URL        string    `json:"url"`
	Title      string    `json:"title"`
	Format     string    `json:"format"`
	State      string    `json:"state"`
	Filepath   string    `json:"filepath,omitempty"`
	Located    bool      `json:"located"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Store journals terminal task results to SQLite.
type Store struct {
	db *sql.DB
}

// Open opens or creates the journal at path. ":memory:" keeps it in memory.
func Open(ctx context.Context, path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create history dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history db: %w", err)
	}
	// a single connection keeps ":memory:" databases shared and serialises writers
	db.SetMaxOpenConns(1)
	if err = db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open history db: %w", err)
	}
	if _, err = db.ExecContext(ctx, `PRAGMA busy_timeout = 5000;`); err != nil {
		zaplog.WarnC(ctx, "failed to set busy timeout", zap.Error(err))
	}
	s := &Store{db: db}
	if err = s.initTable(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create history table: %w", err)
	}
	return s, nil
}

func (s *Store) initTable(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS history (
		id TEXT PRIMARY KEY,
		url TEXT NOT NULL,
		title TEXT,
		format TEXT,
		state TEXT NOT NULL,
		filepath TEXT,
		located INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		created_at INTEGER,
		finished_at INTEGER
	);

	CREATE INDEX IF NOT EXISTS idx_history_finished_at ON history(finished_at);
	`
	_, err := s.db.ExecContext(ctx, query)
	return err
}

// Record stores a terminal task. Recording the same id twice keeps the latest.
func (s *Store) Record(ctx context.Context, task downloader.TaskView) error {
	query := `INSERT OR REPLACE INTO history (id, url, title, format, state, filepath, located, error, created_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	finished := task.FinishedAt
	if finished.IsZero() {
		finished = time.Now()
	}
	_, err := s.db.ExecContext(ctx, query,
		task.ID, task.URL, task.Title, task.FormatLabel, task.State.String(), task.Filepath,
		task.Located, task.Error, task.CreatedAt.UnixMilli(), finished.UnixMilli())
	if err != nil {
		zaplog.ErrorC(ctx, "failed to record history", zap.String("id", task.ID), zap.Error(err))
		return fmt.Errorf("failed to record history: %w", err)
	}
	return nil
}

// List returns the most recently finished entries first.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	query := `SELECT id, url, title, format, state, filepath, located, error, created_at, finished_at
		FROM history ORDER BY finished_at DESC, rowid DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		var (
			e                   Entry
			title, format, path sql.NullString
			errMsg              sql.NullString
			created, finished   int64
		)
		if err := rows.Scan(&e.ID, &e.URL, &title, &format, &e.State, &path, &e.Located, &errMsg, &created, &finished); err != nil {
			return nil, fmt.Errorf("failed to scan history: %w", err)
		}
		e.Title = title.String
		e.Format = format.String
		e.Filepath = path.String
		e.Error = errMsg.String
		e.CreatedAt = time.UnixMilli(created)
		e.FinishedAt = time.UnixMilli(finished)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}
