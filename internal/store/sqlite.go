package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one writer keeps insert+count transactions from interleaving
	db.SetMaxOpenConns(1)
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err = store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS word_reports (
        id TEXT PRIMARY KEY, -- UUID
        word TEXT NOT NULL,
        reason TEXT NOT NULL,
        timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
    );

    CREATE INDEX IF NOT EXISTS idx_word_reports_word ON word_reports (word);
    `
	_, err := s.db.Exec(schema)
	return err
}

// AddReport stores a report and returns the word's count including it. Insert and
// count share a transaction so each caller observes its own position.
func (s *SQLiteStore) AddReport(ctx context.Context, word, reason string) (*Report, int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to begin report transaction: %w", err)
	}
	defer tx.Rollback()

	report := &Report{
		ID:        uuid.NewString(),
		Word:      word,
		Reason:    reason,
		Timestamp: time.Now().UTC(),
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO word_reports (id, word, reason, timestamp) VALUES (?, ?, ?, ?)",
		report.ID, report.Word, report.Reason, report.Timestamp); err != nil {
		return nil, 0, fmt.Errorf("failed to execute report insert: %w", err)
	}

	var count int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM word_reports WHERE word = ?", word).Scan(&count); err != nil {
		return nil, 0, fmt.Errorf("failed to count reports: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, 0, fmt.Errorf("failed to commit report: %w", err)
	}
	return report, count, nil
}

func (s *SQLiteStore) CountReports(ctx context.Context, word string) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM word_reports WHERE word = ?", word).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count reports: %w", err)
	}
	return count, nil
}

// ReasonsForWord returns reasons oldest first.
func (s *SQLiteStore) ReasonsForWord(ctx context.Context, word string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT reason FROM word_reports WHERE word = ? ORDER BY timestamp ASC, rowid ASC", word)
	if err != nil {
		return nil, fmt.Errorf("failed to query reports: %w", err)
	}
	defer rows.Close()

	var reasons []string
	for rows.Next() {
		var reason string
		if err := rows.Scan(&reason); err != nil {
			return nil, fmt.Errorf("failed to scan report row: %w", err)
		}
		reasons = append(reasons, reason)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reports: %w", err)
	}
	return reasons, nil
}

func (s *SQLiteStore) DeleteReports(ctx context.Context, word string) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM word_reports WHERE word = ?", word)
	if err != nil {
		return 0, fmt.Errorf("failed to delete reports for %q: %w", word, err)
	}
	affected, _ := res.RowsAffected()
	return affected, nil
}

func (s *SQLiteStore) Summary(ctx context.Context, word string) (*WordReportSummary, error) {
	reasons, err := s.ReasonsForWord(ctx, word)
	if err != nil {
		return nil, err
	}
	if reasons == nil {
		reasons = []string{}
	}
	return &WordReportSummary{Word: word, Count: len(reasons), Reasons: reasons}, nil
}
