package index

import (
	"database/sql"
	"errors"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

const snapshotFile = "index.db"

type snapshot struct {
	db *sql.DB
}

func snapshotPath(dir string) string {
	return filepath.Join(dir, snapshotFile)
}

func snapshotExists(dir string) bool {
	info, err := os.Stat(snapshotPath(dir))
	return err == nil && !info.IsDir() && info.Size() > 0
}

// discardSnapshot moves an existing snapshot aside so a rebuild starts from an empty file.
// The old file is kept as index.db.bak for inspection.
func discardSnapshot(dir string) error {
	path := snapshotPath(dir)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	for _, suffix := range []string{"-journal", "-wal", "-shm"} {
		if err := os.Remove(path + suffix); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove %s: %w", path+suffix, err)
		}
	}
	if err := os.Rename(path, path+".bak"); err != nil {
		return fmt.Errorf("failed to move aside old index: %w", err)
	}
	return nil
}

func openSnapshot(dir string) (*snapshot, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}
	db, err := sql.Open("sqlite3", snapshotPath(dir))
	if err != nil {
		return nil, fmt.Errorf("failed to open index database: %w", err)
	}
	db.SetMaxOpenConns(1)

	schema := `
    CREATE TABLE IF NOT EXISTS examples (
        position INTEGER PRIMARY KEY,
        text TEXT NOT NULL,
        category TEXT NOT NULL,
        rationale TEXT NOT NULL,
        label TEXT NOT NULL,
        embedding_json TEXT NOT NULL -- JSON array of float32
    );
    `
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize index schema: %w", err)
	}
	return &snapshot{db: db}, nil
}

func (s *snapshot) close() error {
	return s.db.Close()
}

func (s *snapshot) load() ([]entry, error) {
	rows, err := s.db.Query("SELECT text, category, rationale, label, embedding_json FROM examples ORDER BY position ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query examples: %w", err)
	}
	defer rows.Close()

	var entries []entry
	for rows.Next() {
		var e entry
		var embeddingJSON string
		if err := rows.Scan(&e.example.Text, &e.example.Category, &e.example.Rationale, &e.example.Label, &embeddingJSON); err != nil {
			return nil, fmt.Errorf("failed to scan example row: %w", err)
		}
		if err := json.Unmarshal([]byte(embeddingJSON), &e.embedding); err != nil {
			return nil, fmt.Errorf("corrupt embedding for example %q: %w", e.example.Text, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate examples: %w", err)
	}
	return entries, nil
}

// save rewrites the table in one transaction so a failed save leaves the previous one intact.
func (s *snapshot) save(entries []entry) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin index transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM examples"); err != nil {
		return fmt.Errorf("failed to clear examples: %w", err)
	}

	stmt, err := tx.Prepare("INSERT INTO examples (position, text, category, rationale, label, embedding_json) VALUES (?, ?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare example insert: %w", err)
	}
	defer stmt.Close()

	for i, e := range entries {
		embeddingBytes, err := json.Marshal(e.embedding)
		if err != nil {
			return fmt.Errorf("failed to marshal embedding: %w", err)
		}
		if _, err := stmt.Exec(i, e.example.Text, e.example.Category, e.example.Rationale, e.example.Label, string(embeddingBytes)); err != nil {
			return fmt.Errorf("failed to insert example %q: %w", e.example.Text, err)
		}
	}
	return tx.Commit()
}
