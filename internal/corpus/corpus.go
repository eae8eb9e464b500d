// Package corpus reads and appends the flat four-column example corpus.
package corpus

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const (
	ColumnCategory  = "범주"
	ColumnExample   = "예시표현"
	ColumnRationale = "간략 정의/맥락"
	ColumnLabel     = "label"

	// LabelHateful is the fixed label of every entry added by the report workflow.
	LabelHateful = "혐오 발언"
)

var Header = []string{ColumnCategory, ColumnExample, ColumnRationale, ColumnLabel}

// rationale column spellings seen in older corpus files
var rationaleAliases = []string{ColumnRationale, "간략정의/맥락"}

type Entry struct {
	Category    string
	ExampleText string
	Rationale   string
	Label       string
}

func (e Entry) record() []string {
	return []string{e.Category, e.ExampleText, e.Rationale, e.Label}
}

// File is the corpus CSV on disk. Appends from one process are serialized.
type File struct {
	path string
	mu   sync.Mutex
}

func NewFile(path string) *File {
	return &File{path: path}
}

func (f *File) Path() string {
	return f.path
}

// Append writes one row. The header is written first when the file is absent or empty.
func (f *File) Append(entry Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	needsHeader := true
	if info, err := os.Stat(f.path); err == nil {
		needsHeader = info.Size() == 0
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to stat corpus file %s: %w", f.path, err)
	}

	if dir := filepath.Dir(f.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create corpus directory: %w", err)
		}
	}

	fh, err := os.OpenFile(f.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open corpus file %s: %w", f.path, err)
	}

	w := csv.NewWriter(fh)
	if needsHeader {
		if err := w.Write(Header); err != nil {
			fh.Close()
			return fmt.Errorf("failed to write corpus header: %w", err)
		}
	}
	if err := w.Write(entry.record()); err != nil {
		fh.Close()
		return fmt.Errorf("failed to write corpus row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		fh.Close()
		return fmt.Errorf("failed to flush corpus row: %w", err)
	}
	if err := fh.Sync(); err != nil {
		fh.Close()
		return fmt.Errorf("failed to sync corpus file: %w", err)
	}
	return fh.Close()
}

// ReadAll loads every row keyed by the header, so column order in the file does not matter.
func (f *File) ReadAll() ([]Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	fh, err := os.Open(f.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open corpus file %s: %w", f.path, err)
	}
	defer fh.Close()

	r := csv.NewReader(fh)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read corpus header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		columns[name] = i
	}
	exampleIdx, ok := columns[ColumnExample]
	if !ok {
		return nil, fmt.Errorf("corpus file %s has no %q column", f.path, ColumnExample)
	}
	rationaleIdx := -1
	for _, alias := range rationaleAliases {
		if idx, ok := columns[alias]; ok {
			rationaleIdx = idx
			break
		}
	}

	field := func(row []string, idx int) string {
		if idx < 0 || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}
	lookup := func(name string) int {
		if idx, ok := columns[name]; ok {
			return idx
		}
		return -1
	}
	categoryIdx := lookup(ColumnCategory)
	labelIdx := lookup(ColumnLabel)

	var entries []Entry
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read corpus row: %w", err)
		}
		text := field(row, exampleIdx)
		if text == "" {
			continue
		}
		entries = append(entries, Entry{
			Category:    field(row, categoryIdx),
			ExampleText: text,
			Rationale:   field(row, rationaleIdx),
			Label:       field(row, labelIdx),
		})
	}
	return entries, nil
}

// Contains reports whether a row with the given example text already exists.
// A missing file contains nothing.
func (f *File) Contains(text string) (bool, error) {
	entries, err := f.ReadAll()
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		if e.ExampleText == text {
			return true, nil
		}
	}
	return false, nil
}
