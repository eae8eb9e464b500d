// Package index holds the similarity-searchable store of labeled example phrases.
package index

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"hatedog.dev/hate-filter/internal/utils"
)

var (
	// ErrUnavailable is returned when no index was loaded or built.
	ErrUnavailable = errors.New("example store unavailable")
	// ErrPersist wraps failures writing the index snapshot.
	ErrPersist = errors.New("example store persist failed")
)

type Example struct {
	Text      string `json:"text"`
	Category  string `json:"category"`
	Rationale string `json:"rationale"`
	Label     string `json:"label"`
}

type ScoredExample struct {
	Example Example `json:"example"`
	Score   float64 `json:"score"`
}

// RetrievalResult is ordered by decreasing score.
type RetrievalResult []ScoredExample

func (r RetrievalResult) Examples() []Example {
	out := make([]Example, len(r))
	for i, s := range r {
		out[i] = s.Example
	}
	return out
}

// FilterByThreshold keeps entries scoring at least threshold, preserving order.
func FilterByThreshold(results RetrievalResult, threshold float64) RetrievalResult {
	filtered := make(RetrievalResult, 0, len(results))
	for _, r := range results {
		if r.Score >= threshold {
			filtered = append(filtered, r)
		}
	}
	return filtered
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type entry struct {
	example   Example
	embedding []float32 // unit length
}

// Store keeps vectors in memory and mirrors them to a sqlite snapshot under dir.
// Insert and the persist that follows it happen under one lock.
type Store struct {
	mu        sync.RWMutex
	dir       string
	embedder  Embedder
	logger    *zap.Logger
	snapshot  *snapshot
	entries   []entry
	available bool
}

// New returns an empty, unavailable store rooted at dir.
func New(dir string, embedder Embedder, logger *zap.Logger) *Store {
	return &Store{dir: dir, embedder: embedder, logger: logger}
}

// Load restores a prior save from dir. A missing save is not an error: the store
// stays unavailable until Build is called. A corrupt save returns the error and an
// unavailable store.
func Load(dir string, embedder Embedder, logger *zap.Logger) (*Store, error) {
	s := New(dir, embedder, logger)
	if !snapshotExists(dir) {
		logger.Info("No saved example index found", zap.String("dir", dir))
		return s, nil
	}

	snap, err := openSnapshot(dir)
	if err != nil {
		return s, fmt.Errorf("failed to open example index: %w", err)
	}
	entries, err := snap.load()
	if err != nil {
		snap.close()
		return s, fmt.Errorf("failed to load example index: %w", err)
	}

	s.snapshot = snap
	s.entries = entries
	s.available = true
	logger.Info("Example index loaded", zap.String("dir", dir), zap.Int("examples", len(entries)))
	return s, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snapshot == nil {
		return nil
	}
	err := s.snapshot.close()
	s.snapshot = nil
	return err
}

func (s *Store) Available() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.available
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Examples returns up to limit stored examples in insertion order; limit <= 0 means all.
func (s *Store) Examples(limit int) []Example {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := len(s.entries)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Example, n)
	for i := 0; i < n; i++ {
		out[i] = s.entries[i].example
	}
	return out
}

// Search returns the k most similar examples to query. Ties keep insertion order.
func (s *Store) Search(ctx context.Context, query string, k int) (RetrievalResult, error) {
	if !s.Available() {
		return RetrievalResult{}, ErrUnavailable
	}
	if k <= 0 {
		return RetrievalResult{}, nil
	}

	queryEmbedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return RetrievalResult{}, fmt.Errorf("failed to get query embedding: %w", err)
	}

	s.mu.RLock()
	scored := make(RetrievalResult, 0, len(s.entries))
	for i, e := range s.entries {
		similarity, err := utils.CosineSimilarity(queryEmbedding, e.embedding)
		if err != nil {
			s.logger.Debug("Skipping example during search",
				zap.Int("position", i), zap.String("text", e.example.Text), zap.Error(err))
			continue
		}
		scored = append(scored, ScoredExample{Example: e.example, Score: similarity})
	}
	s.mu.RUnlock()

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

// Insert embeds ex, adds it and persists the whole index. If the persist fails the
// in-memory addition is undone so memory and disk stay equal.
func (s *Store) Insert(ctx context.Context, ex Example) error {
	if !s.Available() {
		return ErrUnavailable
	}
	embedding, err := s.embedder.Embed(ctx, ex.Text)
	if err != nil {
		return fmt.Errorf("failed to embed example %q: %w", ex.Text, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.available {
		return ErrUnavailable
	}

	s.entries = append(s.entries, entry{example: ex, embedding: utils.Normalize(embedding)})
	if err := s.persistLocked(); err != nil {
		s.entries = s.entries[:len(s.entries)-1]
		return err
	}
	s.logger.Info("Example added to index", zap.String("text", ex.Text), zap.Int("examples", len(s.entries)))
	return nil
}

// Persist writes the whole in-memory index to dir. Repeated calls write the same state.
func (s *Store) Persist() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.available {
		return ErrUnavailable
	}
	return s.persistLocked()
}

func (s *Store) persistLocked() error {
	if s.snapshot == nil {
		snap, err := openSnapshot(s.dir)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrPersist, err)
		}
		s.snapshot = snap
	}
	if err := s.snapshot.save(s.entries); err != nil {
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	return nil
}

// Build replaces the index with freshly embedded examples, persists it and marks the
// store available. Examples whose embedding fails are skipped. pace spaces out the
// embedding calls; zero disables pacing.
func (s *Store) Build(ctx context.Context, examples []Example, pace time.Duration) (int, error) {
	var ticker *time.Ticker
	if pace > 0 {
		ticker = time.NewTicker(pace)
		defer ticker.Stop()
	}

	built := make([]entry, 0, len(examples))
	for i, ex := range examples {
		if ticker != nil {
			select {
			case <-ticker.C:
			case <-ctx.Done():
				return 0, ctx.Err()
			}
		}
		embedding, err := s.embedder.Embed(ctx, ex.Text)
		if err != nil {
			s.logger.Warn("Failed to embed example, skipping",
				zap.Int("row", i+1), zap.String("text", ex.Text), zap.Error(err))
			continue
		}
		built = append(built, entry{example: ex, embedding: utils.Normalize(embedding)})
		if len(built)%10 == 0 {
			s.logger.Info("Embedding examples", zap.Int("done", len(built)), zap.Int("total", len(examples)))
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snapshot == nil {
		// nothing was loaded, so whatever sits at dir is absent or unreadable
		if err := discardSnapshot(s.dir); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrPersist, err)
		}
	}
	previous := s.entries
	s.entries = built
	if err := s.persistLocked(); err != nil {
		s.entries = previous
		return 0, err
	}
	s.available = true
	s.logger.Info("Example index built", zap.Int("examples", len(built)), zap.Int("skipped", len(examples)-len(built)))
	return len(built), nil
}
