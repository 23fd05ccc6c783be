package recommender

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"equilibrium/internal/domain"
	"equilibrium/internal/similarity"
	"equilibrium/internal/snapshot"
	"equilibrium/internal/vectorspace"
)

var (
	// ErrNotReady means no fit or snapshot load has succeeded yet.
	ErrNotReady = errors.New("recommendation model not ready")
	// ErrIndexOutOfRange means a row outside the fitted corpus was requested.
	ErrIndexOutOfRange = similarity.ErrIndexOutOfRange
	// ErrPersistence wraps snapshot read and write failures.
	ErrPersistence = errors.New("model snapshot persistence failed")
)

var _ domain.Recommender = (*Model)(nil)

// state is one mutually consistent Builder+Index pair.
type state struct {
	generation string
	fittedAt   time.Time
	ids        []int
	vectorizer *vectorspace.Vectorizer
	matrix     *vectorspace.Matrix
	index      *similarity.Index
}

func (s *state) degenerate() bool {
	return s.index.Size() <= 1 || s.vectorizer.Size() == 0
}

// Model owns the fitted vector space and similarity index and serves
// recommend and search queries against them. Queries may run concurrently;
// Refit swaps in a new state only once it is fully built.
type Model struct {
	builder *vectorspace.Builder
	store   *snapshot.Store
	log     zerolog.Logger

	mu  sync.RWMutex
	cur *state
}

// New creates an unfitted model. store may be nil to disable persistence.
func New(builder *vectorspace.Builder, store *snapshot.Store, log zerolog.Logger) *Model {
	return &Model{builder: builder, store: store, log: log.With().Str("component", "recommender").Logger()}
}

// Open brings the model up for corpus: it loads the snapshot and falls back
// to a full refit when the snapshot is missing, unreadable, or was fitted
// on a different corpus.
func (m *Model) Open(ctx context.Context, corpus []domain.Document) error {
	err := m.Load()
	switch {
	case err == nil && m.matches(corpus):
		return nil
	case err == nil:
		m.log.Info().Int("documents", len(corpus)).Msg("snapshot is stale, refitting")
	case errors.Is(err, snapshot.ErrNotFound):
		m.log.Info().Msg("no snapshot, running initial fit")
	default:
		m.log.Warn().Err(err).Msg("snapshot unusable, refitting")
	}
	return m.Refit(ctx, corpus)
}

func (m *Model) matches(corpus []domain.Document) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.cur == nil || len(m.cur.ids) != len(corpus) {
		return false
	}
	for i, doc := range corpus {
		if m.cur.ids[i] != doc.ID {
			return false
		}
	}
	return true
}

// Load replaces the in-memory model with the persisted snapshot. On failure
// the current state is left untouched and the error wraps ErrPersistence.
func (m *Model) Load() error {
	if m.store == nil {
		return fmt.Errorf("%w: %w", ErrPersistence, snapshot.ErrNotFound)
	}
	snap, err := m.store.Load()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	vec, err := vectorspace.Restore(snap.Vectorizer)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	if snap.Matrix.Cols != vec.Size() {
		return fmt.Errorf("%w: matrix has %d columns for %d terms", ErrPersistence, snap.Matrix.Cols, vec.Size())
	}
	idx, err := similarity.Restore(snap.Matrix, snap.Similarities)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	m.swap(&state{
		generation: snap.Generation,
		fittedAt:   snap.CreatedAt,
		ids:        snap.IDs,
		vectorizer: vec,
		matrix:     snap.Matrix,
		index:      idx,
	})
	m.log.Info().
		Str("generation", snap.Generation).
		Int("documents", idx.Size()).
		Int("terms", vec.Size()).
		Msg("snapshot loaded")
	return nil
}

// Refit rebuilds the vector space and similarity index from corpus, swaps
// them in together and persists the snapshot. If fitting fails nothing is
// swapped. If only persistence fails, the new model stays live and the
// returned error wraps ErrPersistence.
func (m *Model) Refit(ctx context.Context, corpus []domain.Document) error {
	start := time.Now()
	vec, matrix, err := m.builder.Fit(ctx, corpus)
	if err != nil {
		return fmt.Errorf("fit: %w", err)
	}
	idx, err := similarity.Recompute(ctx, matrix)
	if err != nil {
		return fmt.Errorf("recompute similarities: %w", err)
	}
	ids := make([]int, len(corpus))
	for i, doc := range corpus {
		ids[i] = doc.ID
	}
	next := &state{
		generation: uuid.NewString(),
		fittedAt:   time.Now().UTC(),
		ids:        ids,
		vectorizer: vec,
		matrix:     matrix,
		index:      idx,
	}
	m.swap(next)

	ev := m.log.Info()
	if next.degenerate() {
		ev = m.log.Warn().Bool("degenerate", true)
	}
	ev.Str("generation", next.generation).
		Int("documents", len(corpus)).
		Int("terms", vec.Size()).
		Dur("took", time.Since(start)).
		Msg("model refitted")

	if err := m.persist(next); err != nil {
		m.log.Error().Err(err).Str("generation", next.generation).Msg("snapshot save failed")
		return err
	}
	return nil
}

func (m *Model) persist(s *state) error {
	if m.store == nil {
		return nil
	}
	st, err := s.vectorizer.State()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	snap := &snapshot.Snapshot{
		Generation:   s.generation,
		CreatedAt:    s.fittedAt,
		IDs:          s.ids,
		Vectorizer:   st,
		Matrix:       s.matrix,
		Similarities: s.index.Matrix(),
	}
	if err := m.store.Save(snap); err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return nil
}

func (m *Model) swap(s *state) {
	m.mu.Lock()
	m.cur = s
	m.mu.Unlock()
}

func (m *Model) current() (*state, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.cur == nil {
		return nil, ErrNotReady
	}
	return m.cur, nil
}

// Recommend returns up to quantity rows most similar to row. A degenerate
// model answers valid rows with no rows; rows outside the corpus are
// rejected either way.
func (m *Model) Recommend(row, quantity int) ([]int, error) {
	s, err := m.current()
	if err != nil {
		return nil, err
	}
	if n := s.index.Size(); n > 0 && (row < 0 || row >= n) {
		return nil, fmt.Errorf("%w: %d with %d documents", ErrIndexOutOfRange, row, n)
	}
	if s.degenerate() {
		return []int{}, nil
	}
	return s.index.Recommend(row, quantity)
}

// Search ranks rows against keywords and returns up to quantity of them.
// A degenerate model answers with no rows.
func (m *Model) Search(keywords []string, quantity int) ([]int, error) {
	s, err := m.current()
	if err != nil {
		return nil, err
	}
	if s.degenerate() {
		return []int{}, nil
	}
	q, err := s.vectorizer.Transform(keywords)
	if err != nil {
		return nil, err
	}
	return s.index.Search(q, quantity), nil
}

// TopTerms returns the n highest weighted terms of row.
func (m *Model) TopTerms(row, n int) ([]string, error) {
	s, err := m.current()
	if err != nil {
		return nil, err
	}
	if row < 0 || row >= len(s.matrix.Rows) {
		return nil, fmt.Errorf("%w: %d with %d documents", ErrIndexOutOfRange, row, len(s.matrix.Rows))
	}
	return s.vectorizer.TopTerms(s.matrix.Rows[row], n), nil
}

// Similarity returns the cosine similarity of rows i and j.
func (m *Model) Similarity(i, j int) (float64, error) {
	s, err := m.current()
	if err != nil {
		return 0, err
	}
	return s.index.Similarity(i, j)
}

// Ready reports whether a fitted model is loaded.
func (m *Model) Ready() bool {
	_, err := m.current()
	return err == nil
}

// Degenerate reports whether the model is too small to give meaningful
// answers (at most one document or an empty vocabulary).
func (m *Model) Degenerate() bool {
	s, err := m.current()
	return err == nil && s.degenerate()
}

// Info describes the currently loaded model.
type Info struct {
	Generation string
	FittedAt   time.Time
	Documents  int
	Terms      int
}

// Info returns a description of the loaded model.
func (m *Model) Info() (Info, error) {
	s, err := m.current()
	if err != nil {
		return Info{}, err
	}
	return Info{
		Generation: s.generation,
		FittedAt:   s.fittedAt,
		Documents:  s.index.Size(),
		Terms:      s.vectorizer.Size(),
	}, nil
}
