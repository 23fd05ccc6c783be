package similarity

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"equilibrium/internal/vectorspace"
)

// ErrIndexOutOfRange is returned when a query names a row the index does not have.
var ErrIndexOutOfRange = errors.New("document row out of range")

// Index holds the L2-normalized document rows and their all-pairs cosine
// similarity matrix. It is immutable after Recompute and safe to share.
type Index struct {
	rows []vectorspace.Vector
	sims [][]float64
}

// Recompute normalizes every row of m and computes the symmetric cosine
// similarity matrix. The work is O(n²·k); ctx is checked once per row.
func Recompute(ctx context.Context, m *vectorspace.Matrix) (*Index, error) {
	if m == nil {
		return nil, errors.New("similarity: nil matrix")
	}
	n := len(m.Rows)
	rows := make([]vectorspace.Vector, n)
	for i, r := range m.Rows {
		for _, col := range r.Indices {
			if col < 0 || col >= m.Cols {
				return nil, fmt.Errorf("similarity: row %d references column %d outside [0, %d)", i, col, m.Cols)
			}
		}
		rows[i] = r.Normalized()
	}
	sims := make([][]float64, n)
	for i := range sims {
		sims[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !rows[i].IsZero() {
			sims[i][i] = 1.0
		}
		for j := i + 1; j < n; j++ {
			s := vectorspace.Dot(rows[i], rows[j])
			sims[i][j] = s
			sims[j][i] = s
		}
	}
	return &Index{rows: rows, sims: sims}, nil
}

// Restore rebuilds an index from a document-term matrix and a previously
// computed similarity matrix, checking that their shapes agree.
func Restore(m *vectorspace.Matrix, sims [][]float64) (*Index, error) {
	if m == nil {
		return nil, errors.New("similarity: nil matrix")
	}
	if len(sims) != len(m.Rows) {
		return nil, fmt.Errorf("similarity: %d similarity rows for %d documents", len(sims), len(m.Rows))
	}
	rows := make([]vectorspace.Vector, len(m.Rows))
	for i, r := range m.Rows {
		if len(sims[i]) != len(m.Rows) {
			return nil, fmt.Errorf("similarity: row %d has %d columns, want %d", i, len(sims[i]), len(m.Rows))
		}
		rows[i] = r.Normalized()
	}
	return &Index{rows: rows, sims: sims}, nil
}

// Size returns the number of documents indexed.
func (x *Index) Size() int { return len(x.sims) }

// Matrix returns the similarity matrix. Callers must not modify it.
func (x *Index) Matrix() [][]float64 { return x.sims }

// Similarity returns the cosine similarity of rows i and j.
func (x *Index) Similarity(i, j int) (float64, error) {
	if i < 0 || i >= len(x.sims) || j < 0 || j >= len(x.sims) {
		return 0, fmt.Errorf("%w: (%d, %d) with %d documents", ErrIndexOutOfRange, i, j, len(x.sims))
	}
	return x.sims[i][j], nil
}

// Recommend returns up to quantity rows most similar to row, excluding row
// itself, by descending similarity with ties broken by ascending row.
func (x *Index) Recommend(row, quantity int) ([]int, error) {
	n := len(x.sims)
	if row < 0 || row >= n {
		return nil, fmt.Errorf("%w: %d with %d documents", ErrIndexOutOfRange, row, n)
	}
	scores := x.sims[row]
	candidates := make([]int, 0, n-1)
	for j := 0; j < n; j++ {
		if j != row {
			candidates = append(candidates, j)
		}
	}
	return topK(candidates, scores, quantity), nil
}

// Search ranks every document against query by cosine similarity and
// returns up to quantity rows. When nothing matches, rows come back in
// corpus order.
func (x *Index) Search(query vectorspace.Vector, quantity int) []int {
	scores := x.Scores(query)
	candidates := make([]int, len(scores))
	for i := range candidates {
		candidates[i] = i
	}
	return topK(candidates, scores, quantity)
}

// Scores returns the cosine similarity of query against every row.
func (x *Index) Scores(query vectorspace.Vector) []float64 {
	q := query.Normalized()
	scores := make([]float64, len(x.rows))
	for i, r := range x.rows {
		scores[i] = vectorspace.Dot(q, r)
	}
	return scores
}

// topK orders candidates by descending score, ascending index on ties, and
// keeps the first k.
func topK(candidates []int, scores []float64, k int) []int {
	if k <= 0 {
		return []int{}
	}
	sort.SliceStable(candidates, func(a, b int) bool {
		sa, sb := scores[candidates[a]], scores[candidates[b]]
		if sa != sb {
			return sa > sb
		}
		return candidates[a] < candidates[b]
	})
	if k > len(candidates) {
		k = len(candidates)
	}
	return candidates[:k]
}
