package vectorspace

import "math"

// Vector is a sparse row of the document-term matrix. Indices are strictly
// increasing column numbers; Values holds the weight for each index.
type Vector struct {
	Indices []int     `json:"i"`
	Values  []float64 `json:"v"`
}

// Len returns the number of stored (nonzero) entries.
func (v Vector) Len() int { return len(v.Indices) }

// IsZero reports whether the vector has no nonzero weight.
func (v Vector) IsZero() bool {
	for _, x := range v.Values {
		if x != 0 {
			return false
		}
	}
	return true
}

// Norm returns the L2 norm of v.
func (v Vector) Norm() float64 {
	sum := 0.0
	for _, x := range v.Values {
		sum += x * x
	}
	return math.Sqrt(sum)
}

// Normalized returns an L2-normalized copy of v. The zero vector is
// returned unchanged.
func (v Vector) Normalized() Vector {
	out := Vector{
		Indices: append([]int(nil), v.Indices...),
		Values:  append([]float64(nil), v.Values...),
	}
	norm := v.Norm()
	if norm == 0 {
		return out
	}
	for i := range out.Values {
		out.Values[i] /= norm
	}
	return out
}

// Dot returns the inner product of two sparse vectors.
func Dot(a, b Vector) float64 {
	sum := 0.0
	i, j := 0, 0
	for i < len(a.Indices) && j < len(b.Indices) {
		switch {
		case a.Indices[i] == b.Indices[j]:
			sum += a.Values[i] * b.Values[j]
			i++
			j++
		case a.Indices[i] < b.Indices[j]:
			i++
		default:
			j++
		}
	}
	return sum
}

// Cosine returns the cosine similarity of a and b, or 0 when either is zero.
func Cosine(a, b Vector) float64 {
	na, nb := a.Norm(), b.Norm()
	if na == 0 || nb == 0 {
		return 0
	}
	return Dot(a, b) / (na * nb)
}

// Dense expands v into a slice of the given width.
func (v Vector) Dense(width int) []float64 {
	out := make([]float64, width)
	for k, idx := range v.Indices {
		if idx < width {
			out[idx] = v.Values[k]
		}
	}
	return out
}

// Matrix is a sparse document-term matrix: one Vector per document, in
// corpus order, over Cols columns.
type Matrix struct {
	Rows []Vector `json:"rows"`
	Cols int      `json:"cols"`
}

// Dims returns the number of rows and columns.
func (m *Matrix) Dims() (rows, cols int) {
	if m == nil {
		return 0, 0
	}
	return len(m.Rows), m.Cols
}
