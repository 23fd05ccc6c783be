package vectorspace

import (
	"fmt"
	"sort"
	"strings"

	"equilibrium/internal/text"
)

// Vectorizer is a fitted term dictionary with IDF weights. It is immutable
// once returned by Fit or Restore and safe for concurrent use.
type Vectorizer struct {
	terms      []string
	idf        []float64
	vocabulary map[string]int
	ngramMax   int
	stopwords  map[string]struct{}
	stem       bool
	tokenizer  *text.Tokenizer
	fitted     bool
}

// Ready reports whether the vectorizer has been fitted.
func (v *Vectorizer) Ready() bool { return v != nil && v.fitted }

// Size returns the number of terms in the dictionary.
func (v *Vectorizer) Size() int {
	if v == nil {
		return 0
	}
	return len(v.terms)
}

// Term returns the term stored in column col.
func (v *Vectorizer) Term(col int) string { return v.terms[col] }

// Column returns the column of term, if it is in the dictionary.
func (v *Vectorizer) Column(term string) (int, bool) {
	col, ok := v.vocabulary[term]
	return col, ok
}

// IDF returns the inverse document frequency of column col.
func (v *Vectorizer) IDF(col int) float64 { return v.idf[col] }

// Transform maps keywords into the fitted vector space. Keywords are joined
// into one pseudo-document; terms outside the dictionary are ignored, so a
// query with no known term yields the zero vector.
func (v *Vectorizer) Transform(keywords []string) (Vector, error) {
	if !v.Ready() {
		return Vector{}, ErrNotReady
	}
	counts := make(map[string]int)
	for _, term := range text.NGrams(v.tokenizer.Tokens(strings.Join(keywords, " ")), v.ngramMax) {
		counts[term]++
	}
	return v.weigh(counts), nil
}

// weigh turns raw term counts into a sorted TF-IDF row.
func (v *Vectorizer) weigh(counts map[string]int) Vector {
	cols := make([]int, 0, len(counts))
	for term := range counts {
		if col, ok := v.vocabulary[term]; ok {
			cols = append(cols, col)
		}
	}
	sort.Ints(cols)
	row := Vector{Indices: cols, Values: make([]float64, len(cols))}
	for k, col := range cols {
		row.Values[k] = float64(counts[v.terms[col]]) * v.idf[col]
	}
	return row
}

// TopTerms returns up to n terms of row ordered by descending weight, ties
// by column.
func (v *Vectorizer) TopTerms(row Vector, n int) []string {
	order := make([]int, row.Len())
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool { return row.Values[order[i]] > row.Values[order[j]] })
	n = max(0, min(n, len(order)))
	out := make([]string, 0, n)
	for _, k := range order[:n] {
		out = append(out, v.terms[row.Indices[k]])
	}
	return out
}

// State is the serializable form of a fitted vectorizer.
type State struct {
	Terms     []string  `json:"terms"`
	IDF       []float64 `json:"idf"`
	NGramMax  int       `json:"ngram_max"`
	Stem      bool      `json:"stem"`
	Stopwords []string  `json:"stopwords"`
}

// State exports the fitted dictionary and tokenizer settings.
func (v *Vectorizer) State() (State, error) {
	if !v.Ready() {
		return State{}, ErrNotReady
	}
	return State{
		Terms:     append([]string(nil), v.terms...),
		IDF:       append([]float64(nil), v.idf...),
		NGramMax:  v.ngramMax,
		Stem:      v.stem,
		Stopwords: text.StopwordList(v.stopwords),
	}, nil
}

// Restore rebuilds a vectorizer from a previously exported State.
func Restore(st State) (*Vectorizer, error) {
	if len(st.Terms) != len(st.IDF) {
		return nil, fmt.Errorf("vectorizer state: %d terms but %d idf weights", len(st.Terms), len(st.IDF))
	}
	if st.NGramMax < 1 {
		return nil, fmt.Errorf("vectorizer state: invalid ngram_max %d", st.NGramMax)
	}
	stop := make(map[string]struct{}, len(st.Stopwords))
	for _, w := range st.Stopwords {
		stop[w] = struct{}{}
	}
	v := &Vectorizer{
		terms:      append([]string(nil), st.Terms...),
		idf:        append([]float64(nil), st.IDF...),
		vocabulary: make(map[string]int, len(st.Terms)),
		ngramMax:   st.NGramMax,
		stopwords:  stop,
		stem:       st.Stem,
		tokenizer:  text.NewTokenizer(stop, st.Stem),
		fitted:     true,
	}
	for col, term := range v.terms {
		if _, dup := v.vocabulary[term]; dup {
			return nil, fmt.Errorf("vectorizer state: duplicate term %q", term)
		}
		v.vocabulary[term] = col
	}
	return v, nil
}
