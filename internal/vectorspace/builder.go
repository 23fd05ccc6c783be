package vectorspace

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"

	"equilibrium/internal/domain"
	"equilibrium/internal/text"
)

// ErrNotReady is returned when a vectorizer is used before it was fitted.
var ErrNotReady = errors.New("vectorizer not fitted")

// Config controls tokenization and term selection.
type Config struct {
	// MaxFeatures caps the term dictionary size.
	MaxFeatures int
	// MinDF and MaxDF are document-frequency fractions in [0, 1]. A term is
	// eligible when MinDF*N <= df <= MaxDF*N.
	MinDF float64
	MaxDF float64
	// NGramMax is the longest n-gram extracted (1 = unigrams only).
	NGramMax int
	// Stem reduces tokens to their English Snowball stem.
	Stem bool
	// Stopwords are removed before n-grams are formed.
	Stopwords map[string]struct{}
}

// DefaultConfig mirrors the settings the article corpus was tuned on.
func DefaultConfig() Config {
	return Config{
		MaxFeatures: 1000,
		MinDF:       0.003,
		MaxDF:       0.5,
		NGramMax:    2,
		Stopwords:   text.EnglishStopwords(),
	}
}

// Builder fits vectorizers over a corpus. It holds no fitted state, so one
// Builder can produce any number of independent fits.
type Builder struct {
	cfg       Config
	tokenizer *text.Tokenizer
}

// NewBuilder creates a builder, filling unset limits with defaults.
func NewBuilder(cfg Config) *Builder {
	def := DefaultConfig()
	if cfg.MaxFeatures <= 0 {
		cfg.MaxFeatures = def.MaxFeatures
	}
	if cfg.NGramMax <= 0 {
		cfg.NGramMax = def.NGramMax
	}
	if cfg.MaxDF <= 0 {
		cfg.MaxDF = def.MaxDF
	}
	if cfg.MinDF < 0 {
		cfg.MinDF = 0
	}
	if cfg.Stopwords == nil {
		cfg.Stopwords = def.Stopwords
	}
	return &Builder{cfg: cfg, tokenizer: text.NewTokenizer(cfg.Stopwords, cfg.Stem)}
}

// Config returns the effective configuration.
func (b *Builder) Config() Config { return b.cfg }

type termStat struct {
	term  string
	grams int
	first int
	df    int
	count int
	idf   float64
	mass  float64
}

// Fit tokenizes the corpus, selects the term dictionary and returns the
// fitted vectorizer together with the TF-IDF document-term matrix. An empty
// corpus or vocabulary is not an error; the matrix then has zero columns.
func (b *Builder) Fit(ctx context.Context, corpus []domain.Document) (*Vectorizer, *Matrix, error) {
	stats := make(map[string]*termStat)
	docCounts := make([]map[string]int, len(corpus))
	for d, doc := range corpus {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		terms := b.terms(doc.Text())
		counts := make(map[string]int, len(terms))
		// register in emission order so first-encounter ranks are deterministic
		for _, term := range terms {
			counts[term]++
			if _, ok := stats[term]; !ok {
				stats[term] = &termStat{term: term, grams: strings.Count(term, " ") + 1, first: len(stats)}
			}
		}
		for term, c := range counts {
			st := stats[term]
			st.df++
			st.count += c
		}
		docCounts[d] = counts
	}

	n := float64(len(corpus))
	minCount := b.cfg.MinDF * n
	maxCount := b.cfg.MaxDF * n
	eligible := make([]*termStat, 0, len(stats))
	for _, st := range stats {
		df := float64(st.df)
		if df < minCount || df > maxCount {
			continue
		}
		st.idf = math.Log((1+n)/(1+df)) + 1
		st.mass = float64(st.count) * st.idf
		eligible = append(eligible, st)
	}
	sort.Slice(eligible, func(i, j int) bool {
		a, c := eligible[i], eligible[j]
		if a.mass != c.mass {
			return a.mass > c.mass
		}
		if a.grams != c.grams {
			return a.grams < c.grams
		}
		return a.first < c.first
	})
	if len(eligible) > b.cfg.MaxFeatures {
		eligible = eligible[:b.cfg.MaxFeatures]
	}
	sort.Slice(eligible, func(i, j int) bool { return eligible[i].term < eligible[j].term })

	v := &Vectorizer{
		terms:      make([]string, len(eligible)),
		idf:        make([]float64, len(eligible)),
		vocabulary: make(map[string]int, len(eligible)),
		ngramMax:   b.cfg.NGramMax,
		stopwords:  b.cfg.Stopwords,
		stem:       b.cfg.Stem,
		tokenizer:  b.tokenizer,
		fitted:     true,
	}
	for col, st := range eligible {
		v.terms[col] = st.term
		v.idf[col] = st.idf
		v.vocabulary[st.term] = col
	}

	m := &Matrix{Rows: make([]Vector, len(corpus)), Cols: len(v.terms)}
	for d, counts := range docCounts {
		m.Rows[d] = v.weigh(counts)
	}
	return v, m, nil
}

func (b *Builder) terms(s string) []string {
	return text.NGrams(b.tokenizer.Tokens(s), b.cfg.NGramMax)
}
