package vectorspace

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"

	"equilibrium/internal/domain"
)

func petsCorpus() []domain.Document {
	return []domain.Document{
		{ID: 0, Title: "Cats", Body: "cats are great pets"},
		{ID: 1, Title: "Dogs", Body: "dogs are loyal pets"},
		{ID: 2, Title: "Cars", Body: "cars need fuel"},
	}
}

func scenarioConfig() Config {
	cfg := DefaultConfig()
	cfg.MaxFeatures = 10
	cfg.MinDF = 0
	cfg.MaxDF = 1.0
	return cfg
}

func TestFitSelectsTerms(t *testing.T) {
	v, m, err := NewBuilder(scenarioConfig()).Fit(context.Background(), petsCorpus())
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if v.Size() != 10 {
		t.Fatalf("Size = %d, want 10", v.Size())
	}
	for _, term := range []string{"cats", "dogs", "cars", "pets", "fuel", "need", "great", "loyal"} {
		if _, ok := v.Column(term); !ok {
			t.Errorf("term %q missing from dictionary", term)
		}
	}
	if _, ok := v.Column("are"); ok {
		t.Error("stopword \"are\" should not be a term")
	}
	for col := 1; col < v.Size(); col++ {
		if v.Term(col-1) >= v.Term(col) {
			t.Errorf("columns not in lexical order: %q before %q", v.Term(col-1), v.Term(col))
		}
	}
	rows, cols := m.Dims()
	if rows != 3 || cols != 10 {
		t.Errorf("Dims = (%d, %d), want (3, 10)", rows, cols)
	}
}

func TestFitWeights(t *testing.T) {
	v, m, err := NewBuilder(scenarioConfig()).Fit(context.Background(), petsCorpus())
	if err != nil {
		t.Fatal(err)
	}
	col, _ := v.Column("cats")
	wantIDF := math.Log(4.0/2.0) + 1
	if math.Abs(v.IDF(col)-wantIDF) > 1e-12 {
		t.Errorf("IDF(cats) = %f, want %f", v.IDF(col), wantIDF)
	}
	// "cats" occurs in both title and body of the first document
	got := m.Rows[0].Dense(m.Cols)[col]
	if math.Abs(got-2*wantIDF) > 1e-12 {
		t.Errorf("weight(cats, 0) = %f, want %f", got, 2*wantIDF)
	}
	pets, _ := v.Column("pets")
	if w := m.Rows[2].Dense(m.Cols)[pets]; w != 0 {
		t.Errorf("weight(pets, 2) = %f, want 0", w)
	}
}

func TestFitDocumentFrequencyBounds(t *testing.T) {
	cfg := scenarioConfig()
	cfg.MaxDF = 0.5
	v, _, err := NewBuilder(cfg).Fit(context.Background(), petsCorpus())
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := v.Column("pets"); ok {
		t.Error("pets appears in 2/3 documents and should exceed max_df 0.5")
	}

	cfg = scenarioConfig()
	cfg.MinDF = 0.6
	v, _, err = NewBuilder(cfg).Fit(context.Background(), petsCorpus())
	if err != nil {
		t.Fatal(err)
	}
	if v.Size() != 1 {
		t.Errorf("Size = %d, want 1 (only pets clears min_df 0.6)", v.Size())
	}
}

func TestFitDeterministic(t *testing.T) {
	b := NewBuilder(DefaultConfig())
	v1, m1, err := b.Fit(context.Background(), petsCorpus())
	if err != nil {
		t.Fatal(err)
	}
	v2, m2, err := b.Fit(context.Background(), petsCorpus())
	if err != nil {
		t.Fatal(err)
	}
	s1, _ := v1.State()
	s2, _ := v2.State()
	if !reflect.DeepEqual(s1, s2) {
		t.Error("vectorizer state differs between fits")
	}
	if !reflect.DeepEqual(m1, m2) {
		t.Error("matrix differs between fits")
	}
}

func TestFitEmptyCorpus(t *testing.T) {
	v, m, err := NewBuilder(DefaultConfig()).Fit(context.Background(), nil)
	if err != nil {
		t.Fatalf("Fit(nil) error = %v, want nil", err)
	}
	if !v.Ready() || v.Size() != 0 {
		t.Errorf("Ready = %v, Size = %d; want fitted empty vectorizer", v.Ready(), v.Size())
	}
	if rows, cols := m.Dims(); rows != 0 || cols != 0 {
		t.Errorf("Dims = (%d, %d), want (0, 0)", rows, cols)
	}
}

func TestFitCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := NewBuilder(DefaultConfig()).Fit(ctx, petsCorpus()); !errors.Is(err, context.Canceled) {
		t.Errorf("Fit error = %v, want context.Canceled", err)
	}
}

func TestTransform(t *testing.T) {
	v, _, err := NewBuilder(scenarioConfig()).Fit(context.Background(), petsCorpus())
	if err != nil {
		t.Fatal(err)
	}
	q, err := v.Transform([]string{"fuel"})
	if err != nil {
		t.Fatal(err)
	}
	col, _ := v.Column("fuel")
	if q.Len() != 1 || q.Indices[0] != col {
		t.Errorf("Transform(fuel) = %+v, want single entry at column %d", q, col)
	}

	q, err = v.Transform([]string{"submarine", "rocket"})
	if err != nil {
		t.Fatal(err)
	}
	if !q.IsZero() {
		t.Errorf("Transform(unknown) = %+v, want zero vector", q)
	}
}

func TestTransformNotReady(t *testing.T) {
	var v *Vectorizer
	if _, err := v.Transform([]string{"x"}); !errors.Is(err, ErrNotReady) {
		t.Errorf("error = %v, want ErrNotReady", err)
	}
	if _, err := (&Vectorizer{}).Transform(nil); !errors.Is(err, ErrNotReady) {
		t.Errorf("error = %v, want ErrNotReady", err)
	}
}

func TestStateRoundTrip(t *testing.T) {
	cfg := scenarioConfig()
	cfg.Stem = true
	v, _, err := NewBuilder(cfg).Fit(context.Background(), petsCorpus())
	if err != nil {
		t.Fatal(err)
	}
	st, err := v.State()
	if err != nil {
		t.Fatal(err)
	}
	r, err := Restore(st)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	for _, kw := range [][]string{{"cat"}, {"loyal dogs"}, {"fuel"}} {
		a, _ := v.Transform(kw)
		b, _ := r.Transform(kw)
		if !reflect.DeepEqual(a, b) {
			t.Errorf("Transform(%v) differs after restore: %+v vs %+v", kw, a, b)
		}
	}
}

func TestRestoreRejectsBadState(t *testing.T) {
	tests := []struct {
		name string
		st   State
	}{
		{"length mismatch", State{Terms: []string{"a"}, IDF: nil, NGramMax: 1}},
		{"bad ngram", State{NGramMax: 0}},
		{"duplicate term", State{Terms: []string{"a", "a"}, IDF: []float64{1, 1}, NGramMax: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Restore(tt.st); err == nil {
				t.Error("Restore succeeded, want error")
			}
		})
	}
}

func TestTopTerms(t *testing.T) {
	v, m, err := NewBuilder(scenarioConfig()).Fit(context.Background(), petsCorpus())
	if err != nil {
		t.Fatal(err)
	}
	got := v.TopTerms(m.Rows[2], 1)
	if len(got) != 1 || got[0] != "cars" {
		t.Errorf("TopTerms = %v, want [cars]", got)
	}
	for _, n := range []int{0, -3} {
		if got := v.TopTerms(m.Rows[2], n); len(got) != 0 {
			t.Errorf("TopTerms(n=%d) = %v, want none", n, got)
		}
	}
	if got := v.TopTerms(m.Rows[2], 100); len(got) != m.Rows[2].Len() {
		t.Errorf("TopTerms(n=100) = %d terms, want %d", len(got), m.Rows[2].Len())
	}
}

func TestVectorMath(t *testing.T) {
	a := Vector{Indices: []int{0, 2}, Values: []float64{3, 4}}
	b := Vector{Indices: []int{2, 5}, Values: []float64{1, 7}}
	if got := Dot(a, b); got != 4 {
		t.Errorf("Dot = %f, want 4", got)
	}
	if got := a.Norm(); got != 5 {
		t.Errorf("Norm = %f, want 5", got)
	}
	n := a.Normalized()
	if math.Abs(n.Norm()-1) > 1e-12 {
		t.Errorf("Normalized norm = %f, want 1", n.Norm())
	}
	if a.Values[0] != 3 {
		t.Error("Normalized mutated its receiver")
	}
	if got := Cosine(a, Vector{}); got != 0 {
		t.Errorf("Cosine with zero = %f, want 0", got)
	}
}
