package domain

import "context"

// Document is one article as seen by the recommendation model: its
// external id plus the text that gets vectorized.
type Document struct {
	ID    int
	Title string
	Body  string
}

// Text returns the title and body joined into the string that is vectorized.
func (d Document) Text() string {
	return d.Title + " " + d.Body
}

// Recommender serves content-based recommendations over a fitted corpus.
// Rows are positions in the corpus passed to the last Refit.
type Recommender interface {
	Refit(ctx context.Context, corpus []Document) error
	Recommend(row, quantity int) ([]int, error)
	Search(keywords []string, quantity int) ([]int, error)
}

// Summarizer produces a brief summary of the provided text.
type Summarizer interface {
	Summarize(text string, maxSentences int) (string, error)
}
