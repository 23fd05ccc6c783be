package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog"

	"equilibrium/internal/articles"
	"equilibrium/internal/domain"
	"equilibrium/internal/recommender"
)

// ErrStale is returned by queries issued after the corpus changed and before
// the model was refitted. It wraps recommender.ErrNotReady.
var ErrStale = fmt.Errorf("%w: corpus changed since last fit", recommender.ErrNotReady)

// Model is the recommendation model as used by the platform.
type Model interface {
	domain.Recommender
	Open(ctx context.Context, corpus []domain.Document) error
	TopTerms(row, n int) ([]string, error)
	Degenerate() bool
	Info() (recommender.Info, error)
}

// Teaser shortens an article body for list views.
type Teaser interface {
	Teaser(body string, width int) string
}

// Platform ties the article store, the reader session and the
// recommendation model together and translates between article ids and
// model rows.
type Platform struct {
	store  *articles.Store
	model  Model
	teaser Teaser
	reader *articles.Reader
	log    zerolog.Logger

	stale atomic.Bool
}

// NewPlatform wires the platform components. reader carries the
// interactions of earlier sessions; see articles.OpenReader.
func NewPlatform(store *articles.Store, reader *articles.Reader, model Model, teaser Teaser, log zerolog.Logger) *Platform {
	return &Platform{
		store:  store,
		model:  model,
		teaser: teaser,
		reader: reader,
		log:    log.With().Str("component", "platform").Logger(),
	}
}

// Start loads or fits the model for the current corpus. A failed snapshot
// save is logged and tolerated; the model is still usable.
func (p *Platform) Start(ctx context.Context) error {
	err := p.model.Open(ctx, p.store.Corpus())
	if err != nil && errors.Is(err, recommender.ErrPersistence) {
		p.log.Warn().Err(err).Msg("model running without a saved snapshot")
		return nil
	}
	return err
}

// Refit rebuilds the model from the current corpus. The stale mark is
// cleared once the in-memory model matches the corpus, even if saving the
// snapshot failed.
func (p *Platform) Refit(ctx context.Context) error {
	err := p.model.Refit(ctx, p.store.Corpus())
	if err == nil || errors.Is(err, recommender.ErrPersistence) {
		p.stale.Store(false)
	}
	return err
}

// Stale reports whether the corpus changed since the last successful refit.
func (p *Platform) Stale() bool { return p.stale.Load() }

// Articles returns every article in corpus order.
func (p *Platform) Articles() []articles.Article { return p.store.All() }

// Article returns one article.
func (p *Platform) Article(id int) (articles.Article, error) { return p.store.Get(id) }

// Read returns an article and counts the view.
func (p *Platform) Read(id int) (articles.Article, error) {
	if err := p.store.View(id); err != nil {
		return articles.Article{}, err
	}
	return p.store.Get(id)
}

// Teaser returns a one-line summary of a.
func (p *Platform) Teaser(a articles.Article, width int) string {
	return p.teaser.Teaser(a.Body, width)
}

// Publish adds a new article. The model is stale until Refit runs.
func (p *Platform) Publish(d articles.Draft) (articles.Article, error) {
	a, err := p.store.Add(d)
	if err != nil {
		return articles.Article{}, err
	}
	p.stale.Store(true)
	return a, nil
}

// Delete removes an article and forgets the reader's interactions with it.
// The model is stale until Refit runs.
func (p *Platform) Delete(id int) error {
	if err := p.store.Remove(id); err != nil {
		return err
	}
	p.stale.Store(true)
	if err := p.reader.Forget(id); err != nil {
		p.log.Warn().Err(err).Int("article", id).Msg("failed to forget reader interactions")
	}
	return nil
}

// Recommend returns up to quantity articles similar to article id.
func (p *Platform) Recommend(id, quantity int) ([]articles.Article, error) {
	if p.Stale() {
		return nil, ErrStale
	}
	row, ok := p.store.RowOf(id)
	if !ok {
		return nil, fmt.Errorf("%w: %d", articles.ErrNotFound, id)
	}
	rows, err := p.model.Recommend(row, quantity)
	if err != nil {
		return nil, err
	}
	return p.resolve(rows)
}

// Search returns up to quantity articles matching the whitespace separated
// keywords in query.
func (p *Platform) Search(query string, quantity int) ([]articles.Article, error) {
	if p.Stale() {
		return nil, ErrStale
	}
	keywords := Keywords(query)
	if len(keywords) == 0 {
		return []articles.Article{}, nil
	}
	rows, err := p.model.Search(keywords, quantity)
	if err != nil {
		return nil, err
	}
	return p.resolve(rows)
}

// TopTerms returns the n most characteristic terms of article id.
func (p *Platform) TopTerms(id, n int) ([]string, error) {
	if p.Stale() {
		return nil, ErrStale
	}
	row, ok := p.store.RowOf(id)
	if !ok {
		return nil, fmt.Errorf("%w: %d", articles.ErrNotFound, id)
	}
	return p.model.TopTerms(row, n)
}

func (p *Platform) resolve(rows []int) ([]articles.Article, error) {
	out := make([]articles.Article, 0, len(rows))
	for _, row := range rows {
		id, ok := p.store.IDAt(row)
		if !ok {
			return nil, fmt.Errorf("%w: row %d", recommender.ErrIndexOutOfRange, row)
		}
		a, err := p.store.Get(id)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// Unavailable reports whether recommendations cannot currently be served,
// either because no model is loaded, the corpus changed, or the model is
// degenerate.
func (p *Platform) Unavailable() bool {
	if p.Stale() || p.model.Degenerate() {
		return true
	}
	_, err := p.model.Info()
	return err != nil
}

// Like records a like from the reader.
func (p *Platform) Like(id int) (bool, error) { return p.store.Like(id, p.reader) }

// Dislike records a dislike from the reader.
func (p *Platform) Dislike(id int) (bool, error) { return p.store.Dislike(id, p.reader) }

// Save bookmarks an article for the reader.
func (p *Platform) Save(id int) (bool, error) {
	if _, err := p.store.Get(id); err != nil {
		return false, err
	}
	return p.reader.Save(id)
}

// Unsave drops a bookmark.
func (p *Platform) Unsave(id int) (bool, error) { return p.reader.Unsave(id) }

// Reader exposes the reader's interaction state.
func (p *Platform) Reader() *articles.Reader { return p.reader }

// Saved returns the reader's bookmarked articles in save order.
func (p *Platform) Saved() []articles.Article {
	ids := p.reader.Saved()
	out := make([]articles.Article, 0, len(ids))
	for _, id := range ids {
		if a, err := p.store.Get(id); err == nil {
			out = append(out, a)
		}
	}
	return out
}

// Stats returns platform totals.
func (p *Platform) Stats() articles.Stats { return p.store.Stats() }

// TopTags returns the n most used tags.
func (p *Platform) TopTags(n int) []articles.TagCount { return p.store.TopTags(n) }

// ModelInfo describes the loaded model.
func (p *Platform) ModelInfo() (recommender.Info, error) { return p.model.Info() }

// Keywords lower-cases and splits a search query.
func Keywords(query string) []string {
	return strings.Fields(strings.ToLower(query))
}
