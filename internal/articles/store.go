package articles

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"equilibrium/internal/domain"
)

// ErrNotFound is returned when an article id is unknown.
var ErrNotFound = errors.New("article not found")

// Store keeps articles in memory in row order and persists them as a
// metadata CSV plus one content file per article.
type Store struct {
	metadataPath string
	contentDir   string
	log          zerolog.Logger

	mu       sync.RWMutex
	articles []*Article
}

// Open loads the store from metadataPath and contentDir. A missing metadata
// file yields an empty store.
func Open(metadataPath, contentDir string, log zerolog.Logger) (*Store, error) {
	s := &Store{
		metadataPath: metadataPath,
		contentDir:   contentDir,
		log:          log.With().Str("component", "articles").Logger(),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	f, err := os.Open(s.metadataPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.log.Info().Str("path", s.metadataPath).Msg("no article metadata, starting empty")
			return nil
		}
		return err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("read metadata header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(strings.ToLower(name))] = i
	}
	seen := make(map[int]struct{})
	for line := 2; ; line++ {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("read metadata: %w", err)
		}
		a, err := parseRecord(cols, record)
		if err != nil {
			return fmt.Errorf("%s line %d: %w", s.metadataPath, line, err)
		}
		if _, dup := seen[a.ID]; dup {
			return fmt.Errorf("%s line %d: duplicate article id %d", s.metadataPath, line, a.ID)
		}
		seen[a.ID] = struct{}{}
		body, err := os.ReadFile(s.contentPath(a.ID))
		if err != nil {
			s.log.Warn().Err(err).Int("article_id", a.ID).Msg("article content missing")
		}
		a.Body = string(body)
		s.articles = append(s.articles, &a)
	}
	s.log.Info().Int("articles", len(s.articles)).Msg("articles loaded")
	return nil
}

func (s *Store) contentPath(id int) string {
	return filepath.Join(s.contentDir, fmt.Sprintf("article_%d.txt", id))
}

// Len returns the number of articles.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.articles)
}

// All returns a copy of every article in row order.
func (s *Store) All() []Article {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Article, len(s.articles))
	for i, a := range s.articles {
		out[i] = *a
	}
	return out
}

// Get returns the article with the given id.
func (s *Store) Get(id int) (Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, _ := s.find(id)
	if a == nil {
		return Article{}, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return *a, nil
}

func (s *Store) find(id int) (*Article, int) {
	for i, a := range s.articles {
		if a.ID == id {
			return a, i
		}
	}
	return nil, -1
}

// Corpus returns the documents fed to the recommendation model, in row order.
func (s *Store) Corpus() []domain.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Document, len(s.articles))
	for i, a := range s.articles {
		out[i] = domain.Document{ID: a.ID, Title: a.Title, Body: a.Body}
	}
	return out
}

// RowOf returns the row of article id.
func (s *Store) RowOf(id int) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, row := s.find(id)
	return row, row >= 0
}

// IDAt returns the id of the article in row.
func (s *Store) IDAt(row int) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if row < 0 || row >= len(s.articles) {
		return 0, false
	}
	return s.articles[row].ID, true
}

// Add publishes a draft under the next free id and persists it.
func (s *Store) Add(d Draft) (Article, error) {
	if err := d.Validate(); err != nil {
		return Article{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id := 0
	for _, a := range s.articles {
		if a.ID >= id {
			id = a.ID + 1
		}
	}
	a := &Article{
		ID:          id,
		AuthorID:    d.AuthorID,
		Title:       strings.TrimSpace(d.Title),
		Tags:        d.Tags,
		ReadingTime: ReadingTimeFor(d.Body),
		Formatted:   true,
		Body:        d.Body,
	}
	if err := os.MkdirAll(s.contentDir, 0o755); err != nil {
		return Article{}, err
	}
	if err := writeFileAtomic(s.contentPath(id), []byte(d.Body)); err != nil {
		return Article{}, fmt.Errorf("write content of article %d: %w", id, err)
	}
	s.articles = append(s.articles, a)
	if err := s.writeMetadata(); err != nil {
		s.articles = s.articles[:len(s.articles)-1]
		_ = os.Remove(s.contentPath(id))
		return Article{}, err
	}
	s.log.Info().Int("article_id", id).Str("title", a.Title).Msg("article added")
	return *a, nil
}

// Remove deletes the article and its content file.
func (s *Store) Remove(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, row := s.find(id)
	if a == nil {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	prev := s.articles
	s.articles = append(s.articles[:row:row], s.articles[row+1:]...)
	if err := s.writeMetadata(); err != nil {
		s.articles = prev
		return err
	}
	if err := os.Remove(s.contentPath(id)); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.log.Warn().Err(err).Int("article_id", id).Msg("could not delete article content")
	}
	s.log.Info().Int("article_id", id).Msg("article removed")
	return nil
}

// update applies fn to article id and persists the metadata when fn
// reports a change.
func (s *Store) update(id int, fn func(a *Article) bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, _ := s.find(id)
	if a == nil {
		return false, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	prev := *a
	if !fn(a) {
		return false, nil
	}
	if err := s.writeMetadata(); err != nil {
		*a = prev
		return false, err
	}
	return true, nil
}

// View counts one read of article id.
func (s *Store) View(id int) error {
	_, err := s.update(id, func(a *Article) bool {
		a.Views++
		return true
	})
	return err
}

// Like records r liking article id, withdrawing an earlier dislike. It
// reports false when r already liked it. An error saving r leaves the
// article counters updated.
func (s *Store) Like(id int, r *Reader) (bool, error) {
	if r.Liked(id) {
		return false, nil
	}
	wasDisliked := r.Disliked(id)
	changed, err := s.update(id, func(a *Article) bool {
		if wasDisliked {
			a.Dislikes--
		}
		a.Likes++
		return true
	})
	if err != nil || !changed {
		return changed, err
	}
	return true, r.like(id)
}

// Dislike records r disliking article id, withdrawing an earlier like. It
// reports false when r already disliked it.
func (s *Store) Dislike(id int, r *Reader) (bool, error) {
	if r.Disliked(id) {
		return false, nil
	}
	wasLiked := r.Liked(id)
	changed, err := s.update(id, func(a *Article) bool {
		if wasLiked {
			a.Likes--
		}
		a.Dislikes++
		return true
	})
	if err != nil || !changed {
		return changed, err
	}
	return true, r.dislike(id)
}

// Stats are platform-wide interaction totals.
type Stats struct {
	Articles int
	Likes    int
	Dislikes int
	Views    int
}

// Stats sums interactions over all articles.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := Stats{Articles: len(s.articles)}
	for _, a := range s.articles {
		st.Likes += a.Likes
		st.Dislikes += a.Dislikes
		st.Views += a.Views
	}
	return st
}

// TagCount is how many articles carry a tag.
type TagCount struct {
	Tag   string
	Count int
}

// TopTags returns the n most used tags, ties in lexical order.
func (s *Store) TopTags(n int) []TagCount {
	s.mu.RLock()
	counts := make(map[string]int)
	for _, a := range s.articles {
		for _, t := range a.Tags {
			counts[t]++
		}
	}
	s.mu.RUnlock()
	out := make([]TagCount, 0, len(counts))
	for t, c := range counts {
		out = append(out, TagCount{Tag: t, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Tag < out[j].Tag
	})
	if n >= 0 && n < len(out) {
		out = out[:n]
	}
	return out
}

// writeMetadata rewrites the whole metadata file. Callers hold s.mu.
func (s *Store) writeMetadata() error {
	var b strings.Builder
	w := csv.NewWriter(&b)
	if err := w.Write(metadataHeader); err != nil {
		return err
	}
	for _, a := range s.articles {
		if err := w.Write(a.record()); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.metadataPath), 0o755); err != nil {
		return err
	}
	if err := writeFileAtomic(s.metadataPath, []byte(b.String())); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	return nil
}

// writeFileAtomic writes data to a temp file next to path and renames it
// over path.
func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
