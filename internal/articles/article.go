package articles

import (
	"fmt"
	"strconv"
	"strings"
)

// metadataHeader is the column layout of the articles metadata CSV.
var metadataHeader = []string{"id", "author_id", "title", "tags", "likes", "dislikes", "views", "reading_time", "formatted"}

// wordsPerMinute drives the reading time estimate of new articles.
const wordsPerMinute = 200

// Article is one published article. Body is stored separately from the
// metadata row, in article_<id>.txt.
type Article struct {
	ID          int
	AuthorID    int
	Title       string
	Tags        []string
	Likes       int
	Dislikes    int
	Views       int
	ReadingTime int
	Formatted   bool
	Body        string
}

// Draft is the user-supplied part of a new article.
type Draft struct {
	AuthorID int
	Title    string
	Tags     []string
	Body     string
}

// Validate rejects drafts that cannot be published.
func (d Draft) Validate() error {
	if strings.TrimSpace(d.Title) == "" {
		return fmt.Errorf("article title is empty")
	}
	if strings.TrimSpace(d.Body) == "" {
		return fmt.Errorf("article body is empty")
	}
	return nil
}

// ReadingTimeFor estimates whole minutes needed to read body, at least one.
func ReadingTimeFor(body string) int {
	words := len(strings.Fields(body))
	minutes := (words + wordsPerMinute - 1) / wordsPerMinute
	if minutes < 1 {
		minutes = 1
	}
	return minutes
}

// ParseTags splits a comma or semicolon separated tag list, dropping blanks
// and lower-casing each tag. List brackets and quotes around tags, as in
// "['go', 'tui']", are stripped.
func ParseTags(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' })
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if tag := strings.ToLower(strings.Trim(f, " []'\"")); tag != "" {
			out = append(out, tag)
		}
	}
	return out
}

// parseRecord maps one CSV record onto an Article using the column
// positions in cols. id and title are required; counters default to zero.
func parseRecord(cols map[string]int, record []string) (Article, error) {
	field := func(name string) (string, bool) {
		i, ok := cols[name]
		if !ok || i >= len(record) {
			return "", false
		}
		return strings.TrimSpace(record[i]), true
	}
	intField := func(name string) (int, error) {
		s, ok := field(name)
		if !ok || s == "" {
			return 0, nil
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return 0, fmt.Errorf("column %s: %w", name, err)
		}
		return n, nil
	}

	var a Article
	idStr, ok := field("id")
	if !ok || idStr == "" {
		return a, fmt.Errorf("missing id")
	}
	id, err := strconv.Atoi(idStr)
	if err != nil {
		return a, fmt.Errorf("column id: %w", err)
	}
	a.ID = id
	title, ok := field("title")
	if !ok || title == "" {
		return a, fmt.Errorf("article %d: missing title", id)
	}
	a.Title = strings.Trim(title, `"`)
	if tags, ok := field("tags"); ok {
		a.Tags = ParseTags(tags)
	}
	for _, f := range []struct {
		name string
		dst  *int
	}{
		{"author_id", &a.AuthorID},
		{"likes", &a.Likes},
		{"dislikes", &a.Dislikes},
		{"views", &a.Views},
		{"reading_time", &a.ReadingTime},
	} {
		n, err := intField(f.name)
		if err != nil {
			return a, fmt.Errorf("article %d: %w", id, err)
		}
		*f.dst = n
	}
	if s, ok := field("formatted"); ok && s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			return a, fmt.Errorf("article %d: column formatted: %w", id, err)
		}
		a.Formatted = b
	}
	return a, nil
}

// record renders a as a metadata CSV record.
func (a Article) record() []string {
	return []string{
		strconv.Itoa(a.ID),
		strconv.Itoa(a.AuthorID),
		a.Title,
		formatTags(a.Tags),
		strconv.Itoa(a.Likes),
		strconv.Itoa(a.Dislikes),
		strconv.Itoa(a.Views),
		strconv.Itoa(a.ReadingTime),
		formatBool(a.Formatted),
	}
}

// formatTags writes tags as a list literal such as ['pets', 'animals'],
// the form ParseTags and the legacy metadata files share.
func formatTags(tags []string) string {
	quoted := make([]string, len(tags))
	for i, t := range tags {
		q := "'"
		if strings.Contains(t, "'") {
			q = `"`
		}
		quoted[i] = q + t + q
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

func formatBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}
