package articles

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

const legacyMetadata = `id,author_id,title,tags,likes,dislikes,views,reading_time,formatted
0,1,"Cats","['pets', 'animals']",3,1,10,2,True
1,1,Dogs,pets;loyal,0,0,4,1,False
`

func writeFixture(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	meta := filepath.Join(dir, "articles.csv")
	content := filepath.Join(dir, "content")
	if err := os.MkdirAll(content, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(meta, []byte(legacyMetadata), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(content, "article_0.txt"), []byte("cats are great pets"), 0o644); err != nil {
		t.Fatal(err)
	}
	return meta, content
}

func openFixture(t *testing.T) *Store {
	t.Helper()
	meta, content := writeFixture(t)
	s, err := Open(meta, content, zerolog.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s
}

func TestOpenParsesMetadata(t *testing.T) {
	s := openFixture(t)
	if s.Len() != 2 {
		t.Fatalf("Len = %d, want 2", s.Len())
	}
	cats, err := s.Get(0)
	if err != nil {
		t.Fatal(err)
	}
	want := Article{
		ID: 0, AuthorID: 1, Title: "Cats", Tags: []string{"pets", "animals"},
		Likes: 3, Dislikes: 1, Views: 10, ReadingTime: 2, Formatted: true,
		Body: "cats are great pets",
	}
	if !reflect.DeepEqual(cats, want) {
		t.Errorf("Get(0) = %+v, want %+v", cats, want)
	}
	dogs, _ := s.Get(1)
	if dogs.Body != "" {
		t.Errorf("missing content should load as empty body, got %q", dogs.Body)
	}
	if !reflect.DeepEqual(dogs.Tags, []string{"pets", "loyal"}) {
		t.Errorf("Tags = %v", dogs.Tags)
	}
}

func TestOpenMissingMetadata(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "none.csv"), dir, zerolog.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if s.Len() != 0 {
		t.Errorf("Len = %d, want 0", s.Len())
	}
}

func TestOpenRejectsBadRows(t *testing.T) {
	tests := []struct {
		name string
		csv  string
	}{
		{"bad id", "id,title\nx,Cats\n"},
		{"missing title", "id,title\n1,\n"},
		{"duplicate id", "id,title\n1,A\n1,B\n"},
		{"bad counter", "id,title,likes\n1,A,many\n"},
		{"bad bool", "id,title,formatted\n1,A,perhaps\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			meta := filepath.Join(dir, "a.csv")
			if err := os.WriteFile(meta, []byte(tt.csv), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := Open(meta, dir, zerolog.Nop()); err == nil {
				t.Error("Open succeeded, want error")
			}
		})
	}
}

func TestAddAndReload(t *testing.T) {
	meta, content := writeFixture(t)
	s, err := Open(meta, content, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	a, err := s.Add(Draft{Title: " Cars ", Tags: []string{"vehicles"}, Body: "cars need fuel"})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if a.ID != 2 || a.Title != "Cars" || a.ReadingTime != 1 {
		t.Errorf("Add = %+v", a)
	}
	if row, ok := s.RowOf(2); !ok || row != 2 {
		t.Errorf("RowOf(2) = %d, %v", row, ok)
	}

	reloaded, err := Open(meta, content, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	got, err := reloaded.Get(2)
	if err != nil {
		t.Fatal(err)
	}
	if got.Body != "cars need fuel" || !reflect.DeepEqual(got.Tags, []string{"vehicles"}) {
		t.Errorf("reloaded article = %+v", got)
	}
	cats, _ := reloaded.Get(0)
	if !reflect.DeepEqual(cats.Tags, []string{"pets", "animals"}) {
		t.Errorf("rewritten tags = %v", cats.Tags)
	}
}

func TestAddRejectsEmptyDraft(t *testing.T) {
	s := openFixture(t)
	if _, err := s.Add(Draft{Title: "  ", Body: "x"}); err == nil {
		t.Error("Add accepted an empty title")
	}
	if _, err := s.Add(Draft{Title: "x", Body: ""}); err == nil {
		t.Error("Add accepted an empty body")
	}
	if s.Len() != 2 {
		t.Errorf("Len = %d, want 2", s.Len())
	}
}

func TestRemove(t *testing.T) {
	meta, content := writeFixture(t)
	s, err := Open(meta, content, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Remove(0); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := s.Get(0); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after Remove error = %v, want ErrNotFound", err)
	}
	if id, ok := s.IDAt(0); !ok || id != 1 {
		t.Errorf("IDAt(0) = %d, %v; want 1, true", id, ok)
	}
	if _, err := os.Stat(filepath.Join(content, "article_0.txt")); !os.IsNotExist(err) {
		t.Errorf("content file still present: %v", err)
	}
	data, _ := os.ReadFile(meta)
	if strings.Contains(string(data), "Cats") {
		t.Error("metadata still lists the removed article")
	}
	if err := s.Remove(42); !errors.Is(err, ErrNotFound) {
		t.Errorf("Remove(42) error = %v, want ErrNotFound", err)
	}
}

func TestCorpusOrder(t *testing.T) {
	s := openFixture(t)
	docs := s.Corpus()
	if len(docs) != 2 || docs[0].ID != 0 || docs[1].ID != 1 {
		t.Fatalf("Corpus = %+v", docs)
	}
	if docs[0].Text() != "Cats cats are great pets" {
		t.Errorf("Text = %q", docs[0].Text())
	}
	if _, ok := s.IDAt(2); ok {
		t.Error("IDAt(2) should be out of range")
	}
}

func TestLikeDislike(t *testing.T) {
	s := openFixture(t)
	r := NewReader()

	if ok, err := s.Like(1, r); !ok || err != nil {
		t.Fatalf("Like = %v, %v", ok, err)
	}
	if ok, _ := s.Like(1, r); ok {
		t.Error("second Like should report false")
	}
	a, _ := s.Get(1)
	if a.Likes != 1 || a.Dislikes != 0 {
		t.Errorf("after like: likes=%d dislikes=%d", a.Likes, a.Dislikes)
	}

	if ok, err := s.Dislike(1, r); !ok || err != nil {
		t.Fatalf("Dislike = %v, %v", ok, err)
	}
	a, _ = s.Get(1)
	if a.Likes != 0 || a.Dislikes != 1 {
		t.Errorf("after dislike: likes=%d dislikes=%d", a.Likes, a.Dislikes)
	}
	if r.Liked(1) || !r.Disliked(1) {
		t.Error("reader state not switched to disliked")
	}
	if _, err := s.Like(99, r); !errors.Is(err, ErrNotFound) {
		t.Errorf("Like(99) error = %v, want ErrNotFound", err)
	}
}

func TestViewAndStats(t *testing.T) {
	s := openFixture(t)
	if err := s.View(0); err != nil {
		t.Fatal(err)
	}
	st := s.Stats()
	want := Stats{Articles: 2, Likes: 3, Dislikes: 1, Views: 15}
	if st != want {
		t.Errorf("Stats = %+v, want %+v", st, want)
	}
	tags := s.TopTags(1)
	if len(tags) != 1 || tags[0] != (TagCount{Tag: "pets", Count: 2}) {
		t.Errorf("TopTags(1) = %v", tags)
	}
}

func TestReaderSaved(t *testing.T) {
	r := NewReader()
	for _, id := range []int{3, 1} {
		if ok, err := r.Save(id); !ok || err != nil {
			t.Fatalf("Save(%d) = %v, %v", id, ok, err)
		}
	}
	if ok, _ := r.Save(3); ok {
		t.Error("Save of a bookmarked id should report false")
	}
	if !reflect.DeepEqual(r.Saved(), []int{3, 1}) {
		t.Errorf("Saved = %v, want [3 1]", r.Saved())
	}
	if err := r.Forget(3); err != nil {
		t.Fatal(err)
	}
	if r.IsSaved(3) {
		t.Error("Forget did not drop the bookmark")
	}
	if ok, _ := r.Unsave(3); ok {
		t.Error("Unsave of a missing id should report false")
	}
}

func TestReaderSurvivesReopen(t *testing.T) {
	s := openFixture(t)
	path := filepath.Join(t.TempDir(), "state", "reader.csv")
	r, err := OpenReader(path)
	if err != nil {
		t.Fatal(err)
	}
	if ok, err := s.Like(1, r); !ok || err != nil {
		t.Fatalf("Like = %v, %v", ok, err)
	}
	if ok, err := s.Dislike(0, r); !ok || err != nil {
		t.Fatalf("Dislike = %v, %v", ok, err)
	}
	for _, id := range []int{1, 0} {
		if _, err := r.Save(id); err != nil {
			t.Fatal(err)
		}
	}

	reopened, err := OpenReader(path)
	if err != nil {
		t.Fatal(err)
	}
	if !reopened.Liked(1) || !reopened.Disliked(0) {
		t.Errorf("reopened liked(1)=%v disliked(0)=%v", reopened.Liked(1), reopened.Disliked(0))
	}
	if !reflect.DeepEqual(reopened.Saved(), []int{1, 0}) {
		t.Errorf("reopened Saved = %v, want [1 0]", reopened.Saved())
	}
	if ok, err := s.Like(1, reopened); ok || err != nil {
		t.Errorf("Like after reopen = %v, %v; want false, nil", ok, err)
	}
	if a, _ := s.Get(1); a.Likes != 1 {
		t.Errorf("likes = %d, want 1", a.Likes)
	}

	if err := reopened.Forget(1); err != nil {
		t.Fatal(err)
	}
	again, err := OpenReader(path)
	if err != nil {
		t.Fatal(err)
	}
	if again.Liked(1) || again.IsSaved(1) {
		t.Error("forgotten article still recorded after reopen")
	}
}

func TestOpenReaderMissingAndMalformed(t *testing.T) {
	dir := t.TempDir()
	r, err := OpenReader(filepath.Join(dir, "absent.csv"))
	if err != nil || len(r.Saved()) != 0 {
		t.Fatalf("OpenReader(absent) = %v, %v", r, err)
	}
	bad := filepath.Join(dir, "bad.csv")
	if err := os.WriteFile(bad, []byte("kind,article_id\nstarred,1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := OpenReader(bad); err == nil {
		t.Error("OpenReader accepted an unknown kind")
	}
}

func TestMetadataKeepsListLiteralTags(t *testing.T) {
	meta, content := writeFixture(t)
	s, err := Open(meta, content, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Add(Draft{Title: "Quotes", Tags: []string{"it's"}, Body: "words"}); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(meta)
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)
	for _, want := range []string{
		`"['pets', 'animals']"`,
		`"['pets', 'loyal']"`,
		`,True` + "\n",
		`,False` + "\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("metadata missing %s:\n%s", want, out)
		}
	}
	reloaded, err := Open(meta, content, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	q, _ := reloaded.Get(2)
	if !reflect.DeepEqual(q.Tags, []string{"it's"}) {
		t.Errorf("quoted tag reloaded as %v", q.Tags)
	}
}

func TestParseTagsAndReadingTime(t *testing.T) {
	if got := ParseTags(" Go, TUI ;; ['ml'] "); !reflect.DeepEqual(got, []string{"go", "tui", "ml"}) {
		t.Errorf("ParseTags = %v", got)
	}
	if got := ReadingTimeFor(strings.Repeat("word ", 401)); got != 3 {
		t.Errorf("ReadingTimeFor(401 words) = %d, want 3", got)
	}
	if got := ReadingTimeFor(""); got != 1 {
		t.Errorf("ReadingTimeFor(empty) = %d, want 1", got)
	}
}
