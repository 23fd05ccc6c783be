package articles

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// readerHeader is the column layout of the reader state CSV.
var readerHeader = []string{"kind", "article_id"}

const (
	kindLiked    = "liked"
	kindDisliked = "disliked"
	kindSaved    = "saved"
)

// Reader is the interaction state of the person using the terminal:
// which articles they liked, disliked and saved. A reader opened with
// OpenReader rewrites its file after every change; one from NewReader
// lives in memory only.
type Reader struct {
	mu       sync.Mutex
	path     string
	liked    map[int]struct{}
	disliked map[int]struct{}
	saved    []int
}

// NewReader returns an in-memory reader with no interactions.
func NewReader() *Reader {
	return &Reader{liked: map[int]struct{}{}, disliked: map[int]struct{}{}}
}

// OpenReader loads reader state from path. A missing file yields an empty
// reader that will create it on the first change.
func OpenReader(path string) (*Reader, error) {
	r := NewReader()
	r.path = path
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return r, nil
		}
		return nil, err
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = len(readerHeader)
	if _, err := cr.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return r, nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		id, err := strconv.Atoi(strings.TrimSpace(rec[1]))
		if err != nil {
			return nil, fmt.Errorf("read %s: article_id %q: %w", path, rec[1], err)
		}
		switch strings.TrimSpace(rec[0]) {
		case kindLiked:
			r.liked[id] = struct{}{}
			delete(r.disliked, id)
		case kindDisliked:
			r.disliked[id] = struct{}{}
			delete(r.liked, id)
		case kindSaved:
			if !r.isSaved(id) {
				r.saved = append(r.saved, id)
			}
		default:
			return nil, fmt.Errorf("read %s: unknown kind %q", path, rec[0])
		}
	}
	return r, nil
}

// Liked reports whether the reader liked article id.
func (r *Reader) Liked(id int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.liked[id]
	return ok
}

// Disliked reports whether the reader disliked article id.
func (r *Reader) Disliked(id int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.disliked[id]
	return ok
}

func (r *Reader) like(id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.disliked, id)
	r.liked[id] = struct{}{}
	return r.persist()
}

func (r *Reader) dislike(id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.liked, id)
	r.disliked[id] = struct{}{}
	return r.persist()
}

// Save bookmarks article id. It reports false if it was already saved.
func (r *Reader) Save(id int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.isSaved(id) {
		return false, nil
	}
	r.saved = append(r.saved, id)
	return true, r.persist()
}

// Unsave drops article id from the bookmarks.
func (r *Reader) Unsave(id int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.unsave(id) {
		return false, nil
	}
	return true, r.persist()
}

// IsSaved reports whether article id is bookmarked.
func (r *Reader) IsSaved(id int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.isSaved(id)
}

// Saved returns bookmarked ids in the order they were saved.
func (r *Reader) Saved() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.saved...)
}

// Forget drops every interaction with article id, for when it is deleted.
func (r *Reader) Forget(id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, liked := r.liked[id]
	_, disliked := r.disliked[id]
	delete(r.liked, id)
	delete(r.disliked, id)
	if !r.unsave(id) && !liked && !disliked {
		return nil
	}
	return r.persist()
}

func (r *Reader) isSaved(id int) bool {
	for _, s := range r.saved {
		if s == id {
			return true
		}
	}
	return false
}

func (r *Reader) unsave(id int) bool {
	for i, s := range r.saved {
		if s == id {
			r.saved = append(r.saved[:i], r.saved[i+1:]...)
			return true
		}
	}
	return false
}

// persist rewrites the reader file. Callers hold r.mu.
func (r *Reader) persist() error {
	if r.path == "" {
		return nil
	}
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write(readerHeader)
	for _, set := range []struct {
		kind string
		ids  map[int]struct{}
	}{{kindLiked, r.liked}, {kindDisliked, r.disliked}} {
		ids := make([]int, 0, len(set.ids))
		for id := range set.ids {
			ids = append(ids, id)
		}
		sort.Ints(ids)
		for _, id := range ids {
			_ = w.Write([]string{set.kind, strconv.Itoa(id)})
		}
	}
	for _, id := range r.saved {
		_ = w.Write([]string{kindSaved, strconv.Itoa(id)})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("persist reader: %w", err)
	}
	if err := writeFileAtomic(r.path, buf.Bytes()); err != nil {
		return fmt.Errorf("persist reader: %w", err)
	}
	return nil
}
