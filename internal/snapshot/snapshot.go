package snapshot

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"equilibrium/internal/vectorspace"
)

// Artifact file names inside the snapshot directory.
const (
	VectorizerFile   = "tfidf_vectorizer.json"
	MatrixFile       = "tfidf_matrix.json"
	SimilaritiesFile = "tfidf_cosine_similarities.json"
)

// ErrNotFound is returned by Load when no snapshot has been written yet.
var ErrNotFound = errors.New("snapshot not found")

// Snapshot is a fitted model as stored on disk.
type Snapshot struct {
	Generation   string
	CreatedAt    time.Time
	IDs          []int
	Vectorizer   vectorspace.State
	Matrix       *vectorspace.Matrix
	Similarities [][]float64
}

type header struct {
	Generation string    `json:"generation"`
	CreatedAt  time.Time `json:"created_at"`
}

type vectorizerArtifact struct {
	header
	State vectorspace.State `json:"state"`
}

type matrixArtifact struct {
	header
	IDs    []int               `json:"ids"`
	Matrix *vectorspace.Matrix `json:"matrix"`
}

type similaritiesArtifact struct {
	header
	Similarities [][]float64 `json:"similarities"`
}

// Store reads and writes snapshots in a directory.
type Store struct {
	dir string
}

// NewStore returns a store rooted at dir. The directory is created on Save.
func NewStore(dir string) *Store { return &Store{dir: dir} }

// Dir returns the snapshot directory.
func (s *Store) Dir() string { return s.dir }

// Save writes the three artifacts of snap. A fresh generation id is assigned
// when snap has none. Every artifact is staged in a temp file before any is
// renamed into place, so a failed encode never touches the live snapshot.
func (s *Store) Save(snap *Snapshot) error {
	if snap.Generation == "" {
		snap.Generation = uuid.NewString()
	}
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = time.Now().UTC()
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	h := header{Generation: snap.Generation, CreatedAt: snap.CreatedAt}
	artifacts := []struct {
		name string
		v    any
	}{
		{VectorizerFile, vectorizerArtifact{header: h, State: snap.Vectorizer}},
		{MatrixFile, matrixArtifact{header: h, IDs: snap.IDs, Matrix: snap.Matrix}},
		{SimilaritiesFile, similaritiesArtifact{header: h, Similarities: snap.Similarities}},
	}
	staged := make([]string, 0, len(artifacts))
	defer func() {
		for _, tmp := range staged {
			_ = os.Remove(tmp)
		}
	}()
	for _, a := range artifacts {
		tmp, err := s.stage(a.name, a.v)
		if err != nil {
			return fmt.Errorf("write %s: %w", a.name, err)
		}
		staged = append(staged, tmp)
	}
	for i, a := range artifacts {
		if err := os.Rename(staged[i], filepath.Join(s.dir, a.name)); err != nil {
			return fmt.Errorf("replace %s: %w", a.name, err)
		}
	}
	staged = nil
	return nil
}

func (s *Store) stage(name string, v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	f, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return "", err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

// Load reads all three artifacts and checks they belong to the same
// generation. It returns ErrNotFound when none of them exist.
func (s *Store) Load() (*Snapshot, error) {
	var (
		vec  vectorizerArtifact
		mat  matrixArtifact
		sims similaritiesArtifact
	)
	missing := 0
	for _, a := range []struct {
		name string
		v    any
	}{
		{VectorizerFile, &vec},
		{MatrixFile, &mat},
		{SimilaritiesFile, &sims},
	} {
		data, err := os.ReadFile(filepath.Join(s.dir, a.name))
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				missing++
				continue
			}
			return nil, err
		}
		if err := json.Unmarshal(data, a.v); err != nil {
			return nil, fmt.Errorf("decode %s: %w", a.name, err)
		}
	}
	switch missing {
	case 0:
	case 3:
		return nil, ErrNotFound
	default:
		return nil, fmt.Errorf("snapshot in %s is incomplete: %d of 3 artifacts missing", s.dir, missing)
	}
	if vec.Generation != mat.Generation || mat.Generation != sims.Generation {
		return nil, fmt.Errorf("snapshot in %s mixes generations %q, %q, %q", s.dir, vec.Generation, mat.Generation, sims.Generation)
	}
	if mat.Matrix == nil {
		return nil, fmt.Errorf("snapshot in %s has no matrix", s.dir)
	}
	if len(mat.IDs) != len(mat.Matrix.Rows) {
		return nil, fmt.Errorf("snapshot in %s has %d ids for %d rows", s.dir, len(mat.IDs), len(mat.Matrix.Rows))
	}
	return &Snapshot{
		Generation:   vec.Generation,
		CreatedAt:    vec.CreatedAt,
		IDs:          mat.IDs,
		Vectorizer:   vec.State,
		Matrix:       mat.Matrix,
		Similarities: sims.Similarities,
	}, nil
}

// Remove deletes every artifact. Missing files are not an error.
func (s *Store) Remove() error {
	for _, name := range []string{VectorizerFile, MatrixFile, SimilaritiesFile} {
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	return nil
}
