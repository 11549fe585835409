package index

import (
	"encoding/gob"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

const formatVersion = 1

type snapshot struct {
	Version   int
	Model     string
	Dimension int
	CreatedAt time.Time
	Documents []Document
	Vectors   [][]float32
}

// Save writes the index to path atomically.
func (i *Index) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating index directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp index file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	snap := snapshot{
		Version:   formatVersion,
		Model:     i.model,
		Dimension: i.dim,
		CreatedAt: i.createdAt,
		Documents: i.docs,
		Vectors:   i.vecs,
	}
	if err := gob.NewEncoder(tmp).Encode(&snap); err != nil {
		tmp.Close()
		return fmt.Errorf("encoding index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp index file: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing index file: %w", err)
	}
	return nil
}

// Load reads an index saved for model. A missing file returns an error
// matching fs.ErrNotExist, anything unreadable or built by another model
// returns ErrIndexCorrupt.
func Load(path, model string) (*Index, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		return nil, fmt.Errorf("opening index: %w", err)
	}
	defer file.Close()

	var snap snapshot
	if err := gob.NewDecoder(file).Decode(&snap); err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %v", ErrIndexCorrupt, path, err)
	}

	switch {
	case snap.Version != formatVersion:
		return nil, fmt.Errorf("%w: format version %d, want %d", ErrIndexCorrupt, snap.Version, formatVersion)
	case snap.Model != model:
		return nil, fmt.Errorf("%w: built with model %q, configured %q", ErrIndexCorrupt, snap.Model, model)
	case len(snap.Documents) != len(snap.Vectors):
		return nil, fmt.Errorf("%w: %d documents but %d vectors", ErrIndexCorrupt, len(snap.Documents), len(snap.Vectors))
	}

	idx := &Index{model: snap.Model, createdAt: snap.CreatedAt}
	if err := idx.add(snap.Documents, snap.Vectors); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIndexCorrupt, err)
	}
	if idx.dim != snap.Dimension && idx.Len() > 0 {
		return nil, fmt.Errorf("%w: dimension %d, header says %d", ErrIndexCorrupt, idx.dim, snap.Dimension)
	}
	return idx, nil
}
