package candidates

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"time"
)

// Excluded is the list of candidates already processed in earlier searches.
type Excluded struct {
	Items []*ExcludedCandidate
}

type ExcludedCandidate struct {
	ID         string
	Name       string
	Email      string
	ExcludedAt time.Time
}

// LoadExcluded reads the exclude file. A missing or empty file yields an empty list.
func LoadExcluded(path string) (*Excluded, error) {
	file, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &Excluded{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return nil, err
	}

	if stat.Size() == 0 {
		return &Excluded{}, nil
	}

	var excluded Excluded
	if err := json.NewDecoder(file).Decode(&excluded); err != nil {
		return nil, err
	}
	return &excluded, nil
}

func (e *Excluded) Append(s *Excluded) {
	e.Items = append(e.Items, s.Items...)
}

func (e *Excluded) IDs() []string {
	ids := make([]string, 0, len(e.Items))
	for _, c := range e.Items {
		ids = append(ids, c.ID)
	}
	return ids
}

func (e *Excluded) ToFile(path string) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	return enc.Encode(e)
}
