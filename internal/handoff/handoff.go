// Package handoff shares the last query's shortlist with downstream consumers,
// such as e-mail drafting, keyed by candidate ID.
package handoff

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/DarthPollos/CV-Compare-Project/internal/candidates"
)

const DefaultFile = "candidates.json"

var ErrUnknownCandidate = errors.New("candidate is not in the last shortlist")

type Entry struct {
	Position      int                `json:"position"`
	Record        *candidates.Record `json:"record"`
	Justification string             `json:"justification,omitempty"`
}

type snapshot struct {
	QueryID     string   `json:"query_id,omitempty"`
	PublishedAt string   `json:"published_at"`
	Entries     []*Entry `json:"entries"`
}

// Store keeps the shortlist in memory and, when a path is set, in a JSON file.
type Store struct {
	path string

	mu      sync.RWMutex
	queryID string
	entries []*Entry
	byID    map[string]*Entry
}

func New(path string) *Store {
	return &Store{path: path, byID: map[string]*Entry{}}
}

// Open loads the last published shortlist from path. A missing file is an empty store.
func Open(path string) (*Store, error) {
	s := New(path)

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading handoff file: %w", err)
	}
	if len(data) == 0 {
		return s, nil
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decoding handoff file: %w", err)
	}
	s.set(snap.QueryID, snap.Entries)
	return s, nil
}

// Publish replaces the shortlist with ranked.
func (s *Store) Publish(queryID string, ranked []candidates.Ranked) error {
	entries := make([]*Entry, 0, len(ranked))
	for _, r := range ranked {
		entries = append(entries, &Entry{Position: r.Position, Record: r.Record, Justification: r.Justification})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.queryID = queryID
	s.entries = entries
	s.byID = make(map[string]*Entry, len(entries))
	for _, e := range entries {
		s.byID[e.Record.ID] = e
	}

	if s.path == "" {
		return nil
	}
	return s.write(snapshot{
		QueryID:     queryID,
		PublishedAt: time.Now().UTC().Format(time.RFC3339),
		Entries:     entries,
	})
}

// Get resolves an ID from the last shortlist.
func (s *Store) Get(id string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCandidate, id)
	}
	return e, nil
}

func (s *Store) List() []*Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*Entry(nil), s.entries...)
}

func (s *Store) QueryID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryID
}

func (s *Store) set(queryID string, entries []*Entry) {
	s.queryID = queryID
	s.entries = entries
	s.byID = make(map[string]*Entry, len(entries))
	for _, e := range entries {
		if e != nil && e.Record != nil {
			s.byID[e.Record.ID] = e
		}
	}
}

func (s *Store) write(snap snapshot) error {
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating handoff temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		tmp.Close()
		return fmt.Errorf("encoding handoff file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing handoff temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replacing handoff file: %w", err)
	}
	return nil
}
