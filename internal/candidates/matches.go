package candidates

import (
	"encoding/json"
	"os"
	"time"
)

// Match is a record found by similarity search.
type Match struct {
	Record   *Record `json:"record"`
	Distance float64 `json:"distance"`
}

// Matches is an ordered shortlist, most similar first.
type Matches struct {
	Items []*Match `json:"items"`
}

func (m *Matches) Len() int {
	if m == nil {
		return 0
	}
	return len(m.Items)
}

func (m *Matches) IDs() []string {
	ids := make([]string, 0, m.Len())
	for _, match := range m.Items {
		ids = append(ids, match.Record.ID)
	}
	return ids
}

func (m *Matches) FindByID(id string) *Match {
	for _, match := range m.Items {
		if match.Record.ID == id {
			return match
		}
	}
	return nil
}

// Exclude removes matches whose ID is in targets and returns the removed IDs.
// Order of the remaining matches is preserved.
func (m *Matches) Exclude(targets []string) []string {
	if len(targets) == 0 {
		return nil
	}

	drop := make(map[string]struct{}, len(targets))
	for _, id := range targets {
		drop[id] = struct{}{}
	}

	var removed []string
	kept := m.Items[:0]
	for _, match := range m.Items {
		if _, ok := drop[match.Record.ID]; ok {
			removed = append(removed, match.Record.ID)
			continue
		}
		kept = append(kept, match)
	}
	m.Items = kept
	return removed
}

// Limit keeps the first n matches and returns the IDs cut off.
func (m *Matches) Limit(n int) []string {
	if n < 0 || len(m.Items) <= n {
		return nil
	}

	var removed []string
	for _, match := range m.Items[n:] {
		removed = append(removed, match.Record.ID)
	}
	m.Items = m.Items[:n]
	return removed
}

func (m *Matches) DumpToTmpFile() (string, error) {
	file, err := os.CreateTemp("", "candidates_*.json")
	if err != nil {
		return "", err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(m); err != nil {
		return "", err
	}
	return file.Name(), nil
}

func (m *Matches) ToExcluded() *Excluded {
	excluded := &Excluded{}
	for _, match := range m.Items {
		excluded.Items = append(excluded.Items, &ExcludedCandidate{
			ID:         match.Record.ID,
			Name:       match.Record.Name,
			Email:      match.Record.Email,
			ExcludedAt: time.Now().UTC(),
		})
	}
	return excluded
}
