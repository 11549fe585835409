// Package index is an in-memory cosine index over rendered candidate documents.
package index

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"
)

var (
	ErrEmptyCorpus  = errors.New("no documents to index")
	ErrIndexCorrupt = errors.New("persisted index is corrupt or incompatible")
)

// Meta carries the record fields shown next to a match.
type Meta struct {
	Name      string
	Skills    string
	Languages string
	Location  string
}

// Document is the indexed form of one candidate record.
type Document struct {
	ID   string
	Text string
	Meta Meta
}

// Match is a document with its cosine distance to the query. Lower is closer.
type Match struct {
	Document Document
	Distance float64
}

// Similarity is 1 - Distance. It is a ranking aid, not a probability.
func (m Match) Similarity() float64 {
	return 1 - m.Distance
}

// Index is immutable once built. Safe for concurrent queries.
type Index struct {
	model     string
	dim       int
	createdAt time.Time
	docs      []Document
	vecs      [][]float32
	mags      []float64
}

func newIndex(model string) *Index {
	return &Index{model: model, createdAt: time.Now().UTC()}
}

func (i *Index) Model() string        { return i.model }
func (i *Index) Dimension() int       { return i.dim }
func (i *Index) Len() int             { return len(i.docs) }
func (i *Index) CreatedAt() time.Time { return i.createdAt }

// IDs lists document ids in index order.
func (i *Index) IDs() []string {
	ids := make([]string, len(i.docs))
	for n, d := range i.docs {
		ids[n] = d.ID
	}
	return ids
}

// add merges a batch of documents into the index.
func (i *Index) add(docs []Document, vectors [][]float32) error {
	if len(docs) != len(vectors) {
		return fmt.Errorf("documents and vectors length mismatch: %d != %d", len(docs), len(vectors))
	}
	for n, v := range vectors {
		if len(v) == 0 {
			return fmt.Errorf("empty vector for document %s", docs[n].ID)
		}
		if i.dim == 0 {
			i.dim = len(v)
		}
		if len(v) != i.dim {
			return fmt.Errorf("inconsistent vector dims %d vs %d for document %s", len(v), i.dim, docs[n].ID)
		}
	}

	for n := range docs {
		i.docs = append(i.docs, docs[n])
		i.vecs = append(i.vecs, vectors[n])
		i.mags = append(i.mags, magnitude(vectors[n]))
	}
	return nil
}

// Query returns up to k documents ordered by ascending distance, ties by ID.
// It never fails: an empty index, k <= 0, a zero vector or a vector of the
// wrong dimension all yield an empty result.
func (i *Index) Query(vector []float32, k int) []Match {
	if i == nil || k <= 0 || len(i.docs) == 0 || len(vector) != i.dim {
		return nil
	}

	qm := magnitude(vector)
	if qm == 0 {
		return nil
	}

	matches := make([]Match, 0, len(i.docs))
	for n := range i.vecs {
		if i.mags[n] == 0 {
			continue
		}
		sim := dot(vector, i.vecs[n]) / (qm * i.mags[n])
		if math.IsNaN(sim) {
			continue
		}
		matches = append(matches, Match{Document: i.docs[n], Distance: distance(sim)})
	}

	sort.Slice(matches, func(a, b int) bool {
		if matches[a].Distance != matches[b].Distance {
			return matches[a].Distance < matches[b].Distance
		}
		return matches[a].Document.ID < matches[b].Document.ID
	})

	if k < len(matches) {
		matches = matches[:k]
	}
	return matches
}

func distance(sim float64) float64 {
	d := 1 - sim
	switch {
	case d < 0:
		return 0
	case d > 2:
		return 2
	default:
		return d
	}
}

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

func magnitude(v []float32) float64 { return math.Sqrt(dot(v, v)) }
