// Package retrieval narrows the record store to the candidates closest to a job description.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/DarthPollos/CV-Compare-Project/internal/candidates"
	"github.com/DarthPollos/CV-Compare-Project/internal/embedding"
	"github.com/DarthPollos/CV-Compare-Project/internal/index"
	"github.com/DarthPollos/CV-Compare-Project/internal/store"
)

const DefaultTopK = 40

// ErrIndexUnavailable means the index could not be built, loaded or queried.
var ErrIndexUnavailable = errors.New("index unavailable")

type Options struct {
	IndexPath string
	// Rebuild regenerates the index before every query.
	Rebuild bool
	Build   index.BuildOptions
}

type Retriever struct {
	store    store.Store
	provider embedding.Provider
	manager  *index.Manager
	rebuild  bool
	logger   *zap.Logger
}

func New(st store.Store, provider embedding.Provider, opts Options, logger *zap.Logger) *Retriever {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Retriever{
		store:    st,
		provider: provider,
		rebuild:  opts.Rebuild,
		logger:   logger,
	}
	r.manager = index.NewManager(provider, r.documents, opts.IndexPath, opts.Build, logger)
	return r
}

// Documents renders every record in the store, in store order.
func Documents(records []*candidates.Record) []index.Document {
	docs := make([]index.Document, 0, len(records))
	for _, r := range records {
		docs = append(docs, index.Document{
			ID:   r.ID,
			Text: candidates.Render(r),
			Meta: index.Meta{
				Name:      r.Name,
				Skills:    r.Skills,
				Languages: r.Languages,
				Location:  r.Location,
			},
		})
	}
	return docs
}

func (r *Retriever) documents(ctx context.Context) ([]index.Document, error) {
	records, err := r.store.All(ctx)
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		if rec.Summary == "" {
			r.logger.Warn("candidate has empty summary", zap.String("candidate_id", rec.ID), zap.String("name", rec.Name))
		}
	}
	return Documents(records), nil
}

// Retrieve returns at most k matches for the job description, closest first.
// An empty store yields an empty result and no error.
func (r *Retriever) Retrieve(ctx context.Context, jobDescription string, k int) (*candidates.Matches, error) {
	if strings.TrimSpace(jobDescription) == "" {
		return nil, errors.New("job description must not be empty")
	}
	if k <= 0 {
		k = DefaultTopK
	}

	records, err := r.store.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: reading records: %w", ErrIndexUnavailable, err)
	}
	if len(records) == 0 {
		r.logger.Info("record store is empty")
		return &candidates.Matches{}, nil
	}

	idx, err := r.manager.Ensure(ctx, r.rebuild)
	if errors.Is(err, index.ErrEmptyCorpus) {
		return &candidates.Matches{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIndexUnavailable, err)
	}

	vectors, err := r.provider.Embed(ctx, []string{jobDescription})
	if err != nil {
		return nil, fmt.Errorf("%w: embedding query: %w", ErrIndexUnavailable, err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("%w: provider returned %d query vectors", ErrIndexUnavailable, len(vectors))
	}

	byID := make(map[string]*candidates.Record, len(records))
	for _, rec := range records {
		byID[rec.ID] = rec
	}

	found := idx.Query(vectors[0], k)
	matches := &candidates.Matches{Items: make([]*candidates.Match, 0, len(found))}
	for _, m := range found {
		rec, ok := byID[m.Document.ID]
		if !ok {
			r.logger.Warn("indexed candidate no longer in store, skipping", zap.String("candidate_id", m.Document.ID))
			continue
		}
		matches.Items = append(matches.Items, &candidates.Match{Record: rec, Distance: m.Distance})
	}

	r.logger.Info("retrieved candidates",
		zap.Int("requested", k),
		zap.Int("found", matches.Len()),
		zap.Int("indexed", idx.Len()),
	)

	return matches, nil
}

// Rebuild regenerates and persists the index from the current store content.
func (r *Retriever) Rebuild(ctx context.Context) (int, error) {
	idx, err := r.manager.Ensure(ctx, true)
	if err != nil {
		return 0, err
	}
	return idx.Len(), nil
}
