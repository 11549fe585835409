package index

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/DarthPollos/CV-Compare-Project/internal/embedding"
)

const DefaultBatchSize = 10

type BuildOptions struct {
	BatchSize int
	Logger    *zap.Logger
}

// Build embeds docs batch by batch and merges every batch into a new index.
func Build(ctx context.Context, provider embedding.Provider, docs []Document, opts BuildOptions) (*Index, error) {
	if len(docs) == 0 {
		return nil, ErrEmptyCorpus
	}

	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	idx := newIndex(provider.Model())
	for start := 0; start < len(docs); start += batchSize {
		end := min(start+batchSize, len(docs))
		batch := docs[start:end]

		texts := make([]string, len(batch))
		for n, d := range batch {
			texts[n] = d.Text
		}

		log.Info("embedding batch",
			zap.Int("batch_start", start),
			zap.Int("batch_end", end),
			zap.Int("total", len(docs)),
		)

		vectors, err := provider.Embed(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embedding batch %d-%d: %w", start, end, err)
		}
		if err := idx.add(batch, vectors); err != nil {
			return nil, fmt.Errorf("adding batch %d-%d: %w", start, end, err)
		}
	}

	log.Info("index built",
		zap.Int("documents", idx.Len()),
		zap.Int("dimension", idx.Dimension()),
		zap.String("model", idx.Model()),
	)

	return idx, nil
}
