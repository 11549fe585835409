package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/DarthPollos/CV-Compare-Project/internal/embedding"
)

// Embedder uses the embeddings endpoint.
type Embedder struct {
	client    clientAPI
	model     string
	dimension int
}

func NewEmbedder(client *goopenai.Client, model string, dimension int) (*Embedder, error) {
	if client == nil {
		return nil, errors.New("openai client is required")
	}
	return newEmbedder(client, model, dimension), nil
}

func newEmbedder(client clientAPI, model string, dimension int) *Embedder {
	if model = strings.TrimSpace(model); model == "" {
		model = defaultEmbeddingModel
	}
	if dimension < 0 {
		dimension = 0
	}
	return &Embedder{client: client, model: model, dimension: dimension}
}

func (e *Embedder) Model() string {
	if e.dimension > 0 {
		return fmt.Sprintf("openai/%s@%d", e.model, e.dimension)
	}
	return "openai/" + e.model
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := e.client.CreateEmbeddings(ctx, goopenai.EmbeddingRequest{
		Model:      goopenai.EmbeddingModel(e.model),
		Input:      texts,
		Dimensions: e.dimension,
	})
	if err != nil {
		return nil, fmt.Errorf("create embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai returned %d embeddings for %d texts", len(resp.Data), len(texts))
	}

	vectors := make([][]float32, len(texts))
	for i, item := range resp.Data {
		idx := item.Index
		if idx < 0 || idx >= len(texts) || vectors[idx] != nil {
			idx = i
		}
		v := make([]float32, len(item.Embedding))
		for j := range item.Embedding {
			v[j] = float32(item.Embedding[j])
		}
		embedding.Normalize(v)
		vectors[idx] = v
	}
	return vectors, nil
}
