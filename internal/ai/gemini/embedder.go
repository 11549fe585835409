package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/DarthPollos/CV-Compare-Project/internal/embedding"
)

// Embedder produces document vectors with a Gemini embedding model.
type Embedder struct {
	models    modelsAPI
	model     string
	dimension int32
}

// NewEmbedder creates an Embedder. A dimension of zero keeps the model default.
func NewEmbedder(client *genai.Client, model string, dimension int) (*Embedder, error) {
	if client == nil {
		return nil, errors.New("gemini client is required")
	}
	return newEmbedder(client.Models, model, dimension), nil
}

func newEmbedder(models modelsAPI, model string, dimension int) *Embedder {
	if model = strings.TrimSpace(model); model == "" {
		model = defaultEmbeddingModel
	}
	if dimension < 0 {
		dimension = 0
	}
	return &Embedder{models: models, model: model, dimension: int32(dimension)}
}

func (e *Embedder) Model() string {
	if e.dimension > 0 {
		return fmt.Sprintf("gemini/%s@%d", e.model, e.dimension)
	}
	return "gemini/" + e.model
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	contents := make([]*genai.Content, 0, len(texts))
	for _, text := range texts {
		contents = append(contents, genai.NewContentFromText(text, genai.RoleUser))
	}

	config := &genai.EmbedContentConfig{TaskType: "SEMANTIC_SIMILARITY"}
	if e.dimension > 0 {
		config.OutputDimensionality = &e.dimension
	}

	resp, err := e.models.EmbedContent(ctx, e.model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("embed content: %w", err)
	}
	if resp == nil || len(resp.Embeddings) != len(texts) {
		got := 0
		if resp != nil {
			got = len(resp.Embeddings)
		}
		return nil, fmt.Errorf("gemini returned %d embeddings for %d texts", got, len(texts))
	}

	vectors := make([][]float32, len(texts))
	for i, emb := range resp.Embeddings {
		if emb == nil || len(emb.Values) == 0 {
			return nil, fmt.Errorf("gemini returned empty embedding %d", i)
		}
		v := append([]float32(nil), emb.Values...)
		embedding.Normalize(v)
		vectors[i] = v
	}
	return vectors, nil
}
