package cmd

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/DarthPollos/CV-Compare-Project/internal/ai"
	"github.com/DarthPollos/CV-Compare-Project/internal/ai/gemini"
	"github.com/DarthPollos/CV-Compare-Project/internal/ai/openai"
	"github.com/DarthPollos/CV-Compare-Project/internal/embedding"
	"github.com/DarthPollos/CV-Compare-Project/internal/filtering"
	"github.com/DarthPollos/CV-Compare-Project/internal/handoff"
	"github.com/DarthPollos/CV-Compare-Project/internal/index"
	"github.com/DarthPollos/CV-Compare-Project/internal/pipeline"
	"github.com/DarthPollos/CV-Compare-Project/internal/rerank"
	"github.com/DarthPollos/CV-Compare-Project/internal/retrieval"
	"github.com/DarthPollos/CV-Compare-Project/internal/secrets"
	"github.com/DarthPollos/CV-Compare-Project/internal/store"
)

const (
	providerGemini = "gemini"
	providerOpenAI = "openai"
	providerLocal  = "local"
)

// apiKeyEnv is consulted when neither api-key-file nor api-key is configured.
var apiKeyEnv = map[string]string{
	providerGemini: "GEMINI_API_KEY",
	providerOpenAI: "OPENAI_API_KEY",
}

// components is everything a search needs. Close releases the store.
type components struct {
	store       store.Store
	retriever   *retrieval.Retriever
	reranker    *rerank.Reranker
	handoff     *handoff.Store
	coordinator *pipeline.Coordinator
}

func (c *components) Close() error {
	if c == nil || c.store == nil {
		return nil
	}
	return c.store.Close()
}

func loadAPIKey(provider, key, file string) (string, error) {
	env := apiKeyEnv[provider]
	value, err := secrets.Load(secrets.Source{
		Name:  provider + " api key",
		Value: key,
		File:  file,
		Env:   env,
	})
	if err != nil {
		return "", fmt.Errorf("%w (or set the api-key-file key)", err)
	}
	return value, nil
}

func newEmbeddingProvider(ctx context.Context, cfg *EmbeddingConfig, log *zap.Logger) (embedding.Provider, error) {
	var provider embedding.Provider

	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case providerLocal:
		provider = embedding.NewHashing(cfg.Dimension)
	case providerGemini:
		key, err := loadAPIKey(providerGemini, cfg.APIKey, cfg.APIKeyFile)
		if err != nil {
			return nil, err
		}
		client, err := gemini.NewClient(ctx, key)
		if err != nil {
			return nil, err
		}
		if provider, err = gemini.NewEmbedder(client, cfg.Model, cfg.Dimension); err != nil {
			return nil, err
		}
	case providerOpenAI:
		key, err := loadAPIKey(providerOpenAI, cfg.APIKey, cfg.APIKeyFile)
		// Local OpenAI compatible servers usually run without a key.
		if err != nil && cfg.BaseURL == "" {
			return nil, err
		}
		client, err := openai.NewClient(key, cfg.BaseURL)
		if err != nil {
			return nil, err
		}
		if provider, err = openai.NewEmbedder(client, cfg.Model, cfg.Dimension); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}

	provider = embedding.WithTimeout(provider, cfg.Timeout)
	if cfg.Cache != nil && cfg.Cache.Size > 0 {
		provider = embedding.NewCache(provider, cfg.Cache.Size, cfg.Cache.TTL, log)
	}

	log.Debug("embedding provider ready", zap.String("provider", cfg.Provider), zap.String("model", provider.Model()))
	return provider, nil
}

func newGenerator(ctx context.Context, cfg *RerankConfig, log *zap.Logger) (ai.Generator, error) {
	policy := ai.Policy{MaxRetries: cfg.MaxRetries}

	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case providerGemini:
		key, err := loadAPIKey(providerGemini, cfg.APIKey, cfg.APIKeyFile)
		if err != nil {
			return nil, err
		}
		client, err := gemini.NewClient(ctx, key)
		if err != nil {
			return nil, err
		}
		return gemini.NewGenerator(client, cfg.Model, policy, log)
	case providerOpenAI:
		key, err := loadAPIKey(providerOpenAI, cfg.APIKey, cfg.APIKeyFile)
		if err != nil && cfg.BaseURL == "" {
			return nil, err
		}
		client, err := openai.NewClient(key, cfg.BaseURL)
		if err != nil {
			return nil, err
		}
		return openai.NewGenerator(client, cfg.Model, policy, log)
	default:
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}
}

func newReranker(ctx context.Context, cfg *RerankConfig, log *zap.Logger) (*rerank.Reranker, error) {
	generator, err := newGenerator(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("building generator: %w", err)
	}

	return rerank.New(generator, rerank.Config{
		MaxCandidates:   cfg.MaxCandidates,
		TopN:            cfg.TopN,
		Temperature:     cfg.Temperature,
		MaxOutputTokens: cfg.MaxOutputTokens,
		Timeout:         cfg.Timeout,
		MaxLogLength:    cfg.MaxLogLength,
		Instructions:    cfg.Instructions,
	}, log), nil
}

// newRetriever opens the store and wires it to the embedding provider and the index.
func newRetriever(ctx context.Context, config *Config, rebuild bool, log *zap.Logger) (store.Store, *retrieval.Retriever, error) {
	st, err := store.Open(ctx, config.Store.Driver, config.Store.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("opening record store: %w", err)
	}

	provider, err := newEmbeddingProvider(ctx, config.Embedding, log)
	if err != nil {
		st.Close()
		return nil, nil, fmt.Errorf("building embedding provider: %w", err)
	}

	r := retrieval.New(st, provider, retrieval.Options{
		IndexPath: config.Index.Path,
		Rebuild:   rebuild || config.Index.Rebuild,
		Build:     index.BuildOptions{BatchSize: config.Embedding.BatchSize},
	}, log)
	return st, r, nil
}

// newComponents assembles the search pipeline. A reranker that cannot be built
// is logged and skipped, queries then use similarity order.
func newComponents(ctx context.Context, config *Config, rerankEnabled, rebuild bool, log *zap.Logger) (*components, error) {
	st, retriever, err := newRetriever(ctx, config, rebuild, log)
	if err != nil {
		return nil, err
	}
	c := &components{store: st, retriever: retriever, handoff: handoff.New(config.Handoff.File)}

	if rerankEnabled {
		reranker, err := newReranker(ctx, config.Rerank, log)
		if err != nil {
			log.Warn("skipping llm reranking", zap.Error(err))
		} else {
			c.reranker = reranker
		}
	}

	opts := pipeline.Options{
		TopK:    config.Retrieval.TopK,
		Filters: newFilters(config),
		FilterConfig: filtering.Config{
			MaxDistance: config.Retrieval.MaxDistance,
			ExcludeFile: config.ExcludeFile,
		},
		Publisher: c.handoff,
	}

	// A nil *rerank.Reranker must not reach the coordinator as a non-nil interface.
	var reranker pipeline.Reranker
	if c.reranker != nil {
		reranker = c.reranker
	}
	c.coordinator = pipeline.New(retriever, reranker, opts, log)

	for _, status := range filtering.Describe(opts.Filters) {
		log.Debug("filter", zap.String("name", status.Name), zap.Bool("enabled", status.Enabled), zap.String("reason", status.Reason))
	}
	return c, nil
}

func newFilters(config *Config) []filtering.Filter {
	steps := filtering.Default()
	if config.Retrieval.MaxDistance == 0 {
		filtering.DisableByName(steps, "distance_threshold", "retrieval.max-distance is not set")
	}
	if config.ExcludeFile == "" {
		filtering.DisableByName(steps, "exclude_file", "exclude-file is not set")
	}
	return steps
}
