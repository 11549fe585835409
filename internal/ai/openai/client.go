// Package openai adapts OpenAI compatible endpoints to the ai and embedding contracts.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/DarthPollos/CV-Compare-Project/internal/ai"
)

const (
	defaultModel          = "gpt-4o-mini"
	defaultEmbeddingModel = "text-embedding-3-small"
)

type clientAPI interface {
	CreateChatCompletion(ctx context.Context, req goopenai.ChatCompletionRequest) (goopenai.ChatCompletionResponse, error)
	CreateEmbeddings(ctx context.Context, conv goopenai.EmbeddingRequestConverter) (goopenai.EmbeddingResponse, error)
}

// NewClient builds a client. baseURL is optional and allows local OpenAI compatible servers.
func NewClient(apiKey, baseURL string) (*goopenai.Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	baseURL = strings.TrimSpace(baseURL)
	if apiKey == "" && baseURL == "" {
		return nil, errors.New("openai api key is required")
	}

	cfg := goopenai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return goopenai.NewClientWithConfig(cfg), nil
}

func statusCode(err error) (int, bool) {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode, true
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode, true
	}
	return 0, false
}

func classify(err error) ai.Decision {
	code, ok := statusCode(err)
	if !ok {
		return ai.Decision{Retry: false, Err: err}
	}

	switch {
	case code == http.StatusTooManyRequests:
		delay, _ := ai.ParseRetryDelay(err.Error())
		return ai.Decision{Retry: true, Delay: delay, Err: fmt.Errorf("%w: %w", ai.ErrRateLimited, err)}
	case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout:
		return ai.Decision{Retry: true, Err: fmt.Errorf("%w: %w", ai.ErrTimeout, err)}
	case code >= http.StatusInternalServerError:
		return ai.Decision{Retry: true, Err: err}
	default:
		return ai.Decision{Retry: false, Err: err}
	}
}
