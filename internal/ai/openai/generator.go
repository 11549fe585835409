package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/DarthPollos/CV-Compare-Project/internal/ai"
	"github.com/DarthPollos/CV-Compare-Project/internal/logger"
)

// zeroTemperature stands in for 0, which go-openai omits from the request
// and the server then replaces with its own default.
const zeroTemperature = 1e-6

// Generator sends prompts through the chat completions endpoint.
type Generator struct {
	client clientAPI
	model  string
	policy ai.Policy
	logger *zap.Logger
}

func NewGenerator(client *goopenai.Client, model string, policy ai.Policy, log *zap.Logger) (*Generator, error) {
	if client == nil {
		return nil, errors.New("openai client is required")
	}
	return newGenerator(client, model, policy, log), nil
}

func newGenerator(client clientAPI, model string, policy ai.Policy, log *zap.Logger) *Generator {
	if model = strings.TrimSpace(model); model == "" {
		model = defaultModel
	}
	return &Generator{
		client: client,
		model:  model,
		policy: policy,
		logger: logger.WithCommonFields(log, "openai", model),
	}
}

func (g *Generator) Model() string {
	if g == nil {
		return ""
	}
	return g.model
}

func (g *Generator) GenerateContent(ctx context.Context, prompt string, opts ai.Options) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.New("prompt must not be empty")
	}

	req := goopenai.ChatCompletionRequest{
		Model:     g.model,
		MaxTokens: int(opts.MaxOutputTokens),
	}
	if opts.Temperature != nil {
		req.Temperature = *opts.Temperature
		if req.Temperature == 0 {
			req.Temperature = zeroTemperature
		}
	}
	if opts.JSON {
		req.ResponseFormat = &goopenai.ChatCompletionResponseFormat{
			Type: goopenai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}
	if sys := strings.TrimSpace(opts.SystemInstruction); sys != "" {
		req.Messages = append(req.Messages, goopenai.ChatCompletionMessage{
			Role:    goopenai.ChatMessageRoleSystem,
			Content: sys,
		})
	}
	req.Messages = append(req.Messages, goopenai.ChatCompletionMessage{
		Role:    goopenai.ChatMessageRoleUser,
		Content: prompt,
	})

	return ai.Retry(ctx, g.policy, g.logger, classify, func(ctx context.Context) (string, error) {
		resp, err := g.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return "", fmt.Errorf("create chat completion: %w", err)
		}
		if len(resp.Choices) == 0 {
			return "", ai.ErrEmptyResponse
		}
		out := strings.TrimSpace(resp.Choices[0].Message.Content)
		if out == "" {
			return "", ai.ErrEmptyResponse
		}
		return out, nil
	})
}
