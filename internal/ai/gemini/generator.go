package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/DarthPollos/CV-Compare-Project/internal/ai"
	"github.com/DarthPollos/CV-Compare-Project/internal/logger"
)

// Generator sends prompts to a Gemini model.
type Generator struct {
	models modelsAPI
	model  string
	policy ai.Policy
	logger *zap.Logger
}

// NewGenerator creates a Generator on top of an existing client.
func NewGenerator(client *genai.Client, model string, policy ai.Policy, log *zap.Logger) (*Generator, error) {
	if client == nil {
		return nil, errors.New("gemini client is required")
	}
	return newGenerator(client.Models, model, policy, log), nil
}

func newGenerator(models modelsAPI, model string, policy ai.Policy, log *zap.Logger) *Generator {
	if model = strings.TrimSpace(model); model == "" {
		model = defaultModel
	}
	return &Generator{
		models: models,
		model:  model,
		policy: policy,
		logger: logger.WithCommonFields(log, "gemini", model),
	}
}

func (g *Generator) Model() string {
	if g == nil {
		return ""
	}
	return g.model
}

// GenerateContent returns the concatenated text parts of the first answer.
func (g *Generator) GenerateContent(ctx context.Context, prompt string, opts ai.Options) (string, error) {
	if g == nil || g.models == nil {
		return "", errors.New("gemini generator is not initialized")
	}

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.New("prompt must not be empty")
	}

	config := buildConfig(opts)

	return ai.Retry(ctx, g.policy, g.logger, classify, func(ctx context.Context) (string, error) {
		resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(prompt), config)
		if err != nil {
			return "", fmt.Errorf("generate content: %w", err)
		}
		return responseText(resp)
	})
}

func buildConfig(opts ai.Options) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{
		Temperature:     opts.Temperature,
		MaxOutputTokens: opts.MaxOutputTokens,
	}
	if sys := strings.TrimSpace(opts.SystemInstruction); sys != "" {
		config.SystemInstruction = genai.NewContentFromText(sys, genai.RoleUser)
	}
	if opts.JSON {
		config.ResponseMIMEType = "application/json"
	}
	return config
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", ai.ErrEmptyResponse
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
		// only the first candidate carries the answer
		if builder.Len() > 0 {
			break
		}
	}

	output := strings.TrimSpace(builder.String())
	if output == "" {
		return "", ai.ErrEmptyResponse
	}
	return output, nil
}
