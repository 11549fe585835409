// Package ai defines the chat-completion contract shared by LLM providers.
package ai

import (
	"context"
	"errors"
)

var (
	ErrRateLimited   = errors.New("llm rate limited")
	ErrTimeout       = errors.New("llm call timed out")
	ErrEmptyResponse = errors.New("llm returned empty response")
)

// DefaultSystemInstruction frames the model for candidate ranking.
const DefaultSystemInstruction = "You are an expert in recruiting and candidate selection."

// Options tune a single GenerateContent call. Zero values leave provider defaults.
type Options struct {
	Temperature       *float32
	MaxOutputTokens   int32
	SystemInstruction string
	// JSON asks the provider for a JSON response when it supports it.
	JSON bool
}

// Generator sends one prompt and returns the text answer.
type Generator interface {
	GenerateContent(ctx context.Context, prompt string, opts Options) (string, error)
	Model() string
}

func Float32(v float32) *float32 { return &v }
