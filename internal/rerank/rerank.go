// Package rerank asks an LLM to reorder and justify a candidate shortlist.
package rerank

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/DarthPollos/CV-Compare-Project/internal/ai"
	"github.com/DarthPollos/CV-Compare-Project/internal/candidates"
	"github.com/DarthPollos/CV-Compare-Project/internal/logger"
	"github.com/DarthPollos/CV-Compare-Project/internal/utils"
)

const (
	DefaultMaxCandidates   = 20
	DefaultTopN            = 5
	DefaultTemperature     = 0.2
	DefaultMaxOutputTokens = 800
	DefaultTimeout         = 90 * time.Second
	defaultMaxLogLength    = 200
)

var (
	ErrTooManyCandidates = errors.New("too many candidates for reranking")
	ErrNoCandidates      = errors.New("no candidates to rerank")
	// ErrUnavailable wraps failures of the LLM call itself.
	ErrUnavailable = errors.New("reranker unavailable")
	// ErrParseFailure marks a Result built from unusable LLM output.
	ErrParseFailure = errors.New("llm output could not be parsed")
	// ErrNoMatches marks a Result where no returned ID belongs to the candidate set.
	ErrNoMatches = errors.New("llm output matched no candidate")
)

// Config bounds a Reranker. Zero values select the defaults, except
// Temperature where only a negative value selects DefaultTemperature.
type Config struct {
	MaxCandidates     int
	TopN              int
	Temperature       float32
	MaxOutputTokens   int32
	Timeout           time.Duration
	MaxLogLength      int
	Instructions      string
	SystemInstruction string
}

func (c Config) withDefaults() Config {
	if c.MaxCandidates <= 0 {
		c.MaxCandidates = DefaultMaxCandidates
	}
	if c.TopN <= 0 {
		c.TopN = DefaultTopN
	}
	if c.Temperature < 0 {
		c.Temperature = DefaultTemperature
	}
	if c.MaxOutputTokens <= 0 {
		c.MaxOutputTokens = DefaultMaxOutputTokens
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxLogLength <= 0 {
		c.MaxLogLength = defaultMaxLogLength
	}
	if strings.TrimSpace(c.SystemInstruction) == "" {
		c.SystemInstruction = ai.DefaultSystemInstruction
	}
	return c
}

// Result is the reranker outcome. When the LLM answer cannot be used, Error
// holds a user safe message, Cause the sentinel and Raw the offending text.
type Result struct {
	Ranked  []candidates.Ranked `json:"ranked,omitempty"`
	Error   string              `json:"Error,omitempty"`
	Cause   error               `json:"-"`
	Raw     string              `json:"-"`
	Dropped []string            `json:"dropped,omitempty"`
}

func (r *Result) Failed() bool {
	return r == nil || r.Error != ""
}

type Reranker struct {
	generator ai.Generator
	cfg       Config
	logger    *zap.Logger
}

func New(generator ai.Generator, cfg Config, log *zap.Logger) *Reranker {
	return &Reranker{
		generator: generator,
		cfg:       cfg.withDefaults(),
		logger:    logger.WithCommonFields(logger.ForComponent(log, "reranker"), "", generator.Model()),
	}
}

func (r *Reranker) MaxCandidates() int { return r.cfg.MaxCandidates }

// Rerank orders the given matches for the job description. A Go error is
// returned only for invalid input or when the LLM could not be reached; an
// unusable answer is reported through Result.Error.
func (r *Reranker) Rerank(ctx context.Context, jobDescription string, matches []*candidates.Match) (*Result, error) {
	if len(matches) == 0 {
		return nil, ErrNoCandidates
	}
	if len(matches) > r.cfg.MaxCandidates {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManyCandidates, len(matches), r.cfg.MaxCandidates)
	}

	prompt := buildPrompt(jobDescription, matches, r.cfg.TopN, r.cfg.Instructions)

	r.logger.Debug("rerank request",
		zap.Int("candidates", len(matches)),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, r.cfg.MaxLogLength)),
	)

	callCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	raw, err := r.generator.GenerateContent(callCtx, prompt, ai.Options{
		Temperature:       ai.Float32(r.cfg.Temperature),
		MaxOutputTokens:   r.cfg.MaxOutputTokens,
		SystemInstruction: r.cfg.SystemInstruction,
		JSON:              true,
	})
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) && !errors.Is(err, ai.ErrTimeout) {
			err = fmt.Errorf("%w: %w", ai.ErrTimeout, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	r.logger.Debug("rerank response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, r.cfg.MaxLogLength)),
	)

	items, err := parse(raw)
	if err != nil {
		r.logger.Warn("rerank output unusable",
			zap.Error(err),
			zap.String("raw", utils.TruncateForLog(raw, r.cfg.MaxLogLength)),
		)
		return &Result{
			Error: "Could not process the LLM response. Check the JSON format.",
			Cause: ErrParseFailure,
			Raw:   raw,
		}, nil
	}

	ranked, dropped, ambiguous := reconcile(items, matches, r.cfg.TopN)
	for _, d := range dropped {
		r.logger.Warn("llm returned unknown or repeated candidate id", zap.String("candidate_id", d))
	}
	for _, a := range ambiguous {
		r.logger.Warn("llm returned ambiguous candidate id", zap.String("candidate_id", a))
	}
	dropped = append(dropped, ambiguous...)

	if len(ranked) == 0 {
		return &Result{
			Error:   "No matching candidates in the LLM response. Check the candidate IDs.",
			Cause:   ErrNoMatches,
			Raw:     raw,
			Dropped: dropped,
		}, nil
	}

	r.logger.Info("reranked candidates",
		zap.Int("offered", len(matches)),
		zap.Int("ranked", len(ranked)),
		zap.Int("dropped", len(dropped)),
	)

	return &Result{Ranked: ranked, Raw: raw, Dropped: dropped}, nil
}
