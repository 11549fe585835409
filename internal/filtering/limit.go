package filtering

import (
	"context"
	"strconv"

	"go.uber.org/zap"

	"github.com/DarthPollos/CV-Compare-Project/internal/candidates"
)

type limitFilter struct {
	max     int
	enabled bool
	reason  string
}

// NewLimit creates a filter that keeps only the closest candidates the reranker accepts.
func NewLimit() Filter {
	return &limitFilter{enabled: true}
}

func (f *limitFilter) Name() string { return "limit" }

func (f *limitFilter) Disable(reason string) {
	f.enabled = false
	f.reason = reason
}

func (f *limitFilter) IsEnabled() bool { return f.enabled }

func (f *limitFilter) Validate(cfg *Config) error {
	f.max = cfg.MaxCandidates
	return nil
}

func (f *limitFilter) Apply(_ context.Context, deps Deps, m *candidates.Matches) (*candidates.Matches, Step, error) {
	initial := m.Len()
	if f.max <= 0 {
		return m, Step{Initial: initial, Dropped: 0, Left: initial}, nil
	}

	removed := m.Limit(f.max)
	if len(removed) > 0 {
		deps.Logger.Debug("limiting candidates",
			zap.Int("max_candidates", f.max),
			zap.Strings("excluded_candidates", removed),
		)
	}

	return m, Step{Initial: initial, Dropped: len(removed), Left: m.Len()}, nil
}

func (f *limitFilter) Status() Status {
	return Status{
		Name:    f.Name(),
		Enabled: f.enabled,
		Reason:  f.reason,
		Details: map[string]string{"max_candidates": strconv.Itoa(f.max)},
	}
}
