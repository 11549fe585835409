package filtering

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/DarthPollos/CV-Compare-Project/internal/candidates"
)

type distanceThresholdFilter struct {
	max     float64
	enabled bool
	reason  string
}

// NewDistanceThreshold creates a filter that drops matches farther than the configured distance.
func NewDistanceThreshold() Filter {
	return &distanceThresholdFilter{enabled: true}
}

func (f *distanceThresholdFilter) Name() string { return "distance_threshold" }

func (f *distanceThresholdFilter) Disable(reason string) {
	f.enabled = false
	f.reason = reason
}

func (f *distanceThresholdFilter) IsEnabled() bool { return f.enabled }

func (f *distanceThresholdFilter) Validate(cfg *Config) error {
	if cfg.MaxDistance < 0 || cfg.MaxDistance > 2 {
		return fmt.Errorf("max distance %v is outside [0, 2]", cfg.MaxDistance)
	}
	f.max = cfg.MaxDistance
	return nil
}

func (f *distanceThresholdFilter) Apply(_ context.Context, deps Deps, m *candidates.Matches) (*candidates.Matches, Step, error) {
	initial := m.Len()
	if f.max == 0 {
		return m, Step{Initial: initial, Dropped: 0, Left: initial}, nil
	}

	var far []string
	for _, match := range m.Items {
		if match.Distance > f.max {
			far = append(far, match.Record.ID)
		}
	}
	removed := m.Exclude(far)
	if len(removed) > 0 {
		deps.Logger.Info("excluding candidates above distance threshold",
			zap.Float64("max_distance", f.max),
			zap.Strings("excluded_candidates", removed),
			zap.Int("candidates_left", m.Len()),
		)
	}

	return m, Step{Initial: initial, Dropped: len(removed), Left: m.Len()}, nil
}

func (f *distanceThresholdFilter) Status() Status {
	details := map[string]string{}
	if f.max > 0 {
		details["max_distance"] = strconv.FormatFloat(f.max, 'f', 2, 64)
	}
	return Status{Name: f.Name(), Enabled: f.enabled, Reason: f.reason, Details: details}
}
