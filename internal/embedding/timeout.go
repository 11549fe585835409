package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/DarthPollos/CV-Compare-Project/internal/ai"
)

const DefaultTimeout = 10 * time.Second

type timeoutProvider struct {
	next    Provider
	timeout time.Duration
}

// WithTimeout bounds every Embed call of next by d.
func WithTimeout(next Provider, d time.Duration) Provider {
	if d <= 0 {
		d = DefaultTimeout
	}
	return &timeoutProvider{next: next, timeout: d}
}

func (p *timeoutProvider) Model() string {
	return p.next.Model()
}

func (p *timeoutProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	vectors, err := p.next.Embed(callCtx, texts)
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("%w: embedding after %s: %v", ai.ErrTimeout, p.timeout, err)
		}
		return nil, err
	}
	return vectors, nil
}
