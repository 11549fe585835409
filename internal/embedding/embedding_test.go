package embedding

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/DarthPollos/CV-Compare-Project/internal/ai"
)

type countingProvider struct {
	calls int
	texts int
	model string
}

func (p *countingProvider) Model() string { return p.model }

func (p *countingProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	p.calls++
	p.texts += len(texts)
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = []float32{float32(len(text)), 1}
	}
	return out, nil
}

type blockingProvider struct{}

func (blockingProvider) Model() string { return "slow" }

func (blockingProvider) Embed(ctx context.Context, _ []string) ([][]float32, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestHashingIsDeterministicAndNormalized(t *testing.T) {
	h := NewHashing(64)

	first, err := h.Embed(context.Background(), []string{"Python developer with Django"})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	second, err := h.Embed(context.Background(), []string{"Python developer with Django"})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}

	if len(first[0]) != 64 {
		t.Fatalf("expected dimension 64, got %d", len(first[0]))
	}

	var norm float64
	for i := range first[0] {
		if first[0][i] != second[0][i] {
			t.Fatalf("vectors differ at %d", i)
		}
		norm += float64(first[0][i]) * float64(first[0][i])
	}
	if math.Abs(norm-1) > 1e-5 {
		t.Fatalf("expected unit vector, got norm %f", norm)
	}

	if h.Model() != "local-hashing-64" {
		t.Fatalf("unexpected model: %s", h.Model())
	}
}

func TestHashingEmptyTextIsZeroVector(t *testing.T) {
	vectors, err := NewHashing(0).Embed(context.Background(), []string{"  "})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(vectors[0]) != defaultHashingDimension {
		t.Fatalf("expected default dimension, got %d", len(vectors[0]))
	}
	for _, v := range vectors[0] {
		if v != 0 {
			t.Fatalf("expected zero vector")
		}
	}
}

func TestCacheOnlyEmbedsMisses(t *testing.T) {
	inner := &countingProvider{model: "m1"}
	cache := NewCache(inner, 10, time.Minute, nil)
	ctx := context.Background()

	if _, err := cache.Embed(ctx, []string{"a", "bb"}); err != nil {
		t.Fatalf("embed: %v", err)
	}
	vectors, err := cache.Embed(ctx, []string{"bb", "ccc"})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}

	if inner.calls != 2 || inner.texts != 3 {
		t.Fatalf("expected 2 calls with 3 texts, got %d calls %d texts", inner.calls, inner.texts)
	}
	if vectors[0][0] != 2 || vectors[1][0] != 3 {
		t.Fatalf("vectors out of order: %v", vectors)
	}

	if _, err := cache.Embed(ctx, []string{"a", "ccc"}); err != nil {
		t.Fatalf("embed: %v", err)
	}
	if inner.calls != 2 {
		t.Fatalf("expected full cache hit, provider called %d times", inner.calls)
	}
	if cache.Len() != 3 {
		t.Fatalf("expected 3 cached entries, got %d", cache.Len())
	}
}

func TestCacheIsBounded(t *testing.T) {
	inner := &countingProvider{model: "m1"}
	cache := NewCache(inner, 2, time.Minute, nil)

	if _, err := cache.Embed(context.Background(), []string{"a", "b", "c"}); err != nil {
		t.Fatalf("embed: %v", err)
	}
	if cache.Len() != 2 {
		t.Fatalf("expected cache to hold 2 entries, got %d", cache.Len())
	}
}

func TestWithTimeoutReturnsTypedError(t *testing.T) {
	p := WithTimeout(blockingProvider{}, 10*time.Millisecond)

	_, err := p.Embed(context.Background(), []string{"text"})
	if !errors.Is(err, ai.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestWithTimeoutKeepsCallerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := WithTimeout(blockingProvider{}, time.Second).Embed(ctx, []string{"text"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
