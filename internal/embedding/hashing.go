package embedding

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"unicode"
)

const defaultHashingDimension = 256

// Hashing is an offline provider that maps word tokens into a fixed number
// of buckets. Texts sharing vocabulary end up close to each other.
type Hashing struct {
	dim int
}

func NewHashing(dimension int) *Hashing {
	if dimension <= 0 {
		dimension = defaultHashingDimension
	}
	return &Hashing{dim: dimension}
}

func (h *Hashing) Model() string {
	return fmt.Sprintf("local-hashing-%d", h.dim)
}

func (h *Hashing) Dimension() int {
	return h.dim
}

func (h *Hashing) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vectors[i] = h.vector(text)
	}
	return vectors, nil
}

func (h *Hashing) vector(text string) []float32 {
	vec := make([]float32, h.dim)
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '+' && r != '#'
	})

	for _, token := range tokens {
		hasher := fnv.New32a()
		hasher.Write([]byte(token)) //nolint:errcheck
		sum := hasher.Sum32()

		sign := float32(1)
		if sum&(1<<31) != 0 {
			sign = -1
		}
		vec[int(sum%uint32(h.dim))] += sign
	}

	Normalize(vec)
	return vec
}
