// Package hash provides a deterministic, dependency-free embedder.
// Tokens are hashed onto a fixed number of dimensions, so identical text
// always produces identical vectors. It is the default capability for
// tests and offline use; it approximates only lexical, not semantic,
// similarity.
package hash

import (
	"context"
	"hash/fnv"
	"math"
	"regexp"
	"strings"

	"docrag/internal/errs"
)

const DefaultDimension = 256

var tokenPattern = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*|\p{N}+`)

// Embedder maps each token to a dimension via FNV-1a and accumulates
// token counts, then L2-normalizes the result.
type Embedder struct {
	dimension int
}

// New creates a hash embedder with the given dimension; values below 1
// fall back to DefaultDimension.
func New(dimension int) *Embedder {
	if dimension < 1 {
		dimension = DefaultDimension
	}
	return &Embedder{dimension: dimension}
}

func (e *Embedder) Name() string { return "hash" }

func (e *Embedder) Dimension() int { return e.dimension }

func (e *Embedder) Embed(_ context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errs.New(errs.CodeEmbedInputEmpty, "cannot embed empty text")
	}
	vec := make([]float32, e.dimension)
	for _, tok := range tokenPattern.FindAllString(strings.ToLower(text), -1) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		vec[int(h.Sum32())%e.dimension]++
	}
	normalize(vec)
	return vec, nil
}

func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		vectors[i] = vec
	}
	return vectors, nil
}

func normalize(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range vec {
		vec[i] /= norm
	}
}
