package hash

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrag/internal/errs"
)

func TestEmbed_Deterministic(t *testing.T) {
	e := New(64)
	a, err := e.Embed(context.Background(), "the quick brown fox")
	require.NoError(t, err)
	b, err := e.Embed(context.Background(), "the quick brown fox")
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestEmbed_Normalized(t *testing.T) {
	e := New(128)
	vec, err := e.Embed(context.Background(), "vectors should have unit length after embedding")
	require.NoError(t, err)
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-5)
}

func TestEmbed_EmptyInput(t *testing.T) {
	e := New(0)
	assert.Equal(t, DefaultDimension, e.Dimension())
	_, err := e.Embed(context.Background(), "   ")
	require.Error(t, err)
	assert.True(t, errs.HasCode(err, errs.CodeEmbedInputEmpty))
}

func TestEmbedBatch_OrderPreserved(t *testing.T) {
	e := New(32)
	texts := []string{"alpha beta", "gamma delta", "alpha beta"}
	vectors, err := e.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vectors, 3)
	assert.Equal(t, vectors[0], vectors[2])
	assert.NotEqual(t, vectors[0], vectors[1])
}

func TestEmbedBatch_FailsOnEmptyElement(t *testing.T) {
	e := New(32)
	_, err := e.EmbedBatch(context.Background(), []string{"ok", ""})
	require.Error(t, err)
	assert.True(t, errs.HasCode(err, errs.CodeEmbedInputEmpty))
}
