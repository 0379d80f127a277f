package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrag/internal/domain"
	"docrag/internal/errs"
	"docrag/internal/index"
)

func openTestIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := Open(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func entryOf(docID string, i int, vec []float32) domain.IndexEntry {
	return domain.IndexEntry{
		Fragment: domain.Fragment{
			ID:         domain.FragmentID(docID, i),
			DocumentID: docID,
			Index:      i,
			Text:       "fragment text",
			Start:      i * 10,
			End:        i*10 + 10,
		},
		Vector: index.Normalize(vec),
	}
}

func TestEncodeDecodeVector(t *testing.T) {
	in := []float32{0.25, -1.5, 3.75, 0}
	out, err := decodeVector(encodeVector(in))
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestDecodeVector_BadLength(t *testing.T) {
	_, err := decodeVector([]byte{1, 2, 3})
	require.Error(t, err)
}

func TestInsertAndSearch_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.db")
	ctx := context.Background()

	idx, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, idx.Insert(ctx, []domain.IndexEntry{
		entryOf("doc", 0, []float32{1, 0}),
		entryOf("doc", 1, []float32{0, 1}),
	}))
	require.NoError(t, idx.Close())

	idx, err = Open(path)
	require.NoError(t, err)
	defer idx.Close()
	assert.Equal(t, 2, idx.Size())

	hits, err := idx.Search(ctx, index.Normalize([]float32{1, 0}), 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "doc:0", hits[0].Fragment.ID)
	assert.InDelta(t, 1.0, hits[0].Score, index.ScoreTolerance)
	assert.Equal(t, 0, hits[0].Fragment.Start)
	assert.Equal(t, 10, hits[0].Fragment.End)
}

func TestInsert_DimensionMismatch(t *testing.T) {
	idx := openTestIndex(t)
	ctx := context.Background()
	require.NoError(t, idx.Insert(ctx, []domain.IndexEntry{entryOf("doc", 0, []float32{1, 0, 0})}))

	err := idx.Insert(ctx, []domain.IndexEntry{entryOf("doc", 1, []float32{1, 0})})
	require.Error(t, err)
	assert.True(t, errs.HasCode(err, errs.CodeDimensionMismatch))
	assert.Equal(t, 1, idx.Size())
}

func TestRebuild_ReplacesAtomically(t *testing.T) {
	idx := openTestIndex(t)
	ctx := context.Background()
	require.NoError(t, idx.Insert(ctx, []domain.IndexEntry{
		entryOf("old", 0, []float32{1, 0}),
		entryOf("old", 1, []float32{0, 1}),
	}))

	require.NoError(t, idx.Rebuild(ctx, []domain.IndexEntry{entryOf("new", 0, []float32{1, 1})}))
	assert.Equal(t, 1, idx.Size())

	hits, err := idx.Search(ctx, index.Normalize([]float32{1, 1}), 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "new", hits[0].Fragment.DocumentID)
}

func TestRebuild_SequenceKeepsGrowing(t *testing.T) {
	idx := openTestIndex(t)
	ctx := context.Background()
	require.NoError(t, idx.Insert(ctx, []domain.IndexEntry{entryOf("a", 0, []float32{1, 0})}))

	hits, err := idx.Search(ctx, index.Normalize([]float32{1, 0}), 1)
	require.NoError(t, err)
	firstSeq := hits[0].Seq

	require.NoError(t, idx.Rebuild(ctx, []domain.IndexEntry{entryOf("b", 0, []float32{1, 0})}))
	hits, err = idx.Search(ctx, index.Normalize([]float32{1, 0}), 1)
	require.NoError(t, err)
	assert.Greater(t, hits[0].Seq, firstSeq)
}

func TestSearch_EmptyIndex(t *testing.T) {
	idx := openTestIndex(t)
	hits, err := idx.Search(context.Background(), []float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSearch_TieBreak(t *testing.T) {
	idx := openTestIndex(t)
	ctx := context.Background()
	same := []float32{1, 0}
	require.NoError(t, idx.Insert(ctx, []domain.IndexEntry{entryOf("first", 0, same)}))
	require.NoError(t, idx.Insert(ctx, []domain.IndexEntry{entryOf("second", 0, same)}))

	hits, err := idx.Search(ctx, index.Normalize(same), 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "first:0", hits[0].Fragment.ID)
}

func TestEntries_RoundTripInInsertionOrder(t *testing.T) {
	idx := openTestIndex(t)
	ctx := context.Background()

	want := []domain.IndexEntry{
		entryOf("doc1", 0, []float32{1, 0}),
		entryOf("doc1", 1, []float32{0, 1}),
		entryOf("doc2", 0, []float32{1, 1}),
	}
	require.NoError(t, idx.Insert(ctx, want[:2]))
	require.NoError(t, idx.Insert(ctx, want[2:]))

	got, err := idx.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i := range want {
		assert.Equal(t, want[i].Fragment, got[i].Fragment)
		assert.InDeltaSlice(t, want[i].Vector, got[i].Vector, 1e-6)
	}
}

func TestEntries_Empty(t *testing.T) {
	idx := openTestIndex(t)
	got, err := idx.Entries(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}
