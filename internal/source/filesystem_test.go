package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrag/internal/errs"
)

func TestFetch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("some text"), 0o644))

	doc, err := NewFilesystem().Fetch(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "some text", doc.Text)
	assert.Equal(t, "notes.txt", doc.Title)
	assert.Equal(t, path, doc.Origin)
	assert.Equal(t, DocumentID(path), doc.ID)
	assert.Len(t, doc.ID, 16)
}

func TestFetch_MissingFile(t *testing.T) {
	_, err := NewFilesystem().Fetch(context.Background(), filepath.Join(t.TempDir(), "nope.txt"))
	require.Error(t, err)
	assert.True(t, errs.HasCode(err, errs.CodeSourceFetchFailure))
}

func TestDocumentID_StablePerPath(t *testing.T) {
	assert.Equal(t, DocumentID("/a/b.txt"), DocumentID("/a/b.txt"))
	assert.NotEqual(t, DocumentID("/a/b.txt"), DocumentID("/a/c.txt"))
}

func TestExpand(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.txt", "a.txt", "skip.md"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}

	paths := Expand([]string{filepath.Join(dir, "*"), filepath.Join(dir, "a.txt")})
	require.Len(t, paths, 2, "non-txt filtered, duplicates collapsed")
	assert.Equal(t, filepath.Join(dir, "a.txt"), paths[0])
	assert.Equal(t, filepath.Join(dir, "b.txt"), paths[1])
}

func TestExpand_KeepsUnmatchedPattern(t *testing.T) {
	paths := Expand([]string{"/definitely/missing/doc.txt"})
	assert.Equal(t, []string{"/definitely/missing/doc.txt"}, paths)
}
