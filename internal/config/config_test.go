package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrag/internal/errs"
)

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 800, cfg.Chunker.MaxLength)
	assert.Equal(t, 100, cfg.Chunker.OverlapValue())
	assert.Equal(t, "hash", cfg.Embedder.Type)
	assert.Equal(t, 256, cfg.Embedder.Hash.Dimension)
	assert.Equal(t, "memory", cfg.Index.Type)
	assert.Equal(t, 3, cfg.Engine.RetryAttempts)
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestLoad_PartialFileFillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
chunker:
  max_length: 400
  overlap: 50
embedder:
  type: openai
  openai:
    model: text-embedding-3-large
index:
  type: sqlite
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 400, cfg.Chunker.MaxLength)
	assert.Equal(t, 50, cfg.Chunker.OverlapValue())
	assert.Equal(t, "text-embedding-3-large", cfg.Embedder.OpenAI.Model)
	assert.Equal(t, "https://api.openai.com/v1", cfg.Embedder.OpenAI.BaseURL)
	assert.Equal(t, "OPENAI_API_KEY", cfg.Embedder.OpenAI.APIKeyEnv)
	assert.Equal(t, "docrag-data", cfg.Index.SQLite.Dir)
}

func TestLoad_ExplicitZeroOverlapIsKept(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
chunker:
  max_length: 400
  overlap: 0
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 400, cfg.Chunker.MaxLength)
	assert.Equal(t, 0, cfg.Chunker.OverlapValue(), "explicit zero must not be rewritten to the default")
}

func TestLoad_InvalidValues(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"overlap_too_big": "chunker:\n  max_length: 10\n  overlap: 10\n",
		"bad_embedder":    "embedder:\n  type: quantum\n",
		"bad_index":       "index:\n  type: parquet\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name+".yaml")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
			_, err := Load(path)
			require.Error(t, err)
			assert.True(t, errs.HasCode(err, errs.CodeConfigInvalid))
		})
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("chunker: ["), 0o644))
	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, errs.HasCode(err, errs.CodeConfigInvalid))
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.Server.Addr = ":9999"
	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9999", loaded.Server.Addr)
	assert.Equal(t, cfg.Chunker, loaded.Chunker)
}
