package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrag/internal/errs"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	t.Setenv("TEST_OPENAI_KEY", "sk-test")
	client, err := NewClient(Config{BaseURL: srv.URL, APIKeyEnv: "TEST_OPENAI_KEY", Model: "test-model"})
	require.NoError(t, err)
	return client
}

func TestNewClient_MissingKey(t *testing.T) {
	t.Setenv("TEST_OPENAI_MISSING", "")
	_, err := NewClient(Config{APIKeyEnv: "TEST_OPENAI_MISSING"})
	require.Error(t, err)
	assert.True(t, errs.HasCode(err, errs.CodeConfigInvalid))
}

func TestEmbedBatch_OrdersByIndex(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		require.Len(t, req.Input, 2)

		// Deliberately answer out of order.
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"embedding": []float32{0, 1}, "index": 1},
				{"embedding": []float32{1, 0}, "index": 0},
			},
		})
	})

	vectors, err := client.EmbedBatch(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, vectors[0])
	assert.Equal(t, []float32{0, 1}, vectors[1])
	assert.Equal(t, 2, client.Dimension())
}

func TestEmbedBatch_EmptyInput(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected for empty input")
	})
	_, err := client.EmbedBatch(context.Background(), []string{"ok", " "})
	require.Error(t, err)
	assert.True(t, errs.HasCode(err, errs.CodeEmbedInputEmpty))
}

func TestEmbedBatch_ServerErrorIsUnavailable(t *testing.T) {
	for _, status := range []int{http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway} {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		})
		_, err := client.Embed(context.Background(), "text")
		require.Error(t, err)
		assert.True(t, errs.HasCode(err, errs.CodeEmbedUnavailable), "status %d must map to unavailable", status)
	}
}

func TestEmbedBatch_UnreachableIsUnavailable(t *testing.T) {
	t.Setenv("TEST_OPENAI_KEY", "sk-test")
	client, err := NewClient(Config{BaseURL: "http://127.0.0.1:1", APIKeyEnv: "TEST_OPENAI_KEY"})
	require.NoError(t, err)
	_, err = client.Embed(context.Background(), "text")
	require.Error(t, err)
	assert.True(t, errs.HasCode(err, errs.CodeEmbedUnavailable))
}

func TestEmbedBatch_CountMismatch(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"embedding": []float32{1}, "index": 0}},
		})
	})
	_, err := client.EmbedBatch(context.Background(), []string{"a", "b"})
	require.Error(t, err)
	assert.True(t, errs.HasCode(err, errs.CodeEmbedUnavailable))
}

func TestDimension_KnownModel(t *testing.T) {
	t.Setenv("TEST_OPENAI_KEY", "sk-test")
	client, err := NewClient(Config{APIKeyEnv: "TEST_OPENAI_KEY", Model: "text-embedding-3-small"})
	require.NoError(t, err)
	assert.Equal(t, 1536, client.Dimension())
}

func TestEmbedBatch_ConcurrentDimensionLearning(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"embedding": []float32{1, 0, 0}, "index": 0},
			},
		})
	})
	require.Zero(t, client.Dimension(), "unknown model starts with no dimension")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			vectors, err := client.EmbedBatch(context.Background(), []string{"text"})
			assert.NoError(t, err)
			assert.Len(t, vectors[0], 3)
			// Readers race the lazy publish when this is a plain field.
			if d := client.Dimension(); d != 0 {
				assert.Equal(t, 3, d)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 3, client.Dimension())
}

func TestEmbedBatch_RetryAfterHint(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
	})
	_, err := client.Embed(context.Background(), "text")
	require.Error(t, err)
	assert.True(t, errs.HasCode(err, errs.CodeEmbedUnavailable))

	delay, ok := errs.RetryAfterHint(err)
	require.True(t, ok)
	assert.Equal(t, 7*time.Second, delay)
}

func TestEmbedBatch_RetryAfterIgnoresUnparseable(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "Wed, 21 Oct 2026 07:28:00 GMT")
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	_, err := client.Embed(context.Background(), "text")
	require.Error(t, err)
	assert.True(t, errs.HasCode(err, errs.CodeEmbedUnavailable))

	_, ok := errs.RetryAfterHint(err)
	assert.False(t, ok)
}
