package errs

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodeOf(t *testing.T) {
	err := New(CodeCorpusNotFound, "no such corpus", FieldCorpus("u1"))
	assert.Equal(t, CodeCorpusNotFound, CodeOf(err))
	assert.True(t, HasCode(err, CodeCorpusNotFound))
	assert.False(t, HasCode(err, CodeDimensionMismatch))
}

func TestCodeOf_PlainError(t *testing.T) {
	assert.Equal(t, Code(""), CodeOf(errors.New("plain")))
	assert.Equal(t, Code(""), CodeOf(nil))
}

func TestWrap_PreservesCode(t *testing.T) {
	inner := New(CodeEmbedUnavailable, "backend down")
	wrapped := With(inner, FieldDocument("doc1"))
	require.Error(t, wrapped)
	assert.Equal(t, CodeEmbedUnavailable, CodeOf(wrapped))
}

func TestWrap_NilPassthrough(t *testing.T) {
	assert.NoError(t, Wrap(nil, CodeIndexBackendFailure, "ignored"))
	assert.NoError(t, With(nil))
}

func TestClassifiers(t *testing.T) {
	assert.True(t, IsNotFound(New(CodeCorpusNotFound, "x")))
	assert.True(t, IsInvalidInput(New(CodeArgumentInvalid, "x")))
	assert.True(t, IsInvalidInput(New(CodeEmbedInputEmpty, "x")))
	assert.True(t, IsInvalidInput(New(CodeDocumentTooLarge, "x")))
	assert.True(t, IsUnavailable(New(CodeEmbedUnavailable, "x")))
	assert.False(t, IsUnavailable(New(CodeDimensionMismatch, "x")))
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, HTTPStatus(New(CodeCorpusNotFound, "x")))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(New(CodeArgumentInvalid, "x")))
	assert.Equal(t, http.StatusServiceUnavailable, HTTPStatus(New(CodeEmbedUnavailable, "x")))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(New(CodeIndexBackendFailure, "x")))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("plain")))
}

func TestRetryAfterHint(t *testing.T) {
	err := WithRetryAfter(New(CodeEmbedUnavailable, "throttled"), 7*time.Second)
	delay, ok := RetryAfterHint(err)
	require.True(t, ok)
	assert.Equal(t, 7*time.Second, delay)
	assert.Equal(t, CodeEmbedUnavailable, CodeOf(err), "hint does not change the code")

	// Later wrapping with more fields keeps the hint reachable.
	wrapped := With(err, FieldCorpus("u1"))
	delay, ok = RetryAfterHint(wrapped)
	require.True(t, ok)
	assert.Equal(t, 7*time.Second, delay)
}

func TestRetryAfterHint_Absent(t *testing.T) {
	_, ok := RetryAfterHint(New(CodeEmbedUnavailable, "throttled"))
	assert.False(t, ok)

	_, ok = RetryAfterHint(errors.New("plain"))
	assert.False(t, ok)

	assert.NoError(t, WithRetryAfter(nil, time.Second))
	same := New(CodeEmbedUnavailable, "x")
	assert.Equal(t, same, WithRetryAfter(same, 0), "non-positive delays are ignored")
}
