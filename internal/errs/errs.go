// Package errs defines the error taxonomy shared across the retrieval
// core. Every error carries a machine-readable code so callers can
// distinguish transient failures (retry) from structural ones (don't).
package errs

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/samber/oops"
)

// Code is the machine-readable identifier for an error.
type Code string

const (
	CodeChunkerConfigInvalid  Code = "chunker.config.invalid"
	CodeArgumentInvalid       Code = "engine.argument.invalid"
	CodeEmbedInputEmpty       Code = "embed.input.empty"
	CodeEmbedUnavailable      Code = "embed.backend.unavailable"
	CodeDimensionMismatch     Code = "index.dimension.mismatch"
	CodeDocumentTooLarge      Code = "engine.document.too_large"
	CodeCorpusNotFound        Code = "registry.corpus.not_found"
	CodeIndexBackendFailure   Code = "index.backend.failure"
	CodeConfigInvalid         Code = "config.value.invalid"
	CodeServerRequestInvalid  Code = "server.request.invalid"
	CodeServerInternalFailure Code = "server.internal.failure"
	CodeSourceFetchFailure    Code = "source.fetch.failure"
)

// Attr is a structured key/value context attached to an error.
type Attr struct {
	Key   string
	Value any
}

// Field creates a structured error field.
func Field(key string, value any) Attr {
	return Attr{Key: key, Value: value}
}

func FieldCorpus(id string) Attr   { return Field("corpus_id", id) }
func FieldDocument(id string) Attr { return Field("document_id", id) }

func New(code Code, msg string, fields ...Attr) error {
	return oops.Code(string(code)).With(flatten(fields)...).New(msg)
}

func Errorf(code Code, format string, args ...any) error {
	return oops.Code(string(code)).Errorf(format, args...)
}

func Wrap(err error, code Code, msg string, fields ...Attr) error {
	if err == nil {
		return nil
	}
	return oops.Code(string(code)).With(flatten(fields)...).Wrapf(err, "%s", msg)
}

func Wrapf(err error, code Code, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return oops.Code(string(code)).Wrapf(err, format, args...)
}

// With adds structured fields to an existing error chain, preserving its code.
func With(err error, fields ...Attr) error {
	if err == nil {
		return nil
	}
	code := CodeOf(err)
	if code == "" {
		code = CodeServerInternalFailure
	}
	return oops.Code(string(code)).With(flatten(fields)...).Wrap(err)
}

const keyRetryAfter = "retry_after"

// WithRetryAfter attaches a server-requested retry delay to a transient
// error, typically from a Retry-After response header.
func WithRetryAfter(err error, delay time.Duration) error {
	if err == nil || delay <= 0 {
		return err
	}
	return With(err, Field(keyRetryAfter, delay))
}

// RetryAfterHint extracts a server-requested retry delay, if any.
func RetryAfterHint(err error) (time.Duration, bool) {
	if err == nil {
		return 0, false
	}
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return 0, false
	}
	delay, ok := oopsErr.Context()[keyRetryAfter].(time.Duration)
	return delay, ok && delay > 0
}

func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	switch code := oopsErr.Code().(type) {
	case Code:
		return code
	case string:
		return Code(code)
	default:
		return Code(fmt.Sprintf("%v", code))
	}
}

func HasCode(err error, code Code) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}

func IsNotFound(err error) bool {
	return reason(CodeOf(err)) == "not_found"
}

func IsInvalidInput(err error) bool {
	r := reason(CodeOf(err))
	return r == "invalid" || r == "empty" || r == "too_large"
}

// IsUnavailable reports whether the error is transient and worth retrying.
func IsUnavailable(err error) bool {
	return reason(CodeOf(err)) == "unavailable"
}

func HTTPStatus(err error) int {
	switch {
	case IsNotFound(err):
		return http.StatusNotFound
	case IsInvalidInput(err):
		return http.StatusBadRequest
	case IsUnavailable(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func flatten(fields []Attr) []any {
	pairs := make([]any, 0, len(fields)*2)
	for _, field := range fields {
		if field.Key == "" {
			continue
		}
		pairs = append(pairs, field.Key, field.Value)
	}
	return pairs
}

func reason(code Code) string {
	if code == "" {
		return ""
	}
	raw := string(code)
	idx := strings.LastIndex(raw, ".")
	if idx == -1 || idx == len(raw)-1 {
		return raw
	}
	return raw[idx+1:]
}
