// Package chunker splits raw document text into overlapping fixed-size
// spans suitable for embedding.
package chunker

import (
	"iter"
	"unicode"

	"docrag/internal/domain"
	"docrag/internal/errs"
)

// Span is a half-open rune range [Start, End) of the source text.
type Span struct {
	Start int
	End   int
	Text  string
}

// Window splits text into spans of at most maxLength runes where
// consecutive spans share exactly overlap runes. Cuts prefer a
// whitespace boundary within a small lookback window before the hard
// limit, falling back to a hard cut to guarantee progress.
type Window struct {
	maxLength int
	overlap   int
	lookback  int
}

// New validates the chunking parameters and returns a Window.
// Requires maxLength > overlap >= 0.
func New(maxLength, overlap int) (*Window, error) {
	if maxLength <= 0 || overlap < 0 || overlap >= maxLength {
		return nil, errs.Errorf(errs.CodeChunkerConfigInvalid,
			"chunker requires maxLength > overlap >= 0, got maxLength=%d overlap=%d", maxLength, overlap)
	}
	lookback := maxLength / 5
	if lookback < 1 {
		lookback = 1
	}
	return &Window{maxLength: maxLength, overlap: overlap, lookback: lookback}, nil
}

// MaxLength returns the configured maximum span length in runes.
func (w *Window) MaxLength() int { return w.maxLength }

// Overlap returns the configured overlap in runes.
func (w *Window) Overlap() int { return w.overlap }

// Spans yields the spans of text lazily, in order. The sequence is
// finite, restartable and deterministic for a fixed input; empty text
// yields nothing.
func (w *Window) Spans(text string) iter.Seq[Span] {
	runes := []rune(text)
	return func(yield func(Span) bool) {
		start := 0
		for start < len(runes) {
			end := start + w.maxLength
			if end >= len(runes) {
				end = len(runes)
			} else {
				end = w.cut(runes, start, end)
			}
			if !yield(Span{Start: start, End: end, Text: string(runes[start:end])}) {
				return
			}
			if end == len(runes) {
				return
			}
			start = end - w.overlap
		}
	}
}

// Chunk materializes the spans of text as fragments of the given document.
func (w *Window) Chunk(documentID, text string) []domain.Fragment {
	var fragments []domain.Fragment
	for span := range w.Spans(text) {
		fragments = append(fragments, domain.Fragment{
			ID:         domain.FragmentID(documentID, len(fragments)),
			DocumentID: documentID,
			Index:      len(fragments),
			Text:       span.Text,
			Start:      span.Start,
			End:        span.End,
		})
	}
	return fragments
}

// cut picks the end of the span starting at start whose hard limit is
// hard. It scans backwards through the lookback window for a whitespace
// boundary, but never cuts so early that the next span would fail to
// advance past the overlap.
func (w *Window) cut(runes []rune, start, hard int) int {
	floor := hard - w.lookback
	if min := start + w.overlap + 1; floor < min {
		floor = min
	}
	for i := hard - 1; i >= floor; i-- {
		if unicode.IsSpace(runes[i]) {
			return i
		}
	}
	return hard
}
