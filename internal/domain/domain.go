package domain

import (
	"context"
	"strconv"
)

// Document is a single unit of source text loaded into a corpus.
// Documents are immutable once ingested; re-ingesting under the same ID
// replaces all fragments derived from the earlier version.
type Document struct {
	ID     string
	Title  string
	Origin string
	Text   string
}

// Fragment is a contiguous span of a document's text, the unit of
// embedding and retrieval. Start and End are rune offsets into the
// source document, half-open [Start, End).
type Fragment struct {
	ID         string
	DocumentID string
	Index      int
	Text       string
	Start      int
	End        int
}

// FragmentID derives the canonical fragment identifier from a document
// ID and the fragment's position within it.
func FragmentID(documentID string, index int) string {
	return documentID + ":" + strconv.Itoa(index)
}

// IndexEntry pairs a fragment with its embedding vector. The vector must
// be L2-normalized before insertion; the index assigns the insertion
// sequence number used for tie-breaking.
type IndexEntry struct {
	Fragment Fragment
	Vector   []float32
}

// Hit is a single similarity search result.
type Hit struct {
	Fragment Fragment
	Score    float64
	Seq      uint64
}

// Match is a query result annotated with its originating document.
type Match struct {
	Fragment   Fragment
	Score      float64
	DocumentID string
}

// Embedder converts text into a fixed-dimension vector representation.
// Implementations are treated as black boxes; determinism is a property
// of the underlying model, not of this interface.
type Embedder interface {
	Name() string
	Dimension() int
	Embed(ctx context.Context, text string) ([]float32, error)
	// EmbedBatch returns one vector per input text, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorIndex stores fragment vectors and supports nearest-neighbor
// search. The first successful Insert or Rebuild fixes the index
// dimension; later entries with a different dimension are rejected.
type VectorIndex interface {
	Insert(ctx context.Context, entries []IndexEntry) error
	// Rebuild atomically replaces the index contents. Concurrent
	// searches never observe a half-replaced index.
	Rebuild(ctx context.Context, entries []IndexEntry) error
	// Search returns up to k hits ordered by descending cosine
	// similarity, ties broken by ascending insertion sequence.
	Search(ctx context.Context, query []float32, k int) ([]Hit, error)
	Size() int
}

// DocumentSource fetches documents from wherever the surrounding system
// keeps them. The core never talks to a document store directly.
type DocumentSource interface {
	Fetch(ctx context.Context, ref string) (Document, error)
}

// Summarizer produces a brief summary of the provided text.
type Summarizer interface {
	Summarize(text string, maxSentences int) (string, error)
}
