// Package engine orchestrates the retrieval pipeline: chunking,
// embedding, indexing and similarity search over isolated corpora.
package engine

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"docrag/internal/domain"
	"docrag/internal/errs"
	"docrag/internal/index"
	"docrag/internal/registry"
)

// Chunker splits document text into indexable fragments.
type Chunker interface {
	Chunk(documentID, text string) []domain.Fragment
}

// Options tune the engine. Zero values fall back to defaults.
type Options struct {
	// MaxFragmentsPerDocument rejects documents that would produce
	// more fragments than this ceiling.
	MaxFragmentsPerDocument int
	// EmbedBatchSize is the number of fragments embedded per backend call.
	EmbedBatchSize int
	// EmbedConcurrency bounds the number of in-flight embedding batches.
	EmbedConcurrency int
	// RetryAttempts is the total number of tries per embedding batch.
	RetryAttempts int
	// RetryBase is the first retry delay; it doubles per attempt.
	RetryBase time.Duration
	// SummaryMaxSentences caps the ingestion report summary.
	SummaryMaxSentences int
}

func (o Options) withDefaults() Options {
	if o.MaxFragmentsPerDocument <= 0 {
		o.MaxFragmentsPerDocument = 1000
	}
	if o.EmbedBatchSize <= 0 {
		o.EmbedBatchSize = 32
	}
	if o.EmbedConcurrency <= 0 {
		o.EmbedConcurrency = 4
	}
	if o.RetryAttempts <= 0 {
		o.RetryAttempts = 3
	}
	if o.RetryBase <= 0 {
		o.RetryBase = 200 * time.Millisecond
	}
	if o.SummaryMaxSentences <= 0 {
		o.SummaryMaxSentences = 3
	}
	return o
}

// IngestReport describes the outcome of a successful ingest.
type IngestReport struct {
	CorpusID       string
	DocumentID     string
	FragmentsAdded int
	// Replaced is true when an earlier version of the document was
	// superseded.
	Replaced bool
	// Summary is a short extractive summary of the ingested text.
	Summary string
}

// Engine is the retrieval core. It is safe for concurrent use; ingests
// into the same corpus are serialized, searches are not.
type Engine struct {
	registry   *registry.Registry
	embedder   domain.Embedder
	chunker    Chunker
	summarizer domain.Summarizer
	opts       Options
	log        *slog.Logger
}

// New wires the retrieval pipeline together. The summarizer may be nil,
// in which case ingestion reports carry no summary.
func New(reg *registry.Registry, embedder domain.Embedder, chunker Chunker, summarizer domain.Summarizer, opts Options, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		registry:   reg,
		embedder:   embedder,
		chunker:    chunker,
		summarizer: summarizer,
		opts:       opts.withDefaults(),
		log:        log,
	}
}

// Ingest chunks, embeds and indexes a document into the corpus,
// creating the corpus on first use. Re-ingesting an existing document
// ID atomically replaces its earlier fragments. The committed index is
// untouched if embedding fails or the context is cancelled.
func (e *Engine) Ingest(ctx context.Context, corpusID string, doc domain.Document) (IngestReport, error) {
	if strings.TrimSpace(corpusID) == "" {
		return IngestReport{}, errs.New(errs.CodeArgumentInvalid, "corpus identifier is empty")
	}
	if strings.TrimSpace(doc.ID) == "" {
		return IngestReport{}, errs.New(errs.CodeArgumentInvalid, "document identifier is empty", errs.FieldCorpus(corpusID))
	}
	if strings.TrimSpace(doc.Text) == "" {
		return IngestReport{}, errs.New(errs.CodeEmbedInputEmpty, "document text is empty",
			errs.FieldCorpus(corpusID), errs.FieldDocument(doc.ID))
	}

	fragments := e.chunker.Chunk(doc.ID, doc.Text)
	if len(fragments) > e.opts.MaxFragmentsPerDocument {
		return IngestReport{}, errs.New(errs.CodeDocumentTooLarge, "document exceeds fragment ceiling",
			errs.FieldCorpus(corpusID), errs.FieldDocument(doc.ID),
			errs.Field("fragments", len(fragments)), errs.Field("ceiling", e.opts.MaxFragmentsPerDocument))
	}

	entries, err := e.embedFragments(ctx, fragments)
	if err != nil {
		return IngestReport{}, errs.With(err, errs.FieldCorpus(corpusID), errs.FieldDocument(doc.ID))
	}

	corpus, err := e.registry.GetOrCreate(corpusID)
	if err != nil {
		return IngestReport{}, errs.With(err, errs.FieldCorpus(corpusID))
	}
	corpus.LockIngest()
	defer corpus.UnlockIngest()

	replaced := corpus.HasDocument(doc.ID)
	if replaced {
		rebuilt := append(corpus.EntriesExcept(doc.ID), entries...)
		if err := corpus.Index().Rebuild(ctx, rebuilt); err != nil {
			return IngestReport{}, errs.With(err, errs.FieldCorpus(corpusID), errs.FieldDocument(doc.ID))
		}
	} else {
		if err := corpus.Index().Insert(ctx, entries); err != nil {
			return IngestReport{}, errs.With(err, errs.FieldCorpus(corpusID), errs.FieldDocument(doc.ID))
		}
	}
	corpus.RecordDocument(doc.ID, entries)

	report := IngestReport{
		CorpusID:       corpusID,
		DocumentID:     doc.ID,
		FragmentsAdded: len(entries),
		Replaced:       replaced,
	}
	if e.summarizer != nil {
		summary, err := e.summarizer.Summarize(doc.Text, e.opts.SummaryMaxSentences)
		if err != nil {
			e.log.Warn("summarization failed", "corpus_id", corpusID, "document_id", doc.ID, "error", err)
		} else {
			report.Summary = summary
		}
	}

	e.log.Info("document ingested",
		"corpus_id", corpusID,
		"document_id", doc.ID,
		"fragments", len(entries),
		"replaced", replaced,
	)
	return report, nil
}

// embedFragments embeds fragment texts in bounded-concurrency batches.
// Each batch is retried independently on transient backend failures.
func (e *Engine) embedFragments(ctx context.Context, fragments []domain.Fragment) ([]domain.IndexEntry, error) {
	entries := make([]domain.IndexEntry, len(fragments))
	for i, frag := range fragments {
		entries[i].Fragment = frag
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.EmbedConcurrency)
	for start := 0; start < len(fragments); start += e.opts.EmbedBatchSize {
		end := min(start+e.opts.EmbedBatchSize, len(fragments))
		batch := fragments[start:end]
		out := entries[start:end]
		g.Go(func() error {
			texts := make([]string, len(batch))
			for i, frag := range batch {
				texts[i] = frag.Text
			}
			var vectors [][]float32
			err := e.retryTransient(ctx, func() error {
				var embedErr error
				vectors, embedErr = e.embedder.EmbedBatch(ctx, texts)
				return embedErr
			})
			if err != nil {
				return err
			}
			if len(vectors) != len(batch) {
				return errs.Errorf(errs.CodeEmbedUnavailable,
					"embedder returned %d vectors for %d texts", len(vectors), len(batch))
			}
			for i, vec := range vectors {
				out[i].Vector = index.Normalize(vec)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return entries, nil
}

// Query embeds the text and returns up to k matches from the corpus,
// ordered by descending cosine similarity with ties broken by insertion
// order. An existing empty corpus yields an empty result; an unknown
// corpus is an error.
func (e *Engine) Query(ctx context.Context, corpusID, text string, k int) ([]domain.Match, error) {
	if k <= 0 {
		return nil, errs.New(errs.CodeArgumentInvalid, "result count must be positive",
			errs.FieldCorpus(corpusID), errs.Field("k", k))
	}
	if strings.TrimSpace(text) == "" {
		return nil, errs.New(errs.CodeEmbedInputEmpty, "query text is empty", errs.FieldCorpus(corpusID))
	}
	corpus, ok := e.registry.Get(corpusID)
	if !ok {
		return nil, errs.New(errs.CodeCorpusNotFound, "corpus does not exist", errs.FieldCorpus(corpusID))
	}
	if corpus.Index().Size() == 0 {
		return []domain.Match{}, nil
	}

	var vector []float32
	err := e.retryTransient(ctx, func() error {
		var embedErr error
		vector, embedErr = e.embedder.Embed(ctx, text)
		return embedErr
	})
	if err != nil {
		return nil, errs.With(err, errs.FieldCorpus(corpusID))
	}

	// Sparse embedders can map out-of-vocabulary queries to the zero
	// vector; cosine similarity is undefined there, so rank lexically.
	if index.IsZero(vector) {
		return e.lexicalQuery(corpus, text, k), nil
	}

	hits, err := corpus.Index().Search(ctx, index.Normalize(vector), k)
	if err != nil {
		return nil, errs.With(err, errs.FieldCorpus(corpusID))
	}
	matches := make([]domain.Match, len(hits))
	for i, hit := range hits {
		matches[i] = domain.Match{
			Fragment:   hit.Fragment,
			Score:      hit.Score,
			DocumentID: hit.Fragment.DocumentID,
		}
	}
	return matches, nil
}

// DeleteCorpus removes the corpus and all its documents, reporting
// whether anything existed.
func (e *Engine) DeleteCorpus(corpusID string) bool {
	deleted := e.registry.Delete(corpusID)
	if deleted {
		e.log.Info("corpus deleted", "corpus_id", corpusID)
	}
	return deleted
}

// Exists reports whether the corpus has been created.
func (e *Engine) Exists(corpusID string) bool {
	return e.registry.Exists(corpusID)
}
