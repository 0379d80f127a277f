// Package registry maps opaque corpus identifiers to their isolated
// vector indices. The registry is the single writer of that mapping and
// guarantees one Corpus instance per identifier for its lifetime.
package registry

import (
	"sort"
	"sync"

	"docrag/internal/domain"
)

// Corpus pairs a vector index with the set of documents ingested into
// it. The ingest mutex gives each corpus a single-writer discipline;
// searches do not take it.
type Corpus struct {
	ID string

	ingestMu sync.Mutex
	docsMu   sync.RWMutex
	docs     map[string][]domain.IndexEntry
	index    domain.VectorIndex
}

// Index returns the corpus's vector index.
func (c *Corpus) Index() domain.VectorIndex { return c.index }

// LockIngest serializes ingests into this corpus. Ingests to other
// corpora proceed independently.
func (c *Corpus) LockIngest() { c.ingestMu.Lock() }

// UnlockIngest releases the ingest lock.
func (c *Corpus) UnlockIngest() { c.ingestMu.Unlock() }

// HasDocument reports whether a document with the given ID has been
// ingested.
func (c *Corpus) HasDocument(documentID string) bool {
	c.docsMu.RLock()
	defer c.docsMu.RUnlock()
	_, ok := c.docs[documentID]
	return ok
}

// RecordDocument remembers the indexed entries belonging to a document,
// superseding any earlier version.
func (c *Corpus) RecordDocument(documentID string, entries []domain.IndexEntry) {
	c.docsMu.Lock()
	defer c.docsMu.Unlock()
	c.docs[documentID] = entries
}

// Entries returns every indexed entry in the corpus in a deterministic
// order: documents by ID, fragments by position.
func (c *Corpus) Entries() []domain.IndexEntry {
	c.docsMu.RLock()
	defer c.docsMu.RUnlock()
	return c.collect("")
}

// EntriesExcept returns the corpus entries excluding those of the given
// document, in the same deterministic order as Entries.
func (c *Corpus) EntriesExcept(documentID string) []domain.IndexEntry {
	c.docsMu.RLock()
	defer c.docsMu.RUnlock()
	return c.collect(documentID)
}

// Fragments returns every fragment in the corpus, ordered like Entries.
func (c *Corpus) Fragments() []domain.Fragment {
	entries := c.Entries()
	out := make([]domain.Fragment, len(entries))
	for i, e := range entries {
		out[i] = e.Fragment
	}
	return out
}

// collect must be called with docsMu held.
func (c *Corpus) collect(skipDocumentID string) []domain.IndexEntry {
	ids := make([]string, 0, len(c.docs))
	for id := range c.docs {
		if id != skipDocumentID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	var out []domain.IndexEntry
	for _, id := range ids {
		out = append(out, c.docs[id]...)
	}
	return out
}

// DocumentCount returns the number of ingested documents.
func (c *Corpus) DocumentCount() int {
	c.docsMu.RLock()
	defer c.docsMu.RUnlock()
	return len(c.docs)
}

// IndexFactory creates the backing index for a new corpus. The corpus
// identifier lets persistent backends derive per-corpus storage.
type IndexFactory func(corpusID string) (domain.VectorIndex, error)

// Registry owns the identity-to-corpus mapping.
type Registry struct {
	mu       sync.RWMutex
	corpora  map[string]*Corpus
	newIndex IndexFactory
}

// New creates a registry whose corpora are backed by indices from the
// given factory.
func New(newIndex IndexFactory) *Registry {
	return &Registry{
		corpora:  make(map[string]*Corpus),
		newIndex: newIndex,
	}
}

// GetOrCreate returns the corpus for the identifier, creating an empty
// one if absent. Repeated calls with the same identifier return the
// same instance.
func (r *Registry) GetOrCreate(corpusID string) (*Corpus, error) {
	r.mu.RLock()
	c, ok := r.corpora[corpusID]
	r.mu.RUnlock()
	if ok {
		return c, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.corpora[corpusID]; ok {
		return c, nil
	}
	idx, err := r.newIndex(corpusID)
	if err != nil {
		return nil, err
	}
	c = &Corpus{
		ID:    corpusID,
		docs:  make(map[string][]domain.IndexEntry),
		index: idx,
	}
	r.corpora[corpusID] = c
	return c, nil
}

// Get returns the corpus for the identifier without creating one.
func (r *Registry) Get(corpusID string) (*Corpus, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.corpora[corpusID]
	return c, ok
}

// Exists reports whether a corpus exists for the identifier.
func (r *Registry) Exists(corpusID string) bool {
	_, ok := r.Get(corpusID)
	return ok
}

// Delete removes the corpus for the identifier and reports whether
// anything was removed.
func (r *Registry) Delete(corpusID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.corpora[corpusID]; !ok {
		return false
	}
	delete(r.corpora, corpusID)
	return true
}
