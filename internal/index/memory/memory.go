// Package memory provides the in-memory VectorIndex backend. Searches
// run lock-free against an immutable snapshot; writers serialize on a
// mutex and publish a new snapshot with a single pointer swap, so a
// rebuild is atomic with respect to concurrent searches.
package memory

import (
	"context"
	"sync"
	"sync/atomic"

	"docrag/internal/domain"
	"docrag/internal/errs"
	"docrag/internal/index"
)

type entry struct {
	fragment domain.Fragment
	vector   []float32
	seq      uint64
}

type snapshot struct {
	dimension int
	entries   []entry
}

// Index is an in-memory brute-force cosine similarity index.
type Index struct {
	writeMu sync.Mutex
	nextSeq uint64
	snap    atomic.Pointer[snapshot]
}

var _ domain.VectorIndex = (*Index)(nil)

// New creates an empty index. The dimension is fixed by the first
// successful Insert or Rebuild.
func New() *Index {
	idx := &Index{}
	idx.snap.Store(&snapshot{})
	return idx
}

// Insert appends entries. The whole batch is rejected on any dimension
// mismatch; nothing is partially committed.
func (idx *Index) Insert(_ context.Context, entries []domain.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}
	idx.writeMu.Lock()
	defer idx.writeMu.Unlock()

	cur := idx.snap.Load()
	dimension := cur.dimension
	if dimension == 0 {
		dimension = len(entries[0].Vector)
	}
	if err := checkDimensions(entries, dimension); err != nil {
		return err
	}

	next := &snapshot{
		dimension: dimension,
		entries:   make([]entry, 0, len(cur.entries)+len(entries)),
	}
	next.entries = append(next.entries, cur.entries...)
	for _, e := range entries {
		next.entries = append(next.entries, entry{fragment: e.Fragment, vector: e.Vector, seq: idx.nextSeq})
		idx.nextSeq++
	}
	idx.snap.Store(next)
	return nil
}

// Rebuild atomically replaces the index contents. A rebuild counts as
// reindexing, so it may change the index dimension; an empty rebuild
// leaves the dimension to be fixed again by the next insert.
func (idx *Index) Rebuild(_ context.Context, entries []domain.IndexEntry) error {
	idx.writeMu.Lock()
	defer idx.writeMu.Unlock()

	next := &snapshot{}
	if len(entries) > 0 {
		next.dimension = len(entries[0].Vector)
		if err := checkDimensions(entries, next.dimension); err != nil {
			return err
		}
		next.entries = make([]entry, 0, len(entries))
		for _, e := range entries {
			next.entries = append(next.entries, entry{fragment: e.Fragment, vector: e.Vector, seq: idx.nextSeq})
			idx.nextSeq++
		}
	}
	idx.snap.Store(next)
	return nil
}

// Search scores every entry against the query vector and returns the
// top k hits. An empty index yields an empty result, not an error.
func (idx *Index) Search(_ context.Context, query []float32, k int) ([]domain.Hit, error) {
	if k <= 0 {
		return nil, errs.Errorf(errs.CodeArgumentInvalid, "search requires k > 0, got %d", k)
	}
	snap := idx.snap.Load()
	if len(snap.entries) == 0 {
		return nil, nil
	}
	if len(query) != snap.dimension {
		return nil, errs.Errorf(errs.CodeDimensionMismatch,
			"query dimension %d does not match index dimension %d", len(query), snap.dimension)
	}

	hits := make([]domain.Hit, len(snap.entries))
	for i, e := range snap.entries {
		hits[i] = domain.Hit{
			Fragment: e.fragment,
			Score:    index.Dot(e.vector, query),
			Seq:      e.seq,
		}
	}
	index.SortHits(hits)
	if k < len(hits) {
		hits = hits[:k]
	}
	return hits, nil
}

// Size returns the number of stored entries.
func (idx *Index) Size() int {
	return len(idx.snap.Load().entries)
}

func checkDimensions(entries []domain.IndexEntry, dimension int) error {
	for _, e := range entries {
		if len(e.Vector) != dimension {
			return errs.New(errs.CodeDimensionMismatch, "entry vector dimension does not match index dimension",
				errs.Field("fragment_id", e.Fragment.ID),
				errs.Field("got", len(e.Vector)),
				errs.Field("want", dimension))
		}
	}
	return nil
}
