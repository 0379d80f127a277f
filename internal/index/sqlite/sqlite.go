// Package sqlite provides a durable VectorIndex backend over a SQLite
// database. Vectors are stored as little-endian float32 blobs and
// scored by brute-force scan in Go, which is fine at the scale of a
// single corpus. WAL mode gives searches a consistent snapshot while a
// rebuild transaction is in flight.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"

	"docrag/internal/domain"
	"docrag/internal/errs"
	"docrag/internal/index"
)

const schema = `
CREATE TABLE IF NOT EXISTS entries (
	seq         INTEGER PRIMARY KEY AUTOINCREMENT,
	fragment_id TEXT    NOT NULL,
	document_id TEXT    NOT NULL,
	position    INTEGER NOT NULL,
	body        TEXT    NOT NULL,
	start_off   INTEGER NOT NULL,
	end_off     INTEGER NOT NULL,
	vector      BLOB    NOT NULL
);
CREATE INDEX IF NOT EXISTS entries_document ON entries(document_id);
CREATE TABLE IF NOT EXISTS index_meta (
	key   TEXT PRIMARY KEY,
	value INTEGER NOT NULL
);`

// Index is a SQLite-backed VectorIndex.
type Index struct {
	db      *sql.DB
	writeMu sync.Mutex
}

var _ domain.VectorIndex = (*Index)(nil)

// Open opens (or creates) the index database at path.
func Open(path string) (*Index, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, errs.Wrap(err, errs.CodeIndexBackendFailure, "open sqlite index")
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, errs.Wrap(err, errs.CodeIndexBackendFailure, "ping sqlite index")
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, errs.Wrap(err, errs.CodeIndexBackendFailure, "migrate sqlite index")
	}
	return &Index{db: db}, nil
}

// Close closes the underlying database.
func (idx *Index) Close() error { return idx.db.Close() }

// Insert appends entries in one transaction; the whole batch is
// rejected on any dimension mismatch.
func (idx *Index) Insert(ctx context.Context, entries []domain.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}
	idx.writeMu.Lock()
	defer idx.writeMu.Unlock()

	tx, err := idx.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.Wrap(err, errs.CodeIndexBackendFailure, "begin insert transaction")
	}
	defer func() { _ = tx.Rollback() }()

	dimension, err := readDimension(ctx, tx)
	if err != nil {
		return err
	}
	if dimension == 0 {
		dimension = len(entries[0].Vector)
	}
	if err := checkDimensions(entries, dimension); err != nil {
		return err
	}
	if err := insertEntries(ctx, tx, entries); err != nil {
		return err
	}
	if err := writeDimension(ctx, tx, dimension); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return errs.Wrap(err, errs.CodeIndexBackendFailure, "commit insert")
	}
	return nil
}

// Rebuild replaces the index contents in one transaction. Sequence
// numbers keep growing across rebuilds (AUTOINCREMENT), preserving the
// tie-break contract.
func (idx *Index) Rebuild(ctx context.Context, entries []domain.IndexEntry) error {
	idx.writeMu.Lock()
	defer idx.writeMu.Unlock()

	tx, err := idx.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.Wrap(err, errs.CodeIndexBackendFailure, "begin rebuild transaction")
	}
	defer func() { _ = tx.Rollback() }()

	dimension := 0
	if len(entries) > 0 {
		dimension = len(entries[0].Vector)
		if err := checkDimensions(entries, dimension); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM entries`); err != nil {
		return errs.Wrap(err, errs.CodeIndexBackendFailure, "clear entries")
	}
	if err := insertEntries(ctx, tx, entries); err != nil {
		return err
	}
	if err := writeDimension(ctx, tx, dimension); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return errs.Wrap(err, errs.CodeIndexBackendFailure, "commit rebuild")
	}
	return nil
}

// Search scans all entries and ranks them by cosine similarity with the
// shared ordering rules.
func (idx *Index) Search(ctx context.Context, query []float32, k int) ([]domain.Hit, error) {
	if k <= 0 {
		return nil, errs.Errorf(errs.CodeArgumentInvalid, "search requires k > 0, got %d", k)
	}

	rows, err := idx.db.QueryContext(ctx,
		`SELECT seq, fragment_id, document_id, position, body, start_off, end_off, vector FROM entries`)
	if err != nil {
		return nil, errs.Wrap(err, errs.CodeIndexBackendFailure, "scan entries")
	}
	defer func() { _ = rows.Close() }()

	var hits []domain.Hit
	for rows.Next() {
		var (
			seq  uint64
			f    domain.Fragment
			blob []byte
		)
		if err := rows.Scan(&seq, &f.ID, &f.DocumentID, &f.Index, &f.Text, &f.Start, &f.End, &blob); err != nil {
			return nil, errs.Wrap(err, errs.CodeIndexBackendFailure, "scan entry row")
		}
		vec, err := decodeVector(blob)
		if err != nil {
			return nil, errs.Wrap(err, errs.CodeIndexBackendFailure, "decode stored vector")
		}
		if len(vec) != len(query) {
			return nil, errs.Errorf(errs.CodeDimensionMismatch,
				"query dimension %d does not match index dimension %d", len(query), len(vec))
		}
		hits = append(hits, domain.Hit{Fragment: f, Score: index.Dot(vec, query), Seq: seq})
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(err, errs.CodeIndexBackendFailure, "iterate entries")
	}

	index.SortHits(hits)
	if k < len(hits) {
		hits = hits[:k]
	}
	return hits, nil
}

// Entries loads all stored entries in insertion order, used to restore
// corpus bookkeeping after a restart.
func (idx *Index) Entries(ctx context.Context) ([]domain.IndexEntry, error) {
	rows, err := idx.db.QueryContext(ctx,
		`SELECT fragment_id, document_id, position, body, start_off, end_off, vector FROM entries ORDER BY seq`)
	if err != nil {
		return nil, errs.Wrap(err, errs.CodeIndexBackendFailure, "scan entries")
	}
	defer func() { _ = rows.Close() }()

	var entries []domain.IndexEntry
	for rows.Next() {
		var (
			f    domain.Fragment
			blob []byte
		)
		if err := rows.Scan(&f.ID, &f.DocumentID, &f.Index, &f.Text, &f.Start, &f.End, &blob); err != nil {
			return nil, errs.Wrap(err, errs.CodeIndexBackendFailure, "scan entry row")
		}
		vec, err := decodeVector(blob)
		if err != nil {
			return nil, errs.Wrap(err, errs.CodeIndexBackendFailure, "decode stored vector")
		}
		entries = append(entries, domain.IndexEntry{Fragment: f, Vector: vec})
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(err, errs.CodeIndexBackendFailure, "iterate entries")
	}
	return entries, nil
}

// Size returns the number of stored entries, or zero if the database
// cannot be read.
func (idx *Index) Size() int {
	var n int
	if err := idx.db.QueryRow(`SELECT COUNT(*) FROM entries`).Scan(&n); err != nil {
		return 0
	}
	return n
}

func insertEntries(ctx context.Context, tx *sql.Tx, entries []domain.IndexEntry) error {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO entries (fragment_id, document_id, position, body, start_off, end_off, vector)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return errs.Wrap(err, errs.CodeIndexBackendFailure, "prepare insert")
	}
	defer func() { _ = stmt.Close() }()

	for _, e := range entries {
		f := e.Fragment
		if _, err := stmt.ExecContext(ctx, f.ID, f.DocumentID, f.Index, f.Text, f.Start, f.End, encodeVector(e.Vector)); err != nil {
			return errs.Wrap(err, errs.CodeIndexBackendFailure, fmt.Sprintf("insert fragment %s", f.ID))
		}
	}
	return nil
}

func readDimension(ctx context.Context, tx *sql.Tx) (int, error) {
	var dimension int
	err := tx.QueryRowContext(ctx, `SELECT value FROM index_meta WHERE key = 'dimension'`).Scan(&dimension)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, errs.Wrap(err, errs.CodeIndexBackendFailure, "read index dimension")
	}
	return dimension, nil
}

func writeDimension(ctx context.Context, tx *sql.Tx, dimension int) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO index_meta (key, value) VALUES ('dimension', ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, dimension)
	if err != nil {
		return errs.Wrap(err, errs.CodeIndexBackendFailure, "write index dimension")
	}
	return nil
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
