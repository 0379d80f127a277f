// Package source provides document fetching for the retrieval engine.
package source

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"docrag/internal/domain"
	"docrag/internal/errs"
)

// Filesystem fetches documents from local text files. The document ID
// is derived from the file path, so re-ingesting the same file
// supersedes its earlier version.
type Filesystem struct{}

var _ domain.DocumentSource = Filesystem{}

// NewFilesystem creates a filesystem-backed document source.
func NewFilesystem() Filesystem { return Filesystem{} }

// Fetch reads the file at ref and returns it as a document.
func (Filesystem) Fetch(ctx context.Context, ref string) (domain.Document, error) {
	if err := ctx.Err(); err != nil {
		return domain.Document{}, err
	}
	data, err := os.ReadFile(ref)
	if err != nil {
		return domain.Document{}, errs.Wrap(err, errs.CodeSourceFetchFailure, "read document file",
			errs.Field("path", ref))
	}
	return domain.Document{
		ID:     DocumentID(ref),
		Title:  filepath.Base(ref),
		Origin: ref,
		Text:   string(data),
	}, nil
}

// DocumentID derives a stable document identifier from a file path.
func DocumentID(path string) string {
	sum := sha1.Sum([]byte(path))
	return hex.EncodeToString(sum[:8])
}

// Expand resolves glob patterns to a sorted, deduplicated list of .txt
// file paths. Patterns without matches are kept verbatim so a missing
// explicit path still surfaces as a fetch error.
func Expand(patterns []string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil || matches == nil {
			matches = []string{pattern}
		}
		for _, m := range matches {
			if !strings.HasSuffix(strings.ToLower(m), ".txt") {
				continue
			}
			if _, dup := seen[m]; dup {
				continue
			}
			seen[m] = struct{}{}
			out = append(out, m)
		}
	}
	sort.Strings(out)
	return out
}
