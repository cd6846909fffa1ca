// Package search provides semantic code search over a pgvector index.
// Source files are embedded once at index time; at repair time the failure
// text is embedded and matched against the index by cosine similarity.
package search

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/kamilpajak/quorum/internal/database"
	"github.com/kamilpajak/quorum/internal/llm"
	"github.com/kamilpajak/quorum/internal/repair"
)

// Index is the slice of the database layer the searcher needs.
type Index interface {
	UpsertFile(ctx context.Context, path, content string, embedding []float32) error
	SearchFiles(ctx context.Context, embedding []float32, limit int, threshold float64) ([]database.FileMatch, error)
}

// Searcher resolves repair-loop context queries against the index.
type Searcher struct {
	embedder llm.Embedder
	index    Index
}

// NewSearcher wires an embedder to an index.
func NewSearcher(embedder llm.Embedder, index Index) (*Searcher, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if index == nil {
		return nil, fmt.Errorf("index is required")
	}
	return &Searcher{embedder: embedder, index: index}, nil
}

// Search embeds the query and returns the closest indexed files.
func (s *Searcher) Search(ctx context.Context, query string, limit int, scoreThreshold float64) ([]repair.SearchHit, error) {
	embedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	matches, err := s.index.SearchFiles(ctx, embedding, limit, scoreThreshold)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	hits := make([]repair.SearchHit, 0, len(matches))
	for _, m := range matches {
		hits = append(hits, repair.SearchHit{FilePath: m.Path, Content: m.Content})
	}
	return hits, nil
}

// maxIndexFileBytes skips files too large to embed usefully.
const maxIndexFileBytes = 128 * 1024

// IndexTree walks root and indexes every Go source file, returning the
// number of files indexed. Vendored code, testdata, and hidden directories
// are skipped.
func (s *Searcher) IndexTree(ctx context.Context, root string) (int, error) {
	indexed := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if name != "." && (strings.HasPrefix(name, ".") || name == "vendor" || name == "testdata" || strings.HasPrefix(name, "_")) {
				return fs.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(path, ".go") {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if len(data) > maxIndexFileBytes {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = path
		}
		rel = filepath.ToSlash(rel)

		embedding, err := s.embedder.Embed(ctx, string(data))
		if err != nil {
			return fmt.Errorf("failed to embed %s: %w", rel, err)
		}
		if err := s.index.UpsertFile(ctx, rel, string(data), embedding); err != nil {
			return fmt.Errorf("failed to index %s: %w", rel, err)
		}
		indexed++
		return nil
	})
	return indexed, err
}
