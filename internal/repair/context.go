package repair

import (
	"context"
	"os"

	"github.com/kamilpajak/quorum/pkg/models"
)

// Context assembly limits. Search first, then the files named by the
// failing tests; zero files is a degraded but valid outcome.
const (
	searchLimit          = 8
	searchScoreThreshold = 0.5
)

// osFileLoader reads files from the working tree.
type osFileLoader struct{}

func (osFileLoader) Load(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// assembleContext gathers source files for the providers using the two-tier
// strategy: semantic search over the codebase keyed by the failure, falling
// back to the exact files the failure records name.
func (l *Loop) assembleContext(ctx context.Context, bugDescription string, run *models.TestRun) map[string]string {
	files := l.searchContext(ctx, bugDescription, run)
	if len(files) > 0 {
		return files
	}
	return l.loadNamedFiles(run)
}

func (l *Loop) searchContext(ctx context.Context, bugDescription string, run *models.TestRun) map[string]string {
	if l.searcher == nil {
		return nil
	}

	query := bugDescription
	if query != "" {
		query += "\n"
	}
	query += run.FailureText()

	hits, err := l.searcher.Search(ctx, query, searchLimit, searchScoreThreshold)
	if err != nil {
		// Search is best-effort; fall through to the file tier.
		l.emitInfo("context search failed: " + err.Error())
		return nil
	}

	files := make(map[string]string)
	for _, h := range hits {
		content := h.Content
		if content == "" {
			loaded, err := l.loader.Load(h.FilePath)
			if err != nil {
				continue
			}
			content = loaded
		}
		files[h.FilePath] = content
	}
	return files
}

// loadNamedFiles loads the source and test files referenced by the failing
// test records. Missing files are skipped silently; the providers work with
// whatever is available.
func (l *Loop) loadNamedFiles(run *models.TestRun) map[string]string {
	files := make(map[string]string)
	for _, f := range run.FailingTests {
		for _, path := range []string{f.File, f.SourceFile} {
			if path == "" {
				continue
			}
			if _, seen := files[path]; seen {
				continue
			}
			content, err := l.loader.Load(path)
			if err != nil {
				continue
			}
			files[path] = content
		}
	}
	return files
}
