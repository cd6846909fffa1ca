package repair

import (
	"context"

	"github.com/kamilpajak/quorum/pkg/models"
)

// TestRunner executes the test suite. Implementations must be safely
// callable repeatedly and must not mutate source files.
type TestRunner interface {
	Run(ctx context.Context, selector string) (*models.TestRun, error)
}

// SearchHit is one result from semantic context search.
type SearchHit struct {
	FilePath string
	Content  string
}

// ContextSearcher finds source files relevant to a failure. Optional: a nil
// searcher degrades the loop to file-based context assembly.
type ContextSearcher interface {
	Search(ctx context.Context, query string, limit int, scoreThreshold float64) ([]SearchHit, error)
}

// FixApplier turns a winning fix text into file edits. The loop only cares
// about the success boolean; how the fix is applied is the applier's
// business.
type FixApplier interface {
	Apply(ctx context.Context, fixText string, target map[string]string) (bool, error)
}

// FileLoader reads source files for the fallback context tier.
type FileLoader interface {
	Load(path string) (string, error)
}

// RunStore persists repair runs. Optional; a nil store keeps history
// in memory only.
type RunStore interface {
	CreateRun(ctx context.Context, runID string, bugDescription string, maxIterations int) error
	AppendIteration(ctx context.Context, runID string, rec models.IterationRecord) error
	FinishRun(ctx context.Context, runID string, result *models.RepairRunResult) error
}
