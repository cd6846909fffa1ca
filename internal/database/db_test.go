package database

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/kamilpajak/quorum/internal/llm"
	"github.com/kamilpajak/quorum/pkg/models"
)

// testDB connects to DATABASE_URL when set, otherwise starts a throwaway
// pgvector container. Skips when neither is available.
func testDB(t *testing.T) *DB {
	t.Helper()
	ctx := context.Background()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		container, err := postgres.Run(ctx, "pgvector/pgvector:pg16",
			postgres.WithDatabase("quorum"),
			postgres.WithUsername("quorum"),
			postgres.WithPassword("quorum"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(60*time.Second),
			),
		)
		if err != nil {
			t.Skipf("DATABASE_URL not set and container unavailable: %v", err)
		}
		t.Cleanup(func() { _ = container.Terminate(ctx) })

		dbURL, err = container.ConnectionString(ctx, "sslmode=disable")
		require.NoError(t, err)
	}

	require.NoError(t, Migrate(dbURL))

	db, err := New(ctx, dbURL)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return db
}

func TestRunLifecycle(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	runID := uuid.New()
	require.NoError(t, db.CreateRun(ctx, runID.String(), "parser drops last token", 5))

	rec := models.IterationRecord{
		Index:     1,
		TestRun:   &models.TestRun{Passed: false, TotalTests: 10},
		Responses: []models.ProviderResponse{{Provider: "anthropic", ProposedFix: "fix", Confidence: 0.9}},
		Decision:  &models.ConsensusDecision{HasConsensus: true, ChosenFix: "fix", WeightedConfidence: 0.9},
		FixText:   "fix",
		Timestamp: time.Now().UTC(),
	}
	rec.FixApplied = true
	require.NoError(t, db.AppendIteration(ctx, runID.String(), rec))

	rec2 := models.IterationRecord{
		Index:     2,
		TestRun:   &models.TestRun{Passed: true, TotalTests: 10},
		Timestamp: time.Now().UTC(),
	}
	require.NoError(t, db.AppendIteration(ctx, runID.String(), rec2))

	result := &models.RepairRunResult{Success: true, Iterations: 2, MaxIterations: 5}
	require.NoError(t, db.FinishRun(ctx, runID.String(), result))

	run, err := db.GetRun(ctx, runID)
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, "parser drops last token", run.BugDescription)
	require.NotNil(t, run.Success)
	assert.True(t, *run.Success)
	assert.Equal(t, 2, run.Iterations)
	assert.NotNil(t, run.FinishedAt)

	require.Len(t, run.History, 2)
	assert.Equal(t, 1, run.History[0].Index)
	assert.True(t, run.History[0].FixApplied)
	require.NotNil(t, run.History[0].Decision)
	assert.True(t, run.History[0].Decision.HasConsensus)
	assert.True(t, run.History[1].TestRun.Passed)
}

func TestAppendIterationIsAppendOnly(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	runID := uuid.New()
	require.NoError(t, db.CreateRun(ctx, runID.String(), "", 3))

	rec := models.IterationRecord{Index: 1, TestRun: &models.TestRun{}, Timestamp: time.Now().UTC()}
	require.NoError(t, db.AppendIteration(ctx, runID.String(), rec))

	// Re-inserting the same index must conflict, not overwrite.
	err := db.AppendIteration(ctx, runID.String(), rec)
	assert.Error(t, err)
}

func TestGetRunMissing(t *testing.T) {
	db := testDB(t)

	run, err := db.GetRun(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, run)
}

func TestListRuns(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	first := uuid.New()
	second := uuid.New()
	require.NoError(t, db.CreateRun(ctx, first.String(), "first", 5))
	require.NoError(t, db.CreateRun(ctx, second.String(), "second", 5))

	runs, err := db.ListRuns(ctx, 100, 0)
	require.NoError(t, err)

	ids := make(map[uuid.UUID]bool, len(runs))
	for _, r := range runs {
		ids[r.ID] = true
		assert.Empty(t, r.History, "list omits histories")
	}
	assert.True(t, ids[first])
	assert.True(t, ids[second])
}

func TestFileIndexSearch(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	embedding := func(seed float32) []float32 {
		v := make([]float32, llm.EmbeddingDimensions)
		v[0] = seed
		v[1] = 1 - seed
		return v
	}

	require.NoError(t, db.UpsertFile(ctx, "internal/parser/scan.go", "package parser", embedding(1.0)))
	require.NoError(t, db.UpsertFile(ctx, "internal/cache/cache.go", "package cache", embedding(0.0)))

	matches, err := db.SearchFiles(ctx, embedding(0.9), 10, 0.5)
	require.NoError(t, err)
	require.NotEmpty(t, matches)
	assert.Equal(t, "internal/parser/scan.go", matches[0].Path)
	assert.Equal(t, "package parser", matches[0].Content)
	assert.Greater(t, matches[0].Score, 0.5)

	// Upsert replaces content for an existing path.
	require.NoError(t, db.UpsertFile(ctx, "internal/parser/scan.go", "package parser // v2", embedding(1.0)))
	matches, err = db.SearchFiles(ctx, embedding(1.0), 1, 0)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "package parser // v2", matches[0].Content)

	require.NoError(t, db.DeleteFile(ctx, "internal/cache/cache.go"))
	count, err := db.CountFiles(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, count, 1)
}
