package api

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kamilpajak/quorum/internal/database"
	"github.com/kamilpajak/quorum/internal/progress"
	"github.com/kamilpajak/quorum/pkg/models"
)

type fakeStore struct {
	runs map[uuid.UUID]*database.RepairRun
	err  error
}

func (s *fakeStore) GetRun(ctx context.Context, id uuid.UUID) (*database.RepairRun, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.runs[id], nil
}

func (s *fakeStore) ListRuns(ctx context.Context, limit, offset int) ([]database.RepairRun, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []database.RepairRun
	for _, r := range s.runs {
		out = append(out, *r)
	}
	return out, nil
}

func sampleRun() *database.RepairRun {
	success := true
	finished := time.Now().UTC()
	return &database.RepairRun{
		ID:             uuid.New(),
		BugDescription: "parser drops last token",
		MaxIterations:  5,
		Success:        &success,
		Iterations:     2,
		StartedAt:      finished.Add(-time.Minute),
		FinishedAt:     &finished,
		History: []models.IterationRecord{
			{Index: 1, TestRun: &models.TestRun{Passed: false}},
			{Index: 2, TestRun: &models.TestRun{Passed: true}},
		},
	}
}

func TestHandleHealth(t *testing.T) {
	server := NewServer(Config{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestHandleListRuns(t *testing.T) {
	run := sampleRun()
	server := NewServer(Config{Store: &fakeStore{runs: map[uuid.UUID]*database.RepairRun{run.ID: run}}})

	req := httptest.NewRequest(http.MethodGet, "/api/runs", nil)
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Runs []runSummary `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Runs, 1)
	assert.Equal(t, run.ID.String(), body.Runs[0].ID)
	assert.Equal(t, 2, body.Runs[0].Iterations)
	require.NotNil(t, body.Runs[0].Success)
	assert.True(t, *body.Runs[0].Success)
}

func TestHandleGetRun(t *testing.T) {
	run := sampleRun()
	server := NewServer(Config{Store: &fakeStore{runs: map[uuid.UUID]*database.RepairRun{run.ID: run}}})

	req := httptest.NewRequest(http.MethodGet, "/api/runs/"+run.ID.String(), nil)
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var detail runDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
	assert.Equal(t, run.ID.String(), detail.ID)
	require.Len(t, detail.History, 2)
	assert.True(t, detail.History[1].TestRun.Passed)
}

func TestHandleGetRunNotFound(t *testing.T) {
	server := NewServer(Config{Store: &fakeStore{runs: map[uuid.UUID]*database.RepairRun{}}})

	req := httptest.NewRequest(http.MethodGet, "/api/runs/"+uuid.New().String(), nil)
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleGetRunInvalidID(t *testing.T) {
	server := NewServer(Config{Store: &fakeStore{}})

	req := httptest.NewRequest(http.MethodGet, "/api/runs/not-a-uuid", nil)
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleListRunsDatabaseError(t *testing.T) {
	server := NewServer(Config{Store: &fakeStore{err: fmt.Errorf("connection refused")}})

	req := httptest.NewRequest(http.MethodGet, "/api/runs", nil)
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHandleRunsWithoutStore(t *testing.T) {
	server := NewServer(Config{})

	req := httptest.NewRequest(http.MethodGet, "/api/runs", nil)
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleEventsStreams(t *testing.T) {
	hub := progress.NewHub()
	server := NewServer(Config{Hub: hub})

	ts := httptest.NewServer(server)
	defer ts.Close()

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/events", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	// Give the handler time to subscribe before emitting.
	time.Sleep(50 * time.Millisecond)
	hub.Emit(progress.Event{Type: "iteration", Iteration: 1, Max: 5, Message: "Running tests..."})
	hub.Close()

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(line, "data: "))

	var ev progress.Event
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(strings.TrimSpace(line), "data: ")), &ev))
	assert.Equal(t, "iteration", ev.Type)
	assert.Equal(t, 1, ev.Iteration)
}

func TestHandleEventsWithoutHub(t *testing.T) {
	server := NewServer(Config{})

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
