package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/kamilpajak/quorum/internal/database"
	"github.com/kamilpajak/quorum/pkg/models"
)

// runSummary is the list-view representation of a run.
type runSummary struct {
	ID             string     `json:"id"`
	BugDescription string     `json:"bug_description,omitempty"`
	MaxIterations  int        `json:"max_iterations"`
	Success        *bool      `json:"success"`
	Iterations     int        `json:"iterations"`
	FailureReason  string     `json:"failure_reason,omitempty"`
	StartedAt      time.Time  `json:"started_at"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
}

// runDetail adds the iteration history.
type runDetail struct {
	runSummary
	History []models.IterationRecord `json:"history"`
}

func summarize(run database.RepairRun) runSummary {
	return runSummary{
		ID:             run.ID.String(),
		BugDescription: run.BugDescription,
		MaxIterations:  run.MaxIterations,
		Success:        run.Success,
		Iterations:     run.Iterations,
		FailureReason:  run.FailureReason,
		StartedAt:      run.StartedAt,
		FinishedAt:     run.FinishedAt,
	}
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "run persistence not configured")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	runs, err := s.store.ListRuns(r.Context(), limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	summaries := make([]runSummary, 0, len(runs))
	for _, run := range runs {
		summaries = append(summaries, summarize(run))
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": summaries})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "run persistence not configured")
		return
	}

	id, err := uuid.Parse(r.PathValue("runID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid run ID")
		return
	}

	run, err := s.store.GetRun(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	if run == nil {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}

	detail := runDetail{runSummary: summarize(*run), History: run.History}
	if detail.History == nil {
		detail.History = []models.IterationRecord{}
	}
	writeJSON(w, http.StatusOK, detail)
}
