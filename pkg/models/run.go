package models

import "time"

// IterationRecord captures one full pass of the repair loop. Records are
// appended to a run-scoped ordered history, indexed from 1, and never
// edited afterwards.
type IterationRecord struct {
	Index      int                `json:"index"`
	TestRun    *TestRun           `json:"test_run"`
	Responses  []ProviderResponse `json:"responses,omitempty"`
	Decision   *ConsensusDecision `json:"decision,omitempty"`
	FixApplied bool               `json:"fix_applied"`
	FixText    string             `json:"fix_text,omitempty"`
	Timestamp  time.Time          `json:"timestamp"`
}

// RepairRunResult is the authoritative, externally visible outcome of a
// repair run.
type RepairRunResult struct {
	Success       bool              `json:"success"`
	Iterations    int               `json:"iterations"`
	MaxIterations int               `json:"max_iterations"`
	FinalTestRun  *TestRun          `json:"final_test_run,omitempty"`
	History       []IterationRecord `json:"history"`
	Duration      time.Duration     `json:"duration_ms"`
	FailureReason string            `json:"failure_reason,omitempty"`
}
