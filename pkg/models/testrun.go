package models

import "time"

// FailureKind classifies a failing test record.
type FailureKind string

const (
	FailureAssertion FailureKind = "assertion"
	FailurePanic     FailureKind = "panic"
	FailureBuild     FailureKind = "build"
	FailureTimeout   FailureKind = "timeout"
	FailureUnknown   FailureKind = "unknown"
)

// FailingTest is one structured test-failure record from a test run.
type FailingTest struct {
	Name       string      `json:"name"`
	File       string      `json:"file,omitempty"`
	Kind       FailureKind `json:"kind"`
	Message    string      `json:"message,omitempty"`
	Trace      string      `json:"trace,omitempty"`
	SourceFile string      `json:"source_file,omitempty"`
	SourceLine int         `json:"source_line,omitempty"`
}

// TestRun is the normalized outcome of one test execution.
type TestRun struct {
	Passed       bool          `json:"passed"`
	FailingTests []FailingTest `json:"failing_tests,omitempty"`
	TotalTests   int           `json:"total_tests"`
	Duration     time.Duration `json:"duration_ms"`
}

// FailureText formats the failing tests into the text handed to providers.
func (t *TestRun) FailureText() string {
	if t.Passed || len(t.FailingTests) == 0 {
		return ""
	}
	var b []byte
	for i, f := range t.FailingTests {
		if i > 0 {
			b = append(b, '\n')
		}
		b = append(b, "FAIL "...)
		b = append(b, f.Name...)
		if f.File != "" {
			b = append(b, " ("...)
			b = append(b, f.File...)
			b = append(b, ')')
		}
		if f.Message != "" {
			b = append(b, '\n')
			b = append(b, f.Message...)
		}
		if f.Trace != "" {
			b = append(b, '\n')
			b = append(b, f.Trace...)
		}
	}
	return string(b)
}
