// Package progress carries live status events from a repair run to whatever
// front end is watching it (CLI text, SSE stream).
package progress

import (
	"fmt"
	"io"

	"github.com/kamilpajak/quorum/pkg/models"
)

// Event represents a single progress update during a repair run.
type Event struct {
	Type      string                    `json:"type"`                // "iteration", "tests", "provider", "consensus", "apply", "info", "done", "error"
	Iteration int                       `json:"iteration,omitempty"` // current iteration
	Max       int                       `json:"max,omitempty"`       // max iterations
	Message   string                    `json:"message,omitempty"`   // human-readable message
	Provider  string                    `json:"provider,omitempty"`  // provider ID for "provider" events
	Decision  *models.ConsensusDecision `json:"decision,omitempty"`  // populated for "consensus" events
	Result    *models.RepairRunResult   `json:"result,omitempty"`    // populated for "done" events
}

// Emitter receives progress events during a repair run.
type Emitter interface {
	Emit(event Event)
}

// TextEmitter formats progress events as human-readable text for CLI output.
type TextEmitter struct {
	W io.Writer
}

// Emit writes a formatted progress line to the underlying writer.
func (e *TextEmitter) Emit(ev Event) {
	switch ev.Type {
	case "iteration":
		fmt.Fprintf(e.W, "[iteration %d/%d] %s\n", ev.Iteration, ev.Max, ev.Message)
	case "tests":
		fmt.Fprintf(e.W, "[iteration %d/%d] Tests: %s\n", ev.Iteration, ev.Max, ev.Message)
	case "provider":
		fmt.Fprintf(e.W, "[iteration %d/%d]   %s: %s\n", ev.Iteration, ev.Max, ev.Provider, ev.Message)
	case "consensus":
		fmt.Fprintf(e.W, "[iteration %d/%d] Consensus: %s\n", ev.Iteration, ev.Max, ev.Message)
	case "apply":
		fmt.Fprintf(e.W, "[iteration %d/%d] Apply: %s\n", ev.Iteration, ev.Max, ev.Message)
	case "info":
		fmt.Fprintf(e.W, "  %s\n", ev.Message)
	case "error":
		fmt.Fprintf(e.W, "Error: %s\n", ev.Message)
	}
}

// Nop discards all events.
type Nop struct{}

// Emit implements Emitter.
func (Nop) Emit(Event) {}
