// Package repair drives the debug-fix-retest cycle: run tests, fan failing
// output to the providers, resolve consensus, apply the winning fix, and
// repeat until green or the iteration budget is spent.
package repair

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kamilpajak/quorum/internal/consensus"
	"github.com/kamilpajak/quorum/internal/fanout"
	"github.com/kamilpajak/quorum/internal/progress"
	"github.com/kamilpajak/quorum/pkg/models"
)

// Options configures a repair run.
type Options struct {
	TestSelector   string
	BugDescription string
	MaxIterations  int
	Weights        map[string]float64 // provider → voting weight
	ProviderSubset []string           // nil = all configured providers
}

// Loop orchestrates one repair run at a time. It owns the iteration
// history exclusively; no other component writes to it. Construct with
// NewLoop and reuse across runs.
type Loop struct {
	runner   TestRunner
	fanout   *fanout.Coordinator
	resolver *consensus.Resolver
	applier  FixApplier
	searcher ContextSearcher // may be nil
	loader   FileLoader
	store    RunStore // may be nil
	emitter  progress.Emitter
}

// NewLoop wires the loop's collaborators. runner, coordinator, resolver,
// and applier are required; searcher and store are optional.
func NewLoop(runner TestRunner, coordinator *fanout.Coordinator, resolver *consensus.Resolver, applier FixApplier, opts ...LoopOption) (*Loop, error) {
	if runner == nil {
		return nil, fmt.Errorf("test runner is required")
	}
	if coordinator == nil {
		return nil, fmt.Errorf("fan-out coordinator is required")
	}
	if resolver == nil {
		return nil, fmt.Errorf("consensus resolver is required")
	}
	if applier == nil {
		return nil, fmt.Errorf("fix applier is required")
	}

	l := &Loop{
		runner:   runner,
		fanout:   coordinator,
		resolver: resolver,
		applier:  applier,
		loader:   osFileLoader{},
		emitter:  progress.Nop{},
	}
	for _, o := range opts {
		o(l)
	}
	return l, nil
}

// LoopOption customizes optional collaborators.
type LoopOption func(*Loop)

// WithSearcher enables semantic context search.
func WithSearcher(s ContextSearcher) LoopOption {
	return func(l *Loop) { l.searcher = s }
}

// WithStore enables run persistence.
func WithStore(s RunStore) LoopOption {
	return func(l *Loop) { l.store = s }
}

// WithEmitter sets the progress emitter.
func WithEmitter(e progress.Emitter) LoopOption {
	return func(l *Loop) {
		if e != nil {
			l.emitter = e
		}
	}
}

// WithFileLoader overrides the fallback file loader (tests).
func WithFileLoader(f FileLoader) LoopOption {
	return func(l *Loop) { l.loader = f }
}

// Repair runs the full iterative cycle and always returns a result: on an
// unrecoverable collaborator failure the result carries success=false, a
// failure reason, and the history accumulated so far.
func (l *Loop) Repair(ctx context.Context, opts Options) *models.RepairRunResult {
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = 5
	}

	start := time.Now()
	runID := uuid.New().String()
	result := &models.RepairRunResult{MaxIterations: opts.MaxIterations}

	if l.store != nil {
		if err := l.store.CreateRun(ctx, runID, opts.BugDescription, opts.MaxIterations); err != nil {
			l.emitInfo("run persistence disabled: " + err.Error())
		}
	}

	var priorAttempts []string
	for i := 1; i <= opts.MaxIterations; i++ {
		result.Iterations = i
		rec := models.IterationRecord{Index: i, Timestamp: time.Now().UTC()}

		l.emitter.Emit(progress.Event{Type: "iteration", Iteration: i, Max: opts.MaxIterations, Message: "Running tests..."})

		run, err := l.runner.Run(ctx, opts.TestSelector)
		if err != nil {
			// Runner crash (not a test failure) aborts the run.
			return l.finish(ctx, runID, result, start, nil, fmt.Sprintf("test runner failed: %v", err))
		}
		rec.TestRun = run
		result.FinalTestRun = run

		if run.Passed {
			// Mandatory short-circuit: zero provider calls when green.
			result.History = append(result.History, rec)
			l.appendIteration(ctx, runID, rec)
			result.Success = true
			return l.finish(ctx, runID, result, start, run, "")
		}

		l.emitter.Emit(progress.Event{
			Type: "tests", Iteration: i, Max: opts.MaxIterations,
			Message: fmt.Sprintf("%d failing", len(run.FailingTests)),
		})

		codeContext := l.assembleContext(ctx, opts.BugDescription, run)

		responses, err := l.fanout.Analyze(ctx, fanout.Request{
			BugDescription: opts.BugDescription,
			CodeContext:    codeContext,
			FailureText:    run.FailureText(),
			PriorAttempts:  priorAttempts,
			Subset:         opts.ProviderSubset,
		})
		if err != nil {
			// Configuration errors from the coordinator are unrecoverable.
			result.History = append(result.History, rec)
			l.appendIteration(ctx, runID, rec)
			return l.finish(ctx, runID, result, start, run, fmt.Sprintf("provider fan-out failed: %v", err))
		}
		rec.Responses = responses

		decision := l.resolver.Resolve(responses, opts.Weights)
		rec.Decision = &decision
		l.emitter.Emit(progress.Event{
			Type: "consensus", Iteration: i, Max: opts.MaxIterations,
			Message: decision.Reasoning, Decision: &decision,
		})

		if decision.HasConsensus {
			rec.FixText = decision.ChosenFix
			applied, err := l.applier.Apply(ctx, decision.ChosenFix, codeContext)
			if err != nil {
				result.History = append(result.History, rec)
				l.appendIteration(ctx, runID, rec)
				return l.finish(ctx, runID, result, start, run, fmt.Sprintf("fix applier failed: %v", err))
			}
			rec.FixApplied = applied
			if applied {
				// Remember every applied fix until a later test run proves
				// it worked, so providers never resubmit it.
				priorAttempts = append(priorAttempts, decision.ChosenFix)
				l.emitter.Emit(progress.Event{Type: "apply", Iteration: i, Max: opts.MaxIterations, Message: "fix applied, re-running tests"})
			} else {
				l.emitter.Emit(progress.Event{Type: "apply", Iteration: i, Max: opts.MaxIterations, Message: "fix could not be applied"})
			}
		}

		result.History = append(result.History, rec)
		l.appendIteration(ctx, runID, rec)
	}

	return l.finish(ctx, runID, result, start, result.FinalTestRun,
		fmt.Sprintf("tests still failing after %d iteration(s)", opts.MaxIterations))
}

func (l *Loop) finish(ctx context.Context, runID string, result *models.RepairRunResult, start time.Time, finalRun *models.TestRun, failureReason string) *models.RepairRunResult {
	result.Duration = time.Since(start)
	result.FailureReason = failureReason
	if finalRun != nil {
		result.FinalTestRun = finalRun
	}

	if l.store != nil {
		if err := l.store.FinishRun(ctx, runID, result); err != nil {
			l.emitInfo("failed to persist run result: " + err.Error())
		}
	}

	if result.Success {
		l.emitter.Emit(progress.Event{Type: "done", Message: "tests passing", Result: result})
	} else {
		l.emitter.Emit(progress.Event{Type: "done", Message: failureReason, Result: result})
	}
	return result
}

func (l *Loop) appendIteration(ctx context.Context, runID string, rec models.IterationRecord) {
	if l.store == nil {
		return
	}
	if err := l.store.AppendIteration(ctx, runID, rec); err != nil {
		l.emitInfo("failed to persist iteration: " + err.Error())
	}
}

func (l *Loop) emitInfo(msg string) {
	l.emitter.Emit(progress.Event{Type: "info", Message: msg})
}
