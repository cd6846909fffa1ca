package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/kamilpajak/quorum/internal/applier"
	"github.com/kamilpajak/quorum/internal/consensus"
	"github.com/kamilpajak/quorum/internal/database"
	"github.com/kamilpajak/quorum/internal/fanout"
	"github.com/kamilpajak/quorum/internal/llm"
	"github.com/kamilpajak/quorum/internal/progress"
	"github.com/kamilpajak/quorum/internal/provider"
	"github.com/kamilpajak/quorum/internal/repair"
	"github.com/kamilpajak/quorum/internal/runner"
	"github.com/kamilpajak/quorum/internal/search"
	"github.com/kamilpajak/quorum/pkg/models"
)

var (
	configPath    string
	testSelector  string
	bugText       string
	maxIterations int
	providerList  string
	jsonOutput    bool
	projectDir    string
)

var repairCmd = &cobra.Command{
	Use:   "repair",
	Short: "Run the debug-fix-retest loop until tests pass",
	RunE:  runRepair,
}

func init() {
	repairCmd.Flags().StringVarP(&configPath, "config", "c", "", "Provider config file (YAML)")
	repairCmd.Flags().StringVarP(&testSelector, "tests", "t", "", "Test selector (package pattern or -run expression)")
	repairCmd.Flags().StringVarP(&bugText, "bug", "b", "", "Bug description passed to the providers")
	repairCmd.Flags().IntVarP(&maxIterations, "max-iterations", "n", 5, "Iteration budget")
	repairCmd.Flags().StringVar(&providerList, "providers", "", "Comma-separated provider subset (default: all configured)")
	repairCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output result as JSON")
	repairCmd.Flags().StringVarP(&projectDir, "dir", "d", "", "Project directory (default: current)")
}

func runRepair(cmd *cobra.Command, args []string) error {
	cfg, err := provider.LoadConfig(configPath)
	if err != nil {
		return err
	}
	registry, err := provider.NewRegistry(cfg.Providers)
	if err != nil {
		return err
	}

	emitter := newCLIEmitter(os.Stderr)
	coordinator, err := fanout.New(registry, emitter)
	if err != nil {
		return err
	}
	resolver := consensus.NewResolver(cfg.Thresholds.Similarity, cfg.Thresholds.MinAgreement, cfg.Thresholds.MinConfidence)

	opts := []repair.LoopOption{repair.WithEmitter(emitter)}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		db, err := database.New(cmd.Context(), dbURL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()
		opts = append(opts, repair.WithStore(db))

		if os.Getenv("GOOGLE_API_KEY") != "" {
			embedder, err := llm.NewGoogleEmbedder("")
			if err != nil {
				return err
			}
			searcher, err := search.NewSearcher(embedder, db)
			if err != nil {
				return err
			}
			opts = append(opts, repair.WithSearcher(searcher))
		}
	}

	loop, err := repair.NewLoop(
		&runner.GoTestRunner{Dir: projectDir},
		coordinator,
		resolver,
		&applier.FileApplier{Root: projectDir},
		opts...,
	)
	if err != nil {
		return err
	}

	var subset []string
	if providerList != "" {
		subset = strings.Split(providerList, ",")
		for i := range subset {
			subset[i] = strings.TrimSpace(subset[i])
		}
	}

	result := loop.Repair(cmd.Context(), repair.Options{
		TestSelector:   testSelector,
		BugDescription: bugText,
		MaxIterations:  maxIterations,
		Weights:        registry.Weights(),
		ProviderSubset: subset,
	})

	emitter.stop()

	if jsonOutput {
		return json.NewEncoder(os.Stdout).Encode(result)
	}

	printResult(os.Stderr, os.Stdout, result)
	if !result.Success {
		os.Exit(1)
	}
	return nil
}

// cliEmitter wraps the plain text emitter with a spinner on interactive
// terminals.
type cliEmitter struct {
	text    *progress.TextEmitter
	spinner *spinner.Spinner
}

func newCLIEmitter(w *os.File) *cliEmitter {
	e := &cliEmitter{text: &progress.TextEmitter{W: w}}
	if isatty.IsTerminal(w.Fd()) || isatty.IsCygwinTerminal(w.Fd()) {
		e.spinner = spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(w))
	}
	return e
}

func (e *cliEmitter) Emit(ev progress.Event) {
	if e.spinner != nil {
		e.spinner.Stop()
	}
	e.text.Emit(ev)
	if e.spinner != nil && ev.Type != "done" {
		e.spinner.Suffix = " waiting for providers..."
		e.spinner.Start()
	}
}

func (e *cliEmitter) stop() {
	if e.spinner != nil {
		e.spinner.Stop()
	}
}

func printResult(stderr, stdout io.Writer, r *models.RepairRunResult) {
	dim := color.New(color.FgHiBlack)
	bold := color.New(color.Bold)

	fmt.Fprintln(stderr)
	_, _ = dim.Fprintln(stderr, "  "+strings.Repeat("━", 50))

	if r.Success {
		green := color.New(color.FgGreen, color.Bold)
		_, _ = green.Fprintf(stdout, "Tests passing after %d iteration(s)\n", r.Iterations)
	} else {
		red := color.New(color.FgRed, color.Bold)
		_, _ = red.Fprintln(stdout, "Repair failed")
		fmt.Fprintln(stdout, r.FailureReason)
	}

	for _, rec := range r.History {
		if rec.Decision == nil {
			continue
		}
		fmt.Fprintln(stdout)
		_, _ = bold.Fprintf(stdout, "ITERATION %d\n", rec.Index)
		if rec.Decision.HasConsensus {
			printConfidenceBar(stdout, rec.Decision.WeightedConfidence)
			_, _ = dim.Fprintf(stdout, "  supporters: %s\n", strings.Join(rec.Decision.Supporters, ", "))
			if rec.FixApplied {
				fmt.Fprintln(stdout, "  fix applied")
			}
		} else {
			fmt.Fprintln(stdout, "  no consensus: "+rec.Decision.Reasoning)
		}
		for _, c := range rec.Decision.Conflicts {
			_, _ = dim.Fprintf(stdout, "  conflict: %s\n", c)
		}
	}
	fmt.Fprintf(stdout, "\nDuration: %s\n", r.Duration.Round(time.Millisecond))
}

func printConfidenceBar(w io.Writer, confidence float64) {
	const barWidth = 24
	pct := int(confidence * 100)
	filled := pct * barWidth / 100
	if filled > barWidth {
		filled = barWidth
	}

	var barColor *color.Color
	switch {
	case pct >= 80:
		barColor = color.New(color.FgGreen)
	case pct >= 40:
		barColor = color.New(color.FgYellow)
	default:
		barColor = color.New(color.FgRed)
	}

	bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)

	fmt.Fprintf(w, "  Confidence: %d%% ", pct)
	_, _ = barColor.Fprint(w, bar)
	fmt.Fprintln(w)
}
