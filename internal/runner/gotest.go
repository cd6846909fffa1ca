// Package runner executes the project's test suite and normalizes the
// results into structured failure records.
package runner

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/kamilpajak/quorum/pkg/models"
)

// GoTestRunner runs `go test -json` and parses the event stream.
type GoTestRunner struct {
	Dir string // working directory, empty = current
}

// Run executes the tests matched by selector. An empty selector runs every
// package; a selector containing a path separator is treated as a package
// pattern, anything else as a -run expression.
func (r *GoTestRunner) Run(ctx context.Context, selector string) (*models.TestRun, error) {
	args := []string{"test", "-json"}
	switch {
	case selector == "":
		args = append(args, "./...")
	case strings.Contains(selector, "/") || strings.HasPrefix(selector, "."):
		args = append(args, selector)
	default:
		args = append(args, "-run", selector, "./...")
	}

	start := time.Now()
	cmd := exec.CommandContext(ctx, "go", args...)
	cmd.Dir = r.Dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		// Exit code 1 with a parseable stream means failing tests, which is
		// a normal result. Anything else is a runner failure.
		if _, ok := err.(*exec.ExitError); !ok {
			return nil, fmt.Errorf("failed to run go test: %w", err)
		}
		if stdout.Len() == 0 {
			return nil, fmt.Errorf("go test produced no output: %s", strings.TrimSpace(stderr.String()))
		}
	}

	run, perr := ParseEvents(&stdout)
	if perr != nil {
		return nil, perr
	}
	run.Duration = time.Since(start)
	return run, nil
}
