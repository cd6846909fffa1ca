package runner

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/kamilpajak/quorum/pkg/models"
)

// testEvent is one line of the go test -json stream.
type testEvent struct {
	Action  string  `json:"Action"`
	Package string  `json:"Package"`
	Test    string  `json:"Test"`
	Output  string  `json:"Output"`
	Elapsed float64 `json:"Elapsed"`
}

type testKey struct {
	pkg  string
	name string
}

// fileLineRe matches the "    file_test.go:42: message" lines the testing
// package prints for failures.
var fileLineRe = regexp.MustCompile(`(?m)^\s+([\w./-]+\.go):(\d+): ?(.*)`)

// ParseEvents normalizes a go test -json event stream into a TestRun. Lines
// that are not JSON (compiler diagnostics, toolchain noise) are kept as
// build output and surface as a build failure when no test ran.
func ParseEvents(r io.Reader) (*models.TestRun, error) {
	outputs := make(map[testKey]*strings.Builder)
	failed := make(map[testKey]bool)
	var failedOrder []testKey
	var buildOutput strings.Builder
	passed, failedCount := 0, 0
	buildFailed := false

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var ev testEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			buildOutput.Write(line)
			buildOutput.WriteByte('\n')
			continue
		}

		switch ev.Action {
		case "output":
			if ev.Test != "" {
				key := testKey{ev.Package, ev.Test}
				b, ok := outputs[key]
				if !ok {
					b = &strings.Builder{}
					outputs[key] = b
				}
				b.WriteString(ev.Output)
			} else if strings.Contains(ev.Output, "[build failed]") || strings.HasPrefix(ev.Output, "# ") || buildOutput.Len() > 0 {
				// Compiler diagnostics follow the "# pkg" header as plain
				// package-level output lines.
				buildOutput.WriteString(ev.Output)
			}
		case "build-output":
			buildOutput.WriteString(ev.Output)
		case "build-fail":
			buildFailed = true
		case "pass":
			if ev.Test != "" && !strings.Contains(ev.Test, "/") {
				passed++
			}
		case "fail":
			if ev.Test == "" {
				continue
			}
			key := testKey{ev.Package, ev.Test}
			if !failed[key] {
				failed[key] = true
				failedOrder = append(failedOrder, key)
			}
			if !strings.Contains(ev.Test, "/") {
				failedCount++
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	run := &models.TestRun{TotalTests: passed + failedCount}

	// Subtests fail their parents too; keep only the leaf records so one
	// subtest failure does not produce a duplicate parent entry.
	for _, key := range failedOrder {
		if hasFailedChild(failed, key) {
			continue
		}
		var out string
		if b := outputs[key]; b != nil {
			out = b.String()
		}
		run.FailingTests = append(run.FailingTests, makeFailure(key.pkg, key.name, out))
	}

	if len(run.FailingTests) == 0 && (buildFailed || strings.Contains(buildOutput.String(), "[build failed]") || looksLikeCompileError(buildOutput.String())) {
		run.FailingTests = append(run.FailingTests, models.FailingTest{
			Name:    "build",
			Kind:    models.FailureBuild,
			Message: strings.TrimSpace(buildOutput.String()),
		})
	}

	run.Passed = len(run.FailingTests) == 0 && run.TotalTests > 0
	return run, nil
}

func hasFailedChild(failed map[testKey]bool, parent testKey) bool {
	prefix := parent.name + "/"
	for key := range failed {
		if key.pkg == parent.pkg && strings.HasPrefix(key.name, prefix) {
			return true
		}
	}
	return false
}

func makeFailure(pkg, name, output string) models.FailingTest {
	f := models.FailingTest{
		Name:    pkg + "." + name,
		Kind:    classify(output),
		Message: cleanOutput(output),
	}

	if m := fileLineRe.FindStringSubmatch(output); m != nil {
		f.File = m[1]
		if n, err := strconv.Atoi(m[2]); err == nil {
			f.SourceLine = n
		}
	}

	if f.Kind == models.FailurePanic || f.Kind == models.FailureTimeout {
		if i := strings.Index(output, "goroutine "); i >= 0 {
			f.Trace = strings.TrimSpace(output[i:])
		}
	}

	// The first non-test file mentioned in the output is usually where the
	// failure originates.
	for _, m := range fileLineRe.FindAllStringSubmatch(output, -1) {
		if !strings.HasSuffix(m[1], "_test.go") {
			f.SourceFile = m[1]
			break
		}
	}
	return f
}

func classify(output string) models.FailureKind {
	switch {
	case strings.Contains(output, "panic: test timed out"):
		return models.FailureTimeout
	case strings.Contains(output, "panic:"):
		return models.FailurePanic
	case fileLineRe.MatchString(output):
		return models.FailureAssertion
	default:
		return models.FailureUnknown
	}
}

// cleanOutput drops the RUN/FAIL framing lines and caps the message.
func cleanOutput(output string) string {
	const maxMessage = 4000

	var b strings.Builder
	for _, line := range strings.Split(output, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "=== RUN") ||
			strings.HasPrefix(trimmed, "=== PAUSE") ||
			strings.HasPrefix(trimmed, "=== CONT") ||
			strings.HasPrefix(trimmed, "--- FAIL") {
			continue
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}

	msg := strings.TrimSpace(b.String())
	if len(msg) > maxMessage {
		msg = msg[:maxMessage] + "\n[truncated]"
	}
	return msg
}

func looksLikeCompileError(s string) bool {
	return strings.Contains(s, ".go:") && strings.Contains(s, "# ")
}
