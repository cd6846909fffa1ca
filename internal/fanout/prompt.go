package fanout

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kamilpajak/quorum/internal/llm"
	"github.com/kamilpajak/quorum/internal/provider"
)

const systemPrompt = `You are an expert debugging assistant. You are given a bug description, the output of a failing test run, and relevant source code.

Propose a single concrete fix for the failure.

Respond in JSON format with the following structure:
{
  "analysis": "What is going wrong and why",
  "proposed_fix": "The concrete change to make, including code",
  "reasoning": "Why this fix addresses the root cause",
  "confidence": 0.8
}

In proposed_fix, emit one fenced code block per modified file with the file path on the fence line, like:

` + "```go internal/parser/scan.go" + `
<complete new file contents>
` + "```" + `

Confidence is your own estimate between 0.0 and 1.0. Do not repeat fixes listed as previously attempted. Be concise but complete.`

// steeringClauses differentiate the providers on purpose: identical prompts
// would collapse the diversity the consensus step depends on.
var steeringClauses = map[string]string{
	provider.IDAnthropic: "Favor architectural reasoning: look for design-level root causes (ownership, lifecycle, concurrency) before proposing the fix.",
	provider.IDOpenAI:    "Favor minimal, surgical fixes: prefer the smallest syntactic change that makes the failing tests pass without regressing others.",
	provider.IDGoogle:    "Favor pattern recognition: compare the failure against common bug classes (off-by-one, nil access, unhandled error, race) and fix the best match.",
}

const maxContextBytes = 60000

// buildMessages combines the shared prompt template with the provider's
// steering clause.
func buildMessages(prof provider.Profile, req Request) []llm.Message {
	system := systemPrompt
	if clause, ok := steeringClauses[prof.ID]; ok {
		system += "\n\n" + clause
	}

	var b strings.Builder

	b.WriteString("## Bug Description\n")
	if req.BugDescription != "" {
		b.WriteString(req.BugDescription)
	} else {
		b.WriteString("(none provided; infer from the failure output)")
	}
	b.WriteString("\n\n## Test Failure\n```\n")
	b.WriteString(req.FailureText)
	b.WriteString("\n```\n")

	if len(req.CodeContext) > 0 {
		b.WriteString("\n## Code Context\n")
		// Stable path order keeps prompts reproducible for a given request.
		paths := make([]string, 0, len(req.CodeContext))
		for path := range req.CodeContext {
			paths = append(paths, path)
		}
		sort.Strings(paths)

		budget := maxContextBytes
		for _, path := range paths {
			content := req.CodeContext[path]
			if len(content) > budget {
				content = content[:budget]
			}
			budget -= len(content)
			fmt.Fprintf(&b, "\n### %s\n```\n%s\n```\n", path, content)
			if budget <= 0 {
				b.WriteString("\n(further files omitted for size)\n")
				break
			}
		}
	}

	if len(req.PriorAttempts) > 0 {
		b.WriteString("\n## Previously Attempted Fixes (did NOT work, do not repeat)\n")
		for i, attempt := range req.PriorAttempts {
			fmt.Fprintf(&b, "\n### Attempt %d\n%s\n", i+1, attempt)
		}
	}

	return []llm.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: b.String()},
	}
}
