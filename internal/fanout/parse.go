package fanout

import (
	"encoding/json"
	"fmt"
	"strings"
)

// salvagedConfidence is assigned when structured extraction fails and the
// raw body is kept as free-text analysis.
const salvagedConfidence = 0.3

// payload is the structured portion expected in a provider response body.
type payload struct {
	Analysis     string   `json:"analysis"`
	ProposedFix  string   `json:"proposed_fix"`
	Reasoning    string   `json:"reasoning"`
	Confidence   float64  `json:"confidence"`
	Alternatives []string `json:"alternative_approaches,omitempty"`
}

// parsePayload extracts and decodes the structured payload from a provider
// response. Providers routinely wrap the JSON in prose or code fences; the
// strict decode is attempted on the extracted portion.
func parsePayload(body string) (*payload, error) {
	raw := extractJSON(body)
	if raw == "" {
		return nil, fmt.Errorf("no JSON object found in response")
	}

	var p payload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, fmt.Errorf("failed to decode payload: %w", err)
	}
	if p.ProposedFix == "" {
		return nil, fmt.Errorf("payload missing proposed_fix")
	}

	// Provider-supplied confidence is untrusted; clamp rather than reject.
	if p.Confidence < 0 {
		p.Confidence = 0
	}
	if p.Confidence > 1 {
		p.Confidence = 1
	}

	if len(p.Alternatives) > 0 {
		p.Reasoning = strings.TrimSpace(p.Reasoning + "\n\nAlternative approaches considered: " + strings.Join(p.Alternatives, "; "))
	}
	return &p, nil
}

// extractJSON pulls the first JSON object out of text that may wrap it in
// markdown code fences or surrounding prose.
func extractJSON(text string) string {
	// Prefer fenced blocks.
	for _, fence := range []string{"```json", "```"} {
		if start := strings.Index(text, fence); start != -1 {
			rest := text[start+len(fence):]
			if end := strings.Index(rest, "```"); end != -1 {
				candidate := strings.TrimSpace(rest[:end])
				if balanced := balancedObject(candidate); balanced != "" {
					return balanced
				}
			}
		}
	}
	return balancedObject(text)
}

// balancedObject returns the first brace-balanced object in text, tracking
// string literals so braces inside them don't miscount.
func balancedObject(text string) string {
	start := strings.Index(text, "{")
	if start == -1 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if escaped {
			escaped = false
			continue
		}
		switch ch {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return text[start : i+1]
				}
			}
		}
	}
	return ""
}
