// Package llm provides thin HTTP clients for the supported LLM providers.
// Each client implements the Client interface; provider selection, prompt
// construction, and failure handling live in the fanout package.
package llm

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/kamilpajak/quorum/internal/provider"
)

// Message is a single conversation turn.
type Message struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

// Response is the normalized completion result.
type Response struct {
	Content      string `json:"content"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
	Model        string `json:"model"`
}

// Client is the interface all provider clients implement.
type Client interface {
	Complete(ctx context.Context, messages []Message) (*Response, error)
	Provider() string
	Model() string
}

// NewClient builds a client for the given profile. The profile's endpoint
// overrides the provider default base URL when set (used by tests).
func NewClient(p provider.Profile) (Client, error) {
	switch p.ID {
	case provider.IDAnthropic:
		return NewAnthropicClient(p), nil
	case provider.IDOpenAI:
		return NewOpenAIClient(p), nil
	case provider.IDGoogle:
		return NewGoogleClient(p), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", p.ID)
	}
}

// newLimiter returns the per-client outbound rate limiter. One request per
// second with a small burst is generous for repair iterations while keeping
// a misbehaving loop from hammering a provider.
func newLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Every(time.Second), 2)
}

// httpClient is the shared transport configuration. Per-call deadlines come
// from the caller's context; the client-level timeout is a backstop.
func httpClient() *http.Client {
	return &http.Client{Timeout: 5 * time.Minute}
}
