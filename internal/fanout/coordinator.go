// Package fanout issues one analysis request per configured provider
// concurrently and collects every outcome, successful or not, as a uniform
// ProviderResponse.
package fanout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kamilpajak/quorum/internal/llm"
	"github.com/kamilpajak/quorum/internal/progress"
	"github.com/kamilpajak/quorum/internal/provider"
	"github.com/kamilpajak/quorum/pkg/models"
)

// Request carries everything a provider needs to propose a fix. Fields are
// treated as immutable snapshots; the coordinator never mutates them.
type Request struct {
	BugDescription string
	CodeContext    map[string]string // path → content, may be empty
	FailureText    string            // must be non-empty
	PriorAttempts  []string          // previously applied fixes that did not turn tests green
	Subset         []string          // provider IDs, nil = all configured
}

// Coordinator fans a request out to all selected providers.
type Coordinator struct {
	registry *provider.Registry
	clients  map[string]llm.Client
	emitter  progress.Emitter
}

// resultKind distinguishes failure modes inside the fan-out before they are
// collapsed into ProviderResponse.Error at the boundary.
type resultKind int

const (
	callOK resultKind = iota
	callTimeout
	callTransport
	callParse
)

// New builds a coordinator with real HTTP clients for every registered
// provider.
func New(registry *provider.Registry, emitter progress.Emitter) (*Coordinator, error) {
	clients := make(map[string]llm.Client)
	for _, p := range registry.All() {
		c, err := llm.NewClient(p)
		if err != nil {
			return nil, fmt.Errorf("provider %q: %w", p.ID, err)
		}
		clients[p.ID] = c
	}
	return NewWithClients(registry, clients, emitter)
}

// NewWithClients builds a coordinator with caller-supplied clients. Tests
// use this to substitute fakes.
func NewWithClients(registry *provider.Registry, clients map[string]llm.Client, emitter progress.Emitter) (*Coordinator, error) {
	if registry == nil || len(registry.All()) == 0 {
		return nil, fmt.Errorf("no providers configured")
	}
	for _, p := range registry.All() {
		if _, ok := clients[p.ID]; !ok {
			return nil, fmt.Errorf("provider %q: no client", p.ID)
		}
	}
	if emitter == nil {
		emitter = progress.Nop{}
	}
	return &Coordinator{registry: registry, clients: clients, emitter: emitter}, nil
}

// Analyze sends the request to every selected provider concurrently and
// returns one response per provider, in registry order. Per-provider
// failures (timeout, transport, parse) are reported inside the corresponding
// response, never as an error from Analyze; only caller configuration
// mistakes are.
func (c *Coordinator) Analyze(ctx context.Context, req Request) ([]models.ProviderResponse, error) {
	if req.FailureText == "" {
		return nil, fmt.Errorf("empty failure text: nothing to analyze")
	}

	profiles, err := c.selectProfiles(req.Subset)
	if err != nil {
		return nil, err
	}

	// One goroutine per provider, each writing to its own slot. Slot order
	// follows registry order, so the response list is deterministic
	// regardless of completion order.
	responses := make([]models.ProviderResponse, len(profiles))
	var wg sync.WaitGroup
	for i, p := range profiles {
		wg.Add(1)
		go func(idx int, prof provider.Profile) {
			defer wg.Done()
			responses[idx] = c.callOne(ctx, prof, req)
		}(i, p)
	}
	wg.Wait()

	return responses, nil
}

// selectProfiles resolves the requested subset against the registry.
func (c *Coordinator) selectProfiles(subset []string) ([]provider.Profile, error) {
	if len(subset) == 0 {
		all := c.registry.All()
		if len(all) == 0 {
			return nil, fmt.Errorf("no providers configured")
		}
		return all, nil
	}

	profiles := make([]provider.Profile, 0, len(subset))
	for _, id := range subset {
		p, ok := c.registry.Get(id)
		if !ok {
			return nil, fmt.Errorf("unknown provider %q in subset", id)
		}
		profiles = append(profiles, p)
	}
	return profiles, nil
}

// callOne runs a single provider call under its own deadline and collapses
// the tagged outcome into a ProviderResponse.
func (c *Coordinator) callOne(ctx context.Context, prof provider.Profile, req Request) models.ProviderResponse {
	callCtx, cancel := context.WithTimeout(ctx, prof.Timeout)
	defer cancel()

	start := time.Now()
	kind, resp := c.execute(callCtx, prof, req)
	resp.Latency = time.Since(start)
	resp.Provider = prof.ID

	switch kind {
	case callOK:
		c.emitter.Emit(progress.Event{
			Type: "provider", Provider: prof.ID,
			Message: fmt.Sprintf("responded in %s (confidence %.2f)", resp.Latency.Round(time.Millisecond), resp.Confidence),
		})
	case callTimeout:
		c.emitter.Emit(progress.Event{
			Type: "provider", Provider: prof.ID,
			Message: fmt.Sprintf("timed out after %s", prof.Timeout),
		})
	default:
		c.emitter.Emit(progress.Event{
			Type: "provider", Provider: prof.ID,
			Message: "failed: " + resp.Error,
		})
	}
	return resp
}

// execute performs the call and payload parse, returning the tagged kind.
// An errored response always has an empty ProposedFix.
func (c *Coordinator) execute(ctx context.Context, prof provider.Profile, req Request) (resultKind, models.ProviderResponse) {
	client := c.clients[prof.ID]

	completion, err := client.Complete(ctx, buildMessages(prof, req))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return callTimeout, models.ProviderResponse{
				Error: fmt.Sprintf("timeout after %s", prof.Timeout),
			}
		}
		return callTransport, models.ProviderResponse{
			Error: "transport: " + err.Error(),
		}
	}

	payload, parseErr := parsePayload(completion.Content)
	if parseErr != nil {
		// Salvage: keep the raw text as analysis so the attempt is never
		// discarded silently, but it carries no votable fix.
		return callParse, models.ProviderResponse{
			Analysis:   completion.Content,
			Confidence: salvagedConfidence,
			Salvaged:   true,
			Error:      "parse: " + parseErr.Error(),
		}
	}

	return callOK, models.ProviderResponse{
		Analysis:    payload.Analysis,
		ProposedFix: payload.ProposedFix,
		Confidence:  payload.Confidence,
		Reasoning:   payload.Reasoning,
	}
}
