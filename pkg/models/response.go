package models

import "time"

// ProviderResponse is one provider's answer to a single fan-out call. A
// provider that failed (timeout, transport error, unparsable payload) still
// produces a response, with Error set and ProposedFix empty, so downstream
// stages treat "no opinion" uniformly.
type ProviderResponse struct {
	Provider    string        `json:"provider"`
	Analysis    string        `json:"analysis,omitempty"`
	ProposedFix string        `json:"proposed_fix,omitempty"`
	Confidence  float64       `json:"confidence"` // provider-supplied, 0.0-1.0, untrusted
	Reasoning   string        `json:"reasoning,omitempty"`
	Error       string        `json:"error,omitempty"`
	Salvaged    bool          `json:"salvaged,omitempty"` // structured parse failed, body kept as analysis
	Latency     time.Duration `json:"latency_ms"`
}

// Valid reports whether the response carries a usable fix proposal.
// Errored or empty responses must never be clustered or voted on.
func (r *ProviderResponse) Valid() bool {
	return r.Error == "" && r.ProposedFix != ""
}
