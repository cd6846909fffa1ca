package consensus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kamilpajak/quorum/pkg/models"
)

func defaultResolver() *Resolver {
	return NewResolver(0.7, 2, 0.6)
}

func resp(provider, fix string, confidence float64) models.ProviderResponse {
	return models.ProviderResponse{Provider: provider, ProposedFix: fix, Confidence: confidence}
}

func TestResolve_SpecScenario(t *testing.T) {
	// Providers 1 and 2 agree on a null check; provider 3 wants a rewrite.
	responses := []models.ProviderResponse{
		resp("anthropic", "add null check", 0.8),
		resp("openai", "add null check", 0.75),
		resp("google", "refactor entire function", 0.9),
	}
	weights := map[string]float64{"anthropic": 1.0, "openai": 0.9, "google": 0.7}

	d := defaultResolver().Resolve(responses, weights)

	require.True(t, d.HasConsensus)
	assert.Equal(t, "add null check", d.ChosenFix)
	assert.ElementsMatch(t, []string{"anthropic", "openai"}, d.Supporters)
	// (1.0×0.8 + 0.9×0.75) / (1.0+0.9) ≈ 0.776
	assert.InDelta(t, 0.776, d.WeightedConfidence, 0.001)
	assert.InDelta(t, 1.9, d.TotalWeight, 0.001)

	require.Len(t, d.Alternatives, 1)
	assert.Equal(t, "refactor entire function", d.Alternatives[0].Fix)
	assert.Equal(t, []string{"google"}, d.Alternatives[0].Providers)
	assert.InDelta(t, 0.7*0.9, d.Alternatives[0].Score, 0.001)
}

func TestResolve_ThresholdBoundary(t *testing.T) {
	weights := map[string]float64{"anthropic": 1.0, "openai": 0.9}

	// Confidences 0.7 and 0.8 clear the 0.6 bar.
	d := defaultResolver().Resolve([]models.ProviderResponse{
		resp("anthropic", "add bounds check to index", 0.7),
		resp("openai", "add bounds check to index", 0.8),
	}, weights)
	assert.True(t, d.HasConsensus)

	// Same agreement, confidences 0.5/0.5 fall below it.
	d = defaultResolver().Resolve([]models.ProviderResponse{
		resp("anthropic", "add bounds check to index", 0.5),
		resp("openai", "add bounds check to index", 0.5),
	}, weights)
	assert.False(t, d.HasConsensus)
	assert.Empty(t, d.ChosenFix)
	assert.Contains(t, d.Reasoning, "below threshold")
}

func TestResolve_BothChecksMandatory(t *testing.T) {
	// One supporter with sky-high confidence still fails min_agreement.
	d := defaultResolver().Resolve([]models.ProviderResponse{
		resp("anthropic", "add null check", 0.99),
	}, map[string]float64{"anthropic": 1.0})
	assert.False(t, d.HasConsensus)
	assert.Contains(t, d.Reasoning, "need 2")
}

func TestResolve_NoValidResponses(t *testing.T) {
	responses := []models.ProviderResponse{
		{Provider: "anthropic", Error: "timeout after 90s"},
		{Provider: "openai", Error: "transport: connection refused"},
		{Provider: "google", Error: "parse: no JSON object found"},
	}

	d := defaultResolver().Resolve(responses, map[string]float64{})
	assert.False(t, d.HasConsensus)
	assert.Empty(t, d.ChosenFix)
	assert.Contains(t, d.Reasoning, "no valid responses")
}

func TestResolve_ErroredResponsesNeverVote(t *testing.T) {
	// An errored response with a sneaky fix text must still be excluded.
	responses := []models.ProviderResponse{
		resp("anthropic", "add null check", 0.9),
		resp("openai", "add null check", 0.9),
		{Provider: "google", ProposedFix: "", Error: "timeout", Confidence: 1.0},
	}
	d := defaultResolver().Resolve(responses, map[string]float64{"anthropic": 1.0, "openai": 1.0, "google": 1.0})
	require.True(t, d.HasConsensus)
	assert.NotContains(t, d.Supporters, "google")
}

func TestResolve_Deterministic(t *testing.T) {
	responses := []models.ProviderResponse{
		resp("anthropic", "add null check before user access", 0.8),
		resp("openai", "add null check before the user access", 0.7),
		resp("google", "rewrite handler with early returns", 0.75),
	}
	weights := map[string]float64{"anthropic": 1.0, "openai": 0.9, "google": 0.7}

	first := defaultResolver().Resolve(responses, weights)
	for i := 0; i < 10; i++ {
		again := defaultResolver().Resolve(responses, weights)
		assert.Equal(t, first, again)
	}
}

func TestResolve_OrderSensitiveMembership(t *testing.T) {
	// The greedy pass seeds clusters from the first response; reversing
	// the input changes which text becomes the representative.
	weights := map[string]float64{"a": 1.0, "b": 1.0}
	r1 := []models.ProviderResponse{
		resp("a", "add null check in login handler", 0.8),
		resp("b", "add null check in the login handler", 0.8),
	}
	d1 := defaultResolver().Resolve(r1, weights)
	require.True(t, d1.HasConsensus)
	assert.Equal(t, "add null check in login handler", d1.ChosenFix)

	r2 := []models.ProviderResponse{r1[1], r1[0]}
	d2 := defaultResolver().Resolve(r2, weights)
	require.True(t, d2.HasConsensus)
	assert.Equal(t, "add null check in the login handler", d2.ChosenFix)
}

func TestResolve_UnknownProviderDefaultWeight(t *testing.T) {
	responses := []models.ProviderResponse{
		resp("mystery", "add null check", 0.8),
		resp("anthropic", "add null check", 0.8),
	}
	d := defaultResolver().Resolve(responses, map[string]float64{"anthropic": 1.0})
	require.True(t, d.HasConsensus)
	// mystery votes at the 0.5 default: total weight 1.5.
	assert.InDelta(t, 1.5, d.TotalWeight, 0.001)
}

func TestResolve_ConflictCloseDecision(t *testing.T) {
	responses := []models.ProviderResponse{
		resp("anthropic", "add null check", 0.8),
		resp("openai", "add null check", 0.8),
		resp("google", "retry the request on failure", 0.9),
		resp("other", "retry the request on failure", 0.9),
	}
	weights := map[string]float64{"anthropic": 1.0, "openai": 0.9, "google": 1.0, "other": 0.7}

	d := defaultResolver().Resolve(responses, weights)
	assert.Contains(t, d.Conflicts, models.ConflictCloseDecision)
}

func TestResolve_ConflictLowConfidence(t *testing.T) {
	responses := []models.ProviderResponse{
		resp("anthropic", "add null check", 0.65),
		resp("openai", "add null check", 0.6),
	}
	d := defaultResolver().Resolve(responses, map[string]float64{"anthropic": 1.0, "openai": 1.0})
	// Average raw confidence 0.625 < 0.7 flags the conflict, yet consensus
	// still holds: conflicts never gate.
	assert.True(t, d.HasConsensus)
	assert.Contains(t, d.Conflicts, models.ConflictLowConfidence)
}

func TestResolve_ConflictHighDisagreement(t *testing.T) {
	responses := []models.ProviderResponse{
		resp("a", "add null check", 0.8),
		resp("b", "retry on failure with backoff", 0.8),
		resp("c", "rewrite using channels and goroutines", 0.8),
		resp("d", "bump the dependency to latest version", 0.8),
	}
	d := defaultResolver().Resolve(responses, map[string]float64{})
	assert.False(t, d.HasConsensus)
	assert.Contains(t, d.Conflicts, models.ConflictHighDisagreement)
}

func TestResolve_AlternativesPreserveRankOrder(t *testing.T) {
	responses := []models.ProviderResponse{
		resp("a", "weak singleton proposal", 0.4),
		resp("b", "add null check", 0.9),
		resp("c", "add null check", 0.9),
		resp("d", "medium strength retry proposal", 0.7),
	}
	weights := map[string]float64{"a": 0.5, "b": 1.0, "c": 1.0, "d": 0.9}

	d := defaultResolver().Resolve(responses, weights)
	require.True(t, d.HasConsensus)
	require.Len(t, d.Alternatives, 2)
	assert.Greater(t, d.Alternatives[0].Score, d.Alternatives[1].Score)
	assert.Equal(t, "medium strength retry proposal", d.Alternatives[0].Fix)
}

func TestNewResolver_Defaults(t *testing.T) {
	r := NewResolver(0, 0, 0)
	assert.Equal(t, 0.7, r.SimilarityThreshold)
	assert.Equal(t, 2, r.MinAgreement)
	assert.Equal(t, 0.6, r.MinConfidence)
}
