// Package consensus reconciles disagreeing provider responses into a single
// decision through similarity clustering and weighted-confidence voting.
package consensus

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kamilpajak/quorum/pkg/models"
)

// defaultWeight is used when a response references a provider absent from
// the weight map. Treated as a middling voter rather than a fatal error.
const defaultWeight = 0.5

// Conflict-detection constants.
const (
	closeDecisionRatio     = 0.8
	lowConfidenceThreshold = 0.7
	highDisagreementCount  = 4
)

// Resolver holds the consensus thresholds. Construct once and share; Resolve
// is pure computation and safe for concurrent use.
type Resolver struct {
	// SimilarityThreshold is the minimum score for a response to join an
	// existing cluster.
	SimilarityThreshold float64
	// MinAgreement is the minimum member count of the winning cluster.
	MinAgreement int
	// MinConfidence is the minimum normalized weighted confidence of the
	// winning cluster.
	MinConfidence float64
}

// NewResolver returns a resolver with the given thresholds, substituting
// defaults for zero values.
func NewResolver(similarityThreshold float64, minAgreement int, minConfidence float64) *Resolver {
	r := &Resolver{
		SimilarityThreshold: similarityThreshold,
		MinAgreement:        minAgreement,
		MinConfidence:       minConfidence,
	}
	if r.SimilarityThreshold <= 0 {
		r.SimilarityThreshold = 0.7
	}
	if r.MinAgreement <= 0 {
		r.MinAgreement = 2
	}
	if r.MinConfidence <= 0 {
		r.MinConfidence = 0.6
	}
	return r
}

// cluster groups responses whose fixes are similar enough to count as the
// same proposal. Built fresh on every Resolve call, never persisted.
type cluster struct {
	representative string
	members        []models.ProviderResponse
	weights        []float64
	score          float64 // Σ weight×confidence
}

func (c *cluster) avgConfidence() float64 {
	if len(c.members) == 0 {
		return 0
	}
	var sum float64
	for _, m := range c.members {
		sum += m.Confidence
	}
	return sum / float64(len(c.members))
}

func (c *cluster) totalWeight() float64 {
	var sum float64
	for _, w := range c.weights {
		sum += w
	}
	return sum
}

func (c *cluster) providers() []string {
	ids := make([]string, len(c.members))
	for i, m := range c.members {
		ids[i] = m.Provider
	}
	return ids
}

// Resolve clusters the valid responses, ranks the clusters by weighted
// score, and decides whether the strongest cluster clears both the
// agreement and confidence thresholds. It never fails: an all-errored
// response set yields a no-consensus decision.
//
// Clustering is a single left-to-right greedy pass over the responses in
// the order given: each response joins the first-seen cluster whose
// representative it matches best above the threshold, otherwise it opens a
// new cluster. Membership is order-sensitive: callers control determinism
// by fixing the response order.
func (r *Resolver) Resolve(responses []models.ProviderResponse, weights map[string]float64) models.ConsensusDecision {
	valid := make([]models.ProviderResponse, 0, len(responses))
	for _, resp := range responses {
		if resp.Valid() {
			valid = append(valid, resp)
		}
	}

	if len(valid) == 0 {
		return models.ConsensusDecision{
			HasConsensus: false,
			Reasoning:    fmt.Sprintf("no valid responses available (%d received, all errored or empty)", len(responses)),
		}
	}

	clusters := r.buildClusters(valid, weights)

	// Rank by accumulated weighted score, descending. Ties break by
	// first-seen order, which sort.SliceStable preserves.
	sort.SliceStable(clusters, func(i, j int) bool {
		return clusters[i].score > clusters[j].score
	})

	winner := clusters[0]
	weightedConfidence := 0.0
	if tw := winner.totalWeight(); tw > 0 {
		weightedConfidence = winner.score / tw
	}

	hasConsensus := len(winner.members) >= r.MinAgreement && weightedConfidence >= r.MinConfidence

	decision := models.ConsensusDecision{
		HasConsensus:       hasConsensus,
		WeightedConfidence: weightedConfidence,
		Supporters:         winner.providers(),
		TotalWeight:        winner.totalWeight(),
		Conflicts:          detectConflicts(clusters),
		Alternatives:       alternatives(clusters[1:]),
	}
	if hasConsensus {
		decision.ChosenFix = winner.representative
		decision.Reasoning = fmt.Sprintf(
			"%d provider(s) [%s] agree with weighted confidence %.2f (threshold %.2f)",
			len(winner.members), strings.Join(winner.providers(), ", "), weightedConfidence, r.MinConfidence)
	} else {
		decision.Reasoning = noConsensusReason(winner, weightedConfidence, r)
	}
	return decision
}

// buildClusters performs the greedy single-pass grouping.
func (r *Resolver) buildClusters(valid []models.ProviderResponse, weights map[string]float64) []*cluster {
	var clusters []*cluster
	for _, resp := range valid {
		w, ok := weights[resp.Provider]
		if !ok {
			w = defaultWeight
		}

		best := -1
		bestScore := 0.0
		for i, c := range clusters {
			if s := similarity(resp.ProposedFix, c.representative); s >= r.SimilarityThreshold && s > bestScore {
				best = i
				bestScore = s
			}
		}

		if best >= 0 {
			c := clusters[best]
			c.members = append(c.members, resp)
			c.weights = append(c.weights, w)
			c.score += w * resp.Confidence
		} else {
			clusters = append(clusters, &cluster{
				representative: resp.ProposedFix,
				members:        []models.ProviderResponse{resp},
				weights:        []float64{w},
				score:          w * resp.Confidence,
			})
		}
	}
	return clusters
}

// detectConflicts annotates the ranked cluster list. Runs regardless of the
// consensus verdict and never gates it.
func detectConflicts(ranked []*cluster) []string {
	var conflicts []string
	if len(ranked) >= 2 && ranked[0].score > 0 && ranked[1].score >= closeDecisionRatio*ranked[0].score {
		conflicts = append(conflicts, models.ConflictCloseDecision)
	}
	if ranked[0].avgConfidence() < lowConfidenceThreshold {
		conflicts = append(conflicts, models.ConflictLowConfidence)
	}
	if len(ranked) >= highDisagreementCount {
		conflicts = append(conflicts, models.ConflictHighDisagreement)
	}
	return conflicts
}

func alternatives(rest []*cluster) []models.AlternativeCluster {
	if len(rest) == 0 {
		return nil
	}
	alts := make([]models.AlternativeCluster, len(rest))
	for i, c := range rest {
		alts[i] = models.AlternativeCluster{
			Fix:       c.representative,
			Score:     c.score,
			Providers: c.providers(),
		}
	}
	return alts
}

func noConsensusReason(winner *cluster, weightedConfidence float64, r *Resolver) string {
	var reasons []string
	if len(winner.members) < r.MinAgreement {
		reasons = append(reasons, fmt.Sprintf("only %d supporter(s), need %d", len(winner.members), r.MinAgreement))
	}
	if weightedConfidence < r.MinConfidence {
		reasons = append(reasons, fmt.Sprintf("weighted confidence %.2f below threshold %.2f", weightedConfidence, r.MinConfidence))
	}
	return "no consensus: " + strings.Join(reasons, "; ")
}
