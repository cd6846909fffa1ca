package models

// Conflict kinds surfaced by consensus resolution. Advisory only, never
// gating.
const (
	ConflictCloseDecision    = "close_decision"
	ConflictLowConfidence    = "low_confidence"
	ConflictHighDisagreement = "high_disagreement"
)

// AlternativeCluster is a non-winning proposal group, preserved in rank
// order for diagnosis.
type AlternativeCluster struct {
	Fix       string   `json:"fix"`
	Score     float64  `json:"score"`
	Providers []string `json:"providers"`
}

// ConsensusDecision is the outcome of one consensus resolution.
// Immutable once returned; one instance per iteration.
type ConsensusDecision struct {
	HasConsensus       bool                 `json:"has_consensus"`
	ChosenFix          string               `json:"chosen_fix,omitempty"`
	WeightedConfidence float64              `json:"weighted_confidence"`
	Supporters         []string             `json:"supporters,omitempty"`
	TotalWeight        float64              `json:"total_weight"`
	Reasoning          string               `json:"reasoning"`
	Alternatives       []AlternativeCluster `json:"alternatives,omitempty"`
	Conflicts          []string             `json:"conflicts,omitempty"`
}
