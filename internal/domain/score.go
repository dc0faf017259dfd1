package domain

import (
	"time"
)

// Rank is the coarse categorical band derived from the penalty score.
// The ranker consumes the penalty (0 = clean), so A is the clean band and
// C the suspicious band; boundaries are 34/35 and 64/65.
type Rank string

const (
	RankA Rank = "A"
	RankB Rank = "B"
	RankC Rank = "C"
)

// Judgment is the fraud-likelihood verdict, independent of rank.
type Judgment string

const (
	JudgmentGenuine  Judgment = "GENUINE"
	JudgmentUnlikely Judgment = "UNLIKELY"
	JudgmentLikely   Judgment = "LIKELY"
	JudgmentSakura   Judgment = "SAKURA"
)

// FeatureSnapshot is the feature vector extracted from one product's review
// corpus at scoring time. The four canonical features are ratios in [0,1].
// It is recomputed per scoring run and never persisted.
type FeatureSnapshot struct {
	DistBias      float64 `json:"distBias"`
	DuplicateRate float64 `json:"duplicateRate"`
	SurgeRatio    float64 `json:"surgeRatio"`
	NoiseRatio    float64 `json:"noiseRatio"`

	// Raw counters backing the ratios, kept for rule evidence and metrics.
	Stats FeatureStats `json:"stats"`
}

// FeatureStats holds the aggregate counters behind a FeatureSnapshot.
type FeatureStats struct {
	TotalReviews  int     `json:"totalReviews"`
	FiveStarCount int     `json:"fiveStarCount"`
	ShortCount    int     `json:"shortCount"`
	FiveStarRatio float64 `json:"fiveStarRatio"`
	ShortRatio    float64 `json:"shortRatio"`
	MaxCluster    int     `json:"maxCluster"`
	RecentCount   int     `json:"recentCount"`
	NoisyCount    int     `json:"noisyCount"`
}

// RuleOutcome records one fired rule for explainability. Rules that do not
// fire contribute no outcome.
type RuleOutcome struct {
	RuleID string  `json:"ruleId"`
	Flag   string  `json:"flag"`
	Value  float64 `json:"value"`
	Warn   float64 `json:"warn"`
	Crit   float64 `json:"crit"`
	Weight float64 `json:"weight"`

	// Points is the penalty contribution, 0..100 scaled by weight.
	Points int `json:"points"`

	Evidence map[string]any `json:"evidence,omitempty"`
}

// ScoreResult is the persisted scoring snapshot for one (product, source).
// It is fully replaced on every recompute; no history is kept.
type ScoreResult struct {
	ProductID string `json:"productId"`
	Source    string `json:"source"`

	// Score is the trust score 0..100, higher = more trustworthy (100 - penalty).
	Score int `json:"score"`

	// Penalty is the raw summed rule penalty after clamping to [0,100].
	Penalty int `json:"penalty"`

	Rank     Rank     `json:"rank"`
	Judgment Judgment `json:"judgment"`

	Metrics map[string]any `json:"metrics"`
	Flags   []string       `json:"flags"`
	Rules   []RuleOutcome  `json:"rules"`

	ComputedAt time.Time `json:"computedAt"`
}
