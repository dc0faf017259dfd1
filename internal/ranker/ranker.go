// Package ranker maps a computed penalty to a categorical rank and a feature
// snapshot to a fraud-likelihood judgment.
package ranker

import (
	"github.com/opensource-trust/heron/internal/domain"
	"github.com/opensource-trust/heron/internal/profile"
)

// AssignRank buckets a penalty score into the three rank bands. The penalty
// is clamped to [0,100] first; 0..34 is A, 35..64 is B, 65..100 is C.
func AssignRank(penalty int) domain.Rank {
	if penalty < 0 {
		penalty = 0
	}
	if penalty > 100 {
		penalty = 100
	}
	switch {
	case penalty <= 34:
		return domain.RankA
	case penalty <= 64:
		return domain.RankB
	default:
		return domain.RankC
	}
}

// JudgeFraud derives the sakura verdict from the distribution-bias and
// duplicate features. The checks run in strict priority order; the first
// match wins.
func JudgeFraud(snap *domain.FeatureSnapshot, p *profile.Profile) domain.Judgment {
	switch {
	case snap.DistBias >= p.Sakura.DistBiasSakura && snap.DuplicateRate >= p.Sakura.DuplicateSakura:
		return domain.JudgmentSakura
	case snap.DistBias >= p.Sakura.DistBiasLikely || snap.DuplicateRate >= p.Sakura.DuplicateLikely:
		return domain.JudgmentLikely
	case snap.DistBias >= p.Sakura.DistBiasUnlikely:
		return domain.JudgmentUnlikely
	default:
		return domain.JudgmentGenuine
	}
}
