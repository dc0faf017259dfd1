// Package rules evaluates the builtin detection catalog and profile-declared
// CEL rules against a feature snapshot, producing the penalty score and the
// attention flags that drive ranking.
package rules

import (
	"math"

	"github.com/opensource-trust/heron/internal/domain"
	"github.com/opensource-trust/heron/internal/profile"
)

// Attention flags raised by the builtin catalog.
const (
	FlagDuplicate    = "ATTN_DUPLICATE"
	FlagNoise        = "ATTN_NOISE"
	FlagDistribution = "ATTN_DISTRIBUTION"
	FlagFiveStar     = "ATTN_FIVE_STAR"
	FlagSurge        = "ATTN_SURGE"
)

// builtinRule binds one detector to its observed value, threshold band,
// weight and evidence. The catalog below is the single ordered registry;
// evaluation and output order follow it exactly.
type builtinRule struct {
	ID       string
	Flag     string
	Value    func(*domain.FeatureSnapshot) float64
	Band     func(*profile.Profile) profile.Band
	Weight   func(*profile.Profile) float64
	Evidence func(*domain.FeatureSnapshot) map[string]any
}

// catalog is the fixed evaluation order of the builtin detectors.
var catalog = []builtinRule{
	{
		ID:     "duplicate_text",
		Flag:   FlagDuplicate,
		Value:  func(s *domain.FeatureSnapshot) float64 { return s.DuplicateRate },
		Band:   func(p *profile.Profile) profile.Band { return p.Duplicates },
		Weight: func(p *profile.Profile) float64 { return p.Weights.Duplicates },
		Evidence: func(s *domain.FeatureSnapshot) map[string]any {
			return map[string]any{
				"max_cluster":   s.Stats.MaxCluster,
				"total_reviews": s.Stats.TotalReviews,
			}
		},
	},
	{
		ID:     "noise",
		Flag:   FlagNoise,
		Value:  func(s *domain.FeatureSnapshot) float64 { return s.NoiseRatio },
		Band:   func(p *profile.Profile) profile.Band { return p.Noise },
		Weight: func(p *profile.Profile) float64 { return p.Weights.Noise },
		Evidence: func(s *domain.FeatureSnapshot) map[string]any {
			return map[string]any{
				"noisy_count":   s.Stats.NoisyCount,
				"total_reviews": s.Stats.TotalReviews,
			}
		},
	},
	{
		ID:     "dist_bias",
		Flag:   FlagDistribution,
		Value:  func(s *domain.FeatureSnapshot) float64 { return s.DistBias },
		Band:   func(p *profile.Profile) profile.Band { return p.DistBias },
		Weight: func(p *profile.Profile) float64 { return p.Weights.DistBias },
		Evidence: func(s *domain.FeatureSnapshot) map[string]any {
			return map[string]any{
				"five_star_ratio": s.Stats.FiveStarRatio,
				"short_ratio":     s.Stats.ShortRatio,
			}
		},
	},
	{
		ID:     "excessive_five",
		Flag:   FlagFiveStar,
		Value:  func(s *domain.FeatureSnapshot) float64 { return s.Stats.FiveStarRatio },
		Band:   func(p *profile.Profile) profile.Band { return p.ExcessiveFive },
		Weight: func(p *profile.Profile) float64 { return p.Weights.ExcessiveFive },
		Evidence: func(s *domain.FeatureSnapshot) map[string]any {
			return map[string]any{
				"five_star_count": s.Stats.FiveStarCount,
				"total_reviews":   s.Stats.TotalReviews,
			}
		},
	},
	{
		ID:     "surge",
		Flag:   FlagSurge,
		Value:  func(s *domain.FeatureSnapshot) float64 { return s.SurgeRatio },
		Band:   func(p *profile.Profile) profile.Band { return p.SurgeZ },
		Weight: func(p *profile.Profile) float64 { return p.Weights.Surge },
		Evidence: func(s *domain.FeatureSnapshot) map[string]any {
			return map[string]any{
				"recent_count":  s.Stats.RecentCount,
				"total_reviews": s.Stats.TotalReviews,
			}
		},
	},
}

// penaltyPoints converts an observed value against a band into penalty points.
// The rule contributes nothing below warn, ramps linearly between warn and
// crit, and caps at the full weight from crit upward. A degenerate band
// (crit == warn) jumps straight to full weight on fire.
func penaltyPoints(value float64, band profile.Band, weight float64) int {
	if value < band.Warn {
		return 0
	}
	frac := 1.0
	if band.Crit > band.Warn {
		frac = (value - band.Warn) / (band.Crit - band.Warn)
		if frac > 1 {
			frac = 1
		}
	}
	return int(math.Round(100 * weight * frac))
}
