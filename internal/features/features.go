// Package features extracts the scoring feature vector from a product's
// review corpus. Extraction is pure and order-independent: the same corpus
// and the same reference time always produce the same snapshot.
package features

import (
	"strconv"
	"time"

	"github.com/opensource-trust/heron/internal/domain"
	"github.com/opensource-trust/heron/internal/normalize"
	"github.com/opensource-trust/heron/internal/texthash"
)

const (
	// shortBodyRunes is the cutoff below which a normalized body counts as short.
	shortBodyRunes = 120

	// noiseMinRunes and noiseMinDistinct define low-information bodies.
	noiseMinRunes    = 40
	noiseMinDistinct = 10

	// surgeWindow is the recency window for the surge ratio.
	surgeWindow = 7 * 24 * time.Hour
)

// Extract computes the feature snapshot for one product's reviews as of now.
// An empty corpus returns domain.ErrEmptyCorpus.
func Extract(reviews []*domain.Review, now time.Time) (*domain.FeatureSnapshot, error) {
	total := len(reviews)
	if total == 0 {
		return nil, domain.ErrEmptyCorpus
	}

	var (
		fiveStar int
		short    int
		noisy    int
		recent   int
	)
	clusters := make(map[string]int)
	cutoff := now.Add(-surgeWindow)

	for _, r := range reviews {
		body := normalize.Text(r.Body)

		if r.Rating == 5 {
			fiveStar++
		}
		if len([]rune(body)) < shortBodyRunes {
			short++
		}
		if isNoisy(body) {
			noisy++
		}
		if !r.ReviewDate.IsZero() && !r.ReviewDate.Before(cutoff) && !r.ReviewDate.After(now) {
			recent++
		}
		if key := clusterKey(r, body); key != "" {
			clusters[key]++
		}
	}

	maxCluster := 0
	for _, n := range clusters {
		if n > maxCluster {
			maxCluster = n
		}
	}

	ft := float64(total)
	fiveStarRatio := float64(fiveStar) / ft
	shortRatio := float64(short) / ft

	// Expected-volume base for the surge ratio; integer division is intentional
	// so small corpora share a base of 1.
	surgeBase := total / 5
	if surgeBase < 1 {
		surgeBase = 1
	}

	return &domain.FeatureSnapshot{
		DistBias:      clamp01(fiveStarRatio * shortRatio),
		DuplicateRate: clamp01(float64(maxCluster) / ft),
		SurgeRatio:    clamp01(float64(recent) / float64(surgeBase)),
		NoiseRatio:    clamp01(float64(noisy) / ft),
		Stats: domain.FeatureStats{
			TotalReviews:  total,
			FiveStarCount: fiveStar,
			ShortCount:    short,
			FiveStarRatio: fiveStarRatio,
			ShortRatio:    shortRatio,
			MaxCluster:    maxCluster,
			RecentCount:   recent,
			NoisyCount:    noisy,
		},
	}, nil
}

// clusterKey picks the strongest available grouping key for duplicate
// detection. A review with no usable key is counted in the corpus total only.
func clusterKey(r *domain.Review, normalizedBody string) string {
	if r.Fingerprint != "" {
		return "fp:" + r.Fingerprint
	}
	if normalizedBody != "" {
		// Hash the body so long pasted reviews do not blow up the key table.
		return "body:" + strconv.FormatUint(texthash.Hash64(normalizedBody), 16)
	}
	if r.ReviewerRef != "" {
		return "ref:" + r.ReviewerRef
	}
	return ""
}

// isNoisy reports whether a normalized body carries too little information to
// be a meaningful review: absent, very short, or drawn from a tiny alphabet.
func isNoisy(body string) bool {
	if body == "" {
		return true
	}
	runes := []rune(body)
	if len(runes) < noiseMinRunes {
		return true
	}
	distinct := make(map[rune]struct{}, noiseMinDistinct)
	for _, r := range runes {
		distinct[r] = struct{}{}
		if len(distinct) >= noiseMinDistinct {
			return false
		}
	}
	return true
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
