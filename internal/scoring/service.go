// Package scoring orchestrates a full scoring run: load the corpus, extract
// features, evaluate the rule catalog, rank, judge, persist, and notify.
package scoring

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/opensource-trust/heron/internal/domain"
	"github.com/opensource-trust/heron/internal/features"
	"github.com/opensource-trust/heron/internal/profile"
	"github.com/opensource-trust/heron/internal/ranker"
	"github.com/opensource-trust/heron/internal/rules"
)

// defaultCacheTTL matches the original score read cache.
const defaultCacheTTL = 10 * time.Minute

// Service computes and serves trust scores for (product, source) pairs.
type Service struct {
	repo     domain.Repository
	cache    domain.Cache
	bus      domain.EventBus
	engine   *rules.Engine
	profiles *profile.Provider
	logger   *slog.Logger

	cacheTTL time.Duration

	// now is injected so scoring runs are reproducible in tests.
	now func() time.Time
}

// Options tunes optional service behavior; zero values take defaults.
type Options struct {
	CacheTTL time.Duration
	Clock    func() time.Time
}

// NewService creates a scoring service. cache and bus may be nil.
func NewService(repo domain.Repository, cache domain.Cache, bus domain.EventBus,
	engine *rules.Engine, profiles *profile.Provider, logger *slog.Logger, opts Options) *Service {

	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		repo:     repo,
		cache:    cache,
		bus:      bus,
		engine:   engine,
		profiles: profiles,
		logger:   logger,
		cacheTTL: opts.CacheTTL,
		now:      opts.Clock,
	}
	if s.cacheTTL <= 0 {
		s.cacheTTL = defaultCacheTTL
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// ScoreComputedEvent is the payload published on heron.score.computed and
// heron.score.alert.
type ScoreComputedEvent struct {
	ProductID string          `json:"productId"`
	Source    string          `json:"source"`
	Score     int             `json:"score"`
	Penalty   int             `json:"penalty"`
	Rank      domain.Rank     `json:"rank"`
	Judgment  domain.Judgment `json:"judgment"`
	Flags     []string        `json:"flags,omitempty"`
}

// Recompute scores a product from its stored corpus and persists the result.
// An empty corpus returns domain.ErrEmptyCorpus and leaves any previous score
// untouched.
func (s *Service) Recompute(ctx context.Context, productID, source string) (*domain.ScoreResult, error) {
	source = normalizeSource(source)
	now := s.now().UTC()

	reviews, err := s.repo.ListReviews(ctx, productID, source)
	if err != nil {
		return nil, err
	}

	snap, err := features.Extract(reviews, now)
	if err != nil {
		return nil, err
	}

	prof := s.profiles.Get()
	eval := s.engine.Evaluate(snap, prof)

	penalty := eval.Penalty
	if penalty > 100 {
		penalty = 100
	}

	result := &domain.ScoreResult{
		ProductID:  productID,
		Source:     source,
		Score:      100 - penalty,
		Penalty:    penalty,
		Rank:       ranker.AssignRank(eval.Penalty),
		Judgment:   ranker.JudgeFraud(snap, prof),
		Metrics:    metricsMap(snap),
		Flags:      eval.Flags,
		Rules:      eval.Outcomes,
		ComputedAt: now,
	}

	if err := s.repo.SaveScore(ctx, result); err != nil {
		return nil, err
	}
	s.cacheScore(ctx, result)
	s.publishScore(ctx, result)

	s.logger.Info("score computed",
		"product_id", productID,
		"source", source,
		"score", result.Score,
		"rank", result.Rank,
		"judgment", result.Judgment,
		"rules_fired", len(result.Rules),
	)

	return result, nil
}

// GetScore returns the latest computed score, serving from the read cache
// when fresh. Returns domain.ErrScoreNotFound for never-scored products.
func (s *Service) GetScore(ctx context.Context, productID, source string) (*domain.ScoreResult, error) {
	source = normalizeSource(source)

	if s.cache != nil {
		if data, err := s.cache.Get(ctx, domain.ScoreCacheKey(productID, source)); err == nil && data != nil {
			var cached domain.ScoreResult
			if err := json.Unmarshal(data, &cached); err == nil {
				return &cached, nil
			}
		}
	}

	return s.repo.GetScore(ctx, productID, source)
}

// metricsMap builds the persisted metrics from a feature snapshot.
func metricsMap(snap *domain.FeatureSnapshot) map[string]any {
	return map[string]any{
		"total_reviews":         snap.Stats.TotalReviews,
		"dist_bias":             snap.DistBias,
		"duplicate_ratio":       snap.DuplicateRate,
		"surge_ratio":           snap.SurgeRatio,
		"noise_ratio":           snap.NoiseRatio,
		"max_duplicate_cluster": snap.Stats.MaxCluster,
		"recent_reviews":        snap.Stats.RecentCount,
		"five_star_ratio":       snap.Stats.FiveStarRatio,
		"short_ratio":           snap.Stats.ShortRatio,
	}
}

func (s *Service) cacheScore(ctx context.Context, result *domain.ScoreResult) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(result)
	if err != nil {
		return
	}
	key := domain.ScoreCacheKey(result.ProductID, result.Source)
	if err := s.cache.Set(ctx, key, data, s.cacheTTL); err != nil {
		s.logger.Warn("failed to cache score", "key", key, "error", err)
	}
}

func (s *Service) publishScore(ctx context.Context, result *domain.ScoreResult) {
	if s.bus == nil {
		return
	}
	payload, err := json.Marshal(ScoreComputedEvent{
		ProductID: result.ProductID,
		Source:    result.Source,
		Score:     result.Score,
		Penalty:   result.Penalty,
		Rank:      result.Rank,
		Judgment:  result.Judgment,
		Flags:     result.Flags,
	})
	if err != nil {
		return
	}

	if err := s.bus.Publish(ctx, domain.TopicScoreComputed, payload); err != nil {
		s.logger.Warn("failed to publish score computed event",
			"product_id", result.ProductID,
			"error", err,
		)
	}

	if result.Judgment == domain.JudgmentLikely || result.Judgment == domain.JudgmentSakura {
		if err := s.bus.Publish(ctx, domain.TopicScoreAlert, payload); err != nil {
			s.logger.Warn("failed to publish score alert",
				"product_id", result.ProductID,
				"error", err,
			)
		}
	}
}

func normalizeSource(source string) string {
	source = strings.ToUpper(strings.TrimSpace(source))
	if source == "" {
		return domain.SourceAmazon
	}
	return source
}
