// Package worker provides async rescoring driven by the event bus.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/opensource-trust/heron/internal/domain"
	"github.com/opensource-trust/heron/internal/ingest"
	"github.com/opensource-trust/heron/internal/scoring"
)

// Worker recomputes product scores when new reviews arrive. Rescoring per
// (product, source) is serialized with an in-flight guard so an ingest burst
// collapses into one recompute instead of a thundering herd, and a windowed
// counter caps how many passes a sustained burst can trigger.
type Worker struct {
	bus     domain.EventBus
	cache   domain.Cache
	scoring *scoring.Service
	logger  *slog.Logger

	subscriptions []domain.Subscription
	ctx           context.Context
	cancel        context.CancelFunc

	mu       sync.Mutex
	inFlight map[string]bool
}

// A bulk scrape lands hundreds of reviews back to back; each pass reads the
// whole corpus, so passes beyond the cap add nothing until the window rolls
// over.
const (
	rescoreWindow     = 30 * time.Second
	rescoreBurstLimit = 5
)

// NewWorker creates a new rescoring worker. cache may be nil to disable the
// burst limit.
func NewWorker(bus domain.EventBus, cache domain.Cache, svc *scoring.Service, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:      bus,
		cache:    cache,
		scoring:  svc,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		inFlight: make(map[string]bool),
	}
}

// Start subscribes to the review ingested topic.
func (w *Worker) Start() error {
	sub, err := w.bus.Subscribe(w.ctx, domain.TopicReviewIngested, w.handleIngested)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	w.logger.Info("rescoring worker started",
		"topic", domain.TopicReviewIngested,
	)
	return nil
}

// handleIngested rescopes the product a new review belongs to.
func (w *Worker) handleIngested(ctx context.Context, msg *domain.Message) error {
	var event ingest.ReviewIngestedEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		w.logger.Error("failed to parse review ingested event",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}
	if event.ProductID == "" {
		return nil
	}

	key := event.ProductID + "|" + event.Source

	if w.cache != nil {
		n, err := w.cache.IncrementCounter(ctx, "rescore:"+key, rescoreWindow)
		if err == nil && n > rescoreBurstLimit {
			w.logger.Debug("rescore burst limit hit, skipping",
				"product_id", event.ProductID,
				"source", event.Source,
				"count", n,
			)
			return nil
		}
	}

	w.mu.Lock()
	if w.inFlight[key] {
		// A recompute for this product is already running; the running pass
		// reads the corpus after this review's upsert committed.
		w.mu.Unlock()
		return nil
	}
	w.inFlight[key] = true
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		delete(w.inFlight, key)
		w.mu.Unlock()
	}()

	start := time.Now()
	result, err := w.scoring.Recompute(ctx, event.ProductID, event.Source)
	if err != nil {
		if errors.Is(err, domain.ErrEmptyCorpus) {
			return nil
		}
		w.logger.Error("rescoring failed",
			"product_id", event.ProductID,
			"source", event.Source,
			"error", err,
		)
		return err
	}

	w.logger.Debug("product rescored",
		"product_id", event.ProductID,
		"source", event.Source,
		"score", result.Score,
		"rank", result.Rank,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// Stop gracefully stops the worker.
func (w *Worker) Stop() error {
	w.cancel()

	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			w.logger.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.logger.Info("rescoring worker stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
