// Package ingest turns raw scraped reviews into canonical stored rows. It
// owns field normalization, identity resolution, and the content fingerprint
// that deduplicates reviews across repeated scrapes.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/opensource-trust/heron/internal/domain"
	"github.com/opensource-trust/heron/internal/normalize"
	"github.com/opensource-trust/heron/internal/texthash"
)

// ErrNotFingerprintable is returned when a review without an external id has
// no title, body, reviewer reference, or review date to derive a stable
// identity from.
var ErrNotFingerprintable = errors.New("review has no content to fingerprint")

// Engine is the review upsert pipeline.
type Engine struct {
	repo   domain.Repository
	bus    domain.EventBus
	logger *slog.Logger
}

// NewEngine creates an upsert engine. bus may be nil to disable events.
func NewEngine(repo domain.Repository, bus domain.EventBus, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{repo: repo, bus: bus, logger: logger}
}

// ReviewIngestedEvent is the payload published on heron.review.ingested.
type ReviewIngestedEvent struct {
	ReviewID  string `json:"reviewId"`
	ProductID string `json:"productId"`
	Source    string `json:"source"`
}

// Upsert normalizes the input, resolves its identity, and merges it into the
// store. Returns the surviving row id. Re-submitting the same review is
// idempotent; a richer re-scrape fills in fields the first scrape missed.
func (e *Engine) Upsert(ctx context.Context, input *domain.ReviewInput) (string, error) {
	if input.ProductID == "" {
		return "", errors.New("product id is required")
	}

	review, err := e.canonicalize(input)
	if err != nil {
		return "", err
	}

	var id string
	if review.ExternalReviewID != "" {
		id, err = e.repo.UpsertReviewByExternalID(ctx, review)
	} else {
		id, err = e.repo.UpsertReviewByFingerprint(ctx, review)
	}
	if err != nil {
		return "", err
	}

	e.publishIngested(ctx, id, review)
	return id, nil
}

// canonicalize maps a raw input to the stored form, normalizing every field
// and computing the fingerprint.
func (e *Engine) canonicalize(input *domain.ReviewInput) (*domain.Review, error) {
	source := strings.ToUpper(strings.TrimSpace(input.Source))
	if source == "" {
		source = domain.SourceAmazon
	}

	rating := input.Rating
	if rating < 0 {
		rating = 0
	}
	if rating > 5 {
		rating = 5
	}

	helpful := input.HelpfulVotes
	if helpful < 0 {
		helpful = 0
	}

	title := normalize.TextOrRaw(input.Title)
	body := normalize.TextOrRaw(input.Body)
	reviewerRef := resolveReviewerRef(input)
	externalID := strings.TrimSpace(input.ExternalReviewID)

	fingerprint := Fingerprint(title, body, reviewerRef, input.ReviewDate)
	if externalID == "" && fingerprint == "" {
		return nil, ErrNotFingerprintable
	}

	return &domain.Review{
		ProductID:        input.ProductID,
		Source:           source,
		ExternalReviewID: externalID,
		Fingerprint:      fingerprint,
		Title:            title,
		Body:             body,
		Rating:           rating,
		ReviewDate:       input.ReviewDate,
		Reviewer:         strings.TrimSpace(input.Reviewer),
		ReviewerRef:      reviewerRef,
		ReviewURL:        strings.TrimSpace(input.ReviewURL),
		HelpfulVotes:     helpful,
	}, nil
}

// resolveReviewerRef picks the strongest available reviewer identifier:
// explicit ref, then review URL, then the lowercased display name.
func resolveReviewerRef(input *domain.ReviewInput) string {
	if ref := strings.TrimSpace(input.ReviewerRef); ref != "" {
		return ref
	}
	if url := strings.TrimSpace(input.ReviewURL); url != "" {
		return url
	}
	return strings.ToLower(strings.TrimSpace(input.Reviewer))
}

// Fingerprint derives the content identity hash from the normalized title,
// body, reviewer ref, and the review date's epoch day. Absent parts are
// skipped; with no parts at all the result is "".
func Fingerprint(title, body, reviewerRef string, reviewDate time.Time) string {
	parts := make([]string, 0, 4)
	if title != "" {
		parts = append(parts, title)
	}
	if body != "" {
		parts = append(parts, body)
	}
	if reviewerRef != "" {
		parts = append(parts, reviewerRef)
	}
	if !reviewDate.IsZero() {
		parts = append(parts, strconv.FormatInt(epochDay(reviewDate), 10))
	}
	return texthash.SHA256Hex(strings.Join(parts, "|"))
}

// epochDay returns the number of whole days since 1970-01-01 UTC, floored for
// pre-epoch dates.
func epochDay(t time.Time) int64 {
	secs := t.UTC().Unix()
	day := secs / 86400
	if secs < 0 && secs%86400 != 0 {
		day--
	}
	return day
}

func (e *Engine) publishIngested(ctx context.Context, id string, review *domain.Review) {
	if e.bus == nil {
		return
	}
	payload, err := json.Marshal(ReviewIngestedEvent{
		ReviewID:  id,
		ProductID: review.ProductID,
		Source:    review.Source,
	})
	if err != nil {
		return
	}
	if err := e.bus.Publish(ctx, domain.TopicReviewIngested, payload); err != nil {
		e.logger.Warn("failed to publish review ingested event",
			"review_id", id,
			"error", err,
		)
	}
}
