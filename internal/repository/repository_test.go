package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/opensource-trust/heron/internal/domain"
)

func newTestRepo(t *testing.T) domain.Repository {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "heron-test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	t.Cleanup(func() { os.Remove(tmpPath) })

	repo, err := New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: tmpPath,
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	return repo
}

func TestSQLiteRepository(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	t.Run("Ping", func(t *testing.T) {
		if err := repo.Ping(ctx); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
	})

	t.Run("UpsertAndGetReview", func(t *testing.T) {
		review := &domain.Review{
			ProductID:        "B00AAA",
			Source:           "AMAZON",
			ExternalReviewID: "R1XYZ",
			Fingerprint:      "fp-1",
			Title:            "great product",
			Body:             "works exactly as described",
			Rating:           5,
			ReviewDate:       time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
			Reviewer:         "Jane",
			ReviewerRef:      "jane",
			HelpfulVotes:     5,
		}

		id, err := repo.UpsertReviewByExternalID(ctx, review)
		if err != nil {
			t.Fatalf("UpsertReviewByExternalID failed: %v", err)
		}
		if id == "" {
			t.Fatal("expected a row id")
		}

		got, err := repo.GetReview(ctx, id)
		if err != nil {
			t.Fatalf("GetReview failed: %v", err)
		}
		if got.Title != review.Title || got.Rating != 5 || got.ExternalReviewID != "R1XYZ" {
			t.Errorf("stored review mismatch: %+v", got)
		}
		if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
			t.Error("timestamps not set")
		}
	})

	t.Run("GetReviewNotFound", func(t *testing.T) {
		if _, err := repo.GetReview(ctx, "no-such-id"); err != ErrNotFound {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestUpsertIdempotent(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	review := &domain.Review{
		ProductID:        "B00BBB",
		Source:           "AMAZON",
		ExternalReviewID: "R2",
		Fingerprint:      "fp-2",
		Body:             "solid value for the price",
		Rating:           4,
	}

	id1, err := repo.UpsertReviewByExternalID(ctx, review)
	if err != nil {
		t.Fatalf("first upsert failed: %v", err)
	}
	id2, err := repo.UpsertReviewByExternalID(ctx, review)
	if err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}
	if id1 != id2 {
		t.Errorf("re-upsert created a new row: %s vs %s", id1, id2)
	}

	reviews, err := repo.ListReviews(ctx, "B00BBB", "AMAZON")
	if err != nil {
		t.Fatalf("ListReviews failed: %v", err)
	}
	if len(reviews) != 1 {
		t.Errorf("expected one surviving row, got %d", len(reviews))
	}
}

func TestUpsertMergesNonNullFields(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	first := &domain.Review{
		ProductID:        "B00CCC",
		Source:           "AMAZON",
		ExternalReviewID: "R3",
		Fingerprint:      "fp-3",
		Title:            "original title",
		Body:             "original body",
		Rating:           3,
		HelpfulVotes:     5,
	}
	id, err := repo.UpsertReviewByExternalID(ctx, first)
	if err != nil {
		t.Fatalf("first upsert failed: %v", err)
	}

	// Sparse re-scrape: richer helpful votes, absent title and body.
	second := &domain.Review{
		ProductID:        "B00CCC",
		Source:           "AMAZON",
		ExternalReviewID: "R3",
		Fingerprint:      "fp-3",
		HelpfulVotes:     12,
	}
	if _, err := repo.UpsertReviewByExternalID(ctx, second); err != nil {
		t.Fatalf("merge upsert failed: %v", err)
	}

	got, err := repo.GetReview(ctx, id)
	if err != nil {
		t.Fatalf("GetReview failed: %v", err)
	}
	if got.Title != "original title" || got.Body != "original body" {
		t.Errorf("absent fields must keep stored values: %+v", got)
	}
	if got.Rating != 3 {
		t.Errorf("absent rating must keep stored value, got %d", got.Rating)
	}
	if got.HelpfulVotes != 12 {
		t.Errorf("incoming helpful votes must win, got %d", got.HelpfulVotes)
	}
	if !got.UpdatedAt.After(got.CreatedAt) {
		t.Error("updated_at must advance past created_at on merge")
	}
}

func TestFingerprintScopeIsDisjoint(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	// An externally-keyed row and a content-keyed row may share a fingerprint
	// without colliding.
	external := &domain.Review{
		ProductID:        "B00DDD",
		Source:           "AMAZON",
		ExternalReviewID: "R4",
		Fingerprint:      "fp-shared",
		Body:             "body one",
	}
	if _, err := repo.UpsertReviewByExternalID(ctx, external); err != nil {
		t.Fatalf("external upsert failed: %v", err)
	}

	content := &domain.Review{
		ProductID:   "B00DDD",
		Source:      "AMAZON",
		Fingerprint: "fp-shared",
		Body:        "body two",
	}
	id1, err := repo.UpsertReviewByFingerprint(ctx, content)
	if err != nil {
		t.Fatalf("fingerprint upsert failed: %v", err)
	}

	// Re-upserting the content-keyed review merges, not duplicates.
	id2, err := repo.UpsertReviewByFingerprint(ctx, content)
	if err != nil {
		t.Fatalf("fingerprint re-upsert failed: %v", err)
	}
	if id1 != id2 {
		t.Errorf("fingerprint re-upsert created a new row: %s vs %s", id1, id2)
	}

	reviews, err := repo.ListReviews(ctx, "B00DDD", "AMAZON")
	if err != nil {
		t.Fatalf("ListReviews failed: %v", err)
	}
	if len(reviews) != 2 {
		t.Errorf("expected two rows across disjoint scopes, got %d", len(reviews))
	}
}

func TestUpsertValidation(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if _, err := repo.UpsertReviewByExternalID(ctx, &domain.Review{
		ProductID: "B00EEE", Source: "AMAZON", Fingerprint: "fp",
	}); err == nil {
		t.Error("expected error for missing external id")
	}

	if _, err := repo.UpsertReviewByFingerprint(ctx, &domain.Review{
		ProductID: "B00EEE", Source: "AMAZON",
	}); err == nil {
		t.Error("expected error for missing fingerprint")
	}

	if _, err := repo.UpsertReviewByFingerprint(ctx, &domain.Review{
		ProductID: "B00EEE", Source: "AMAZON",
		ExternalReviewID: "R5", Fingerprint: "fp",
	}); err == nil {
		t.Error("expected error for external id on fingerprint path")
	}
}

func TestListRecentReviews(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		review := &domain.Review{
			ProductID:        "B00FFF",
			Source:           "AMAZON",
			ExternalReviewID: "R" + string(rune('a'+i)),
			Fingerprint:      "fp-" + string(rune('a'+i)),
			Body:             "body",
			ReviewDate:       base.AddDate(0, 0, i),
		}
		if _, err := repo.UpsertReviewByExternalID(ctx, review); err != nil {
			t.Fatalf("upsert %d failed: %v", i, err)
		}
	}

	recent, err := repo.ListRecentReviews(ctx, "B00FFF", "AMAZON", 2)
	if err != nil {
		t.Fatalf("ListRecentReviews failed: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 reviews, got %d", len(recent))
	}
	if !recent[0].ReviewDate.After(recent[1].ReviewDate) {
		t.Error("expected newest review first")
	}
}

func TestSaveAndGetScore(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	score := &domain.ScoreResult{
		ProductID: "B00GGG",
		Source:    "AMAZON",
		Score:     35,
		Penalty:   65,
		Rank:      domain.RankC,
		Judgment:  domain.JudgmentLikely,
		Metrics:   map[string]any{"total_reviews": 20.0},
		Flags:     []string{"ATTN_DISTRIBUTION"},
		Rules: []domain.RuleOutcome{
			{RuleID: "dist_bias", Flag: "ATTN_DISTRIBUTION", Value: 0.7, Points: 35},
		},
		ComputedAt: time.Now().UTC(),
	}

	if err := repo.SaveScore(ctx, score); err != nil {
		t.Fatalf("SaveScore failed: %v", err)
	}

	got, err := repo.GetScore(ctx, "B00GGG", "AMAZON")
	if err != nil {
		t.Fatalf("GetScore failed: %v", err)
	}
	if got.Score != 35 || got.Penalty != 65 || got.Rank != domain.RankC {
		t.Errorf("stored score mismatch: %+v", got)
	}
	if len(got.Rules) != 1 || got.Rules[0].RuleID != "dist_bias" {
		t.Errorf("rule outcomes not round-tripped: %+v", got.Rules)
	}

	// Recompute fully replaces the row.
	score.Penalty = 10
	score.Score = 90
	score.Rank = domain.RankA
	score.Judgment = domain.JudgmentGenuine
	score.Flags = nil
	score.Rules = nil
	if err := repo.SaveScore(ctx, score); err != nil {
		t.Fatalf("replacing SaveScore failed: %v", err)
	}

	got, err = repo.GetScore(ctx, "B00GGG", "AMAZON")
	if err != nil {
		t.Fatalf("GetScore after replace failed: %v", err)
	}
	if got.Penalty != 10 || got.Rank != domain.RankA || len(got.Flags) != 0 {
		t.Errorf("score row not fully replaced: %+v", got)
	}
}

func TestGetScoreNotFound(t *testing.T) {
	repo := newTestRepo(t)
	if _, err := repo.GetScore(context.Background(), "missing", "AMAZON"); err != domain.ErrScoreNotFound {
		t.Errorf("expected ErrScoreNotFound, got %v", err)
	}
}
