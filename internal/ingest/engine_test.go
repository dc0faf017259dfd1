package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/opensource-trust/heron/internal/domain"
)

// fakeRepo records the upsert path taken and the canonical review it received.
type fakeRepo struct {
	byExternalID  *domain.Review
	byFingerprint *domain.Review
}

func (f *fakeRepo) UpsertReviewByExternalID(ctx context.Context, r *domain.Review) (string, error) {
	f.byExternalID = r
	return "id-external", nil
}

func (f *fakeRepo) UpsertReviewByFingerprint(ctx context.Context, r *domain.Review) (string, error) {
	f.byFingerprint = r
	return "id-fingerprint", nil
}

func (f *fakeRepo) GetReview(ctx context.Context, id string) (*domain.Review, error) {
	return nil, nil
}

func (f *fakeRepo) ListReviews(ctx context.Context, productID, source string) ([]*domain.Review, error) {
	return nil, nil
}

func (f *fakeRepo) ListRecentReviews(ctx context.Context, productID, source string, limit int) ([]*domain.Review, error) {
	return nil, nil
}

func (f *fakeRepo) SaveScore(ctx context.Context, score *domain.ScoreResult) error { return nil }
func (f *fakeRepo) GetScore(ctx context.Context, productID, source string) (*domain.ScoreResult, error) {
	return nil, nil
}
func (f *fakeRepo) Ping(ctx context.Context) error { return nil }
func (f *fakeRepo) Close() error                   { return nil }

// fakeBus captures published messages.
type fakeBus struct {
	topics   []string
	payloads [][]byte
}

func (f *fakeBus) Publish(ctx context.Context, topic string, payload []byte) error {
	f.topics = append(f.topics, topic)
	f.payloads = append(f.payloads, payload)
	return nil
}

func (f *fakeBus) Subscribe(ctx context.Context, topic string, handler domain.MessageHandler) (domain.Subscription, error) {
	return nil, nil
}

func (f *fakeBus) Ping(ctx context.Context) error { return nil }
func (f *fakeBus) Close() error                   { return nil }

func testInput() *domain.ReviewInput {
	return &domain.ReviewInput{
		ProductID:  "B00TEST",
		Title:      "Great product",
		Body:       "Works exactly as described, would recommend to anyone.",
		Rating:     4,
		ReviewDate: time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
		Reviewer:   "Jane D.",
	}
}

func TestUpsertDefaultsAndClamps(t *testing.T) {
	repo := &fakeRepo{}
	engine := NewEngine(repo, nil, nil)

	input := testInput()
	input.Source = ""
	input.Rating = 9
	input.HelpfulVotes = -3

	if _, err := engine.Upsert(context.Background(), input); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	got := repo.byFingerprint
	if got == nil {
		t.Fatal("expected fingerprint upsert path")
	}
	if got.Source != domain.SourceAmazon {
		t.Errorf("expected default source AMAZON, got %q", got.Source)
	}
	if got.Rating != 5 {
		t.Errorf("expected rating clamped to 5, got %d", got.Rating)
	}
	if got.HelpfulVotes != 0 {
		t.Errorf("expected helpful votes clamped to 0, got %d", got.HelpfulVotes)
	}
}

func TestUpsertRoutesByIdentity(t *testing.T) {
	repo := &fakeRepo{}
	engine := NewEngine(repo, nil, nil)

	input := testInput()
	input.ExternalReviewID = "R1ABCDEF"
	if _, err := engine.Upsert(context.Background(), input); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if repo.byExternalID == nil {
		t.Error("external id input must take the external-id upsert path")
	}
	// Fingerprint still stored alongside the external id.
	if repo.byExternalID.Fingerprint == "" {
		t.Error("externally-keyed review must still carry a fingerprint")
	}

	repo2 := &fakeRepo{}
	engine2 := NewEngine(repo2, nil, nil)
	if _, err := engine2.Upsert(context.Background(), testInput()); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if repo2.byFingerprint == nil {
		t.Error("input without external id must take the fingerprint upsert path")
	}
}

func TestUpsertNotFingerprintable(t *testing.T) {
	engine := NewEngine(&fakeRepo{}, nil, nil)

	_, err := engine.Upsert(context.Background(), &domain.ReviewInput{
		ProductID: "B00TEST",
		Rating:    5,
	})
	if err != ErrNotFingerprintable {
		t.Errorf("expected ErrNotFingerprintable, got %v", err)
	}

	// A whitespace-only external id trims to nothing and must not count as
	// an identity.
	_, err = engine.Upsert(context.Background(), &domain.ReviewInput{
		ProductID:        "B00TEST",
		ExternalReviewID: "   ",
		Rating:           5,
	})
	if err != ErrNotFingerprintable {
		t.Errorf("expected ErrNotFingerprintable for blank external id, got %v", err)
	}

	// Same bare input with an external id is fine.
	_, err = engine.Upsert(context.Background(), &domain.ReviewInput{
		ProductID:        "B00TEST",
		ExternalReviewID: "R99",
		Rating:           5,
	})
	if err != nil {
		t.Errorf("external id should bypass the fingerprint requirement: %v", err)
	}
}

func TestUpsertRequiresProduct(t *testing.T) {
	engine := NewEngine(&fakeRepo{}, nil, nil)
	if _, err := engine.Upsert(context.Background(), &domain.ReviewInput{Body: "text"}); err == nil {
		t.Error("expected error for missing product id")
	}
}

func TestFingerprintStability(t *testing.T) {
	date := time.Date(2025, 5, 1, 14, 30, 0, 0, time.UTC)

	a := Fingerprint("great product", "works well", "jane", date)
	b := Fingerprint("great product", "works well", "jane", date)
	if a == "" || a != b {
		t.Errorf("fingerprint not stable: %q vs %q", a, b)
	}

	// Same day, different time of day: identical fingerprint.
	laterSameDay := time.Date(2025, 5, 1, 23, 59, 0, 0, time.UTC)
	if c := Fingerprint("great product", "works well", "jane", laterSameDay); c != a {
		t.Error("fingerprint must depend on the epoch day, not the time of day")
	}

	// Next day differs.
	if d := Fingerprint("great product", "works well", "jane", date.AddDate(0, 0, 1)); d == a {
		t.Error("different day must change the fingerprint")
	}

	// Any changed part changes the hash.
	if Fingerprint("great product", "works well", "john", date) == a {
		t.Error("different reviewer ref must change the fingerprint")
	}
}

func TestFingerprintSkipsAbsentParts(t *testing.T) {
	// Only a body: still fingerprintable.
	if fp := Fingerprint("", "some body text", "", time.Time{}); fp == "" {
		t.Error("body alone should produce a fingerprint")
	}
	// Nothing at all: sentinel empty.
	if fp := Fingerprint("", "", "", time.Time{}); fp != "" {
		t.Errorf("no parts should yield empty fingerprint, got %q", fp)
	}
}

func TestResolveReviewerRefPrecedence(t *testing.T) {
	tests := []struct {
		name  string
		input domain.ReviewInput
		want  string
	}{
		{"explicit ref wins", domain.ReviewInput{ReviewerRef: "ref-1", ReviewURL: "http://u", Reviewer: "Jane"}, "ref-1"},
		{"url over name", domain.ReviewInput{ReviewURL: "http://u", Reviewer: "Jane"}, "http://u"},
		{"lowercased name", domain.ReviewInput{Reviewer: "  Jane D.  "}, "jane d."},
		{"absent", domain.ReviewInput{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := resolveReviewerRef(&tt.input); got != tt.want {
				t.Errorf("resolveReviewerRef = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUpsertPublishesEvent(t *testing.T) {
	bus := &fakeBus{}
	engine := NewEngine(&fakeRepo{}, bus, nil)

	if _, err := engine.Upsert(context.Background(), testInput()); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	if len(bus.topics) != 1 || bus.topics[0] != domain.TopicReviewIngested {
		t.Errorf("expected one publish on %s, got %v", domain.TopicReviewIngested, bus.topics)
	}
}
