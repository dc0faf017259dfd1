package domain

import (
	"time"
)

// SourceAmazon is the default review source when the scraper omits one.
const SourceAmazon = "AMAZON"

// ReviewInput is a raw scraped review as delivered by the extractor.
// It has no identity of its own; the upsert engine consumes it once.
type ReviewInput struct {
	ProductID string `json:"productId"`
	Source    string `json:"source"`

	// ExternalReviewID is the platform-assigned id, when the platform exposes one.
	ExternalReviewID string `json:"externalReviewId,omitempty"`

	Title  string `json:"title,omitempty"`
	Body   string `json:"body,omitempty"`
	Rating int    `json:"rating"`

	// ReviewDate is the date the review was posted (zero when unknown).
	ReviewDate time.Time `json:"reviewDate,omitempty"`

	Reviewer     string `json:"reviewer,omitempty"`
	ReviewerRef  string `json:"reviewerRef,omitempty"`
	ReviewURL    string `json:"reviewUrl,omitempty"`
	HelpfulVotes int    `json:"helpfulVotes"`
}

// IdentityKind discriminates the two uniqueness scopes a stored review can live in.
type IdentityKind string

const (
	// IdentityExternalID keys the review by the platform-assigned id.
	IdentityExternalID IdentityKind = "external_id"

	// IdentityFingerprint keys the review by the content-derived hash.
	IdentityFingerprint IdentityKind = "fingerprint"
)

// ReviewIdentity is the tagged identity of a stored review: exactly one of
// ExternalID or Fingerprint determines the merge key, scoped to (product, source).
// The two scopes are disjoint; a fingerprint never collides with the external-id space.
type ReviewIdentity struct {
	Kind        IdentityKind
	ExternalID  string
	Fingerprint string
}

// Key returns the identifying value for the active variant.
func (id ReviewIdentity) Key() string {
	if id.Kind == IdentityExternalID {
		return id.ExternalID
	}
	return id.Fingerprint
}

// Review is the canonical stored form of a scraped review.
//
// Uniqueness is (product_id, source, external_review_id) when ExternalReviewID
// is set, otherwise (product_id, source, fingerprint). Fingerprint is always
// populated, even for externally-keyed rows. All text fields are normalized
// before storage; empty string means absent.
type Review struct {
	ID        string `json:"id"`
	ProductID string `json:"productId"`
	Source    string `json:"source"`

	ExternalReviewID string `json:"externalReviewId,omitempty"`
	Fingerprint      string `json:"fingerprint,omitempty"`

	Title  string `json:"title,omitempty"`
	Body   string `json:"body,omitempty"`
	Rating int    `json:"rating"`

	ReviewDate time.Time `json:"reviewDate,omitempty"`

	Reviewer     string `json:"reviewer,omitempty"`
	ReviewerRef  string `json:"reviewerRef,omitempty"`
	ReviewURL    string `json:"reviewUrl,omitempty"`
	HelpfulVotes int    `json:"helpfulVotes"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Identity reports which uniqueness scope this review belongs to.
func (r *Review) Identity() ReviewIdentity {
	if r.ExternalReviewID != "" {
		return ReviewIdentity{Kind: IdentityExternalID, ExternalID: r.ExternalReviewID, Fingerprint: r.Fingerprint}
	}
	return ReviewIdentity{Kind: IdentityFingerprint, Fingerprint: r.Fingerprint}
}
