package repository

// Schema definitions for the Heron database.
// Compatible with both SQLite and PostgreSQL.

// The two partial unique indexes implement the dual identity of a review:
// platform-keyed rows dedup on the external id, content-keyed rows dedup on
// the fingerprint. The scopes are disjoint so a fingerprint collision can
// never merge into an externally-keyed row.
const schemaReviews = `
CREATE TABLE IF NOT EXISTS reviews (
    id TEXT PRIMARY KEY,
    product_id TEXT NOT NULL,
    source TEXT NOT NULL,
    external_review_id TEXT,
    fingerprint TEXT NOT NULL,
    title TEXT,
    body TEXT,
    rating INTEGER,
    review_date TIMESTAMP,
    reviewer TEXT,
    reviewer_ref TEXT,
    review_url TEXT,
    helpful_votes INTEGER,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_reviews_external_id
    ON reviews(product_id, source, external_review_id)
    WHERE external_review_id IS NOT NULL;
CREATE UNIQUE INDEX IF NOT EXISTS idx_reviews_fingerprint
    ON reviews(product_id, source, fingerprint)
    WHERE external_review_id IS NULL;

CREATE INDEX IF NOT EXISTS idx_reviews_product ON reviews(product_id, source);
CREATE INDEX IF NOT EXISTS idx_reviews_review_date ON reviews(product_id, source, review_date);
`

const schemaScores = `
CREATE TABLE IF NOT EXISTS review_scores (
    product_id TEXT NOT NULL,
    source TEXT NOT NULL,
    score INTEGER NOT NULL,
    penalty INTEGER NOT NULL,
    rank TEXT NOT NULL,
    judgment TEXT NOT NULL,
    metrics TEXT NOT NULL,
    flags TEXT NOT NULL,
    rule_outcomes TEXT NOT NULL,
    computed_at TIMESTAMP NOT NULL,
    PRIMARY KEY (product_id, source)
);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaReviews,
		schemaScores,
	}
}
