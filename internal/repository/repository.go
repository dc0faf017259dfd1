// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/opensource-trust/heron/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

const reviewColumns = `id, product_id, source, external_review_id, fingerprint,
	   title, body, rating, review_date, reviewer, reviewer_ref, review_url,
	   helpful_votes, created_at, updated_at`

// mergeSet is the shared field-merge clause of both review upserts: an
// incoming non-null value wins, null keeps the stored value; created_at is
// set once and updated_at always advances.
const mergeSet = `
		fingerprint = COALESCE(excluded.fingerprint, reviews.fingerprint),
		title = COALESCE(excluded.title, reviews.title),
		body = COALESCE(excluded.body, reviews.body),
		rating = COALESCE(excluded.rating, reviews.rating),
		review_date = COALESCE(excluded.review_date, reviews.review_date),
		reviewer = COALESCE(excluded.reviewer, reviews.reviewer),
		reviewer_ref = COALESCE(excluded.reviewer_ref, reviews.reviewer_ref),
		review_url = COALESCE(excluded.review_url, reviews.review_url),
		helpful_votes = COALESCE(excluded.helpful_votes, reviews.helpful_votes),
		updated_at = excluded.updated_at`

// UpsertReviewByExternalID merges a review into the platform-id identity scope.
func (r *SQLRepository) UpsertReviewByExternalID(ctx context.Context, review *domain.Review) (string, error) {
	if review.ExternalReviewID == "" {
		return "", fmt.Errorf("%w: external review id is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO reviews (` + reviewColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(product_id, source, external_review_id)
			WHERE external_review_id IS NOT NULL
			DO UPDATE SET` + mergeSet + `
		RETURNING id
	`
	return r.upsertReview(ctx, query, review)
}

// UpsertReviewByFingerprint merges a review into the content identity scope.
func (r *SQLRepository) UpsertReviewByFingerprint(ctx context.Context, review *domain.Review) (string, error) {
	if review.ExternalReviewID != "" {
		return "", fmt.Errorf("%w: review carries an external id", ErrInvalidInput)
	}
	if review.Fingerprint == "" {
		return "", fmt.Errorf("%w: fingerprint is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO reviews (` + reviewColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(product_id, source, fingerprint)
			WHERE external_review_id IS NULL
			DO UPDATE SET` + mergeSet + `
		RETURNING id
	`
	return r.upsertReview(ctx, query, review)
}

func (r *SQLRepository) upsertReview(ctx context.Context, query string, review *domain.Review) (string, error) {
	if review.ProductID == "" || review.Source == "" {
		return "", fmt.Errorf("%w: product id and source are required", ErrInvalidInput)
	}

	now := time.Now().UTC()

	var id string
	err := r.db.QueryRowContext(ctx, r.rebind(query),
		uuid.New().String(), review.ProductID, review.Source,
		nullStr(review.ExternalReviewID), review.Fingerprint,
		nullStr(review.Title), nullStr(review.Body),
		nullPosInt(review.Rating), nullTime(review.ReviewDate),
		nullStr(review.Reviewer), nullStr(review.ReviewerRef), nullStr(review.ReviewURL),
		nullPosInt(review.HelpfulVotes),
		now, now,
	).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

// GetReview retrieves a review by row id.
func (r *SQLRepository) GetReview(ctx context.Context, id string) (*domain.Review, error) {
	query := `SELECT ` + reviewColumns + ` FROM reviews WHERE id = ?`

	review, err := scanReview(r.db.QueryRowContext(ctx, r.rebind(query), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return review, nil
}

// ListReviews retrieves the full corpus for a product and source, newest
// review first.
func (r *SQLRepository) ListReviews(ctx context.Context, productID, source string) ([]*domain.Review, error) {
	query := `
		SELECT ` + reviewColumns + `
		FROM reviews
		WHERE product_id = ? AND source = ?
		ORDER BY review_date DESC, created_at DESC
	`
	return r.queryReviews(ctx, query, productID, source)
}

// ListRecentReviews retrieves at most limit reviews, newest first.
func (r *SQLRepository) ListRecentReviews(ctx context.Context, productID, source string, limit int) ([]*domain.Review, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT ` + reviewColumns + `
		FROM reviews
		WHERE product_id = ? AND source = ?
		ORDER BY review_date DESC, created_at DESC
		LIMIT ?
	`
	return r.queryReviews(ctx, query, productID, source, limit)
}

func (r *SQLRepository) queryReviews(ctx context.Context, query string, args ...any) ([]*domain.Review, error) {
	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reviews []*domain.Review
	for rows.Next() {
		review, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		reviews = append(reviews, review)
	}
	return reviews, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReview(row rowScanner) (*domain.Review, error) {
	var review domain.Review
	var externalID, title, body, reviewer, reviewerRef, reviewURL sql.NullString
	var rating, helpful sql.NullInt64
	var reviewDate sql.NullTime

	err := row.Scan(
		&review.ID, &review.ProductID, &review.Source,
		&externalID, &review.Fingerprint,
		&title, &body, &rating, &reviewDate,
		&reviewer, &reviewerRef, &reviewURL,
		&helpful, &review.CreatedAt, &review.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	review.ExternalReviewID = externalID.String
	review.Title = title.String
	review.Body = body.String
	review.Rating = int(rating.Int64)
	review.Reviewer = reviewer.String
	review.ReviewerRef = reviewerRef.String
	review.ReviewURL = reviewURL.String
	review.HelpfulVotes = int(helpful.Int64)
	if reviewDate.Valid {
		review.ReviewDate = reviewDate.Time
	}

	return &review, nil
}

// SaveScore fully replaces the score snapshot for (product, source).
func (r *SQLRepository) SaveScore(ctx context.Context, score *domain.ScoreResult) error {
	if score.ProductID == "" || score.Source == "" {
		return fmt.Errorf("%w: product id and source are required", ErrInvalidInput)
	}

	metrics, _ := json.Marshal(score.Metrics)
	flags, _ := json.Marshal(score.Flags)
	outcomes, _ := json.Marshal(score.Rules)

	query := `
		INSERT INTO review_scores (
			product_id, source, score, penalty, rank, judgment,
			metrics, flags, rule_outcomes, computed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(product_id, source) DO UPDATE SET
			score = excluded.score,
			penalty = excluded.penalty,
			rank = excluded.rank,
			judgment = excluded.judgment,
			metrics = excluded.metrics,
			flags = excluded.flags,
			rule_outcomes = excluded.rule_outcomes,
			computed_at = excluded.computed_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		score.ProductID, score.Source, score.Score, score.Penalty,
		string(score.Rank), string(score.Judgment),
		string(metrics), string(flags), string(outcomes),
		score.ComputedAt,
	)
	return err
}

// GetScore retrieves the latest score snapshot for (product, source).
func (r *SQLRepository) GetScore(ctx context.Context, productID, source string) (*domain.ScoreResult, error) {
	query := `
		SELECT product_id, source, score, penalty, rank, judgment,
			   metrics, flags, rule_outcomes, computed_at
		FROM review_scores
		WHERE product_id = ? AND source = ?
	`

	var result domain.ScoreResult
	var rank, judgment string
	var metrics, flags, outcomes string

	err := r.db.QueryRowContext(ctx, r.rebind(query), productID, source).Scan(
		&result.ProductID, &result.Source, &result.Score, &result.Penalty,
		&rank, &judgment, &metrics, &flags, &outcomes, &result.ComputedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrScoreNotFound
	}
	if err != nil {
		return nil, err
	}

	result.Rank = domain.Rank(rank)
	result.Judgment = domain.Judgment(judgment)
	json.Unmarshal([]byte(metrics), &result.Metrics)
	json.Unmarshal([]byte(flags), &result.Flags)
	json.Unmarshal([]byte(outcomes), &result.Rules)

	return &result, nil
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// nullStr maps the empty string to SQL NULL so the merge clause treats it as
// absent rather than overwriting stored text.
func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// nullPosInt maps non-positive values to NULL; ratings and vote counts are
// absent when the scraper could not read them.
func nullPosInt(n int) any {
	if n <= 0 {
		return nil
	}
	return n
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	// Convert ? to $1, $2, etc.
	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
