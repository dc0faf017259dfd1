// Package domain defines the core interfaces and types for Heron.
package domain

import (
	"context"
	"time"
)

// Repository defines the interface for review and score persistence.
//
// Upserts must be implemented with a transactional conditional-upsert primitive
// (never read-then-write) so that concurrent upserts to the same identity key
// serialize into a single surviving row.
type Repository interface {
	// Review operations. The two upsert variants correspond to the two disjoint
	// identity scopes of a stored review; both merge field-wise with
	// last-non-null-wins semantics and return the surviving row id.
	UpsertReviewByExternalID(ctx context.Context, review *Review) (string, error)
	UpsertReviewByFingerprint(ctx context.Context, review *Review) (string, error)

	GetReview(ctx context.Context, id string) (*Review, error)
	ListReviews(ctx context.Context, productID, source string) ([]*Review, error)
	ListRecentReviews(ctx context.Context, productID, source string, limit int) ([]*Review, error)

	// Score operations. SaveScore fully replaces the prior row for
	// (productID, source); GetScore returns ErrScoreNotFound when never computed.
	SaveScore(ctx context.Context, score *ScoreResult) error
	GetScore(ctx context.Context, productID, source string) (*ScoreResult, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
