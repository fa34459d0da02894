// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/ashureev/proposal-chat/internal/domain"
)

// Repository defines the interface for persisting feedback flags.
type Repository interface {
	// SaveFeedback persists one flagged exchange.
	SaveFeedback(ctx context.Context, fb *domain.Feedback) error

	// ListFeedback returns the most recent flags, newest first.
	ListFeedback(ctx context.Context, limit int) ([]*domain.Feedback, error)

	// CountFeedback returns the total number of stored flags.
	CountFeedback(ctx context.Context) (int64, error)

	// DeleteFeedbackBefore removes flags created before cutoff and returns
	// how many rows were removed.
	DeleteFeedbackBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Ping verifies database connectivity and returns an error if the
	// database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
