package outbox

import (
	"context"
	"time"
)

// Repository is the outbox table as the relay sees it. Store implements it.
type Repository interface {
	// Save inserts msgs inside the transaction in ctx, if any.
	Save(ctx context.Context, msgs ...*Message) error
	// Pending lists up to limit unpublished messages that are not dead and
	// are due at now, oldest first.
	Pending(ctx context.Context, now time.Time, limit int) ([]*Message, error)
	MarkPublished(ctx context.Context, id int64, at time.Time) error
	// MarkFailed bumps the retry count and defers the message to next.
	MarkFailed(ctx context.Context, id int64, reason string, next time.Time) error
	MarkDead(ctx context.Context, id int64, reason string, at time.Time) error
	// Purge deletes messages published before cutoff.
	Purge(ctx context.Context, cutoff time.Time) (int64, error)
}

var _ Repository = (*Store)(nil)
