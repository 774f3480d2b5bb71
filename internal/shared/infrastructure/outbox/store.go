package outbox

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lycebot/premium/internal/shared/domain"
	"github.com/lycebot/premium/internal/shared/infrastructure/database"
)

// Store implements Repository on the shared database layer.
type Store struct {
	conn database.Connection
}

// NewStore creates an outbox store on conn.
func NewStore(conn database.Connection) *Store {
	return &Store{conn: conn}
}

func (s *Store) exec(ctx context.Context) database.Executor {
	return database.ExecutorFromContext(ctx, s.conn)
}

func (s *Store) rebind(query string) string {
	return database.Rebind(s.conn.Driver(), query)
}

// Record encodes events and saves them in the transaction carried by ctx.
func (s *Store) Record(ctx context.Context, events ...domain.DomainEvent) error {
	msgs := make([]*Message, 0, len(events))
	for _, event := range events {
		msg, err := NewMessage(ctx, event)
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
	}
	return s.Save(ctx, msgs...)
}

// Save stores messages and fills in their ids.
func (s *Store) Save(ctx context.Context, msgs ...*Message) error {
	query := s.rebind(`
		INSERT INTO outbox (event_id, aggregate_type, aggregate_id, routing_key, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id
	`)

	ex := s.exec(ctx)
	for _, msg := range msgs {
		err := ex.QueryRow(ctx, query,
			msg.EventID.String(),
			msg.AggregateType,
			msg.AggregateID.String(),
			msg.RoutingKey,
			string(msg.Payload),
			database.TimeValue(s.conn.Driver(), msg.CreatedAt),
		).Scan(&msg.ID)
		if err != nil {
			return fmt.Errorf("save outbox message %s: %w", msg.EventID, err)
		}
	}
	return nil
}

// Pending returns messages ready for relay.
func (s *Store) Pending(ctx context.Context, now time.Time, limit int) ([]*Message, error) {
	query := s.rebind(`
		SELECT id, event_id, aggregate_type, aggregate_id, routing_key, payload,
			created_at, next_retry_at, retry_count, last_error
		FROM outbox
		WHERE published_at IS NULL
			AND dead_lettered_at IS NULL
			AND (next_retry_at IS NULL OR next_retry_at <= ?)
		ORDER BY id
		LIMIT ?
	`)

	rows, err := s.exec(ctx).Query(ctx, query, database.TimeValue(s.conn.Driver(), now), limit)
	if err != nil {
		return nil, fmt.Errorf("query pending outbox messages: %w", err)
	}
	defer rows.Close()

	var msgs []*Message
	for rows.Next() {
		var (
			msg                  Message
			eventID, aggregateID string
			payload              string
			createdAt, retryAt   database.NullTime
			lastError            sql.NullString
		)
		if err := rows.Scan(
			&msg.ID, &eventID, &msg.AggregateType, &aggregateID, &msg.RoutingKey, &payload,
			&createdAt, &retryAt, &msg.RetryCount, &lastError,
		); err != nil {
			return nil, fmt.Errorf("scan outbox message: %w", err)
		}
		if msg.EventID, err = uuid.Parse(eventID); err != nil {
			return nil, fmt.Errorf("outbox message %d: event id: %w", msg.ID, err)
		}
		if msg.AggregateID, err = uuid.Parse(aggregateID); err != nil {
			return nil, fmt.Errorf("outbox message %d: aggregate id: %w", msg.ID, err)
		}
		msg.Payload = []byte(payload)
		msg.CreatedAt = createdAt.Time
		msg.NextRetryAt = retryAt.Ptr()
		if lastError.Valid {
			msg.LastError = &lastError.String
		}
		msgs = append(msgs, &msg)
	}
	return msgs, rows.Err()
}

// MarkPublished marks a message as successfully published.
func (s *Store) MarkPublished(ctx context.Context, id int64, at time.Time) error {
	return s.update(ctx, id, `UPDATE outbox SET published_at = ? WHERE id = ?`,
		database.TimeValue(s.conn.Driver(), at), id)
}

// MarkFailed records a publish failure and schedules the next attempt.
func (s *Store) MarkFailed(ctx context.Context, id int64, reason string, nextRetryAt time.Time) error {
	return s.update(ctx, id, `
		UPDATE outbox
		SET retry_count = retry_count + 1, last_error = ?, next_retry_at = ?
		WHERE id = ?
	`, reason, database.TimeValue(s.conn.Driver(), nextRetryAt), id)
}

// MarkDead marks a message as dead-lettered. It stays in the table for
// inspection and is never relayed again.
func (s *Store) MarkDead(ctx context.Context, id int64, reason string, at time.Time) error {
	return s.update(ctx, id, `
		UPDATE outbox
		SET retry_count = retry_count + 1, last_error = ?, dead_lettered_at = ?
		WHERE id = ?
	`, reason, database.TimeValue(s.conn.Driver(), at), id)
}

// Purge removes messages published before cutoff.
func (s *Store) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.exec(ctx).Exec(ctx,
		s.rebind(`DELETE FROM outbox WHERE published_at IS NOT NULL AND published_at < ?`),
		database.TimeValue(s.conn.Driver(), cutoff),
	)
	if err != nil {
		return 0, fmt.Errorf("purge outbox: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) update(ctx context.Context, id int64, query string, args ...any) error {
	res, err := s.exec(ctx).Exec(ctx, s.rebind(query), args...)
	if err != nil {
		return fmt.Errorf("update outbox message %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update outbox message %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("outbox message %d not found", id)
	}
	return nil
}
