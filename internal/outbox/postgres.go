package outbox

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"hash/fnv"
	"slices"
	"time"

	"github.com/google/uuid"

	"renewals/internal/platform/postgres"
	"renewals/pkg/platform/sentinel"
	"renewals/pkg/platform/tx"
)

const leaderLockName = "outbox:outbox_messages"

// PostgresStore persists messages in outbox_messages.
type PostgresStore struct {
	db      *sql.DB
	lockKey int64
	opts    storeOptions
}

func NewPostgresStore(db *sql.DB, opts ...StoreOption) *PostgresStore {
	return &PostgresStore{
		db:      db,
		lockKey: advisoryLockKey(leaderLockName),
		opts:    applyStoreOptions(opts),
	}
}

func (s *PostgresStore) Enqueue(ctx context.Context, msg Message) error {
	_, err := tx.Exec(ctx, s.db).ExecContext(ctx, `
		INSERT INTO outbox_messages (id, topic, aggregate_type, aggregate_id, payload, available_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		msg.ID, string(msg.Topic), string(msg.AggregateType), msg.AggregateID, []byte(msg.Payload), msg.AvailableAt, msg.CreatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return fmt.Errorf("enqueue %s/%d: %w", msg.AggregateType, msg.AggregateID, sentinel.ErrConflict)
		}
		return fmt.Errorf("enqueue outbox message: %w", err)
	}
	s.opts.metrics.incEnqueued(msg.Topic)
	return nil
}

// Claim locks and returns deliverable messages in one statement. SKIP LOCKED
// lets concurrent claimers partition the queue without blocking each other.
func (s *PostgresStore) Claim(ctx context.Context, now, staleBefore time.Time, maxAttempts, limit int) ([]Message, error) {
	rows, err := tx.Exec(ctx, s.db).QueryContext(ctx, `
		UPDATE outbox_messages
		   SET locked_at = $1, attempts = attempts + 1
		 WHERE id IN (
			SELECT id FROM outbox_messages
			 WHERE published_at IS NULL
			   AND dead_at IS NULL
			   AND available_at <= $1
			   AND attempts < $3
			   AND (locked_at IS NULL OR locked_at < $2)
			 ORDER BY available_at, created_at
			 LIMIT $4
			 FOR UPDATE SKIP LOCKED)
		RETURNING id, topic, aggregate_type, aggregate_id, payload, attempts, available_at, locked_at, last_error, created_at`,
		now, staleBefore, maxAttempts, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("claim outbox messages: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var (
			m        Message
			topic    string
			aggType  string
			payload  []byte
			lockedAt sql.NullTime
			lastErr  sql.NullString
		)
		if err := rows.Scan(&m.ID, &topic, &aggType, &m.AggregateID, &payload, &m.Attempts,
			&m.AvailableAt, &lockedAt, &lastErr, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox message: %w", err)
		}
		m.Topic = Topic(topic)
		m.AggregateType = AggregateType(aggType)
		m.Payload = payload
		if lockedAt.Valid {
			t := lockedAt.Time
			m.LockedAt = &t
		}
		m.LastError = lastErr.String
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("claim outbox rows: %w", err)
	}

	// RETURNING does not preserve the subquery order.
	slices.SortFunc(out, func(a, b Message) int {
		if c := a.AvailableAt.Compare(b.AvailableAt); c != 0 {
			return c
		}
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out, nil
}

func (s *PostgresStore) MarkPublished(ctx context.Context, id uuid.UUID) error {
	_, err := tx.Exec(ctx, s.db).ExecContext(ctx, `
		UPDATE outbox_messages
		   SET published_at = now(), locked_at = NULL, last_error = NULL
		 WHERE id = $1 AND published_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("mark outbox message published: %w", err)
	}
	return nil
}

func (s *PostgresStore) MarkFailed(ctx context.Context, id uuid.UUID, lastErr string, availableAt time.Time) error {
	_, err := tx.Exec(ctx, s.db).ExecContext(ctx, `
		UPDATE outbox_messages
		   SET locked_at = NULL, last_error = $2, available_at = $3
		 WHERE id = $1 AND published_at IS NULL`, id, lastErr, availableAt)
	if err != nil {
		return fmt.Errorf("mark outbox message failed: %w", err)
	}
	return nil
}

func (s *PostgresStore) MarkDead(ctx context.Context, id uuid.UUID, lastErr string) error {
	_, err := tx.Exec(ctx, s.db).ExecContext(ctx, `
		UPDATE outbox_messages
		   SET locked_at = NULL, last_error = $2, dead_at = now()
		 WHERE id = $1 AND published_at IS NULL`, id, lastErr)
	if err != nil {
		return fmt.Errorf("mark outbox message dead: %w", err)
	}
	return nil
}

func (s *PostgresStore) Requeue(ctx context.Context, aggType AggregateType, aggID int64) error {
	res, err := tx.Exec(ctx, s.db).ExecContext(ctx, `
		UPDATE outbox_messages
		   SET dead_at = NULL, attempts = 0, available_at = now(), locked_at = NULL, last_error = NULL
		 WHERE aggregate_type = $1 AND aggregate_id = $2 AND published_at IS NULL`,
		string(aggType), aggID)
	if err != nil {
		return fmt.Errorf("requeue outbox message: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("requeue outbox message: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("requeue %s/%d: %w", aggType, aggID, sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx, `
		SELECT count(*) FILTER (WHERE dead_at IS NULL),
		       count(*) FILTER (WHERE dead_at IS NULL AND locked_at IS NOT NULL),
		       count(*) FILTER (WHERE dead_at IS NOT NULL)
		  FROM outbox_messages
		 WHERE published_at IS NULL`).Scan(&st.Pending, &st.Locked, &st.Dead)
	if err != nil {
		return Stats{}, fmt.Errorf("outbox stats: %w", err)
	}
	return st, nil
}

// TryLead takes a session-level advisory lock on a dedicated connection. The
// lock lives as long as that connection, so release must close it.
func (s *PostgresStore) TryLead(ctx context.Context) (func(), bool, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire leader connection: %w", err)
	}
	var ok bool
	if err := conn.QueryRowContext(ctx, `SELECT pg_try_advisory_lock($1::bigint)`, s.lockKey).Scan(&ok); err != nil {
		_ = conn.Close()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !ok {
		_ = conn.Close()
		return nil, false, nil
	}
	release := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		var unlocked bool
		if err := conn.QueryRowContext(ctx, `SELECT pg_advisory_unlock($1::bigint)`, s.lockKey).Scan(&unlocked); err != nil || !unlocked {
			// Discarding the session drops the lock with it.
			_ = conn.Raw(func(any) error { return driver.ErrBadConn })
		}
		_ = conn.Close()
	}
	return release, true, nil
}

func advisoryLockKey(s string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return int64(h.Sum64()) //nolint:gosec
}
