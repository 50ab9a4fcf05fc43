package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Guizzs26/go-pos-sync/internal/models"
	"github.com/google/uuid"
)

// Queue order is creation time, then insertion order for entries stamped in the same millisecond
const fifoOrder = "ORDER BY created_at ASC, rowid ASC"

type execQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// InsertBookingWithMutation writes the optimistic booking and its queue entry
// in one transaction, so neither can exist without the other. It returns the
// new queue entry id and the queue size measured after the insert
func (s *Store) InsertBookingWithMutation(ctx context.Context, b models.LocalBooking, mutationType string, payload []byte) (string, int, error) {
	var (
		outboxID string
		size     int
	)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		now := s.now().UnixMilli()

		_, err := tx.ExecContext(ctx, `
			INSERT INTO bookings
				(id, server_id, customer_name, start_time, end_time, room_id, players, price, status, updated_at, dirty)
			VALUES (?, NULL, ?, ?, ?, ?, ?, ?, ?, ?, 1)`,
			b.ID, b.CustomerName, b.StartTime, b.EndTime, nullString(b.RoomID), b.Players, b.Price, b.Status, now,
		)
		if err != nil {
			return fmt.Errorf("failed to insert local booking: %w", err)
		}

		outboxID, err = insertMutation(ctx, tx, mutationType, payload, now)
		if err != nil {
			return err
		}

		size, err = queueSize(ctx, tx)
		return err
	})
	if err != nil {
		return "", 0, err
	}
	return outboxID, size, nil
}

// Enqueue appends a mutation to the tail of the queue
func (s *Store) Enqueue(ctx context.Context, mutationType string, payload []byte) (string, error) {
	return insertMutation(ctx, s.db, mutationType, payload, s.now().UnixMilli())
}

// ReplaceRoomUpdate queues a room:update and removes any earlier room:update
// for the same room still waiting, so only the latest status is pushed
func (s *Store) ReplaceRoomUpdate(ctx context.Context, roomID string, payload []byte) (string, int, int, error) {
	var (
		outboxID   string
		superseded int64
		size       int
	)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`DELETE FROM sync_queue WHERE type = ? AND json_extract(payload_json, '$.roomId') = ?`,
			models.MutationRoomUpdate, roomID,
		)
		if err != nil {
			return fmt.Errorf("failed to collapse room updates: %w", err)
		}
		superseded, _ = res.RowsAffected()

		outboxID, err = insertMutation(ctx, tx, models.MutationRoomUpdate, payload, s.now().UnixMilli())
		if err != nil {
			return err
		}

		size, err = queueSize(ctx, tx)
		return err
	})
	if err != nil {
		return "", 0, 0, err
	}
	return outboxID, int(superseded), size, nil
}

func insertMutation(ctx context.Context, q execQuerier, mutationType string, payload []byte, createdAt int64) (string, error) {
	id := uuid.NewString()
	_, err := q.ExecContext(ctx,
		`INSERT INTO sync_queue (id, type, payload_json, created_at, attempt_count) VALUES (?, ?, ?, ?, 0)`,
		id, mutationType, string(payload), createdAt,
	)
	if err != nil {
		return "", fmt.Errorf("failed to enqueue %s: %w", mutationType, err)
	}
	return id, nil
}

// QueueSize counts queued mutations
func (s *Store) QueueSize(ctx context.Context) (int, error) {
	return queueSize(ctx, s.db)
}

func queueSize(ctx context.Context, q execQuerier) (int, error) {
	var n int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM sync_queue`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count queue: %w", err)
	}
	return n, nil
}

// PeekOldest returns the head of the queue without removing it, or nil when empty
func (s *Store) PeekOldest(ctx context.Context) (*models.QueuedMutation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, type, payload_json, created_at, attempt_count, COALESCE(last_error, '')
		FROM sync_queue `+fifoOrder+` LIMIT 1`)

	m, err := scanMutation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to peek queue: %w", err)
	}
	return m, nil
}

// ListQueue returns every queued mutation in drain order
func (s *Store) ListQueue(ctx context.Context) ([]models.QueuedMutation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, payload_json, created_at, attempt_count, COALESCE(last_error, '')
		FROM sync_queue `+fifoOrder)
	if err != nil {
		return nil, fmt.Errorf("failed to list queue: %w", err)
	}
	defer rows.Close()

	var out []models.QueuedMutation
	for rows.Next() {
		m, err := scanMutation(rows)
		if err != nil {
			return nil, fmt.Errorf("queue scan failed: %w", err)
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMutation(sc scanner) (*models.QueuedMutation, error) {
	var (
		m       models.QueuedMutation
		payload string
	)
	if err := sc.Scan(&m.ID, &m.Type, &payload, &m.CreatedAt, &m.Attempts, &m.LastError); err != nil {
		return nil, err
	}
	m.Payload = []byte(payload)
	return &m, nil
}

// CompleteMutation removes a confirmed entry and marks its booking clean.
// serverID is recorded on the booking when the remote returned one
func (s *Store) CompleteMutation(ctx context.Context, outboxID, localID, serverID string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM sync_queue WHERE id = ?`, outboxID); err != nil {
			return fmt.Errorf("failed to delete queue entry: %w", err)
		}
		return markClean(ctx, tx, localID, serverID, s.now().UnixMilli())
	})
}

// DropMutation removes a permanently rejected entry, marks its booking clean
// and keeps a dead letter so the drop stays visible
func (s *Store) DropMutation(ctx context.Context, m models.QueuedMutation, localID string, detail models.ErrorDetail) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		now := s.now().UnixMilli()

		_, err := tx.ExecContext(ctx, `
			INSERT INTO dead_letters
				(id, outbox_id, type, payload_json, code, status, message, attempt_count, dropped_at, acknowledged)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0)`,
			uuid.NewString(), m.ID, m.Type, string(m.Payload), detail.Code, detail.Status, detail.Message, m.Attempts, now,
		)
		if err != nil {
			return fmt.Errorf("failed to record dead letter: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM sync_queue WHERE id = ?`, m.ID); err != nil {
			return fmt.Errorf("failed to delete queue entry: %w", err)
		}
		return markClean(ctx, tx, localID, "", now)
	})
}

func markClean(ctx context.Context, q execQuerier, localID, serverID string, now int64) error {
	if localID == "" {
		return nil
	}
	_, err := q.ExecContext(ctx, `
		UPDATE bookings
		SET dirty = 0, server_id = COALESCE(?, server_id), updated_at = ?
		WHERE id = ?`,
		nullString(serverID), now, localID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark booking %s clean: %w", localID, err)
	}
	return nil
}

// RecordFailure bumps the attempt counter of an entry left in place after a transient failure
func (s *Store) RecordFailure(ctx context.Context, outboxID, lastError string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sync_queue SET attempt_count = attempt_count + 1, last_error = ? WHERE id = ?`,
		lastError, outboxID,
	)
	if err != nil {
		return fmt.Errorf("failed to increment attempt: %w", err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
