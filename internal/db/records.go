package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Guizzs26/go-pos-sync/internal/models"
)

// GetMeta reads a metadata value; ok is false when the key was never set
func (s *Store) GetMeta(ctx context.Context, key string) (string, bool, error) {
	var value sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read meta %s: %w", key, err)
	}
	return value.String, true, nil
}

// SetMeta upserts a metadata value
func (s *Store) SetMeta(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("failed to write meta %s: %w", key, err)
	}
	return nil
}

// GetBooking loads a local booking, or nil when it does not exist
func (s *Store) GetBooking(ctx context.Context, id string) (*models.LocalBooking, error) {
	var (
		b        models.LocalBooking
		serverID sql.NullString
		roomID   sql.NullString
		price    sql.NullFloat64
		dirty    int
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, server_id, customer_name, start_time, end_time, room_id, players, price, status, updated_at, dirty
		FROM bookings WHERE id = ?`, id,
	).Scan(&b.ID, &serverID, &b.CustomerName, &b.StartTime, &b.EndTime, &roomID, &b.Players, &price, &b.Status, &b.UpdatedAt, &dirty)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load booking %s: %w", id, err)
	}

	b.ServerID = serverID.String
	b.RoomID = roomID.String
	if price.Valid {
		b.Price = &price.Float64
	}
	b.Dirty = dirty == 1
	return &b, nil
}

// CountDirtyBookings counts bookings with unacknowledged local changes
func (s *Store) CountDirtyBookings(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bookings WHERE dirty = 1`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count dirty bookings: %w", err)
	}
	return n, nil
}

// ListDeadLetters returns dropped mutations, newest first
func (s *Store) ListDeadLetters(ctx context.Context, includeAcknowledged bool) ([]models.DeadLetter, error) {
	query := `
		SELECT id, outbox_id, type, payload_json, code, COALESCE(status, 0), COALESCE(message, ''),
		       attempt_count, dropped_at, acknowledged
		FROM dead_letters`
	if !includeAcknowledged {
		query += ` WHERE acknowledged = 0`
	}
	query += ` ORDER BY dropped_at DESC, rowid DESC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list dead letters: %w", err)
	}
	defer rows.Close()

	var out []models.DeadLetter
	for rows.Next() {
		var (
			d       models.DeadLetter
			payload string
			acked   int
		)
		if err := rows.Scan(&d.ID, &d.OutboxID, &d.Type, &payload, &d.Code, &d.Status, &d.Message, &d.Attempts, &d.DroppedAt, &acked); err != nil {
			return nil, fmt.Errorf("dead letter scan failed: %w", err)
		}
		d.Payload = []byte(payload)
		d.Acknowledged = acked == 1
		out = append(out, d)
	}
	return out, rows.Err()
}

// AcknowledgeDeadLetter marks a dead letter as seen; false when no pending one matched
func (s *Store) AcknowledgeDeadLetter(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE dead_letters SET acknowledged = 1 WHERE id = ? AND acknowledged = 0`, id)
	if err != nil {
		return false, fmt.Errorf("failed to acknowledge dead letter: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// CountDeadLetters counts dead letters nobody acknowledged yet
func (s *Store) CountDeadLetters(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM dead_letters WHERE acknowledged = 0`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count dead letters: %w", err)
	}
	return n, nil
}
