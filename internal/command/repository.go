package command

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Evildoersudo/back-end/internal/infrastructure/database"
)

// Repository provides access to stored command records.
type Repository interface {
	// GetByID fetches one record, or ErrCommandNotFound.
	GetByID(ctx context.Context, cmdID string) (*Record, error)

	// Insert stores a new record.
	Insert(ctx context.Context, r *Record) error

	// Update persists the mutable fields of an existing record.
	Update(ctx context.Context, r *Record) error

	// HasPendingConflict reports whether a pending record blocks a new
	// command for the device. A device-wide submission conflicts with
	// any pending record; a socket-specific one only with pending
	// records for the same socket.
	HasPendingConflict(ctx context.Context, deviceID string, socket *int) (bool, error)

	// ExpirePending moves every pending record past its deadline to the
	// timeout state and returns how many rows changed.
	ExpirePending(ctx context.Context, now int64) (int, error)

	// ListByDevice returns the most recent records for a device, newest
	// first, up to limit.
	ListByDevice(ctx context.Context, deviceID string, limit int) ([]Record, error)
}

// SQLiteRepository implements Repository on the shared SQLite database.
type SQLiteRepository struct {
	db database.DBTX
}

// NewSQLiteRepository creates a command repository over db, which may be
// the shared connection or an open transaction.
func NewSQLiteRepository(db database.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const recordColumns = `cmd_id, device_id, socket, action, payload_json, state, message, created_at, updated_at, expires_at, duration_ms`

func (r *SQLiteRepository) GetByID(ctx context.Context, cmdID string) (*Record, error) {
	query := `SELECT ` + recordColumns + ` FROM cmd_records WHERE cmd_id = ?`
	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, cmdID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCommandNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying command record: %w", err)
	}
	return rec, nil
}

func (r *SQLiteRepository) Insert(ctx context.Context, rec *Record) error {
	query := `
		INSERT INTO cmd_records (` + recordColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		rec.CmdID, rec.DeviceID, rec.Socket, rec.Action, rec.PayloadJSON,
		rec.State, rec.Message, rec.CreatedAt, rec.UpdatedAt, rec.ExpiresAt,
		rec.DurationMs,
	)
	if err != nil {
		return fmt.Errorf("inserting command record: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Update(ctx context.Context, rec *Record) error {
	query := `
		UPDATE cmd_records
		SET state = ?, message = ?, updated_at = ?, duration_ms = ?
		WHERE cmd_id = ?
	`
	result, err := r.db.ExecContext(ctx, query,
		rec.State, rec.Message, rec.UpdatedAt, rec.DurationMs, rec.CmdID,
	)
	if err != nil {
		return fmt.Errorf("updating command record: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating command record: %w", err)
	}
	if affected == 0 {
		return ErrCommandNotFound
	}
	return nil
}

func (r *SQLiteRepository) HasPendingConflict(ctx context.Context, deviceID string, socket *int) (bool, error) {
	var (
		query string
		args  []interface{}
	)
	if socket == nil {
		// A device-wide command conflicts with any pending record.
		query = `SELECT COUNT(*) FROM cmd_records WHERE device_id = ? AND state = ?`
		args = []interface{}{deviceID, StatePending}
	} else {
		// A socket command conflicts only with a pending command for the
		// same socket. A pending device-wide command does not block it.
		query = `
			SELECT COUNT(*) FROM cmd_records
			WHERE device_id = ? AND state = ? AND socket = ?
		`
		args = []interface{}{deviceID, StatePending, *socket}
	}

	var count int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return false, fmt.Errorf("checking pending commands: %w", err)
	}
	return count > 0, nil
}

func (r *SQLiteRepository) ExpirePending(ctx context.Context, now int64) (int, error) {
	query := `
		UPDATE cmd_records
		SET state = ?, message = ?, updated_at = ?
		WHERE state = ? AND expires_at < ?
	`
	result, err := r.db.ExecContext(ctx, query, StateTimeout, TimeoutMessage, now, StatePending, now)
	if err != nil {
		return 0, fmt.Errorf("expiring pending commands: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("expiring pending commands: %w", err)
	}
	return int(affected), nil
}

func (r *SQLiteRepository) ListByDevice(ctx context.Context, deviceID string, limit int) ([]Record, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM cmd_records
		WHERE device_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`
	rows, err := r.db.QueryContext(ctx, query, deviceID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying command records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning command record: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating command records: %w", err)
	}
	return records, nil
}

// scanner covers *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(s scanner) (*Record, error) {
	var (
		rec      Record
		socket   sql.NullInt64
		duration sql.NullInt64
	)
	err := s.Scan(
		&rec.CmdID, &rec.DeviceID, &socket, &rec.Action, &rec.PayloadJSON,
		&rec.State, &rec.Message, &rec.CreatedAt, &rec.UpdatedAt,
		&rec.ExpiresAt, &duration,
	)
	if err != nil {
		return nil, err
	}
	if socket.Valid {
		v := int(socket.Int64)
		rec.Socket = &v
	}
	if duration.Valid {
		v := int(duration.Int64)
		rec.DurationMs = &v
	}
	return &rec, nil
}
