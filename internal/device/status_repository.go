package device

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Evildoersudo/back-end/internal/infrastructure/database"
)

// StatusRepository defines persistence for the latest StripStatus per device.
type StatusRepository interface {
	// GetStatus retrieves the latest status for a device.
	// Returns ErrStatusNotFound if no status exists.
	GetStatus(ctx context.Context, deviceID string) (*StripStatus, error)

	// PutStatus inserts or replaces the status for a device.
	PutStatus(ctx context.Context, status *StripStatus) error
}

// StatusSQLiteRepository implements StatusRepository using SQLite.
type StatusSQLiteRepository struct {
	db database.DBTX
}

// NewStatusSQLiteRepository creates a new SQLite-backed status repository.
func NewStatusSQLiteRepository(db database.DBTX) *StatusSQLiteRepository {
	return &StatusSQLiteRepository{db: db}
}

// GetStatus retrieves the latest status for a device.
func (r *StatusSQLiteRepository) GetStatus(ctx context.Context, deviceID string) (*StripStatus, error) {
	query := `
		SELECT device_id, ts, online, total_power_w, voltage_v, current_a, sockets_json
		FROM strip_status
		WHERE device_id = ?`

	var s StripStatus
	var online int
	var socketsJSON string
	err := r.db.QueryRowContext(ctx, query, deviceID).Scan(
		&s.DeviceID, &s.TS, &online, &s.TotalPowerW, &s.VoltageV, &s.CurrentA, &socketsJSON,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStatusNotFound
		}
		return nil, fmt.Errorf("querying strip status: %w", err)
	}
	s.Online = online != 0

	if err := json.Unmarshal([]byte(socketsJSON), &s.Sockets); err != nil {
		// A corrupt sockets column degrades to an empty list rather than
		// failing the whole read.
		s.Sockets = nil
	}
	if s.Sockets == nil {
		s.Sockets = []Socket{}
	}
	return &s, nil
}

// PutStatus inserts or replaces the status for a device.
func (r *StatusSQLiteRepository) PutStatus(ctx context.Context, status *StripStatus) error {
	sockets := status.Sockets
	if sockets == nil {
		sockets = []Socket{}
	}
	socketsJSON, err := json.Marshal(sockets)
	if err != nil {
		return fmt.Errorf("encoding sockets: %w", err)
	}

	query := `
		INSERT INTO strip_status (device_id, ts, online, total_power_w, voltage_v, current_a, sockets_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(device_id) DO UPDATE SET
			ts = excluded.ts,
			online = excluded.online,
			total_power_w = excluded.total_power_w,
			voltage_v = excluded.voltage_v,
			current_a = excluded.current_a,
			sockets_json = excluded.sockets_json`

	_, err = r.db.ExecContext(ctx, query,
		status.DeviceID, status.TS, boolToInt(status.Online),
		status.TotalPowerW, status.VoltageV, status.CurrentA, string(socketsJSON),
	)
	if err != nil {
		return fmt.Errorf("upserting strip status: %w", err)
	}
	return nil
}
