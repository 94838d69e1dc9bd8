package telemetry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/Evildoersudo/back-end/internal/infrastructure/database"
)

// ErrSampleNotFound is returned when no sample matches a point lookup.
var ErrSampleNotFound = errors.New("telemetry: sample not found")

// Repository provides access to stored telemetry samples.
type Repository interface {
	// Insert stores one sample.
	Insert(ctx context.Context, s *Sample) error

	// QueryRange returns samples for a device with from <= ts <= to,
	// ordered by timestamp ascending.
	QueryRange(ctx context.Context, deviceID string, from, to int64) ([]Sample, error)

	// LastBefore returns the most recent sample strictly before ts, or
	// ErrSampleNotFound when the device has none.
	LastBefore(ctx context.Context, deviceID string, ts int64) (*Sample, error)

	// PowerStats aggregates power over the given devices' samples with
	// ts >= from. A zero Count means no samples matched.
	PowerStats(ctx context.Context, deviceIDs []string, from int64) (Stats, error)
}

// Stats summarises power over a set of samples.
type Stats struct {
	Count int
	AvgW  float64
	PeakW float64
}

// SQLiteRepository implements Repository on the shared SQLite database.
type SQLiteRepository struct {
	db database.DBTX
}

// NewSQLiteRepository creates a telemetry repository over db, which may
// be the shared connection or an open transaction.
func NewSQLiteRepository(db database.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Insert(ctx context.Context, s *Sample) error {
	query := `
		INSERT INTO telemetry (device_id, ts, power_w, voltage_v, current_a)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query, s.DeviceID, s.TS, s.PowerW, s.VoltageV, s.CurrentA)
	if err != nil {
		return fmt.Errorf("inserting telemetry sample: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) QueryRange(ctx context.Context, deviceID string, from, to int64) ([]Sample, error) {
	query := `
		SELECT device_id, ts, power_w, voltage_v, current_a
		FROM telemetry
		WHERE device_id = ? AND ts >= ? AND ts <= ?
		ORDER BY ts ASC
	`
	rows, err := r.db.QueryContext(ctx, query, deviceID, from, to)
	if err != nil {
		return nil, fmt.Errorf("querying telemetry range: %w", err)
	}
	defer rows.Close()

	var samples []Sample
	for rows.Next() {
		var s Sample
		if err := rows.Scan(&s.DeviceID, &s.TS, &s.PowerW, &s.VoltageV, &s.CurrentA); err != nil {
			return nil, fmt.Errorf("scanning telemetry sample: %w", err)
		}
		samples = append(samples, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating telemetry samples: %w", err)
	}
	return samples, nil
}

func (r *SQLiteRepository) PowerStats(ctx context.Context, deviceIDs []string, from int64) (Stats, error) {
	if len(deviceIDs) == 0 {
		return Stats{}, nil
	}

	placeholders := strings.Repeat("?,", len(deviceIDs))
	placeholders = placeholders[:len(placeholders)-1]
	query := `
		SELECT COUNT(*), COALESCE(AVG(power_w), 0), COALESCE(MAX(power_w), 0)
		FROM telemetry
		WHERE device_id IN (` + placeholders + `) AND ts >= ?
	`

	args := make([]interface{}, 0, len(deviceIDs)+1)
	for _, id := range deviceIDs {
		args = append(args, id)
	}
	args = append(args, from)

	var stats Stats
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&stats.Count, &stats.AvgW, &stats.PeakW); err != nil {
		return Stats{}, fmt.Errorf("querying power stats: %w", err)
	}
	return stats, nil
}

func (r *SQLiteRepository) LastBefore(ctx context.Context, deviceID string, ts int64) (*Sample, error) {
	query := `
		SELECT device_id, ts, power_w, voltage_v, current_a
		FROM telemetry
		WHERE device_id = ? AND ts < ?
		ORDER BY ts DESC
		LIMIT 1
	`
	var s Sample
	err := r.db.QueryRowContext(ctx, query, deviceID, ts).
		Scan(&s.DeviceID, &s.TS, &s.PowerW, &s.VoltageV, &s.CurrentA)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSampleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying last telemetry sample: %w", err)
	}
	return &s, nil
}
