package device

import (
	"context"
	"fmt"
	"time"
)

// Seed identity for a fresh install, so the dashboard has a strip to
// show before any hardware reports in.
const (
	seedDeviceID   = "strip01"
	seedDeviceName = "Dorm302-Strip01"
	seedSocketN    = 4
)

// EnsureSeedData creates the demonstration strip on an empty database.
// Databases that already hold any device are left untouched.
func EnsureSeedData(ctx context.Context, devices Repository, statuses StatusRepository, now time.Time) error {
	existing, err := devices.List(ctx)
	if err != nil {
		return fmt.Errorf("checking seed data: %w", err)
	}
	if len(existing) > 0 {
		return nil
	}

	ts := now.Unix()
	d := &Device{
		ID:         seedDeviceID,
		Name:       seedDeviceName,
		Room:       DefaultRoom,
		Online:     true,
		LastSeenTS: ts,
	}
	if err := devices.Create(ctx, d); err != nil {
		return fmt.Errorf("seeding device: %w", err)
	}

	sockets := make([]Socket, seedSocketN)
	for i := range sockets {
		sockets[i] = Socket{ID: i + 1, Device: "None"}
	}
	status := &StripStatus{
		DeviceID: seedDeviceID,
		TS:       ts,
		Online:   true,
		VoltageV: DefaultVoltage,
		Sockets:  sockets,
	}
	if err := statuses.PutStatus(ctx, status); err != nil {
		return fmt.Errorf("seeding strip status: %w", err)
	}
	return nil
}
