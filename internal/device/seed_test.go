package device

import (
	"context"
	"testing"
	"time"
)

func TestEnsureSeedData(t *testing.T) {
	db := newTestDB(t)
	devices := NewSQLiteRepository(db)
	statuses := NewStatusSQLiteRepository(db)
	ctx := context.Background()
	now := time.Unix(1700000000, 0)

	if err := EnsureSeedData(ctx, devices, statuses, now); err != nil {
		t.Fatalf("EnsureSeedData() error = %v", err)
	}

	d, err := devices.GetByID(ctx, "strip01")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if d.Name != "Dorm302-Strip01" || d.Room != DefaultRoom || !d.Online {
		t.Errorf("seed device = %+v", d)
	}

	status, err := statuses.GetStatus(ctx, "strip01")
	if err != nil {
		t.Fatalf("GetStatus() error = %v", err)
	}
	if len(status.Sockets) != 4 {
		t.Fatalf("sockets = %d, want 4", len(status.Sockets))
	}
	if status.Sockets[0].On || status.Sockets[0].Device != "None" {
		t.Errorf("socket = %+v, want off with None label", status.Sockets[0])
	}
	if status.VoltageV != DefaultVoltage {
		t.Errorf("VoltageV = %v, want %v", status.VoltageV, DefaultVoltage)
	}

	// Idempotent on a populated database.
	if err := EnsureSeedData(ctx, devices, statuses, now.Add(time.Hour)); err != nil {
		t.Fatalf("EnsureSeedData() second run error = %v", err)
	}
	got, err := devices.GetByID(ctx, "strip01")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.LastSeenTS != now.Unix() {
		t.Error("seed data recreated over existing rows")
	}
}
