package device

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/Evildoersudo/back-end/internal/infrastructure/database"
	_ "github.com/Evildoersudo/back-end/migrations" // registers embedded schema
)

// newTestDB opens a migrated temporary database.
func newTestDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "test.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

func TestRepositoryCreateAndGet(t *testing.T) {
	db := newTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	d := &Device{
		ID:         "A-302 strip01",
		Name:       "strip01",
		Room:       "A-302",
		Online:     true,
		LastSeenTS: 1700000000,
	}

	if err := repo.Create(ctx, d); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := repo.GetByID(ctx, "A-302 strip01")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}

	if got.Name != "strip01" || got.Room != "A-302" || !got.Online || got.LastSeenTS != 1700000000 {
		t.Errorf("GetByID() = %+v, want %+v", got, d)
	}
}

func TestRepositoryCreateDuplicate(t *testing.T) {
	db := newTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	d := &Device{ID: "strip01", Name: "strip01", Room: DefaultRoom}
	if err := repo.Create(ctx, d); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	err := repo.Create(ctx, d)
	if !errors.Is(err, ErrDeviceExists) {
		t.Errorf("Create() duplicate error = %v, want ErrDeviceExists", err)
	}
}

func TestRepositoryGetNotFound(t *testing.T) {
	db := newTestDB(t)
	repo := NewSQLiteRepository(db)

	_, err := repo.GetByID(context.Background(), "nonexistent")
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("GetByID() error = %v, want ErrDeviceNotFound", err)
	}
}

func TestRepositoryUpdate(t *testing.T) {
	db := newTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	d := &Device{ID: "strip01", Name: "strip01", Room: DefaultRoom, LastSeenTS: 100}
	if err := repo.Create(ctx, d); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	d.Name = "Desk Strip"
	d.Online = true
	d.LastSeenTS = 200
	if err := repo.Update(ctx, d); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got, err := repo.GetByID(ctx, "strip01")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Name != "Desk Strip" || !got.Online || got.LastSeenTS != 200 {
		t.Errorf("after Update() got %+v", got)
	}
}

func TestRepositoryUpdateNotFound(t *testing.T) {
	db := newTestDB(t)
	repo := NewSQLiteRepository(db)

	err := repo.Update(context.Background(), &Device{ID: "ghost"})
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("Update() error = %v, want ErrDeviceNotFound", err)
	}
}

func TestRepositoryListByRoom(t *testing.T) {
	db := newTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	devices := []Device{
		{ID: "A-302 strip01", Name: "strip01", Room: "A-302"},
		{ID: "A-302 strip02", Name: "strip02", Room: "A-302"},
		{ID: "B-101 strip01", Name: "strip01", Room: "B-101"},
	}
	for i := range devices {
		if err := repo.Create(ctx, &devices[i]); err != nil {
			t.Fatalf("Create(%s) error = %v", devices[i].ID, err)
		}
	}

	got, err := repo.ListByRoom(ctx, "A-302")
	if err != nil {
		t.Fatalf("ListByRoom() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ListByRoom() returned %d devices, want 2", len(got))
	}

	all, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 3 {
		t.Errorf("List() returned %d devices, want 3", len(all))
	}
}

func TestStatusRepositoryRoundtrip(t *testing.T) {
	db := newTestDB(t)
	devices := NewSQLiteRepository(db)
	statuses := NewStatusSQLiteRepository(db)
	ctx := context.Background()

	if err := devices.Create(ctx, &Device{ID: "strip01", Name: "strip01", Room: DefaultRoom}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	status := &StripStatus{
		DeviceID:    "strip01",
		TS:          1700000000,
		Online:      true,
		TotalPowerW: 123.456,
		VoltageV:    220.0,
		CurrentA:    0.56,
		Sockets: []Socket{
			{ID: 1, On: true, PowerW: 100.0, Device: "Laptop"},
			{ID: 2, On: false, PowerW: 0.0, Device: "None"},
		},
	}
	if err := statuses.PutStatus(ctx, status); err != nil {
		t.Fatalf("PutStatus() error = %v", err)
	}

	got, err := statuses.GetStatus(ctx, "strip01")
	if err != nil {
		t.Fatalf("GetStatus() error = %v", err)
	}
	if got.TotalPowerW != 123.456 || len(got.Sockets) != 2 {
		t.Errorf("GetStatus() = %+v", got)
	}
	if got.Sockets[0].Device != "Laptop" || !got.Sockets[0].On {
		t.Errorf("socket 1 = %+v", got.Sockets[0])
	}

	// Replace on second put.
	status.TotalPowerW = 50
	status.Sockets = status.Sockets[:1]
	if err := statuses.PutStatus(ctx, status); err != nil {
		t.Fatalf("PutStatus() replace error = %v", err)
	}
	got, err = statuses.GetStatus(ctx, "strip01")
	if err != nil {
		t.Fatalf("GetStatus() error = %v", err)
	}
	if got.TotalPowerW != 50 || len(got.Sockets) != 1 {
		t.Errorf("GetStatus() after replace = %+v", got)
	}
}

func TestStatusRepositoryNotFound(t *testing.T) {
	db := newTestDB(t)
	statuses := NewStatusSQLiteRepository(db)

	_, err := statuses.GetStatus(context.Background(), "ghost")
	if !errors.Is(err, ErrStatusNotFound) {
		t.Errorf("GetStatus() error = %v, want ErrStatusNotFound", err)
	}
}
