package telemetry

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

func TestRepositoryInsertAndQueryRange(t *testing.T) {
	repo := NewSQLiteRepository(newTestDB(t))
	ctx := context.Background()

	base := int64(1700000000)
	for i := int64(0); i < 5; i++ {
		s := &Sample{
			DeviceID: "strip01",
			TS:       base + i*10,
			PowerW:   float64(100 + i),
			VoltageV: 220,
			CurrentA: 0.5,
		}
		if err := repo.Insert(ctx, s); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
	}
	// A neighbouring device must not leak into the range.
	other := &Sample{DeviceID: "strip02", TS: base + 20, PowerW: 999}
	if err := repo.Insert(ctx, other); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	got, err := repo.QueryRange(ctx, "strip01", base+10, base+30)
	if err != nil {
		t.Fatalf("QueryRange() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("QueryRange() returned %d samples, want 3", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].TS < got[i-1].TS {
			t.Fatal("QueryRange() samples not in ascending order")
		}
	}
	if got[0].PowerW != 101 {
		t.Errorf("first sample PowerW = %v, want 101", got[0].PowerW)
	}
}

func TestRepositoryQueryRangeEmpty(t *testing.T) {
	repo := NewSQLiteRepository(newTestDB(t))

	got, err := repo.QueryRange(context.Background(), "strip01", 0, 100)
	if err != nil {
		t.Fatalf("QueryRange() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("QueryRange() returned %d samples, want 0", len(got))
	}
}

func TestRepositoryPowerStats(t *testing.T) {
	repo := NewSQLiteRepository(newTestDB(t))
	ctx := context.Background()

	base := int64(1700000000)
	for i, power := range []float64{100, 200, 300} {
		if err := repo.Insert(ctx, &Sample{DeviceID: "strip01", TS: base + int64(i), PowerW: power}); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
	}
	if err := repo.Insert(ctx, &Sample{DeviceID: "strip02", TS: base, PowerW: 400}); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	stats, err := repo.PowerStats(ctx, []string{"strip01", "strip02"}, base)
	if err != nil {
		t.Fatalf("PowerStats() error = %v", err)
	}
	if stats.Count != 4 {
		t.Errorf("Count = %d, want 4", stats.Count)
	}
	if stats.AvgW != 250 {
		t.Errorf("AvgW = %v, want 250", stats.AvgW)
	}
	if stats.PeakW != 400 {
		t.Errorf("PeakW = %v, want 400", stats.PeakW)
	}

	// Window excludes older samples.
	stats, err = repo.PowerStats(ctx, []string{"strip01"}, base+1)
	if err != nil {
		t.Fatalf("PowerStats() error = %v", err)
	}
	if stats.Count != 2 || stats.PeakW != 300 {
		t.Errorf("stats = %+v, want 2 samples peaking at 300", stats)
	}

	// No devices means no samples, not an error.
	stats, err = repo.PowerStats(ctx, nil, base)
	if err != nil {
		t.Fatalf("PowerStats() error = %v", err)
	}
	if stats.Count != 0 {
		t.Errorf("Count = %d, want 0", stats.Count)
	}
}

func TestRepositoryLastBefore(t *testing.T) {
	repo := NewSQLiteRepository(newTestDB(t))
	ctx := context.Background()

	base := int64(1700000000)
	for _, ts := range []int64{base, base + 10, base + 20} {
		if err := repo.Insert(ctx, &Sample{DeviceID: "strip01", TS: ts, PowerW: float64(ts - base)}); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
	}

	got, err := repo.LastBefore(ctx, "strip01", base+15)
	if err != nil {
		t.Fatalf("LastBefore() error = %v", err)
	}
	if got.TS != base+10 {
		t.Errorf("LastBefore() TS = %d, want %d", got.TS, base+10)
	}

	// Strictly before: a sample exactly at the cutoff does not count.
	got, err = repo.LastBefore(ctx, "strip01", base+10)
	if err != nil {
		t.Fatalf("LastBefore() error = %v", err)
	}
	if got.TS != base {
		t.Errorf("LastBefore() TS = %d, want %d", got.TS, base)
	}

	if _, err := repo.LastBefore(ctx, "strip01", base); !errors.Is(err, ErrSampleNotFound) {
		t.Errorf("LastBefore() error = %v, want ErrSampleNotFound", err)
	}
}
