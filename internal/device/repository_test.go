package device

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/nerrad567/bosun-core/internal/infrastructure/config"
	"github.com/nerrad567/bosun-core/internal/infrastructure/database"
	"github.com/nerrad567/bosun-core/migrations"
)

// setupTestRepo opens a migrated SQLite database in a temp dir.
func setupTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()

	db, err := database.Open(config.DatabaseConfig{
		Path:        filepath.Join(t.TempDir(), "bosun.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(context.Background(), migrations.FS); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return NewSQLiteRepository(db.DB)
}

func TestSQLiteRepository_SaveAndGet(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	seen := t0.Add(90 * time.Second)

	d := &Device{
		Address:        testAddr,
		Name:           "House bank",
		Type:           "battery",
		ManufacturerID: 0x02E1,
		LastSeen:       &seen,
		Metrics:        map[string]any{"soc": 87.5, "alarm": 0.0},
		Config:         map[string]any{"encryption_key": "0df4d0395b7d1a876c0c33ecb9e70dcd"},
		DecodeFailures: 3,
		CreatedAt:      t0,
		UpdatedAt:      seen,
	}
	if err := repo.Save(ctx, d); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := repo.GetByAddress(ctx, testAddr)
	if err != nil {
		t.Fatalf("GetByAddress() error = %v", err)
	}
	if got.Name != d.Name || got.Type != d.Type || got.ManufacturerID != d.ManufacturerID {
		t.Errorf("metadata = %+v", got)
	}
	if !reflect.DeepEqual(got.Metrics, d.Metrics) || !reflect.DeepEqual(got.Config, d.Config) {
		t.Errorf("maps = %v / %v", got.Metrics, got.Config)
	}
	if got.LastSeen == nil || !got.LastSeen.Equal(seen) {
		t.Errorf("LastSeen = %v", got.LastSeen)
	}
	if !got.CreatedAt.Equal(t0) {
		t.Errorf("CreatedAt = %v", got.CreatedAt)
	}
	if got.DecodeFailures != 0 {
		t.Errorf("DecodeFailures persisted as %d", got.DecodeFailures)
	}

	// Save again updates in place.
	d.Name = "Bank"
	d.Metrics["soc"] = 80.0
	if err := repo.Save(ctx, d); err != nil {
		t.Fatalf("second Save() error = %v", err)
	}
	list, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 1 || list[0].Name != "Bank" || list[0].Metrics["soc"] != 80.0 {
		t.Errorf("List() = %+v", list)
	}
}

func TestSQLiteRepository_NotFound(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	if _, err := repo.GetByAddress(ctx, "nope"); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("GetByAddress() error = %v", err)
	}
	if err := repo.Delete(ctx, "nope"); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("Delete() error = %v", err)
	}
}

func TestSQLiteRepository_Delete(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	if err := repo.Save(ctx, &Device{Address: testAddr, CreatedAt: t0}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := repo.Delete(ctx, testAddr); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	list, _ := repo.List(ctx)
	if len(list) != 0 {
		t.Errorf("List() after delete = %v", list)
	}
}

func TestStore_WithSQLiteRepository(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	s := newTestStore(t, Options{})
	s.SetRepository(repo)
	s.Upsert(testAddr, Metadata{Name: "bank", ManufacturerID: 0x02E1})
	s.MergeMetrics(testAddr, map[string]any{"soc": 55.5}, t0)
	if _, err := s.Flush(ctx); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	restored := NewStore(Options{})
	restored.SetRepository(repo)
	if err := restored.Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	d, err := restored.Get(testAddr)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if d.ManufacturerID != 0x02E1 || d.Metrics["soc"] != 55.5 {
		t.Errorf("restored = %+v", d)
	}
}
