package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/codyseavey/tcg-wishlist/internal/models"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return db
}

func TestKVStoreReadWrite(t *testing.T) {
	ctx := context.Background()
	kv := NewKVStore(openTestDB(t))

	if _, found, err := kv.Read(ctx, "missing"); err != nil || found {
		t.Fatalf("Read(missing) = found %v, err %v, want not found", found, err)
	}

	if err := kv.Write(ctx, "k", "v1"); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := kv.Write(ctx, "k", "v2"); err != nil {
		t.Fatalf("Write() overwrite error = %v", err)
	}

	v, found, err := kv.Read(ctx, "k")
	if err != nil || !found {
		t.Fatalf("Read(k) = found %v, err %v", found, err)
	}
	if v != "v2" {
		t.Errorf("Read(k) = %q, want v2", v)
	}
}

func TestKVStorePurge(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	kv := NewKVStore(db)

	_ = kv.Write(ctx, "old", "x")
	_ = kv.Write(ctx, "new", "y")
	db.Model(&models.CacheEntry{}).Where("cache_key = ?", "old").Update("updated_at", time.Now().Add(-30*24*time.Hour))

	n, err := kv.PurgeOlderThan(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("PurgeOlderThan() error = %v", err)
	}
	if n != 1 {
		t.Errorf("PurgeOlderThan() removed %d, want 1", n)
	}
	if _, found, _ := kv.Read(ctx, "new"); !found {
		t.Error("recent entry should survive the purge")
	}
}

func TestCleanupDuplicateRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	// Simulate a database from before the unique index existed
	if err := db.Exec(`DROP INDEX IF EXISTS idx_wishlist_user_card`).Error; err != nil {
		t.Fatalf("drop index: %v", err)
	}
	for _, name := range []string{"first", "second"} {
		err := db.Exec(`INSERT INTO wishlist_items (user_id, card_id, name, priority, selected_grade) VALUES ('u1', 'c1', ?, '', '')`, name).Error
		if err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	sqlDB, _ := db.DB()
	sqlDB.Close()

	db, err = Open(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}

	var items []models.WishlistItem
	db.Where("user_id = ?", "u1").Find(&items)
	if len(items) != 1 {
		t.Fatalf("got %d rows, want 1 after cleanup", len(items))
	}
	if items[0].Name != "second" {
		t.Errorf("kept %q, want the newest row", items[0].Name)
	}
	if items[0].Priority != models.PriorityMedium {
		t.Errorf("Priority = %q, want medium", items[0].Priority)
	}
	if items[0].SelectedGrade != models.GradeRaw {
		t.Errorf("SelectedGrade = %q, want raw", items[0].SelectedGrade)
	}
}
