package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/codyseavey/tcg-wishlist/internal/models"
)

// KVStore persists cache entries in the cache_entries table so they survive
// restarts on single-instance deployments.
type KVStore struct {
	db *gorm.DB
}

func NewKVStore(db *gorm.DB) *KVStore {
	return &KVStore{db: db}
}

func (s *KVStore) Read(ctx context.Context, key string) (string, bool, error) {
	var entry models.CacheEntry
	err := s.db.WithContext(ctx).Where("cache_key = ?", key).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read cache entry: %w", err)
	}
	return entry.Value, true, nil
}

func (s *KVStore) Write(ctx context.Context, key, value string) error {
	entry := models.CacheEntry{Key: key, Value: value, UpdatedAt: time.Now()}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "cache_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entry).Error
	if err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	return nil
}

// PurgeOlderThan deletes entries last written before cutoff. Stale entries are
// harmless to readers; this only reclaims space.
func (s *KVStore) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := s.db.WithContext(ctx).Where("updated_at < ?", cutoff).Delete(&models.CacheEntry{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to purge cache entries: %w", result.Error)
	}
	return result.RowsAffected, nil
}
