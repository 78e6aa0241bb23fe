package models

import (
	"time"
)

// CacheEntry is one row of the database-backed key/value cache. Value is the
// encoded envelope; freshness is judged from the timestamp inside it.
type CacheEntry struct {
	Key       string    `gorm:"primaryKey;column:cache_key"`
	Value     string    `gorm:"type:text;not null"`
	UpdatedAt time.Time `gorm:"index"`
}
