package cache

import (
	"context"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/codyseavey/tcg-wishlist/internal/config"
	"github.com/codyseavey/tcg-wishlist/internal/database"
)

// OpenBackend returns the KVStore selected by cfg and a function releasing it.
// The database backend shares db with the rest of the service.
func OpenBackend(cfg config.CacheConfig, db *gorm.DB) (KVStore, func(), error) {
	noop := func() {}

	switch cfg.Backend {
	case config.BackendMemory:
		kv, err := NewMemoryKV(cfg.MemorySize)
		if err != nil {
			return nil, noop, err
		}
		log.Println("Cache: using in-memory store")
		return kv, noop, nil

	case config.BackendDatabase:
		if db == nil {
			return nil, noop, fmt.Errorf("database cache backend needs an open database")
		}
		log.Println("Cache: using database store")
		return database.NewKVStore(db), noop, nil

	case config.BackendRedis:
		kv := NewRedisKV(RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.Redis.TTL,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := kv.Ping(ctx); err != nil {
			_ = kv.Close()
			return nil, noop, err
		}
		log.Printf("Cache: using redis at %s", cfg.Redis.Addr)
		return kv, func() { _ = kv.Close() }, nil

	default:
		return nil, noop, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}
