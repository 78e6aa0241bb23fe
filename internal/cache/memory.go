package cache

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultMemorySize bounds the in-process store
const DefaultMemorySize = 512

// MemoryKV is an in-process KVStore. Least recently used keys are dropped once
// size is reached.
type MemoryKV struct {
	entries *lru.Cache[string, string]
}

func NewMemoryKV(size int) (*MemoryKV, error) {
	if size <= 0 {
		size = DefaultMemorySize
	}
	entries, err := lru.New[string, string](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create memory cache: %w", err)
	}
	return &MemoryKV{entries: entries}, nil
}

func (m *MemoryKV) Read(_ context.Context, key string) (string, bool, error) {
	v, ok := m.entries.Get(key)
	return v, ok, nil
}

func (m *MemoryKV) Write(_ context.Context, key, value string) error {
	m.entries.Add(key, value)
	return nil
}

// Len returns the number of stored keys
func (m *MemoryKV) Len() int {
	return m.entries.Len()
}
