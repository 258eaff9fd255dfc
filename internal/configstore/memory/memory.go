package memory

import (
	"sync"

	"github.com/patrickmn/go-cache"

	"ragnotebook/internal/domain"
	"ragnotebook/internal/strategy"
)

// Storage is an in-memory configuration store. Entries never expire; it backs
// tests and the "memory" storage type.
type Storage struct {
	mu    sync.Mutex
	cache *cache.Cache
}

func NewStorage() *Storage {
	return &Storage{cache: cache.New(cache.NoExpiration, 0)}
}

func (s *Storage) Load() (map[string]domain.NotebookConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]domain.NotebookConfig, s.cache.ItemCount())
	for id, item := range s.cache.Items() {
		if cfg, ok := item.Object.(domain.NotebookConfig); ok {
			out[id] = strategy.Clone(cfg)
		}
	}
	return out, nil
}

func (s *Storage) Save(configs map[string]domain.NotebookConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Flush()
	for id, cfg := range configs {
		s.cache.Set(id, strategy.Clone(cfg), cache.NoExpiration)
	}
	return nil
}
