package cache

import (
	"context"
	"sync"
	"time"

	"github.com/dfarias/farmacia-api/internal/application/exchange"
)

// MemoryIdempotencyStore implementación en memoria de
// exchange.IdempotencyStore, para instancia única o tests.
type MemoryIdempotencyStore struct {
	mu      sync.Mutex
	entries map[string]time.Time // clave -> expiración
}

var _ exchange.IdempotencyStore = (*MemoryIdempotencyStore)(nil)

// NewMemoryIdempotencyStore construye el store vacío. Las entradas vencidas
// se purgan de forma perezosa en cada MarkProcessed.
func NewMemoryIdempotencyStore() *MemoryIdempotencyStore {
	return &MemoryIdempotencyStore{entries: make(map[string]time.Time)}
}

// MarkProcessed marca la clave como procesada con TTL. Devuelve true si la
// clave es nueva y false si ya existía sin vencer.
func (s *MemoryIdempotencyStore) MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for k, exp := range s.entries {
		if now.After(exp) {
			delete(s.entries, k)
		}
	}

	if exp, ok := s.entries[key]; ok && now.Before(exp) {
		return false, nil
	}
	s.entries[key] = now.Add(ttl)
	return true, nil
}
