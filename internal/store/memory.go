// ABOUTME: In-memory audit store used in tests and the no-database configuration.
// ABOUTME: Mirrors the SQLite store's filtering semantics without persistence.

package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore implements AuditStore in memory.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []AuditEntry
}

// NewMemoryStore creates an empty in-memory audit store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// AppendAudit appends a new entry, generating ID and Timestamp if unset.
func (s *MemoryStore) AppendAudit(_ context.Context, e *AuditEntry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, *e)
	return nil
}

// ListAudit returns matching entries, newest first.
func (s *MemoryStore) ListAudit(_ context.Context, f AuditFilter) ([]AuditEntry, error) {
	limit := normalizeAuditLimit(f.Limit)

	s.mu.RLock()
	matched := make([]AuditEntry, 0, len(s.entries))
	for _, e := range s.entries {
		if !matches(e, f) {
			continue
		}
		matched = append(matched, e)
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Timestamp.After(matched[j].Timestamp)
	})

	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func matches(e AuditEntry, f AuditFilter) bool {
	if f.Since != nil && e.Timestamp.Before(*f.Since) {
		return false
	}
	if f.Until != nil && e.Timestamp.After(*f.Until) {
		return false
	}
	if f.TenantID != nil && e.TenantID != *f.TenantID {
		return false
	}
	if f.ActorID != nil && e.ActorID != *f.ActorID {
		return false
	}
	if f.Action != nil && e.Action != *f.Action {
		return false
	}
	if f.Result != nil && e.Result != *f.Result {
		return false
	}
	return true
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error { return nil }
