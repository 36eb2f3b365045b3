package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/feichai0017/image-to-html/internal/models"
	"github.com/feichai0017/image-to-html/pkg/logger"
	"github.com/feichai0017/image-to-html/pkg/storage"
)

// MemoryStorage keeps sessions in process memory. Callers only ever see
// clones.
type MemoryStorage struct {
	mu       sync.Mutex
	sessions map[string]*models.Session
	now      func() time.Time
	logger   logger.Logger
}

func NewMemoryStorage(log logger.Logger) *MemoryStorage {
	return &MemoryStorage{
		sessions: make(map[string]*models.Session),
		now:      time.Now,
		logger:   log.Named("memory-storage"),
	}
}

func (m *MemoryStorage) Create(_ context.Context, s *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[s.ID]; exists {
		return fmt.Errorf("session %s already exists", s.ID)
	}
	m.sessions[s.ID] = s.Clone()
	return nil
}

func (m *MemoryStorage) Get(_ context.Context, id string) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return s.Clone(), nil
}

func (m *MemoryStorage) Update(_ context.Context, id string, fn storage.UpdateFunc) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.sessions[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	next := current.Clone()
	if err := fn(next); err != nil {
		return current.Clone(), err
	}
	next.UpdatedAt = m.now()
	m.sessions[id] = next
	return next.Clone(), nil
}

func (m *MemoryStorage) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[id]; !ok {
		return storage.ErrNotFound
	}
	delete(m.sessions, id)
	return nil
}

func (m *MemoryStorage) CleanupBefore(_ context.Context, threshold time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, s := range m.sessions {
		if s.UpdatedAt.Before(threshold) {
			delete(m.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		m.logger.Info("Deleted expired sessions",
			logger.Int("count", removed),
			logger.Time("threshold", threshold),
		)
	}
	return removed, nil
}

func (m *MemoryStorage) Close() error { return nil }
