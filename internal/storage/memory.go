package storage

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/xaenox/notegram/internal/models"
)

// MemoryStorage keeps presets in insertion order.
type MemoryStorage struct {
	mu      sync.RWMutex
	presets []models.Preset
}

func NewMemoryStorage(presets ...models.Preset) *MemoryStorage {
	s := &MemoryStorage{}
	for _, p := range presets {
		s.put(p)
	}
	return s
}

func (s *MemoryStorage) List(ctx context.Context) ([]models.Preset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Preset, len(s.presets))
	copy(out, s.presets)
	return out, nil
}

func (s *MemoryStorage) Get(ctx context.Context, id string) (models.Preset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i := s.index(id); i >= 0 {
		return s.presets[i], nil
	}
	return models.Preset{}, ErrPresetNotFound
}

func (s *MemoryStorage) Save(ctx context.Context, preset models.Preset) (models.Preset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.put(preset), nil
}

func (s *MemoryStorage) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.index(id)
	if i < 0 {
		return ErrPresetNotFound
	}
	s.presets = append(s.presets[:i], s.presets[i+1:]...)
	return nil
}

func (s *MemoryStorage) SetDefault(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.index(id)
	if i < 0 {
		return ErrPresetNotFound
	}
	for j := range s.presets {
		s.presets[j].IsDefault = j == i
	}
	return nil
}

func (s *MemoryStorage) Default(ctx context.Context) (models.Preset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.presets {
		if p.IsDefault {
			return p, nil
		}
	}
	return models.Preset{}, ErrPresetNotFound
}

func (s *MemoryStorage) Close() error {
	// Nothing to close for in-memory storage
	return nil
}

// put inserts or replaces preset. Callers hold the write lock.
func (s *MemoryStorage) put(preset models.Preset) models.Preset {
	if preset.ID == "" {
		preset.ID = uuid.New().String()
	}
	if preset.IsDefault {
		for j := range s.presets {
			s.presets[j].IsDefault = false
		}
	}

	if i := s.index(preset.ID); i >= 0 {
		s.presets[i] = preset
	} else {
		s.presets = append(s.presets, preset)
	}
	return preset
}

func (s *MemoryStorage) index(id string) int {
	for i, p := range s.presets {
		if p.ID == id {
			return i
		}
	}
	return -1
}
