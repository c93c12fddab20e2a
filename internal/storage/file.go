package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/xaenox/notegram/internal/models"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type presetFile struct {
	Presets []models.Preset `yaml:"presets"`
}

// FileStorage keeps presets in a YAML file. Every change rewrites the whole
// file through a temporary file and a rename.
type FileStorage struct {
	mu     sync.RWMutex
	path   string
	mem    *MemoryStorage
	logger *zap.Logger
}

// NewFileStorage loads presets from path. A missing file is an empty store.
func NewFileStorage(path string, logger *zap.Logger) (*FileStorage, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var file presetFile
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read presets file: %w", err)
	default:
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("failed to parse presets file %s: %w", path, err)
		}
	}

	logger.Debug("Loaded presets", zap.String("path", path), zap.Int("count", len(file.Presets)))

	return &FileStorage{
		path:   path,
		mem:    NewMemoryStorage(file.Presets...),
		logger: logger,
	}, nil
}

func (s *FileStorage) List(ctx context.Context) ([]models.Preset, error) {
	return s.current().List(ctx)
}

func (s *FileStorage) Get(ctx context.Context, id string) (models.Preset, error) {
	return s.current().Get(ctx, id)
}

func (s *FileStorage) Default(ctx context.Context) (models.Preset, error) {
	return s.current().Default(ctx)
}

func (s *FileStorage) Save(ctx context.Context, preset models.Preset) (models.Preset, error) {
	var saved models.Preset
	err := s.update(ctx, func(next *MemoryStorage) error {
		var err error
		saved, err = next.Save(ctx, preset)
		return err
	})
	if err != nil {
		return models.Preset{}, err
	}
	return saved, nil
}

func (s *FileStorage) Delete(ctx context.Context, id string) error {
	return s.update(ctx, func(next *MemoryStorage) error {
		return next.Delete(ctx, id)
	})
}

func (s *FileStorage) SetDefault(ctx context.Context, id string) error {
	return s.update(ctx, func(next *MemoryStorage) error {
		return next.SetDefault(ctx, id)
	})
}

func (s *FileStorage) current() *MemoryStorage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mem
}

// update applies change to a copy of the presets and swaps the copy in only
// once the file has been written.
func (s *FileStorage) update(ctx context.Context, change func(next *MemoryStorage) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	presets, err := s.mem.List(ctx)
	if err != nil {
		return err
	}
	next := NewMemoryStorage(presets...)
	if err := change(next); err != nil {
		return err
	}

	presets, err = next.List(ctx)
	if err != nil {
		return err
	}
	if err := s.persist(presets); err != nil {
		return err
	}
	s.mem = next
	return nil
}

func (s *FileStorage) Close() error {
	return nil
}

func (s *FileStorage) persist(presets []models.Preset) error {
	data, err := yaml.Marshal(presetFile{Presets: presets})
	if err != nil {
		return fmt.Errorf("failed to encode presets: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".presets-*.yaml")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write presets: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write presets: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace presets file: %w", err)
	}

	s.logger.Debug("Saved presets", zap.String("path", s.path), zap.Int("count", len(presets)))
	return nil
}
