package storage

import (
	"context"
	"errors"

	"github.com/xaenox/notegram/internal/models"
)

// ErrPresetNotFound is returned for an unknown preset ID.
var ErrPresetNotFound = errors.New("preset not found")

// Storage persists destination presets. Implementations keep at most one
// default preset: saving a default preset or calling SetDefault clears the
// flag on every other preset.
type Storage interface {
	List(ctx context.Context) ([]models.Preset, error)
	Get(ctx context.Context, id string) (models.Preset, error)
	// Save inserts or updates a preset and returns it. An empty ID is
	// replaced with a new UUID.
	Save(ctx context.Context, preset models.Preset) (models.Preset, error)
	Delete(ctx context.Context, id string) error
	SetDefault(ctx context.Context, id string) error
	// Default returns the default preset, or ErrPresetNotFound.
	Default(ctx context.Context) (models.Preset, error)
	Close() error
}
