package publisher

import (
	"context"
	"errors"
	"fmt"

	"github.com/xaenox/notegram/internal/models"
	"github.com/xaenox/notegram/internal/storage"
)

type Mode int

const (
	ModeDefault Mode = iota
	ModeIDs
	ModeAll
)

func (m Mode) String() string {
	switch m {
	case ModeDefault:
		return "default"
	case ModeIDs:
		return "ids"
	case ModeAll:
		return "all"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Selection names the presets a note is published to.
type Selection struct {
	Mode Mode
	IDs  []string
}

func SelectDefault() Selection {
	return Selection{Mode: ModeDefault}
}

func SelectIDs(ids ...string) Selection {
	return Selection{Mode: ModeIDs, IDs: ids}
}

func SelectAll() Selection {
	return Selection{Mode: ModeAll}
}

// Destinations returns every preset in store order.
func (p *Publisher) Destinations(ctx context.Context) ([]models.Preset, error) {
	return p.presets.List(ctx)
}

// resolveDestinations turns a selection into presets. Every returned preset
// has complete credentials.
func (p *Publisher) resolveDestinations(ctx context.Context, sel Selection) ([]models.Preset, error) {
	var selected []models.Preset

	switch sel.Mode {
	case ModeDefault:
		preset, err := p.presets.Default(ctx)
		if errors.Is(err, storage.ErrPresetNotFound) {
			return nil, models.NewConfigurationError("no default destination configured")
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load default destination: %w", err)
		}
		selected = append(selected, preset)

	case ModeIDs:
		if len(sel.IDs) == 0 {
			return nil, models.NewConfigurationError("no destination selected")
		}
		seen := make(map[string]struct{}, len(sel.IDs))
		for _, id := range sel.IDs {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}

			preset, err := p.presets.Get(ctx, id)
			if errors.Is(err, storage.ErrPresetNotFound) {
				return nil, models.NewConfigurationError("unknown destination %q", id)
			}
			if err != nil {
				return nil, fmt.Errorf("failed to load destination %q: %w", id, err)
			}
			selected = append(selected, preset)
		}

	case ModeAll:
		presets, err := p.presets.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list destinations: %w", err)
		}
		if len(presets) == 0 {
			return nil, models.NewConfigurationError("no destinations configured")
		}
		selected = presets

	default:
		return nil, models.NewConfigurationError("unknown selection mode %s", sel.Mode)
	}

	for _, preset := range selected {
		if !preset.Credentials.Complete() {
			return nil, models.NewConfigurationError("destination %q is missing a bot token or chat id", preset.Label())
		}
	}

	return selected, nil
}
