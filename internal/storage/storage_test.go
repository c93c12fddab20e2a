package storage

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/notegram/internal/models"
)

func preset(id, name string, isDefault bool) models.Preset {
	return models.Preset{
		ID:          id,
		Name:        name,
		Credentials: models.Credentials{BotToken: "token-" + id, ChatID: "-100" + id},
		IsDefault:   isDefault,
	}
}

func countDefaults(t *testing.T, s Storage) int {
	t.Helper()
	presets, err := s.List(context.Background())
	require.NoError(t, err)
	n := 0
	for _, p := range presets {
		if p.IsDefault {
			n++
		}
	}
	return n
}

// runStorageContract exercises the behaviour every backend shares.
func runStorageContract(t *testing.T, s Storage) {
	ctx := context.Background()

	_, err := s.Default(ctx)
	assert.ErrorIs(t, err, ErrPresetNotFound)

	a, err := s.Save(ctx, preset("a", "Channel A", true))
	require.NoError(t, err)
	_, err = s.Save(ctx, preset("b", "Channel B", false))
	require.NoError(t, err)

	generated, err := s.Save(ctx, models.Preset{Name: "Generated"})
	require.NoError(t, err)
	assert.NotEmpty(t, generated.ID)

	presets, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, presets, 3)
	assert.Equal(t, []string{"a", "b", generated.ID}, []string{presets[0].ID, presets[1].ID, presets[2].ID})

	def, err := s.Default(ctx)
	require.NoError(t, err)
	assert.Equal(t, a, def)

	// Saving another default moves the flag.
	_, err = s.Save(ctx, preset("b", "Channel B", true))
	require.NoError(t, err)
	assert.Equal(t, 1, countDefaults(t, s))
	def, err = s.Default(ctx)
	require.NoError(t, err)
	assert.Equal(t, "b", def.ID)

	require.NoError(t, s.SetDefault(ctx, "a"))
	assert.Equal(t, 1, countDefaults(t, s))
	got, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.True(t, got.IsDefault)

	assert.ErrorIs(t, s.SetDefault(ctx, "missing"), ErrPresetNotFound)
	assert.Equal(t, 1, countDefaults(t, s))

	// Updating keeps the position.
	_, err = s.Save(ctx, models.Preset{ID: "a", Name: "Renamed", Credentials: a.Credentials})
	require.NoError(t, err)
	presets, err = s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", presets[0].Name)
	assert.Equal(t, 0, countDefaults(t, s))

	require.NoError(t, s.Delete(ctx, "b"))
	assert.ErrorIs(t, s.Delete(ctx, "b"), ErrPresetNotFound)
	_, err = s.Get(ctx, "b")
	assert.ErrorIs(t, err, ErrPresetNotFound)
}

func TestMemoryStorage(t *testing.T) {
	runStorageContract(t, NewMemoryStorage())
}

func TestMemoryStorage_SeedKeepsSingleDefault(t *testing.T) {
	s := NewMemoryStorage(preset("a", "A", true), preset("b", "B", true))
	assert.Equal(t, 1, countDefaults(t, s))
}

func TestFileStorage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "presets.yaml")
	s, err := NewFileStorage(path, nil)
	require.NoError(t, err)

	runStorageContract(t, s)

	reloaded, err := NewFileStorage(path, nil)
	require.NoError(t, err)
	want, err := s.List(context.Background())
	require.NoError(t, err)
	got, err := reloaded.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want, got)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestFileStorage_FailedWriteKeepsState(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "presets.yaml")
	s, err := NewFileStorage(path, nil)
	require.NoError(t, err)

	_, err = s.Save(ctx, preset("a", "A", true))
	require.NoError(t, err)
	_, err = s.Save(ctx, preset("b", "B", false))
	require.NoError(t, err)
	before, err := s.List(ctx)
	require.NoError(t, err)

	// A directory in place of the file makes the final rename fail.
	require.NoError(t, os.Remove(path))
	require.NoError(t, os.Mkdir(path, 0o755))

	assert.ErrorContains(t, s.SetDefault(ctx, "b"), "failed to replace presets file")
	_, err = s.Save(ctx, preset("c", "C", true))
	assert.Error(t, err)
	assert.Error(t, s.Delete(ctx, "a"))

	def, err := s.Default(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", def.ID)
	after, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestFileStorage_ReadsExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "presets.yaml")
	content := `presets:
  - id: news
    name: News channel
    credentials:
      bot_token: "123:abc"
      chat_id: "@news"
    is_default: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	s, err := NewFileStorage(path, nil)
	require.NoError(t, err)

	def, err := s.Default(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.Preset{
		ID:          "news",
		Name:        "News channel",
		Credentials: models.Credentials{BotToken: "123:abc", ChatID: "@news"},
		IsDefault:   true,
	}, def)
}

func TestFileStorage_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "presets.yaml")
	require.NoError(t, os.WriteFile(path, []byte("presets: [unclosed"), 0o600))

	_, err := NewFileStorage(path, nil)
	assert.ErrorContains(t, err, "failed to parse presets file")
}

func TestPostgresStorage(t *testing.T) {
	host := os.Getenv("PGHOST")
	if host == "" {
		t.Skip("PGHOST not set")
	}
	port, _ := strconv.Atoi(os.Getenv("PGPORT"))
	if port == 0 {
		port = 5432
	}

	ctx := context.Background()
	s, err := NewPostgresStorage(ctx, DatabaseConfig{
		Host:     host,
		Port:     port,
		User:     os.Getenv("PGUSER"),
		Password: os.Getenv("PGPASSWORD"),
		DBName:   os.Getenv("PGDATABASE"),
		SSLMode:  "disable",
	}, nil)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.db.ExecContext(ctx, `TRUNCATE presets`)
	require.NoError(t, err)

	runStorageContract(t, s)
}
