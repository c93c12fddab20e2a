package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/xaenox/notegram/internal/models"
	"go.uber.org/zap"
)

//go:embed migrations.sql
var migrations embed.FS

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DSN renders the lib/pq connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

type PostgresStorage struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPostgresStorage(ctx context.Context, config DatabaseConfig, logger *zap.Logger) (*PostgresStorage, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := sql.Open("postgres", config.DSN())
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	// Test the connection
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to the database: %w", err)
	}

	storage := &PostgresStorage{db: db, logger: logger}

	if err := storage.initializeSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error initializing database schema: %w", err)
	}

	logger.Info("Connected to PostgreSQL",
		zap.String("host", config.Host),
		zap.String("dbname", config.DBName))

	return storage, nil
}

func (s *PostgresStorage) initializeSchema(ctx context.Context) error {
	migrationSQL, err := migrations.ReadFile("migrations.sql")
	if err != nil {
		return fmt.Errorf("error reading migrations file: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, string(migrationSQL)); err != nil {
		return fmt.Errorf("error executing migrations: %w", err)
	}

	return nil
}

const selectPresets = `
	SELECT id, name, bot_token, chat_id, is_default
	FROM presets`

func (s *PostgresStorage) List(ctx context.Context) ([]models.Preset, error) {
	rows, err := s.db.QueryContext(ctx, selectPresets+` ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("error querying presets: %w", err)
	}
	defer rows.Close()

	var presets []models.Preset
	for rows.Next() {
		p, err := scanPreset(rows)
		if err != nil {
			return nil, err
		}
		presets = append(presets, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating presets: %w", err)
	}

	return presets, nil
}

func (s *PostgresStorage) Get(ctx context.Context, id string) (models.Preset, error) {
	return scanPreset(s.db.QueryRowContext(ctx, selectPresets+` WHERE id = $1`, id))
}

func (s *PostgresStorage) Default(ctx context.Context) (models.Preset, error) {
	return scanPreset(s.db.QueryRowContext(ctx, selectPresets+` WHERE is_default`))
}

func (s *PostgresStorage) Save(ctx context.Context, preset models.Preset) (models.Preset, error) {
	if preset.ID == "" {
		preset.ID = uuid.New().String()
	}

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if preset.IsDefault {
			if _, err := tx.ExecContext(ctx,
				`UPDATE presets SET is_default = FALSE, updated_at = NOW() WHERE is_default AND id <> $1`,
				preset.ID); err != nil {
				return fmt.Errorf("error clearing default preset: %w", err)
			}
		}

		query := `
			INSERT INTO presets (id, name, bot_token, chat_id, is_default)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO UPDATE
			SET name = EXCLUDED.name,
			    bot_token = EXCLUDED.bot_token,
			    chat_id = EXCLUDED.chat_id,
			    is_default = EXCLUDED.is_default,
			    updated_at = NOW()`

		if _, err := tx.ExecContext(ctx, query,
			preset.ID,
			preset.Name,
			preset.Credentials.BotToken,
			preset.Credentials.ChatID,
			preset.IsDefault,
		); err != nil {
			return fmt.Errorf("error saving preset: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.Preset{}, err
	}

	return preset, nil
}

func (s *PostgresStorage) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM presets WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("error deleting preset: %w", err)
	}
	return expectRow(result)
}

func (s *PostgresStorage) SetDefault(ctx context.Context, id string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`UPDATE presets SET is_default = FALSE, updated_at = NOW() WHERE is_default AND id <> $1`, id); err != nil {
			return fmt.Errorf("error clearing default preset: %w", err)
		}

		result, err := tx.ExecContext(ctx,
			`UPDATE presets SET is_default = TRUE, updated_at = NOW() WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("error setting default preset: %w", err)
		}
		return expectRow(result)
	})
}

func (s *PostgresStorage) Close() error {
	return s.db.Close()
}

func (s *PostgresStorage) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Error("Failed to roll back transaction", zap.Error(rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing transaction: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPreset(row rowScanner) (models.Preset, error) {
	var p models.Preset
	err := row.Scan(&p.ID, &p.Name, &p.Credentials.BotToken, &p.Credentials.ChatID, &p.IsDefault)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Preset{}, ErrPresetNotFound
	}
	if err != nil {
		return models.Preset{}, fmt.Errorf("error scanning preset: %w", err)
	}
	return p, nil
}

func expectRow(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrPresetNotFound
	}
	return nil
}
