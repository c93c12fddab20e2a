package main

import (
	"context"
	"fmt"

	"github.com/xaenox/notegram/internal/bot"
	"github.com/xaenox/notegram/internal/classifier"
	"github.com/xaenox/notegram/internal/publisher"
	"github.com/xaenox/notegram/internal/storage"
	"github.com/xaenox/notegram/internal/tagger"
	"github.com/xaenox/notegram/internal/vault"
	"github.com/xaenox/notegram/pkg/config"
	"go.uber.org/zap"
)

// app holds what every command needs: settings, a logger and the preset
// store.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	store  storage.Storage
}

func openApp(ctx context.Context, configPath string) (*app, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := cfg.Log.NewLogger()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	store, err := openStorage(ctx, cfg, logger)
	if err != nil {
		logger.Sync()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	return &app{cfg: cfg, logger: logger, store: store}, nil
}

func openStorage(ctx context.Context, cfg *config.Config, logger *zap.Logger) (storage.Storage, error) {
	switch cfg.Presets.Backend {
	case config.BackendMemory:
		logger.Debug("Using in-memory storage")
		return storage.NewMemoryStorage(), nil
	case config.BackendPostgres:
		logger.Debug("Using PostgreSQL storage", zap.String("host", cfg.Database.Host))
		return storage.NewPostgresStorage(ctx, storage.DatabaseConfig{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			DBName:   cfg.Database.DBName,
			SSLMode:  cfg.Database.SSLMode,
		}, logger)
	default:
		logger.Debug("Using presets file", zap.String("path", cfg.Presets.File))
		return storage.NewFileStorage(cfg.Presets.File, logger)
	}
}

func (a *app) newPublisher(extra ...publisher.Option) (*publisher.Publisher, error) {
	v, err := vault.New(a.cfg.Vault.Path, a.logger)
	if err != nil {
		return nil, err
	}

	clf := classifier.New(a.cfg.Attachments.PhotoExtensions, a.cfg.Attachments.DocumentExtensions, a.logger)
	client := bot.New(bot.Config{
		APIEndpoint: a.cfg.Telegram.APIEndpoint,
		Timeout:     a.cfg.Telegram.Timeout,
		MaxBots:     a.cfg.Telegram.MaxBots,
	}, a.logger)

	opts := []publisher.Option{publisher.WithLogger(a.logger)}
	if t := a.newTagger(); t != nil {
		opts = append(opts, publisher.WithTagger(t))
	}
	opts = append(opts, extra...)

	return publisher.New(v, a.store, clf, client, opts...), nil
}

func (a *app) newTagger() tagger.Tagger {
	if !a.cfg.Tagger.Enabled {
		return nil
	}
	if a.cfg.Tagger.Provider == config.TaggerOpenAI {
		return tagger.NewGPTTagger(tagger.GPTConfig{
			APIKey:      a.cfg.OpenAI.APIKey,
			BaseURL:     a.cfg.OpenAI.BaseURL,
			Model:       a.cfg.OpenAI.Model,
			MaxTokens:   a.cfg.OpenAI.MaxTokens,
			Temperature: a.cfg.OpenAI.Temperature,
			MaxTags:     a.cfg.Tagger.MaxTags,
		}, a.logger)
	}
	return tagger.NewFrontmatterTagger(a.cfg.Tagger.MaxTags)
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn("Failed to close storage", zap.Error(err))
	}
	a.logger.Sync()
}
