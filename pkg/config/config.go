package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Config struct {
	Vault       VaultConfig       `mapstructure:"vault"`
	Presets     PresetsConfig     `mapstructure:"presets"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Telegram    TelegramConfig    `mapstructure:"telegram"`
	Publish     PublishConfig     `mapstructure:"publish"`
	Attachments AttachmentsConfig `mapstructure:"attachments"`
	Tagger      TaggerConfig      `mapstructure:"tagger"`
	OpenAI      OpenAIConfig      `mapstructure:"openai"`
	Log         LogConfig         `mapstructure:"log"`
}

type VaultConfig struct {
	Path string `mapstructure:"path"`
}

const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendPostgres = "postgres"
)

type PresetsConfig struct {
	Backend string `mapstructure:"backend"`
	File    string `mapstructure:"file"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type TelegramConfig struct {
	// APIEndpoint overrides the Bot API URL format, e.g. for a local Bot API
	// server.
	APIEndpoint string        `mapstructure:"api_endpoint"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxBots     int           `mapstructure:"max_bots"`
}

// PublishConfig holds the options used when a command does not set them.
type PublishConfig struct {
	Silent       bool `mapstructure:"silent"`
	CaptionAbove bool `mapstructure:"caption_above"`
}

type AttachmentsConfig struct {
	PhotoExtensions    []string `mapstructure:"photo_extensions"`
	DocumentExtensions []string `mapstructure:"document_extensions"`
}

const (
	TaggerFrontmatter = "frontmatter"
	TaggerOpenAI      = "openai"
)

type TaggerConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Provider string `mapstructure:"provider"`
	MaxTags  int    `mapstructure:"max_tags"`
}

type OpenAIConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	BaseURL     string  `mapstructure:"base_url"`
	Model       string  `mapstructure:"model"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// ParseDatabaseURL reads a postgres:// URL. sslmode defaults to disable.
func ParseDatabaseURL(dbURL string) (DatabaseConfig, error) {
	u, err := url.Parse(dbURL)
	if err != nil {
		return DatabaseConfig{}, err
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return DatabaseConfig{}, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	password, _ := u.User.Password()
	port := 5432
	if u.Port() != "" {
		if _, err := fmt.Sscanf(u.Port(), "%d", &port); err != nil {
			return DatabaseConfig{}, fmt.Errorf("invalid port %q", u.Port())
		}
	}

	sslMode := u.Query().Get("sslmode")
	if sslMode == "" {
		sslMode = "disable"
	}

	return DatabaseConfig{
		Host:     u.Hostname(),
		Port:     port,
		User:     u.User.Username(),
		Password: password,
		DBName:   strings.TrimPrefix(u.Path, "/"),
		SSLMode:  sslMode,
	}, nil
}

// LoadConfig reads the config file at path. With an empty path it looks for
// config.yaml in the working directory and continues with defaults when
// there is none.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("vault.path", ".")
	v.SetDefault("presets.backend", BackendFile)
	v.SetDefault("presets.file", "presets.yaml")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.dbname", "notegram")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("telegram.api_endpoint", "")
	v.SetDefault("telegram.timeout", 60*time.Second)
	v.SetDefault("telegram.max_bots", 16)
	v.SetDefault("publish.silent", false)
	v.SetDefault("publish.caption_above", false)
	v.SetDefault("tagger.enabled", false)
	v.SetDefault("tagger.provider", TaggerFrontmatter)
	v.SetDefault("tagger.max_tags", 5)
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.max_tokens", 150)
	v.SetDefault("openai.temperature", 0.7)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, err
			}
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if dbURL := v.GetString("DATABASE_URL"); dbURL != "" {
		dbConfig, err := ParseDatabaseURL(dbURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
		}
		config.Database = dbConfig
	}

	if apiKey := v.GetString("OPENAI_API_KEY"); apiKey != "" {
		config.OpenAI.APIKey = apiKey
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks the values that have a fixed set of choices.
func (c *Config) Validate() error {
	switch c.Presets.Backend {
	case BackendMemory, BackendFile, BackendPostgres:
	default:
		return fmt.Errorf("unknown presets backend %q", c.Presets.Backend)
	}
	if c.Presets.Backend == BackendFile && c.Presets.File == "" {
		return errors.New("presets.file is required for the file backend")
	}

	switch c.Tagger.Provider {
	case TaggerFrontmatter, TaggerOpenAI:
	default:
		return fmt.Errorf("unknown tagger provider %q", c.Tagger.Provider)
	}
	if c.Tagger.Enabled && c.Tagger.Provider == TaggerOpenAI && c.OpenAI.APIKey == "" {
		return errors.New("openai.api_key is required for the openai tagger")
	}

	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}

	return nil
}

// NewLogger builds a zap logger from the log section. Output goes to
// stderr so stdout stays free for command output and the MCP transport.
func (c LogConfig) NewLogger() (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(c.Level)
	if err != nil {
		return nil, err
	}

	zapConfig := zap.NewProductionConfig()
	if c.Development {
		zapConfig = zap.NewDevelopmentConfig()
	}
	zapConfig.Level = level
	zapConfig.OutputPaths = []string{"stderr"}
	zapConfig.ErrorOutputPaths = []string{"stderr"}

	return zapConfig.Build()
}
