package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/neuralos/internal/api"
)

// Vector index backends.
const (
	VectorMemory   = "memory"
	VectorMilvus   = "milvus"
	VectorPgVector = "pgvector"
)

// Config represents the application configuration.
type Config struct {
	App    ApplicationConfig `yaml:"app"`
	SQLite SQLiteConfig      `yaml:"sqlite"`
	Vector VectorConfig      `yaml:"vector"`
	AI     AIConfig          `yaml:"ai"`
	Outbox OutboxConfig      `yaml:"outbox"`
	Inbox  InboxConfig       `yaml:"inbox"`
	Events EventsConfig      `yaml:"events"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	sections := []struct {
		name string
		v    validation.Validatable
	}{
		{"app", &c.App},
		{"sqlite", &c.SQLite},
		{"vector", &c.Vector},
		{"ai", &c.AI},
		{"outbox", &c.Outbox},
		{"inbox", &c.Inbox},
	}
	for _, s := range sections {
		if err := s.v.Validate(); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
	CORS     CORSConfig `yaml:"cors"`
	Log      LogConfig  `yaml:"log"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if err := c.HTTP.Validate(); err != nil {
		return err
	}
	return c.Log.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// CORSConfig lists the browser origins allowed to call the API.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// LogConfig enables an optional rotating log file next to stdout.
type LogConfig struct {
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// Validate validates the log file configuration.
func (c *LogConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MaxSizeMB, validation.Min(0)),
		validation.Field(&c.MaxBackups, validation.Min(0)),
		validation.Field(&c.MaxAgeDays, validation.Min(0)),
	)
}

// SQLiteConfig holds the SQLite database path.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// VectorConfig selects and configures the vector index.
type VectorConfig struct {
	Backend    string         `yaml:"backend"`
	Dimensions int            `yaml:"dimensions"`
	Milvus     MilvusConfig   `yaml:"milvus"`
	PgVector   PgVectorConfig `yaml:"pgvector"`
}

// Validate validates the vector configuration.
func (c *VectorConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Backend, validation.Required, validation.In(VectorMemory, VectorMilvus, VectorPgVector)),
		validation.Field(&c.Dimensions, validation.Required, validation.Min(1)),
	); err != nil {
		return err
	}
	switch c.Backend {
	case VectorMilvus:
		return validation.ValidateStruct(&c.Milvus,
			validation.Field(&c.Milvus.Address, validation.Required),
			validation.Field(&c.Milvus.Collection, validation.Required),
		)
	case VectorPgVector:
		return validation.ValidateStruct(&c.PgVector,
			validation.Field(&c.PgVector.DSN, validation.Required),
			validation.Field(&c.PgVector.Table, validation.Required),
		)
	}
	return nil
}

// MilvusConfig holds Milvus connection settings.
type MilvusConfig struct {
	Address    string `yaml:"address"`
	Username   string `yaml:"username"`
	Password   string `yaml:"password"`
	DBName     string `yaml:"db_name"`
	Collection string `yaml:"collection"`
}

// PgVectorConfig holds PostgreSQL connection settings.
type PgVectorConfig struct {
	DSN   string `yaml:"dsn"`
	Table string `yaml:"table"`
}

// AIConfig configures the OpenAI-compatible model provider.
//
// A zero RequestsPerSecond disables client-side rate limiting.
type AIConfig struct {
	APIKey            string        `yaml:"api_key"`
	BaseURL           string        `yaml:"base_url"`
	EmbeddingModel    string        `yaml:"embedding_model"`
	ChatModel         string        `yaml:"chat_model"`
	Temperature       float32       `yaml:"temperature"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
}

// Validate validates the AI configuration.
func (c *AIConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.EmbeddingModel, validation.Required),
		validation.Field(&c.ChatModel, validation.Required),
		validation.Field(&c.Temperature, validation.Min(float32(0)), validation.Max(float32(2))),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
		validation.Field(&c.RequestsPerSecond, validation.Min(float64(0))),
		validation.Field(&c.Burst, validation.Min(0)),
	)
}

// OutboxConfig tunes the vector outbox relay.
type OutboxConfig struct {
	PollInterval  time.Duration `yaml:"poll_interval"`
	BatchSize     int           `yaml:"batch_size"`
	MaxAttempts   int           `yaml:"max_attempts"`
	RetryAttempts uint          `yaml:"retry_attempts"`
	Grace         time.Duration `yaml:"grace"`
}

// Validate validates the outbox configuration.
func (c *OutboxConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.PollInterval, validation.Required, validation.Min(10*time.Millisecond)),
		validation.Field(&c.BatchSize, validation.Required, validation.Min(1)),
		validation.Field(&c.MaxAttempts, validation.Required, validation.Min(1)),
		validation.Field(&c.RetryAttempts, validation.Required),
		validation.Field(&c.Grace, validation.Min(time.Duration(0))),
	)
}

// InboxConfig enables the Markdown drop folder.
type InboxConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
	UserID  string `yaml:"user_id"`
}

// Validate validates the inbox configuration.
func (c *InboxConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.When(c.Enabled, validation.Required)),
		validation.Field(&c.UserID, validation.When(c.Enabled, validation.Required)),
	)
}

// EventsConfig tunes the server-sent event broker.
type EventsConfig struct {
	StatsThrottle time.Duration `yaml:"stats_throttle"`
	Heartbeat     time.Duration `yaml:"heartbeat"`
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8000,
			},
			CORS: CORSConfig{
				AllowedOrigins: append([]string(nil), api.DefaultAllowedOrigins...),
			},
			Log: LogConfig{
				MaxSizeMB:  100,
				MaxBackups: 3,
				MaxAgeDays: 28,
			},
		},
		SQLite: SQLiteConfig{
			Path: "./neuralos.db",
		},
		Vector: VectorConfig{
			Backend:    VectorMemory,
			Dimensions: 1536,
			Milvus: MilvusConfig{
				Address:    "localhost:19530",
				Collection: "neuralos_notes",
			},
			PgVector: PgVectorConfig{
				Table: "note_vectors",
			},
		},
		AI: AIConfig{
			EmbeddingModel: "text-embedding-3-small",
			ChatModel:      "gpt-4o-mini",
			Temperature:    0.7,
			Timeout:        60 * time.Second,
		},
		Outbox: OutboxConfig{
			PollInterval:  2 * time.Second,
			BatchSize:     50,
			MaxAttempts:   10,
			RetryAttempts: 3,
			Grace:         5 * time.Second,
		},
		Inbox: InboxConfig{
			Path:   "./inbox",
			UserID: "local",
		},
		Events: EventsConfig{
			StatsThrottle: 2 * time.Second,
			Heartbeat:     15 * time.Second,
		},
	}
}
