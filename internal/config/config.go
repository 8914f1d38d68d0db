package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kapu/kokoro-diary-go/internal/constants"
)

type Config struct {
	Server   ServerConfig
	Gemini   GeminiConfig
	OpenAI   OpenAIConfig
	Spotify  SpotifyConfig
	YouTube  YouTubeConfig
	Redis    RedisConfig
	Storage  StorageConfig
	Pipeline PipelineConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Addr string
}

type GeminiConfig struct {
	APIKey string
	Model  string
}

type OpenAIConfig struct {
	APIKey         string
	Model          string
	EnableFallback bool
}

// SpotifyConfig: a static access token wins over client credentials. With neither set the
// Spotify lookup is skipped unless a request carries its own token.
type SpotifyConfig struct {
	AccessToken  string
	ClientID     string
	ClientSecret string
	BaseURL      string
	TokenURL     string
}

type YouTubeConfig struct {
	APIKey string
}

// RedisConfig: an empty Host disables the lookup cache.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	TTL      time.Duration
}

type StorageConfig struct {
	Driver      string // postgres | sqlite | none
	DatabaseURL string
	Postgres    PostgresConfig
	SQLitePath  string
}

type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

type PipelineConfig struct {
	AnalysisTimeout    time.Duration
	LookupTimeout      time.Duration
	ErrorRecoveryDelay time.Duration
}

type LoggingConfig struct {
	Level string
	File  string
}

// Load reads .env and the environment and validates the full configuration.
func Load() (*Config, error) {
	cfg := load()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// LoadStorage is Load for commands that only read the diary store; AI keys are not required.
func LoadStorage() (*Config, error) {
	cfg := load()
	if err := cfg.validateStorage(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Addr: getEnv("HTTP_ADDR", ":8080"),
		},
		Gemini: GeminiConfig{
			APIKey: getEnv("GEMINI_API_KEY", ""),
			Model:  getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		},
		OpenAI: OpenAIConfig{
			APIKey:         getEnv("OPENAI_API_KEY", ""),
			Model:          getEnv("OPENAI_MODEL", "gpt-5-mini"),
			EnableFallback: getEnvBool("OPENAI_ENABLE_FALLBACK", false),
		},
		Spotify: SpotifyConfig{
			AccessToken:  getEnv("SPOTIFY_ACCESS_TOKEN", ""),
			ClientID:     getEnv("SPOTIFY_CLIENT_ID", ""),
			ClientSecret: getEnv("SPOTIFY_CLIENT_SECRET", ""),
			BaseURL:      getEnv("SPOTIFY_API_BASE_URL", constants.APIConfig.SpotifyBaseURL),
			TokenURL:     getEnv("SPOTIFY_TOKEN_URL", constants.APIConfig.SpotifyTokenURL),
		},
		YouTube: YouTubeConfig{
			APIKey: getEnv("YOUTUBE_API_KEY", ""),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", ""),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			TTL:      getEnvDuration("LOOKUP_CACHE_TTL", constants.CacheTTL.VideoLookup),
		},
		Storage: StorageConfig{
			Driver:      strings.ToLower(getEnv("STORAGE_DRIVER", "postgres")),
			DatabaseURL: getEnv("DATABASE_URL", ""),
			Postgres: PostgresConfig{
				Host:     getEnv("POSTGRES_HOST", ""),
				Port:     getEnvInt("POSTGRES_PORT", 5432),
				User:     getEnv("POSTGRES_USER", "postgres"),
				Password: getEnv("POSTGRES_PASSWORD", ""),
				Database: getEnv("POSTGRES_DB", "postgres"),
				SSLMode:  getEnv("POSTGRES_SSLMODE", "require"),
			},
			SQLitePath: getEnv("SQLITE_PATH", "diary.db"),
		},
		Pipeline: PipelineConfig{
			AnalysisTimeout:    getEnvDuration("ANALYSIS_TIMEOUT", constants.PipelineTimeouts.Analysis),
			LookupTimeout:      getEnvDuration("LOOKUP_TIMEOUT", constants.PipelineTimeouts.Lookup),
			ErrorRecoveryDelay: getEnvDuration("ERROR_RECOVERY_DELAY", 0),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
			File:  getEnv("LOG_FILE", ""),
		},
	}

	return cfg
}

func (c *Config) Validate() error {
	if c.Gemini.APIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required")
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if c.OpenAI.EnableFallback && c.OpenAI.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required when OPENAI_ENABLE_FALLBACK is set")
	}
	if c.Pipeline.AnalysisTimeout < 0 || c.Pipeline.LookupTimeout < 0 {
		return fmt.Errorf("pipeline timeouts must not be negative")
	}
	return nil
}

func (c *Config) validateStorage() error {
	switch c.Storage.Driver {
	case "postgres", "sqlite", "none":
		return nil
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER: %s", c.Storage.Driver)
	}
}

// StorageConfigured reports whether a diary store should be opened. An unconfigured
// postgres driver behaves like "none".
func (c *Config) StorageConfigured() bool {
	switch c.Storage.Driver {
	case "sqlite":
		return c.Storage.SQLitePath != ""
	case "postgres":
		return c.Storage.DatabaseURL != "" || c.Storage.Postgres.Host != ""
	default:
		return false
	}
}

// PostgresDSN prefers DATABASE_URL (Supabase connection strings) over discrete settings.
func (c *Config) PostgresDSN() string {
	if c.Storage.DatabaseURL != "" {
		return c.Storage.DatabaseURL
	}
	pg := c.Storage.Postgres
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		pg.Host, pg.Port, pg.User, pg.Password, pg.Database, pg.SSLMode)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("45s") or plain seconds ("45").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
