// Package config loads the service configuration from a JSON file with
// GROUNDED_* environment overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the grounded service.
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Server    ServerConfig    `mapstructure:"server"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Vector    VectorConfig    `mapstructure:"vector"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Chunking  ChunkingConfig  `mapstructure:"chunking"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
}

// GeneralConfig contains general application settings.
type GeneralConfig struct {
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Address string `mapstructure:"address"`
}

// LLMConfig selects and configures the embedding/generation provider.
type LLMConfig struct {
	// Provider is one of "openai", "ollama" or "stub"; chosen once at
	// startup, never branched on at call sites.
	Provider        string  `mapstructure:"provider"`
	APIKey          string  `mapstructure:"api_key"`
	BaseURL         string  `mapstructure:"base_url"`
	CompletionModel string  `mapstructure:"completion_model"`
	EmbeddingModel  string  `mapstructure:"embedding_model"`
	Temperature     float64 `mapstructure:"temperature"`
	MaxTokens       int     `mapstructure:"max_tokens"`
	// Timeout bounds every embed/generate call; a query must never block
	// indefinitely on the model backend.
	Timeout time.Duration `mapstructure:"timeout"`
}

// VectorConfig selects the vector index backend.
type VectorConfig struct {
	// Backend is "memory" or "postgres".
	Backend string `mapstructure:"backend"`
	// Dimensions is the fixed embedding dimensionality of the index; for
	// the postgres backend it must match the vector column in migrations.
	Dimensions int `mapstructure:"dimensions"`
}

// StorageConfig contains Postgres and Redis settings.
type StorageConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

// PostgresConfig contains connection settings for the interaction and
// document store (and the postgres vector backend).
type PostgresConfig struct {
	URL      string `mapstructure:"url"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// DSN assembles a connection string from the individual fields unless a full
// URL is configured.
func (p PostgresConfig) DSN() (string, error) {
	if p.URL != "" {
		return p.URL, nil
	}
	if p.Host == "" || p.DBName == "" {
		return "", fmt.Errorf("postgres not configured (storage.postgres.host/dbname or url)")
	}
	port := p.Port
	if port == "" {
		port = "5432"
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, port, p.DBName, ssl), nil
}

// RedisConfig enables the embedding cache when an address is set.
type RedisConfig struct {
	Address  string        `mapstructure:"address"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// ChunkingConfig controls how ingested documents are split.
type ChunkingConfig struct {
	MaxWords     int `mapstructure:"max_words"`
	OverlapWords int `mapstructure:"overlap_words"`
}

// RetrievalConfig controls the query pipeline.
type RetrievalConfig struct {
	TopK int `mapstructure:"top_k"`
}

// LoadConfig reads the config file (JSON) and environment overrides. An
// empty path searches the usual locations.
func LoadConfig(path string) *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("json")

	viper.SetDefault("general.log_level", "info")
	viper.SetDefault("server.address", ":10030")
	viper.SetDefault("llm.provider", "stub")
	viper.SetDefault("llm.completion_model", "llama3.2")
	viper.SetDefault("llm.embedding_model", "llama3.2")
	viper.SetDefault("llm.timeout", 120*time.Second)
	viper.SetDefault("vector.backend", "memory")
	viper.SetDefault("vector.dimensions", 768)
	viper.SetDefault("storage.redis.cache_ttl", 24*time.Hour)
	viper.SetDefault("chunking.max_words", 512)
	viper.SetDefault("chunking.overlap_words", 50)
	viper.SetDefault("retrieval.top_k", 5)

	if path == "" {
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("GROUNDED")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// Config file is optional: defaults plus env vars are a valid setup.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			panic(fmt.Errorf("fatal error config file: %w", err))
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		panic(fmt.Errorf("fatal error unmarshalling config: %w", err))
	}
	return &cfg
}
