// Package config provides configuration management for the knowledge
// collector, handling environment variables, .env files, and runtime
// settings for every component (Redis, Qdrant, chunking, search,
// per-source connector credentials).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the root configuration tree.
type Config struct {
	Server     ServerConfig
	Redis      RedisConfig
	Qdrant     QdrantConfig
	Embedding  EmbeddingConfig
	Chunking   ChunkingConfig
	Search     SearchConfig
	Logging    LoggingConfig
	App        AppConfig
	Jira       JiraConfig
	Slack      SlackConfig
	Gmail      GmailConfig
	Drive      DriveConfig
	Confluence ConfluenceConfig
	Calendar   CalendarConfig
	GitHub     GitHubConfig
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port         int
	Host         string
	ReadTimeout  int
	WriteTimeout int
}

// RedisConfig configures the cursor store and analytics store backend.
type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	KeyPrefix    string
}

// QdrantConfig configures the vector store gateway.
type QdrantConfig struct {
	Host           string
	Port           int
	APIKey         string
	UseTLS         bool
	HealthCheck    bool
	RetryAttempts  int
	TimeoutSeconds int
}

// EmbeddingConfig configures the embedding function used by the vector
// store (spec.md §4.8 "Embedding").
type EmbeddingConfig struct {
	Provider  string
	APIKey    string
	Model     string
	Dimension int
	BatchSize int
	Timeout   time.Duration
}

// ChunkingConfig holds the token-budget constants of spec.md §4.3.
type ChunkingConfig struct {
	ChunkSize            int
	ChunkOverlap         int
	MinTokensForChunking int
}

// SearchConfig holds tunables for the hybrid search engine (spec.md §4.10).
type SearchConfig struct {
	DefaultLimit int
	RRFK         int
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level string
	JSON  bool
}

// AppConfig holds cross-cutting application settings (spec.md §6).
type AppConfig struct {
	CompanyDomains []string
	APIKey         string
}

// JiraConfig holds Jira connector credentials.
type JiraConfig struct {
	BaseURL  string
	Username string
	APIToken string
}

// SlackConfig holds Slack connector credentials.
type SlackConfig struct {
	BotToken string
}

// GmailConfig holds Gmail/Google OAuth connector credentials.
type GmailConfig struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	UserEmail    string
}

// DriveConfig holds Google Drive connector credentials (shares OAuth
// with Gmail in most deployments, kept distinct for folder scoping).
type DriveConfig struct {
	RefreshToken string
}

// ConfluenceConfig holds Confluence connector credentials.
type ConfluenceConfig struct {
	BaseURL  string
	Username string
	APIToken string
}

// CalendarConfig holds Google Calendar connector credentials.
type CalendarConfig struct {
	RefreshToken string
}

// GitHubConfig holds GitHub connector credentials.
type GitHubConfig struct {
	Token    string
	Username string
}

// DefaultConfig returns the baseline configuration before environment
// overrides are applied.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			Host:         "0.0.0.0",
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Redis: RedisConfig{
			Addr:         "localhost:6379",
			DB:           0,
			PoolSize:     10,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			KeyPrefix:    "index:",
		},
		Qdrant: QdrantConfig{
			Host:           "localhost",
			Port:           6334,
			UseTLS:         false,
			HealthCheck:    true,
			RetryAttempts:  3,
			TimeoutSeconds: 30,
		},
		Embedding: EmbeddingConfig{
			Provider:  "openai",
			Model:     "text-embedding-3-small",
			Dimension: 1536,
			BatchSize: 100,
			Timeout:   60 * time.Second,
		},
		Chunking: ChunkingConfig{
			ChunkSize:            512,
			ChunkOverlap:         64,
			MinTokensForChunking: 600,
		},
		Search: SearchConfig{
			DefaultLimit: 20,
			RRFK:         60,
		},
		Logging: LoggingConfig{
			Level: "info",
			JSON:  true,
		},
	}
}

// LoadConfig loads configuration from a .env file (if present) and
// environment variables layered over DefaultConfig.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	cfg := DefaultConfig()
	loadServerConfig(cfg)
	loadRedisConfig(cfg)
	loadQdrantConfig(cfg)
	loadEmbeddingConfig(cfg)
	loadChunkingConfig(cfg)
	loadSearchConfig(cfg)
	loadLoggingConfig(cfg)
	loadAppConfig(cfg)
	loadConnectorConfig(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks required invariants across the config tree.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.New("server port out of range")
	}
	if c.Chunking.ChunkOverlap >= c.Chunking.ChunkSize {
		return errors.New("chunk overlap must be smaller than chunk size")
	}
	if c.Chunking.MinTokensForChunking < c.Chunking.ChunkSize {
		return errors.New("min tokens for chunking must be >= chunk size")
	}
	return nil
}

func loadServerConfig(cfg *Config) {
	cfg.Server.Port = getIntEnvWithDefault("COLLECTOR_PORT", cfg.Server.Port)
	cfg.Server.Host = getStringEnvWithDefault("COLLECTOR_HOST", cfg.Server.Host)
	cfg.Server.ReadTimeout = getIntEnvWithDefault("COLLECTOR_READ_TIMEOUT_SECONDS", cfg.Server.ReadTimeout)
	cfg.Server.WriteTimeout = getIntEnvWithDefault("COLLECTOR_WRITE_TIMEOUT_SECONDS", cfg.Server.WriteTimeout)
}

func loadRedisConfig(cfg *Config) {
	cfg.Redis.Addr = getStringEnvWithDefault("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getStringEnvWithDefault("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = getIntEnvWithDefault("REDIS_DB", cfg.Redis.DB)
	cfg.Redis.PoolSize = getIntEnvWithDefault("REDIS_POOL_SIZE", cfg.Redis.PoolSize)
	cfg.Redis.KeyPrefix = getStringEnvWithDefault("REDIS_KEY_PREFIX", cfg.Redis.KeyPrefix)
}

func loadQdrantConfig(cfg *Config) {
	cfg.Qdrant.Host = getStringEnvWithDefault("QDRANT_HOST", cfg.Qdrant.Host)
	cfg.Qdrant.Port = getIntEnvWithDefault("QDRANT_PORT", cfg.Qdrant.Port)
	cfg.Qdrant.APIKey = getStringEnvWithDefault("QDRANT_API_KEY", cfg.Qdrant.APIKey)
	cfg.Qdrant.UseTLS = getBoolEnvWithDefault("QDRANT_USE_TLS", cfg.Qdrant.UseTLS)
	cfg.Qdrant.HealthCheck = getBoolEnvWithDefault("QDRANT_HEALTH_CHECK", cfg.Qdrant.HealthCheck)
	cfg.Qdrant.RetryAttempts = getIntEnvWithDefault("QDRANT_RETRY_ATTEMPTS", cfg.Qdrant.RetryAttempts)
	cfg.Qdrant.TimeoutSeconds = getIntEnvWithDefault("QDRANT_TIMEOUT_SECONDS", cfg.Qdrant.TimeoutSeconds)
}

func loadEmbeddingConfig(cfg *Config) {
	cfg.Embedding.Provider = getStringEnvWithDefault("EMBEDDING_PROVIDER", cfg.Embedding.Provider)
	cfg.Embedding.APIKey = getStringEnvWithDefault("EMBEDDING_API_KEY", cfg.Embedding.APIKey)
	cfg.Embedding.Model = getStringEnvWithDefault("EMBEDDING_MODEL", cfg.Embedding.Model)
	cfg.Embedding.Dimension = getIntEnvWithDefault("EMBEDDING_DIMENSION", cfg.Embedding.Dimension)
	cfg.Embedding.BatchSize = getIntEnvWithDefault("EMBEDDING_BATCH_SIZE", cfg.Embedding.BatchSize)
}

func loadChunkingConfig(cfg *Config) {
	cfg.Chunking.ChunkSize = getIntEnvWithDefault("CHUNK_SIZE", cfg.Chunking.ChunkSize)
	cfg.Chunking.ChunkOverlap = getIntEnvWithDefault("CHUNK_OVERLAP", cfg.Chunking.ChunkOverlap)
	cfg.Chunking.MinTokensForChunking = getIntEnvWithDefault("MIN_TOKENS_FOR_CHUNKING", cfg.Chunking.MinTokensForChunking)
}

func loadSearchConfig(cfg *Config) {
	cfg.Search.DefaultLimit = getIntEnvWithDefault("SEARCH_DEFAULT_LIMIT", cfg.Search.DefaultLimit)
	cfg.Search.RRFK = getIntEnvWithDefault("SEARCH_RRF_K", cfg.Search.RRFK)
}

func loadLoggingConfig(cfg *Config) {
	cfg.Logging.Level = getStringEnvWithDefault("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.JSON = getBoolEnvWithDefault("LOG_JSON", cfg.Logging.JSON)
}

func loadAppConfig(cfg *Config) {
	cfg.App.APIKey = getStringEnvWithDefault("APP_API_KEY", cfg.App.APIKey)
	if domains := os.Getenv("APP_COMPANY_DOMAINS"); domains != "" {
		cfg.App.CompanyDomains = splitCSV(domains)
	}
}

func loadConnectorConfig(cfg *Config) {
	cfg.Jira.BaseURL = getStringEnvWithDefault("JIRA_BASE_URL", cfg.Jira.BaseURL)
	cfg.Jira.Username = getStringEnvWithDefault("JIRA_USERNAME", cfg.Jira.Username)
	cfg.Jira.APIToken = getStringEnvWithDefault("JIRA_API_TOKEN", cfg.Jira.APIToken)

	cfg.Slack.BotToken = getStringEnvWithDefault("SLACK_BOT_TOKEN", cfg.Slack.BotToken)

	cfg.Gmail.ClientID = getStringEnvWithDefault("GOOGLE_CLIENT_ID", cfg.Gmail.ClientID)
	cfg.Gmail.ClientSecret = getStringEnvWithDefault("GOOGLE_CLIENT_SECRET", cfg.Gmail.ClientSecret)
	cfg.Gmail.RefreshToken = getStringEnvWithDefault("GOOGLE_REFRESH_TOKEN", cfg.Gmail.RefreshToken)
	cfg.Gmail.UserEmail = getStringEnvWithDefault("GOOGLE_USER_EMAIL", cfg.Gmail.UserEmail)

	cfg.Drive.RefreshToken = getStringEnvWithDefault("GOOGLE_REFRESH_TOKEN", cfg.Drive.RefreshToken)
	cfg.Calendar.RefreshToken = getStringEnvWithDefault("GOOGLE_REFRESH_TOKEN", cfg.Calendar.RefreshToken)

	cfg.Confluence.BaseURL = getStringEnvWithDefault("CONFLUENCE_BASE_URL", cfg.Confluence.BaseURL)
	cfg.Confluence.Username = getStringEnvWithDefault("CONFLUENCE_USERNAME", cfg.Confluence.Username)
	cfg.Confluence.APIToken = getStringEnvWithDefault("CONFLUENCE_API_TOKEN", cfg.Confluence.APIToken)

	cfg.GitHub.Token = getStringEnvWithDefault("GITHUB_TOKEN", cfg.GitHub.Token)
	cfg.GitHub.Username = getStringEnvWithDefault("GITHUB_USERNAME", cfg.GitHub.Username)
}

func splitCSV(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				out = append(out, trimSpace(s[start:i]))
			}
			start = i + 1
		}
	}
	return out
}

func trimSpace(s string) string {
	for len(s) > 0 && s[0] == ' ' {
		s = s[1:]
	}
	for len(s) > 0 && s[len(s)-1] == ' ' {
		s = s[:len(s)-1]
	}
	return s
}

func getStringEnvWithDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getIntEnvWithDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getBoolEnvWithDefault(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			return parsed
		}
	}
	return defaultValue
}
