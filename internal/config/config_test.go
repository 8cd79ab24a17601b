package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 30, cfg.Server.ReadTimeout)
	assert.Equal(t, 30, cfg.Server.WriteTimeout)

	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 0, cfg.Redis.DB)
	assert.Equal(t, 10, cfg.Redis.PoolSize)
	assert.Equal(t, "index:", cfg.Redis.KeyPrefix)

	assert.Equal(t, "localhost", cfg.Qdrant.Host)
	assert.Equal(t, 6334, cfg.Qdrant.Port)
	assert.True(t, cfg.Qdrant.HealthCheck)
	assert.Equal(t, 3, cfg.Qdrant.RetryAttempts)

	assert.Equal(t, "openai", cfg.Embedding.Provider)
	assert.Equal(t, 1536, cfg.Embedding.Dimension)
	assert.Equal(t, 100, cfg.Embedding.BatchSize)

	assert.Equal(t, 512, cfg.Chunking.ChunkSize)
	assert.Equal(t, 64, cfg.Chunking.ChunkOverlap)
	assert.Equal(t, 600, cfg.Chunking.MinTokensForChunking)

	assert.Equal(t, 20, cfg.Search.DefaultLimit)
	assert.Equal(t, 60, cfg.Search.RRFK)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.True(t, cfg.Logging.JSON)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  func() *Config
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid config",
			config:  DefaultConfig,
			wantErr: false,
		},
		{
			name: "invalid port",
			config: func() *Config {
				c := DefaultConfig()
				c.Server.Port = 0
				return c
			},
			wantErr: true,
			errMsg:  "server port out of range",
		},
		{
			name: "overlap not smaller than chunk size",
			config: func() *Config {
				c := DefaultConfig()
				c.Chunking.ChunkOverlap = c.Chunking.ChunkSize
				return c
			},
			wantErr: true,
			errMsg:  "chunk overlap must be smaller than chunk size",
		},
		{
			name: "min tokens below chunk size",
			config: func() *Config {
				c := DefaultConfig()
				c.Chunking.MinTokensForChunking = 10
				return c
			},
			wantErr: true,
			errMsg:  "min tokens for chunking must be >= chunk size",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config().Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	os.Setenv("COLLECTOR_PORT", "9090")
	os.Setenv("CHUNK_SIZE", "1024")
	os.Setenv("CHUNK_OVERLAP", "128")
	os.Setenv("MIN_TOKENS_FOR_CHUNKING", "1200")
	os.Setenv("APP_COMPANY_DOMAINS", "acme.com, example.org")
	defer func() {
		os.Unsetenv("COLLECTOR_PORT")
		os.Unsetenv("CHUNK_SIZE")
		os.Unsetenv("CHUNK_OVERLAP")
		os.Unsetenv("MIN_TOKENS_FOR_CHUNKING")
		os.Unsetenv("APP_COMPANY_DOMAINS")
	}()

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 1024, cfg.Chunking.ChunkSize)
	assert.Equal(t, 128, cfg.Chunking.ChunkOverlap)
	assert.Equal(t, 1200, cfg.Chunking.MinTokensForChunking)
	assert.Equal(t, []string{"acme.com", "example.org"}, cfg.App.CompanyDomains)
}

func TestSplitCSV(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, splitCSV("a,b,c"))
	assert.Equal(t, []string{"a", "b"}, splitCSV(" a , b "))
	assert.Nil(t, splitCSV(""))
}
