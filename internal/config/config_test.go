package config_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dnw3/synapse/internal/config"
)

func TestDefaultConfigValues(t *testing.T) {
	as := assert.New(t)

	cfg := config.NewDefaultConfig()

	as.Equal(config.DefaultAPIPort, cfg.APIPort)
	as.Equal("0.0.0.0", cfg.APIHost)
	as.Equal("info", cfg.LogLevel)
	as.Equal(config.BackendMemory, cfg.StoreBackend)
	as.Equal(config.DefaultRecursionLimit, cfg.RecursionLimit)
	as.Equal(config.DefaultShutdownTimeout, cfg.ShutdownTimeout)
	as.NoError(cfg.Validate())
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name      string
		configMod func(*config.Config)
		wantErr   error
	}{
		{
			name: "invalid_api_port_zero",
			configMod: func(c *config.Config) {
				c.APIPort = 0
			},
			wantErr: config.ErrInvalidAPIPort,
		},
		{
			name: "invalid_api_port_too_high",
			configMod: func(c *config.Config) {
				c.APIPort = 70000
			},
			wantErr: config.ErrInvalidAPIPort,
		},
		{
			name: "zero_recursion_limit",
			configMod: func(c *config.Config) {
				c.RecursionLimit = 0
			},
			wantErr: config.ErrInvalidRecursionLimit,
		},
		{
			name: "unknown_store_backend",
			configMod: func(c *config.Config) {
				c.StoreBackend = "cassandra"
			},
			wantErr: config.ErrInvalidStoreBackend,
		},
		{
			name: "unknown_checkpoint_backend",
			configMod: func(c *config.Config) {
				c.CheckpointBackend = "scroll"
			},
			wantErr: config.ErrInvalidCheckpointBackend,
		},
		{
			name: "blob_backend_without_bucket",
			configMod: func(c *config.Config) {
				c.StoreBackend = config.BackendBlob
			},
			wantErr: config.ErrMissingBucketURL,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.NewDefaultConfig()
			tt.configMod(cfg)
			assert.ErrorIs(t, cfg.Validate(), tt.wantErr)
		})
	}
}

func TestValidateValidEdgeCases(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*config.Config)
	}{
		{
			name:   "min_valid_port",
			modify: func(c *config.Config) { c.APIPort = 1 },
		},
		{
			name:   "max_valid_port",
			modify: func(c *config.Config) { c.APIPort = 65535 },
		},
		{
			name: "blob_backend_with_bucket",
			modify: func(c *config.Config) {
				c.StoreBackend = config.BackendBlob
				c.BucketURL = "mem://"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.NewDefaultConfig()
			tt.modify(cfg)
			assert.NoError(t, cfg.Validate())
		})
	}
}

func TestConfigLoadFromEnv(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		check   func(*testing.T, *config.Config)
	}{
		{
			name: "load_api_port",
			envVars: map[string]string{
				"SYNAPSE_API_PORT": "9090",
			},
			check: func(t *testing.T, c *config.Config) {
				assert.Equal(t, 9090, c.APIPort)
			},
		},
		{
			name: "load_api_host",
			envVars: map[string]string{
				"SYNAPSE_API_HOST": "127.0.0.1",
			},
			check: func(t *testing.T, c *config.Config) {
				assert.Equal(t, "127.0.0.1", c.APIHost)
			},
		},
		{
			name: "load_store_backend",
			envVars: map[string]string{
				"SYNAPSE_STORE_BACKEND": "redis",
				"SYNAPSE_REDIS_ADDR":    "redis.example.com:6379",
				"SYNAPSE_REDIS_DB":      "5",
			},
			check: func(t *testing.T, c *config.Config) {
				assert.Equal(t, config.BackendRedis, c.StoreBackend)
				assert.Equal(t, "redis.example.com:6379", c.Redis.Addr)
				assert.Equal(t, 5, c.Redis.DB)
			},
		},
		{
			name: "load_recursion_limit",
			envVars: map[string]string{
				"SYNAPSE_RECURSION_LIMIT": "50",
			},
			check: func(t *testing.T, c *config.Config) {
				assert.Equal(t, 50, c.RecursionLimit)
			},
		},
		{
			name: "invalid_api_port_ignored",
			envVars: map[string]string{
				"SYNAPSE_API_PORT": "not_a_number",
			},
			check: func(t *testing.T, c *config.Config) {
				assert.Equal(t, config.DefaultAPIPort, c.APIPort)
			},
		},
		{
			name: "out_of_range_port_ignored",
			envVars: map[string]string{
				"SYNAPSE_API_PORT": "99999",
			},
			check: func(t *testing.T, c *config.Config) {
				assert.Equal(t, config.DefaultAPIPort, c.APIPort)
			},
		},
		{
			name: "zero_recursion_limit_ignored",
			envVars: map[string]string{
				"SYNAPSE_RECURSION_LIMIT": "0",
			},
			check: func(t *testing.T, c *config.Config) {
				assert.Equal(t,
					config.DefaultRecursionLimit, c.RecursionLimit,
				)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for key, value := range tt.envVars {
				_ = os.Setenv(key, value)
				t.Cleanup(func() { _ = os.Unsetenv(key) })
			}

			cfg := config.NewDefaultConfig()
			cfg.LoadFromEnv()
			tt.check(t, cfg)
		})
	}
}
