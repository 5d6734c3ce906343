package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Chdir(t.TempDir())

	tests := []struct {
		name    string
		yaml    string
		env     map[string]string
		wantErr string
		verify  func(t *testing.T, cfg *Config)
	}{
		{
			name: "yaml with defaults",
			yaml: "jwt:\n  secret: s3cret\nhttp:\n  allowed_origins: [\"https://a.example\"]\n",
			verify: func(t *testing.T, cfg *Config) {
				assert.Equal(t, BackendMemory, cfg.Store.Backend)
				assert.Equal(t, ":8080", cfg.HTTP.Address)
				assert.Equal(t, []string{"https://a.example"}, cfg.HTTP.AllowedOrigins)
				assert.Equal(t, 24*time.Hour, cfg.JWT.DefaultTTL)
				assert.Equal(t, 0.1, cfg.Observability.TempoSampleRate)
				assert.False(t, cfg.Store.Shared())
				assert.Zero(t, cfg.Ledger.ResyncInterval)
			},
		},
		{
			name: "env overrides yaml",
			yaml: "store:\n  backend: sqlite\njwt:\n  secret: from-file\n",
			env: map[string]string{
				"STORE_BACKEND":        "postgres",
				"DATABASE_URL":         "postgres://localhost/ledger",
				"JWT_SECRET":           "from-env",
				"JWT_DEFAULT_TTL":      "2h",
				"HTTP_ALLOWED_ORIGINS": "https://a.example, https://b.example",
				"LEDGER_MAX_RETRIES":   "7",
			},
			verify: func(t *testing.T, cfg *Config) {
				assert.Equal(t, BackendPostgres, cfg.Store.Backend)
				assert.Equal(t, "from-env", cfg.JWT.Secret)
				assert.Equal(t, 2*time.Hour, cfg.JWT.DefaultTTL)
				assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.HTTP.AllowedOrigins)
				assert.Equal(t, 7, cfg.Ledger.MaxRetries)
				assert.True(t, cfg.Store.Shared())
				assert.Equal(t, 30*time.Second, cfg.Ledger.ResyncInterval)
			},
		},
		{
			name: "resync interval from env",
			yaml: "store:\n  backend: kv\nnats:\n  url: nats://localhost:4222\njwt:\n  secret: x\n",
			env:  map[string]string{"LEDGER_RESYNC_INTERVAL": "5s"},
			verify: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 5*time.Second, cfg.Ledger.ResyncInterval)
			},
		},
		{
			name:    "negative resync interval",
			yaml:    "jwt:\n  secret: x\nledger:\n  resync_interval: -1s\n",
			wantErr: "resync_interval",
		},
		{
			name:    "postgres without dsn",
			yaml:    "store:\n  backend: postgres\njwt:\n  secret: x\n",
			wantErr: "DATABASE_URL",
		},
		{
			name:    "kv without nats",
			yaml:    "store:\n  backend: kv\njwt:\n  secret: x\n",
			wantErr: "NATS_URL",
		},
		{
			name:    "unknown backend",
			yaml:    "store:\n  backend: redis\njwt:\n  secret: x\n",
			wantErr: "unknown store backend",
		},
		{
			name:    "missing secret",
			yaml:    "store:\n  backend: memory\n",
			wantErr: "JWT_SECRET",
		},
		{
			name:    "bad duration",
			yaml:    "jwt:\n  secret: x\n",
			env:     map[string]string{"JWT_DEFAULT_TTL": "soon"},
			wantErr: "JWT_DEFAULT_TTL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cfg, err := LoadConfig(writeConfig(t, tt.yaml))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.verify(t, cfg)
		})
	}
}

func TestLoadConfig_EnvOnly(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("JWT_SECRET", "env-secret")
	t.Setenv("NATS_URL", "nats://localhost:4222")
	t.Setenv("STORE_BACKEND", "kv")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, BackendKV, cfg.Store.Backend)
	assert.Equal(t, "score_ledger", cfg.NATS.KVBucket)

	obs := ToObsConfig(cfg)
	assert.Equal(t, "score-ledger", obs.ServiceName)
	assert.Equal(t, 0.1, obs.SampleRate)
}

func TestLoadConfig_DotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("JWT_SECRET=dotenv-secret\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("JWT_SECRET") })

	cfg, err := LoadConfig(filepath.Join(dir, "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "dotenv-secret", cfg.JWT.Secret)
}
