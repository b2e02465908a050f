package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/tracelog"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeEnv(vars map[string]string) func(string) (string, bool) {
	return func(name string) (string, bool) {
		v, ok := vars[name]
		return v, ok
	}
}

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := Load("", fakeEnv(nil))
		require.Nil(t, err)
		assert.Equal(t, Defaults, cfg)
	})
	t.Run("file overrides defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "hmn.yaml")
		err := os.WriteFile(path, []byte(`
env: live
log_level: warn
postgres:
  hostname: db.internal
  port: 6543
merge:
  timeout: 5s
  enqueue_attempts: 7
`), 0644)
		require.Nil(t, err)

		cfg, err := Load(path, fakeEnv(nil))
		require.Nil(t, err)
		assert.Equal(t, Live, cfg.Env)
		assert.Equal(t, zerolog.WarnLevel, cfg.LogLevel)
		assert.Equal(t, "db.internal", cfg.Postgres.Hostname)
		assert.Equal(t, 6543, cfg.Postgres.Port)
		assert.Equal(t, Defaults.Postgres.User, cfg.Postgres.User)
		assert.Equal(t, 5*time.Second, cfg.Merge.Timeout)
		assert.Equal(t, 7, cfg.Merge.EnqueueAttempts)
		assert.Equal(t, Defaults.Merge.EnqueueBackoffMax, cfg.Merge.EnqueueBackoffMax)
	})
	t.Run("env overrides file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "hmn.yaml")
		require.Nil(t, os.WriteFile(path, []byte("addr: \"0.0.0.0:80\"\n"), 0644))

		cfg, err := Load(path, fakeEnv(map[string]string{
			"HMN_ADDR":                   "127.0.0.1:8080",
			"HMN_DB_PORT":                "15432",
			"HMN_DB_LOG_LEVEL":           "debug",
			"HMN_MERGE_ENQUEUE_ATTEMPTS": "0",
		}))
		require.Nil(t, err)
		assert.Equal(t, "127.0.0.1:8080", cfg.Addr)
		assert.Equal(t, 15432, cfg.Postgres.Port)
		assert.Equal(t, tracelog.LogLevelDebug, cfg.Postgres.LogLevel)
		assert.Equal(t, 1, cfg.Merge.EnqueueAttempts, "attempts are clamped to at least one")
	})
	t.Run("bad values", func(t *testing.T) {
		_, err := Load("", fakeEnv(map[string]string{"HMN_DB_PORT": "not a port"}))
		assert.NotNil(t, err)

		_, err = Load("", fakeEnv(map[string]string{"HMN_LOG_LEVEL": "loud"}))
		assert.NotNil(t, err)

		_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"), fakeEnv(nil))
		assert.NotNil(t, err)
	})
}
