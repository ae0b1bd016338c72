package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var managedEnv = []string{
	"STORE_APP_PORT",
	"STORE_ADMIN_PASSWORD",
	"STORE_METRICS_BACKEND",
	"STORE_RECONCILE_KEY_LENGTH",
	"STORE_FILESTORE_LOCK",
	"APP_ENV",
	"NODE_ENV",
	"PORT",
	"ADMIN_PASSWORD",
	"ADMIN_SESSION_SECRET",
	"SESSION_SECRET",
	"NEXTAUTH_SECRET",
	"DATABASE_URL",
	"ORDERS_TABLE",
	"ORDERS_FILE",
	"APP_TIMEZONE",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range managedEnv {
		if old, ok := os.LookupEnv(k); ok {
			t.Cleanup(func() { os.Setenv(k, old) })
		}
		os.Unsetenv(k)
	}
}

func TestLoad(t *testing.T) {
	t.Run("loads default values when env vars not set", func(t *testing.T) {
		clearEnv(t)

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "online-store", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, "3000", cfg.App.Port)
		assert.Equal(t, 24*time.Hour, cfg.Admin.SessionTTL)
		assert.Equal(t, "data/orders.json", cfg.FileStore.Path)
		assert.True(t, cfg.FileStore.Lock)
		assert.Equal(t, 10, cfg.Reconcile.KeyLength)
		assert.Equal(t, "none", cfg.Metrics.Backend)
		assert.Equal(t, "console", cfg.Log.Format)
		assert.Equal(t, "", cfg.StructuredBackend())
		assert.False(t, cfg.IsProduction())
	})

	t.Run("reads storefront environment names", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("ADMIN_PASSWORD", "hunter2")
		t.Setenv("NEXTAUTH_SECRET", "generic")
		t.Setenv("ADMIN_SESSION_SECRET", "dedicated")
		t.Setenv("DATABASE_URL", "postgres://u:p@localhost:5432/store")
		t.Setenv("NODE_ENV", "production")
		t.Setenv("PORT", "8080")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "hunter2", cfg.Admin.Password)
		assert.Equal(t, "dedicated", cfg.Admin.SessionSecret)
		assert.Equal(t, "generic", cfg.Admin.GenericSecret)
		assert.Equal(t, "sql", cfg.StructuredBackend())
		assert.True(t, cfg.IsProduction())
		assert.Equal(t, "json", cfg.Log.Format)
		assert.Equal(t, "8080", cfg.App.Port)
	})

	t.Run("prefixed variables win over legacy names", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("ADMIN_PASSWORD", "legacy")
		t.Setenv("STORE_ADMIN_PASSWORD", "prefixed")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "prefixed", cfg.Admin.Password)
	})

	t.Run("dynamodb backend when only a table is configured", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("ORDERS_TABLE", "orders")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "dynamodb", cfg.StructuredBackend())
	})

	t.Run("file lock can be disabled", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("STORE_FILESTORE_LOCK", "false")

		cfg, err := Load()
		require.NoError(t, err)
		assert.False(t, cfg.FileStore.Lock)
	})

	t.Run("rejects unknown metrics backend", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("STORE_METRICS_BACKEND", "statsd")

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("rejects unknown timezone", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("APP_TIMEZONE", "Mars/Olympus_Mons")

		_, err := Load()
		assert.Error(t, err)
	})
}

func TestLocation(t *testing.T) {
	cfg := &Config{App: AppConfig{Timezone: "UTC"}}
	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)

	cfg.App.Timezone = "Local"
	loc, err = cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)
}
