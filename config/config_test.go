package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func Test_Load_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, "sqlite", cfg.Backend.Kind)
	require.Equal(t, "memory", cfg.Store.Kind)
	require.Equal(t, 100, cfg.Store.Stock["default"])
}

func Test_Load_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orderflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
backend:
  kind: redis
  redis:
    addrs: ["redis:6379"]
store:
  kind: redis
log:
  level: debug
  format: json
worker:
  shutdownTimeout: 5s
`), 0o600))

	t.Setenv("ORDERFLOW_LOG_LEVEL", "warn")
	t.Setenv("ORDERFLOW_STORE_PAYMENT_LIMIT", "500")

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "redis", cfg.Backend.Kind)
	require.Equal(t, []string{"redis:6379"}, cfg.Backend.Redis.Addrs)
	require.Equal(t, "json", cfg.Log.Format)
	require.Equal(t, "warn", cfg.Log.Level)
	require.Equal(t, int64(500), cfg.Store.PaymentLimit)
	require.Equal(t, 5*time.Second, cfg.Worker.ShutdownTimeout)

	// Not overridden
	require.Equal(t, "orderflow:", cfg.Backend.Redis.KeyPrefix)
}

func Test_Load_Invalid(t *testing.T) {
	t.Setenv("ORDERFLOW_BACKEND_KIND", "mysql")
	t.Setenv("ORDERFLOW_LOG_FORMAT", "xml")

	_, err := Load("")
	require.ErrorContains(t, err, "mysql backend requires a DSN")
	require.ErrorContains(t, err, `unknown log format "xml"`)
}
