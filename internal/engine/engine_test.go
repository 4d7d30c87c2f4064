package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cschleiden/orderflow/config"
)

func Test_hostPort(t *testing.T) {
	host, port, err := hostPort("db:3307", 3306)
	require.NoError(t, err)
	require.Equal(t, "db", host)
	require.Equal(t, 3307, port)

	host, port, err = hostPort("db", 3306)
	require.NoError(t, err)
	require.Equal(t, "db", host)
	require.Equal(t, 3306, port)

	_, _, err = hostPort("db:port", 3306)
	require.Error(t, err)
}

func Test_OpenStore_SeedsStock(t *testing.T) {
	ctx := context.Background()

	cfg := config.Default()
	cfg.Store.Stock = map[string]int{"sku-1": 3}

	s, err := OpenStore(ctx, cfg)
	require.NoError(t, err)
	defer s.Close()

	n, err := s.Available(ctx, "sku-1")
	require.NoError(t, err)
	require.Equal(t, 3, n)
}

func Test_OpenBackend_Unknown(t *testing.T) {
	_, err := OpenBackend(config.BackendConfig{Kind: "cassandra"}, Options{})
	require.Error(t, err)

	_, err = OpenBackend(config.BackendConfig{Kind: "mysql", MySQLDSN: "not a dsn"}, Options{})
	require.Error(t, err)
}
