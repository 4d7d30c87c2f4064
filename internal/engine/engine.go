// Package engine opens the workflow backend and the activity store selected by the configuration.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"

	"github.com/cschleiden/go-workflows/backend"
	mysqlbackend "github.com/cschleiden/go-workflows/backend/mysql"
	redisbackend "github.com/cschleiden/go-workflows/backend/redis"
	"github.com/cschleiden/go-workflows/backend/sqlite"
	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"

	"github.com/cschleiden/orderflow/config"
	"github.com/cschleiden/orderflow/internal/correlation"
	"github.com/cschleiden/orderflow/store"
	"github.com/cschleiden/orderflow/store/memstore"
	"github.com/cschleiden/orderflow/store/redisstore"
)

type Options struct {
	Logger         *slog.Logger
	TracerProvider trace.TracerProvider
}

// OpenBackend returns the backend holding workflow history.
func OpenBackend(cfg config.BackendConfig, o Options) (backend.Backend, error) {
	bopts := []backend.BackendOption{
		backend.WithContextPropagator(&correlation.Propagator{}),
	}

	if o.Logger != nil {
		bopts = append(bopts, backend.WithLogger(o.Logger))
	}

	if o.TracerProvider != nil {
		bopts = append(bopts, backend.WithTracerProvider(o.TracerProvider))
	}

	switch cfg.Kind {
	case "memory":
		return sqlite.NewInMemoryBackend(sqlite.WithBackendOptions(bopts...)), nil

	case "sqlite":
		return sqlite.NewSqliteBackend(cfg.SqlitePath, sqlite.WithBackendOptions(bopts...)), nil

	case "mysql":
		dsn, err := mysqldriver.ParseDSN(cfg.MySQLDSN)
		if err != nil {
			return nil, fmt.Errorf("parsing mysql dsn: %w", err)
		}

		host, port, err := hostPort(dsn.Addr, 3306)
		if err != nil {
			return nil, err
		}

		return mysqlbackend.NewMysqlBackend(host, port, dsn.User, dsn.Passwd, dsn.DBName,
			mysqlbackend.WithBackendOptions(bopts...)), nil

	case "redis":
		b, err := redisbackend.NewRedisBackend(redisClient(cfg.Redis), redisbackend.WithBackendOptions(bopts...))
		if err != nil {
			return nil, fmt.Errorf("creating redis backend: %w", err)
		}

		return b, nil
	}

	return nil, fmt.Errorf("unknown backend %q", cfg.Kind)
}

// OpenStore returns the store used by activities, seeded with the configured stock.
func OpenStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	var s store.Store

	switch cfg.Store.Kind {
	case "memory":
		ms, err := memstore.New()
		if err != nil {
			return nil, err
		}
		s = ms

	case "redis":
		rs, err := redisstore.New(redisClient(cfg.Backend.Redis),
			redisstore.WithKeyPrefix(cfg.Backend.Redis.KeyPrefix),
			redisstore.WithNotificationTTL(cfg.Store.NotificationTTL))
		if err != nil {
			return nil, err
		}
		s = rs

	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Store.Kind)
	}

	for sku, quantity := range cfg.Store.Stock {
		if err := s.SetStock(ctx, sku, quantity); err != nil {
			return nil, errors.Join(fmt.Errorf("seeding stock for %s: %w", sku, err), s.Close())
		}
	}

	return s, nil
}

func redisClient(cfg config.RedisConfig) redis.UniversalClient {
	return redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:        cfg.Addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
	})
}

func hostPort(addr string, defaultPort int) (string, int, error) {
	host, p, err := net.SplitHostPort(addr)
	if err != nil {
		// No port given
		return addr, defaultPort, nil
	}

	port, err := strconv.Atoi(p)
	if err != nil {
		return "", 0, fmt.Errorf("invalid port in %q: %w", addr, err)
	}

	return host, port, nil
}
