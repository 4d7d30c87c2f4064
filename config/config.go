// Package config loads the worker and CLI configuration. Values are read from an optional YAML
// file and then overridden by ORDERFLOW_ prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	env "github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const EnvPrefix = "ORDERFLOW_"

type Config struct {
	Service string        `yaml:"service" env:"SERVICE"`
	Backend BackendConfig `yaml:"backend" envPrefix:"BACKEND_"`
	Store   StoreConfig   `yaml:"store"   envPrefix:"STORE_"`
	Log     LogConfig     `yaml:"log"     envPrefix:"LOG_"`
	Tracing TracingConfig `yaml:"tracing" envPrefix:"TRACING_"`
	Worker  WorkerConfig  `yaml:"worker"  envPrefix:"WORKER_"`
	Diag    DiagConfig    `yaml:"diag"    envPrefix:"DIAG_"`
}

// BackendConfig selects the engine backend holding workflow history.
type BackendConfig struct {
	// Kind is one of memory, sqlite, mysql or redis.
	Kind string `yaml:"kind" env:"KIND"`

	// SqlitePath is the database file for the sqlite backend.
	SqlitePath string `yaml:"sqlitePath" env:"SQLITE_PATH"`

	// MySQLDSN is a go-sql-driver DSN, e.g. root:root@tcp(localhost:3306)/orderflow.
	MySQLDSN string `yaml:"mysqlDsn" env:"MYSQL_DSN"`

	Redis RedisConfig `yaml:"redis" envPrefix:"REDIS_"`
}

type RedisConfig struct {
	Addrs     []string      `yaml:"addrs"     env:"ADDRS" envSeparator:","`
	Username  string        `yaml:"username"  env:"USERNAME"`
	Password  string        `yaml:"password"  env:"PASSWORD"`
	DB        int           `yaml:"db"        env:"DB"`
	KeyPrefix string        `yaml:"keyPrefix" env:"KEY_PREFIX"`
	Timeout   time.Duration `yaml:"timeout"   env:"TIMEOUT"`
}

// StoreConfig selects where activities keep payments, stock and reports.
type StoreConfig struct {
	// Kind is memory or redis. The redis store shares the backend's Redis settings.
	Kind string `yaml:"kind" env:"KIND"`

	// Stock is the initial stock per SKU for the memory store.
	Stock map[string]int `yaml:"stock" env:"STOCK"`

	PaymentLimit    int64         `yaml:"paymentLimit"    env:"PAYMENT_LIMIT"`
	NotificationTTL time.Duration `yaml:"notificationTtl" env:"NOTIFICATION_TTL"`
}

type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `yaml:"level" env:"LEVEL"`

	// Format is text, json or pretty.
	Format string `yaml:"format" env:"FORMAT"`
}

type TracingConfig struct {
	// Exporter is none, stdout or otlp.
	Exporter string `yaml:"exporter" env:"EXPORTER"`
	Endpoint string `yaml:"endpoint" env:"ENDPOINT"`
	Insecure bool   `yaml:"insecure" env:"INSECURE"`
}

type WorkerConfig struct {
	WorkflowPollers int `yaml:"workflowPollers" env:"WORKFLOW_POLLERS"`
	ActivityPollers int `yaml:"activityPollers" env:"ACTIVITY_POLLERS"`

	MaxParallelActivityTasks int `yaml:"maxParallelActivityTasks" env:"MAX_PARALLEL_ACTIVITY_TASKS"`

	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" env:"SHUTDOWN_TIMEOUT"`
}

type DiagConfig struct {
	// Addr is the listen address of the diagnostics UI, empty disables it.
	Addr string `yaml:"addr" env:"ADDR"`
}

func Default() *Config {
	return &Config{
		Service: "orderflow",
		Backend: BackendConfig{
			Kind:       "sqlite",
			SqlitePath: "orderflow.sqlite",
			Redis: RedisConfig{
				Addrs:     []string{"localhost:6379"},
				KeyPrefix: "orderflow:",
				Timeout:   30 * time.Second,
			},
		},
		Store: StoreConfig{
			Kind:            "memory",
			Stock:           map[string]int{"default": 100},
			PaymentLimit:    1_000_000,
			NotificationTTL: time.Hour,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Tracing: TracingConfig{
			Exporter: "none",
		},
		Worker: WorkerConfig{
			WorkflowPollers:          2,
			ActivityPollers:          2,
			MaxParallelActivityTasks: 16,
			ShutdownTimeout:          30 * time.Second,
		},
		Diag: DiagConfig{
			Addr: ":8080",
		},
	}
}

// Load returns the default configuration overridden by the YAML file at path, if any, and by
// the environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	switch c.Backend.Kind {
	case "memory", "sqlite", "mysql", "redis":
	default:
		errs = append(errs, fmt.Errorf("unknown backend %q", c.Backend.Kind))
	}

	if c.Backend.Kind == "mysql" && c.Backend.MySQLDSN == "" {
		errs = append(errs, errors.New("mysql backend requires a DSN"))
	}

	switch c.Store.Kind {
	case "memory", "redis":
	default:
		errs = append(errs, fmt.Errorf("unknown store %q", c.Store.Kind))
	}

	if (c.Backend.Kind == "redis" || c.Store.Kind == "redis") && len(c.Backend.Redis.Addrs) == 0 {
		errs = append(errs, errors.New("redis requires at least one address"))
	}

	switch c.Log.Format {
	case "text", "json", "pretty":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Log.Format))
	}

	switch c.Tracing.Exporter {
	case "none", "stdout", "otlp":
	default:
		errs = append(errs, fmt.Errorf("unknown trace exporter %q", c.Tracing.Exporter))
	}

	return errors.Join(errs...)
}
