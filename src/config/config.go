package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"git.handmade.network/hmn/postmerge/src/oops"
	"github.com/jackc/pgx/v5/tracelog"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// The defaults are suitable for local development against the docker-compose
// database. Deployments override them with a YAML file (HMN_CONFIG) and/or
// environment variables, possibly from a .env file.
var Defaults = HMNConfig{
	Env:         Dev,
	Addr:        "localhost:9001",
	PrivateAddr: "localhost:9002",
	LogLevel:    zerolog.InfoLevel,
	Postgres: PostgresConfig{
		User:     "hmn",
		Password: "password",
		Hostname: "localhost",
		Port:     5432,
		DbName:   "hmn",
		LogLevel: tracelog.LogLevelWarn,
		MinConn:  2,
		MaxConn:  16,
	},
	Merge: MergeConfig{
		Timeout:           30 * time.Second,
		EnqueueAttempts:   3,
		EnqueueBackoffMin: 100 * time.Millisecond,
		EnqueueBackoffMax: 2 * time.Second,
	},
}

var Config HMNConfig

func init() {
	// A missing .env is normal outside of development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		panic(oops.New(err, "failed to load .env file"))
	}

	cfg, err := Load(os.Getenv("HMN_CONFIG"), os.LookupEnv)
	if err != nil {
		panic(err)
	}
	Config = cfg
}

type fileConfig struct {
	HMNConfig        `yaml:",inline"`
	LogLevel         string `yaml:"log_level"`
	PostgresLogLevel string `yaml:"postgres_log_level"`
}

/*
Builds a config from the defaults, then the YAML file at path (if path is
not empty), then the environment. lookupEnv is os.LookupEnv outside of tests.
*/
func Load(path string, lookupEnv func(string) (string, bool)) (HMNConfig, error) {
	cfg := fileConfig{HMNConfig: Defaults}

	if path != "" {
		contents, err := os.ReadFile(path)
		if err != nil {
			return HMNConfig{}, oops.New(err, "failed to read config file %s", path)
		}
		if err := yaml.Unmarshal(contents, &cfg); err != nil {
			return HMNConfig{}, oops.New(err, "failed to parse config file %s", path)
		}
	}

	env := func(name string, apply func(v string) error) error {
		if v, ok := lookupEnv(name); ok && v != "" {
			if err := apply(v); err != nil {
				return oops.New(err, "bad value for %s", name)
			}
		}
		return nil
	}
	str := func(dest *string) func(string) error {
		return func(v string) error { *dest = v; return nil }
	}

	errs := []error{
		env("HMN_ENV", func(v string) error { cfg.Env = Environment(v); return nil }),
		env("HMN_ADDR", str(&cfg.Addr)),
		env("HMN_PRIVATE_ADDR", str(&cfg.PrivateAddr)),
		env("HMN_LOG_LEVEL", str(&cfg.LogLevel)),
		env("HMN_DB_USER", str(&cfg.Postgres.User)),
		env("HMN_DB_PASSWORD", str(&cfg.Postgres.Password)),
		env("HMN_DB_HOST", str(&cfg.Postgres.Hostname)),
		env("HMN_DB_NAME", str(&cfg.Postgres.DbName)),
		env("HMN_DB_LOG_LEVEL", str(&cfg.PostgresLogLevel)),
		env("HMN_DB_PORT", func(v string) (err error) {
			cfg.Postgres.Port, err = strconv.Atoi(v)
			return
		}),
		env("HMN_MERGE_TIMEOUT", func(v string) (err error) {
			cfg.Merge.Timeout, err = time.ParseDuration(v)
			return
		}),
		env("HMN_MERGE_ENQUEUE_ATTEMPTS", func(v string) (err error) {
			cfg.Merge.EnqueueAttempts, err = strconv.Atoi(v)
			return
		}),
	}
	for _, err := range errs {
		if err != nil {
			return HMNConfig{}, err
		}
	}

	if cfg.LogLevel != "" {
		level, err := zerolog.ParseLevel(cfg.LogLevel)
		if err != nil {
			return HMNConfig{}, oops.New(err, "bad log level")
		}
		cfg.HMNConfig.LogLevel = level
	}
	if cfg.PostgresLogLevel != "" {
		level, err := tracelog.LogLevelFromString(cfg.PostgresLogLevel)
		if err != nil {
			return HMNConfig{}, oops.New(err, "bad postgres log level")
		}
		cfg.Postgres.LogLevel = level
	}

	if cfg.Merge.EnqueueAttempts < 1 {
		cfg.Merge.EnqueueAttempts = 1
	}

	return cfg.HMNConfig, nil
}
