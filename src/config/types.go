package config

import (
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/tracelog"
	"github.com/rs/zerolog"
)

type Environment string

const (
	Live Environment = "live"
	Beta Environment = "beta"
	Dev  Environment = "dev"
)

type HMNConfig struct {
	Env         Environment    `yaml:"env"`
	Addr        string         `yaml:"addr"`
	PrivateAddr string         `yaml:"private_addr"`
	LogLevel    zerolog.Level  `yaml:"-"`
	Postgres    PostgresConfig `yaml:"postgres"`
	Merge       MergeConfig    `yaml:"merge"`
}

type PostgresConfig struct {
	User     string            `yaml:"user"`
	Password string            `yaml:"password"`
	Hostname string            `yaml:"hostname"`
	Port     int               `yaml:"port"`
	DbName   string            `yaml:"dbname"`
	LogLevel tracelog.LogLevel `yaml:"-"`
	MinConn  int32             `yaml:"min_conn"`
	MaxConn  int32             `yaml:"max_conn"`
}

func (info PostgresConfig) DSN() string {
	return fmt.Sprintf("user=%s password=%s host=%s port=%d dbname=%s", info.User, info.Password, info.Hostname, info.Port, info.DbName)
}

type MergeConfig struct {
	// Upper bound on a single merge request, including the wait for row locks.
	Timeout time.Duration `yaml:"timeout"`

	// How many times the search index job is offered to the queue after a
	// merge commits, before the failure is logged and dropped.
	EnqueueAttempts   int           `yaml:"enqueue_attempts"`
	EnqueueBackoffMin time.Duration `yaml:"enqueue_backoff_min"`
	EnqueueBackoffMax time.Duration `yaml:"enqueue_backoff_max"`

	// Used by `admin mergeposts` when neither --alert nor --noalert is given.
	AlertByDefault bool `yaml:"alert_by_default"`
}
