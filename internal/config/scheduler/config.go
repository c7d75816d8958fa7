package scheduler_config

import (
	"time"

	common "github.com/NordCoder/Heartbeat/internal/config/common"
	pginfra "github.com/NordCoder/Heartbeat/internal/repository/postgres"
)

// MaxTick bounds the sweep period so a failure is noticed well inside the
// grace window.
const MaxTick = 150 * time.Second

type SchedCfg struct {
	Tick        time.Duration `mapstructure:"tick"`
	Workers     int           `mapstructure:"workers"`
	MetricsAddr string        `mapstructure:"metrics_addr"`
}

type Config struct {
	App    common.App     `mapstructure:"app"`
	DB     pginfra.Config `mapstructure:"db"`
	Kafka  common.Kafka   `mapstructure:"kafka"`
	Sched  SchedCfg       `mapstructure:"sched"`
	Outbox common.Outbox  `mapstructure:"outbox"`
	OTEL   common.OTEL    `mapstructure:"otel"`
	Log    common.Log     `mapstructure:"log"`
}
