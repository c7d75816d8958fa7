package scheduler_config

import (
	"fmt"

	common "github.com/NordCoder/Heartbeat/internal/config/common"
)

func Load(path string) (*Config, error) {
	v := common.NewViper(path, "scheduler")
	common.SetOutboxDefaults(v)

	v.SetDefault("sched.tick", "1m")
	v.SetDefault("sched.workers", 8)
	v.SetDefault("sched.metrics_addr", ":8082")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.DB.DSN == "" {
		return common.ErrConfig("db.dsn is empty")
	}
	if c.Sched.Tick <= 0 || c.Sched.Tick > MaxTick {
		return common.ErrConfig(fmt.Sprintf("sched.tick must be in (0, %s], got %s", MaxTick, c.Sched.Tick))
	}
	if c.Sched.Workers <= 0 {
		return common.ErrConfig("sched.workers must be positive")
	}
	if len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "" {
		return common.ErrConfig("kafka.brokers and kafka.topic are required")
	}
	return c.Outbox.Validate()
}
