package notifier_config

import (
	common "github.com/NordCoder/Heartbeat/internal/config/common"
)

func Load(path string) (*Config, error) {
	v := common.NewViper(path, "notifier")

	v.SetDefault("kafka.group_id", "notifier")
	v.SetDefault("kafka.from_beginning", false)

	v.SetDefault("smtp.addr", "localhost:1025")
	v.SetDefault("smtp.from", "noreply@heartbeat.local")
	v.SetDefault("smtp.user", "")
	v.SetDefault("smtp.password", "")
	v.SetDefault("smtp.use_tls", false)
	v.SetDefault("smtp.timeout", "5s")
	v.SetDefault("smtp.subj_prefix", "[Heartbeat]")

	v.SetDefault("webhook.timeout", "5s")
	v.SetDefault("webhook.attempts", 3)

	v.SetDefault("sns.region", "us-east-1")
	v.SetDefault("sns.endpoint", "")
	v.SetDefault("sns.access_key", "")
	v.SetDefault("sns.secret_key", "")

	v.SetDefault("delivery.timeout", "10s")
	v.SetDefault("delivery.concurrency", 8)

	v.SetDefault("registry.cache_ttl", "30s")

	v.SetDefault("server.metrics_addr", ":8084")
	v.SetDefault("server.base_url", "http://localhost:8080")
	v.SetDefault("server.shutdown_grace", "15s")

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
	switch {
	case c.DB.DSN == "":
		return common.ErrConfig("db.dsn is empty")
	case len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "" || c.Kafka.GroupID == "":
		return common.ErrConfig("kafka.brokers, kafka.topic and kafka.group_id are required")
	case c.Delivery.Timeout <= 0:
		return common.ErrConfig("delivery.timeout must be positive")
	case c.Delivery.Concurrency <= 0:
		return common.ErrConfig("delivery.concurrency must be positive")
	case c.Registry.CacheTTL < 0:
		return common.ErrConfig("registry.cache_ttl must not be negative")
	case c.Webhook.Attempts <= 0:
		return common.ErrConfig("webhook.attempts must be positive")
	}
	return nil
}
