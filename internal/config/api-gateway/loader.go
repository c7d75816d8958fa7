package api_gateway_config

import (
	"fmt"
	"strings"

	common "github.com/NordCoder/Heartbeat/internal/config/common"
)

func Load(path string) (*Config, error) {
	v := common.NewViper(path, "api-gateway")
	common.SetOutboxDefaults(v)

	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("server.grpc_addr", ":9090")
	v.SetDefault("server.public_url", "http://localhost:8080")
	v.SetDefault("server.read_timeout", "5s")
	v.SetDefault("server.write_timeout", "5s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.graceful_timeout", "15s")

	v.SetDefault("ingress.notify_recovery", false)

	v.SetDefault("access.org", "")
	v.SetDefault("access.tokens", []map[string]any{})

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	cfg.Server.PublicURL = strings.TrimRight(cfg.Server.PublicURL, "/")
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.DB.DSN == "" {
		return common.ErrConfig("db.dsn is empty")
	}
	if c.Server.HTTPAddr == "" || c.Server.GRPCAddr == "" {
		return common.ErrConfig("server.http_addr and server.grpc_addr are required")
	}
	if len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "" {
		return common.ErrConfig("kafka.brokers and kafka.topic are required")
	}
	for i, t := range c.Access.Tokens {
		if t.Login == "" || !strings.HasPrefix(t.Hash, "$2") {
			return common.ErrConfig(fmt.Sprintf("access.tokens[%d]: login and a bcrypt hash are required", i))
		}
	}
	return c.Outbox.Validate()
}
