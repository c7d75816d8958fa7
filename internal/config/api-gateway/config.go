package api_gateway_config

import (
	"time"

	common "github.com/NordCoder/Heartbeat/internal/config/common"
	pg "github.com/NordCoder/Heartbeat/internal/repository/postgres"
)

type Server struct {
	HTTPAddr        string        `mapstructure:"http_addr"`
	GRPCAddr        string        `mapstructure:"grpc_addr"`
	PublicURL       string        `mapstructure:"public_url"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	GracefulTimeout time.Duration `mapstructure:"graceful_timeout"`
}

type Ingress struct {
	NotifyRecovery bool `mapstructure:"notify_recovery"`
}

// Token is one operator credential. Hash is a bcrypt hash of the bearer
// token; the plain token never appears in configuration.
type Token struct {
	Login string   `mapstructure:"login"`
	Hash  string   `mapstructure:"hash"`
	Orgs  []string `mapstructure:"orgs"`
}

// Access guards the admin API. An empty Org admits every authenticated
// operator.
type Access struct {
	Org    string  `mapstructure:"org"`
	Tokens []Token `mapstructure:"tokens"`
}

type Config struct {
	App     common.App    `mapstructure:"app"`
	Server  Server        `mapstructure:"server"`
	DB      pg.Config     `mapstructure:"db"`
	Kafka   common.Kafka  `mapstructure:"kafka"`
	Outbox  common.Outbox `mapstructure:"outbox"`
	Ingress Ingress       `mapstructure:"ingress"`
	Access  Access        `mapstructure:"access"`
	OTEL    common.OTEL   `mapstructure:"otel"`
	Log     common.Log    `mapstructure:"log"`
}
