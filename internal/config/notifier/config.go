package notifier_config

import (
	"time"

	common "github.com/NordCoder/Heartbeat/internal/config/common"
	kafkainfra "github.com/NordCoder/Heartbeat/internal/repository/kafka"
	pginfra "github.com/NordCoder/Heartbeat/internal/repository/postgres"
)

type KafkaIn struct {
	Brokers       []string `mapstructure:"brokers"`
	Topic         string   `mapstructure:"topic"`
	Partitions    int      `mapstructure:"partitions"`
	GroupID       string   `mapstructure:"group_id"`
	FromBeginning bool     `mapstructure:"from_beginning"`
}

func (k KafkaIn) AsConsumerConfig() *kafkainfra.ConsumerConfig {
	return &kafkainfra.ConsumerConfig{
		Brokers:       k.Brokers,
		GroupID:       k.GroupID,
		Topic:         k.Topic,
		Partitions:    k.Partitions,
		FromBeginning: k.FromBeginning,
	}
}

type SMTP struct {
	Addr       string        `mapstructure:"addr"`
	From       string        `mapstructure:"from"`
	User       string        `mapstructure:"user"`
	Password   string        `mapstructure:"password"`
	UseTLS     bool          `mapstructure:"use_tls"`
	Timeout    time.Duration `mapstructure:"timeout"`
	SubjPrefix string        `mapstructure:"subj_prefix"`
}

type Webhook struct {
	Timeout  time.Duration `mapstructure:"timeout"`
	Attempts int           `mapstructure:"attempts"`
}

type SNS struct {
	Region    string `mapstructure:"region"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
}

type Delivery struct {
	Timeout     time.Duration `mapstructure:"timeout"`
	Concurrency int           `mapstructure:"concurrency"`
}

type Registry struct {
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

type Server struct {
	MetricsAddr   string        `mapstructure:"metrics_addr"`
	BaseURL       string        `mapstructure:"base_url"`
	ShutdownGrace time.Duration `mapstructure:"shutdown_grace"`
}

type Config struct {
	App      common.App     `mapstructure:"app"`
	DB       pginfra.Config `mapstructure:"db"`
	Kafka    KafkaIn        `mapstructure:"kafka"`
	SMTP     SMTP           `mapstructure:"smtp"`
	Webhook  Webhook        `mapstructure:"webhook"`
	SNS      SNS            `mapstructure:"sns"`
	Delivery Delivery       `mapstructure:"delivery"`
	Registry Registry       `mapstructure:"registry"`
	Server   Server         `mapstructure:"server"`
	OTEL     common.OTEL    `mapstructure:"otel"`
	Log      common.Log     `mapstructure:"log"`
}
