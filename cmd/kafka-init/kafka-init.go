package main

import (
	"context"
	"flag"
	"os"
	"time"

	"go.uber.org/zap"

	common "github.com/NordCoder/Heartbeat/internal/config/common"
	"github.com/NordCoder/Heartbeat/internal/obs"
	kafkaRepo "github.com/NordCoder/Heartbeat/internal/repository/kafka"
)

// initConfig is the slice of the shared config this one-shot job needs.
type initConfig struct {
	App   common.App   `mapstructure:"app"`
	Log   common.Log   `mapstructure:"log"`
	Kafka common.Kafka `mapstructure:"kafka"`
	Init  struct {
		ReplicationFactor int           `mapstructure:"replication_factor"`
		Timeout           time.Duration `mapstructure:"timeout"`
	} `mapstructure:"init"`
}

func main() {
	cfgPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to yaml config")
	flag.Parse()

	v := common.NewViper(*cfgPath, "kafka-init")
	v.SetDefault("init.replication_factor", 1)
	v.SetDefault("init.timeout", "60s")

	var cfg initConfig
	if err := v.Unmarshal(&cfg); err != nil {
		panic(err)
	}

	l, err := obs.NewLogger(cfg.Log.AsLoggerConfig(cfg.App))
	if err != nil {
		panic(err)
	}
	defer func() { _ = l.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Init.Timeout)
	defer cancel()

	err = kafkaRepo.EnsureTopic(ctx, cfg.Kafka.Brokers, kafkaRepo.TopicSpec{
		Name:              cfg.Kafka.Topic,
		NumPartitions:     cfg.Kafka.Partitions,
		ReplicationFactor: cfg.Init.ReplicationFactor,
		MaxWait:           cfg.Init.Timeout,
	}, l)
	if err != nil {
		l.Fatal("kafka-init failed", zap.String("topic", cfg.Kafka.Topic), zap.Error(err))
	}
	l.Info("kafka-init ok", zap.String("topic", cfg.Kafka.Topic), zap.Strings("brokers", cfg.Kafka.Brokers))
}
