package notifier_config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	common "github.com/NordCoder/Heartbeat/internal/config/common"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, common.DefaultTopic, cfg.Kafka.Topic)
	assert.Equal(t, "notifier", cfg.Kafka.GroupID)
	assert.Equal(t, 10*time.Second, cfg.Delivery.Timeout)
	assert.Equal(t, 8, cfg.Delivery.Concurrency)
	assert.Equal(t, 30*time.Second, cfg.Registry.CacheTTL)
	assert.Equal(t, 15*time.Second, cfg.Server.ShutdownGrace)
	assert.Equal(t, "heartbeat/notifier", cfg.Log.AsLoggerConfig(cfg.App).App)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DELIVERY_CONCURRENCY", "2")
	t.Setenv("KAFKA_GROUP_ID", "notifier-b")
	t.Setenv("SNS_ENDPOINT", "http://localstack:4566")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Delivery.Concurrency)
	assert.Equal(t, "notifier-b", cfg.Kafka.GroupID)
	assert.Equal(t, "http://localstack:4566", cfg.SNS.Endpoint)
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("DELIVERY_TIMEOUT", "0s")
	_, err := Load("")
	var cerr common.ErrConfig
	assert.ErrorAs(t, err, &cerr)
}
