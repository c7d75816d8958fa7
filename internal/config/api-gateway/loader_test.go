package api_gateway_config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	common "github.com/NordCoder/Heartbeat/internal/config/common"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.HTTPAddr)
	assert.Equal(t, "http://localhost:8080", cfg.Server.PublicURL)
	assert.False(t, cfg.Ingress.NotifyRecovery)
	assert.Empty(t, cfg.Access.Org)
	assert.Empty(t, cfg.Access.Tokens)
	assert.Equal(t, common.DefaultTopic, cfg.Kafka.Topic)
}

func TestLoad_File(t *testing.T) {
	cfg, err := Load(filepath.Join("testdata", "api-gateway.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "https://hb.example.com", cfg.Server.PublicURL)
	assert.True(t, cfg.Ingress.NotifyRecovery)
	assert.Equal(t, "acme", cfg.Access.Org)
	require.Len(t, cfg.Access.Tokens, 1)
	assert.Equal(t, "alice", cfg.Access.Tokens[0].Login)
	assert.Equal(t, []string{"acme", "oss"}, cfg.Access.Tokens[0].Orgs)
}

func TestLoad_RejectsPlainToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gw.yaml")
	require.NoError(t, os.WriteFile(path, []byte("access:\n  tokens:\n    - login: bob\n      hash: hunter2\n"), 0o600))

	_, err := Load(path)
	var cerr common.ErrConfig
	assert.ErrorAs(t, err, &cerr)
}

func TestLoad_EnvToggle(t *testing.T) {
	t.Setenv("INGRESS_NOTIFY_RECOVERY", "true")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.True(t, cfg.Ingress.NotifyRecovery)
}
