package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
storage:
  type: memory
`))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "/smp", cfg.Server.BasePath)
	assert.Equal(t, time.Minute, cfg.Server.CacheTTL)
	assert.Equal(t, 30*time.Second, cfg.SML.Timeout)
	assert.Equal(t, "/metrics", cfg.Metrics.Metrics.Path)
}

func TestLoadExpandsEnvironment(t *testing.T) {
	t.Setenv("TEST_MONGODB_URI", "mongodb://db.internal:27017")

	cfg, err := Load(writeConfig(t, `
storage:
  type: mongodb
  mongodb:
    uri: ${TEST_MONGODB_URI}
`))
	require.NoError(t, err)
	assert.Equal(t, "mongodb://db.internal:27017", cfg.Storage.MongoDB.URI)
	assert.Equal(t, "smp", cfg.Storage.MongoDB.Database)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"mongodb without uri", "storage:\n  type: mongodb\n"},
		{"unknown storage type", "storage:\n  type: etcd\n"},
		{"sml enabled without url", "storage:\n  type: memory\nsml:\n  enabled: true\n  smpId: SMP-1\n"},
		{"sml enabled without smp id", "storage:\n  type: memory\nsml:\n  enabled: true\n  managementUrl: https://sml.example.org\n"},
		{"tls without cert", "storage:\n  type: memory\nserver:\n  tls:\n    enabled: true\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoadFull(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
server:
  port: 9090
  basePath: /publisher
  adminKey: k
  cacheTTL: 30s
storage:
  type: memory
sml:
  enabled: true
  managementUrl: https://sml.example.org/manage
  smpId: SMP-TEST-001
  dnsZone: acc.edelivery.tech.ec.europa.eu
observability:
  metrics:
    enabled: true
    path: /internal/metrics
`))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "/publisher", cfg.Server.BasePath)
	assert.Equal(t, 30*time.Second, cfg.Server.CacheTTL)
	assert.True(t, cfg.SML.Enabled)
	assert.Equal(t, "SMP-TEST-001", cfg.SML.SMPID)
	assert.True(t, cfg.Metrics.Metrics.Enabled)
	assert.Equal(t, "/internal/metrics", cfg.Metrics.Metrics.Path)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
