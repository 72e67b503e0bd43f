package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := writeFile(t, `
HTTP_PORT: 8081
DB_DRIVER: sqlite
SQLITE_PATH: /tmp/jobs.db
KAFKA_BROKERS: ["kafka:9092"]
API_KEY_ADMIN: from-file
`)
	t.Setenv("JOBPORTAL_API_KEY_ADMIN", "from-env")
	t.Setenv("JOBPORTAL_CORS_ORIGINS", "https://a.example,https://b.example")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8081, cfg.HTTPPort)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, "/tmp/jobs.db", cfg.SQLitePath)
	assert.Equal(t, "from-env", cfg.APIKeyAdmin)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.True(t, cfg.KafkaEnabled())
	assert.Equal(t, 9090, cfg.GRPCPort, "unset values get defaults")
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, 5432, cfg.DBPort)
	assert.Equal(t, ":8000", cfg.HTTPAddr())
	assert.Equal(t, ":9090", cfg.GRPCAddr())
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.False(t, cfg.KafkaEnabled())
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		env  map[string]string
	}{
		{name: "bad yaml", body: "HTTP_PORT: [\n"},
		{name: "bad driver", body: "DB_DRIVER: oracle\n"},
		{name: "bad port", body: "HTTP_PORT: 70000\n"},
		{name: "bad env value", body: "", env: map[string]string{"JOBPORTAL_DB_PORT": "five"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(writeFile(t, tt.body))
			assert.Error(t, err)
		})
	}
}
