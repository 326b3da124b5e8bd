package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "configs"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "configs", name), []byte(content), 0o644))
}

func TestLoadExpandsEnvPlaceholders(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.yaml", `
app:
  name: muse-chat-api
  env: ${APP_ENV:development}
server:
  http:
    port: ${HTTP_PORT:8080}
    read_timeout: 30s
database:
  postgres:
    password: ${POSTGRES_PASSWORD:fallback}
`)
	t.Chdir(dir)
	t.Setenv("APP_ENV", "production")
	t.Setenv("POSTGRES_PASSWORD", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "muse-chat-api", cfg.App.Name)
	assert.Equal(t, "production", cfg.App.Env)
	assert.Equal(t, 8080, cfg.Server.HTTP.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.HTTP.ReadTimeout)
	assert.Equal(t, "secret", cfg.Database.Postgres.Password)
}

func TestLoadAppliesDefaultsWhenEnvUnset(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.yaml", `
app:
  env: ${APP_ENV:development}
recommend:
  weights_path: ${RECOMMEND_WEIGHTS_PATH:data/recommend_weights.json}
`)
	t.Chdir(dir)
	t.Setenv("APP_ENV", "development")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.App.Env)
	assert.Equal(t, "data/recommend_weights.json", cfg.Recommend.WeightsPath)
	// viper-level fallbacks fill sections the file omits
	assert.Equal(t, 10, cfg.Pipeline.TopK)
	assert.Equal(t, 16, cfg.Recommend.EmbeddingDim)
	assert.Equal(t, "json", cfg.Observability.Logging.Format)
}

func TestLoadMergesEnvironmentOverlay(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.yaml", `
app:
  name: muse-chat-api
observability:
  logging:
    level: info
`)
	writeConfig(t, dir, "config.staging.yaml", `
observability:
  logging:
    level: debug
`)
	t.Chdir(dir)
	t.Setenv("APP_ENV", "staging")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "muse-chat-api", cfg.App.Name)
	assert.Equal(t, "debug", cfg.Observability.Logging.Level)
}

func TestLoadMissingBaseConfigFails(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("APP_ENV", "development")

	_, err := Load()
	assert.Error(t, err)
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("EXPAND_TEST_VAR", "value")

	assert.Equal(t, "value", expandEnv("${EXPAND_TEST_VAR:other}"))
	assert.Equal(t, "fallback", expandEnv("${EXPAND_TEST_UNSET:fallback}"))
	assert.Equal(t, "", expandEnv("${EXPAND_TEST_UNSET:}"))
	// no default: left untouched so misconfiguration is visible
	assert.Equal(t, "${EXPAND_TEST_UNSET}", expandEnv("${EXPAND_TEST_UNSET}"))
	assert.Equal(t, "plain", expandEnv("plain"))
}
