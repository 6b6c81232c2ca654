package config

import (
	"testing"
	"time"

	"commitwatch/filter"
	"commitwatch/models"
	"commitwatch/store"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// loadConfig resets viper state and loads a Config from the given environment
func loadConfig(t *testing.T, env map[string]string) (*Config, error) {
	t.Helper()
	viper.Reset()
	for k, v := range env {
		t.Setenv(k, v)
	}

	cfg := NewConfig()
	err := cfg.Load()
	return cfg, err
}

func requiredEnv() map[string]string {
	return map[string]string{
		"REPOSITORIES":        "acme/widgets",
		"DISCORD_WEBHOOK_URL": "https://discord.example/webhook",
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := loadConfig(t, requiredEnv())
	require.NoError(t, err)

	assert.Equal(t, []models.Repository{{Owner: "acme", Name: "widgets"}}, cfg.Repositories)
	assert.Equal(t, "https://discord.example/webhook", cfg.WebhookURL)
	assert.Empty(t, cfg.GitHubToken)
	assert.Equal(t, "https://api.github.com", cfg.SourceAPIURL)
	assert.Equal(t, 120*time.Second, cfg.PollInterval)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 0, cfg.Blacklist.Size())
	assert.Equal(t, store.BackendFile, cfg.State.Backend)
	assert.Equal(t, "last_commits.json", cfg.State.FilePath)
}

func TestLoadFullConfig(t *testing.T) {
	env := requiredEnv()
	env["REPOSITORIES"] = "acme/widgets, acme/gadgets"
	env["GITHUB_TOKEN"] = "test-token"
	env["SOURCE_API_URL"] = "https://git.example.com/api/v3"
	env["POLL_INTERVAL_SECONDS"] = "30"
	env["BRANCH_BLACKLIST"] = "release/*, acme/widgets:docs"
	env["LOG_LEVEL"] = "debug"
	env["STATE_BACKEND"] = "bolt"
	env["BOLT_PATH"] = "state/cursors.db"

	cfg, err := loadConfig(t, env)
	require.NoError(t, err)

	assert.Equal(t, []models.Repository{
		{Owner: "acme", Name: "widgets"},
		{Owner: "acme", Name: "gadgets"},
	}, cfg.Repositories)
	assert.Equal(t, "test-token", cfg.GitHubToken)
	assert.Equal(t, "https://git.example.com/api/v3", cfg.SourceAPIURL)
	assert.Equal(t, 30*time.Second, cfg.PollInterval)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 2, cfg.Blacklist.Size())
	assert.True(t, cfg.Blacklist.Excluded("acme/gadgets", "release/1.0"))
	assert.True(t, cfg.Blacklist.Excluded("acme/widgets", "docs"))
	assert.False(t, cfg.Blacklist.Excluded("acme/gadgets", "docs"))
	assert.Equal(t, store.BackendBolt, cfg.State.Backend)
	assert.Equal(t, "state/cursors.db", cfg.State.BoltPath)
}

func TestLoadMissingRepositories(t *testing.T) {
	_, err := loadConfig(t, map[string]string{
		"DISCORD_WEBHOOK_URL": "https://discord.example/webhook",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REPOSITORIES")
}

func TestLoadMissingWebhookURL(t *testing.T) {
	_, err := loadConfig(t, map[string]string{
		"REPOSITORIES": "acme/widgets",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DISCORD_WEBHOOK_URL")
}

func TestLoadMalformedRepository(t *testing.T) {
	env := requiredEnv()
	env["REPOSITORIES"] = "acme/widgets,not-a-repo"

	_, err := loadConfig(t, env)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrInvalidRepository)
}

func TestLoadMalformedBlacklist(t *testing.T) {
	env := requiredEnv()
	env["BRANCH_BLACKLIST"] = "acme:release/*"

	_, err := loadConfig(t, env)
	require.Error(t, err)
	assert.ErrorIs(t, err, filter.ErrMalformedEntry)
}

func TestLoadNegativePollIntervalUsesDefault(t *testing.T) {
	env := requiredEnv()
	env["POLL_INTERVAL_SECONDS"] = "-5"

	cfg, err := loadConfig(t, env)
	require.NoError(t, err)
	assert.Equal(t, 120*time.Second, cfg.PollInterval)
}

func TestLoadRedisBackend(t *testing.T) {
	env := requiredEnv()
	env["STATE_BACKEND"] = "redis"
	env["REDIS_ADDR"] = "redis.example:6379"
	env["REDIS_PASSWORD"] = "secret"
	env["REDIS_DB"] = "2"

	cfg, err := loadConfig(t, env)
	require.NoError(t, err)
	assert.Equal(t, store.BackendRedis, cfg.State.Backend)
	assert.Equal(t, "redis.example:6379", cfg.State.Redis.Addr)
	assert.Equal(t, "secret", cfg.State.Redis.Password)
	assert.Equal(t, 2, cfg.State.Redis.Database)
}

func TestLoadPostgresBackend(t *testing.T) {
	t.Run("missing host", func(t *testing.T) {
		env := requiredEnv()
		env["STATE_BACKEND"] = "postgres"

		_, err := loadConfig(t, env)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "POSTGRES_HOST")
	})

	t.Run("port defaults", func(t *testing.T) {
		env := requiredEnv()
		env["STATE_BACKEND"] = "postgres"
		env["POSTGRES_HOST"] = "db.example"
		env["POSTGRES_USER"] = "watcher"
		env["POSTGRES_DB"] = "commitwatch"

		cfg, err := loadConfig(t, env)
		require.NoError(t, err)
		assert.Equal(t, "5432", cfg.State.Postgres.Port)
	})
}

func TestLoadUnknownBackend(t *testing.T) {
	env := requiredEnv()
	env["STATE_BACKEND"] = "etcd"

	_, err := loadConfig(t, env)
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrUnsupportedBackend)
}
