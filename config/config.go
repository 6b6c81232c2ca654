package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"commitwatch/filter"
	"commitwatch/models"
	"commitwatch/store"

	"github.com/spf13/viper"
)

const (
	defaultSourceAPIURL = "https://api.github.com"
	defaultPollInterval = 120 * time.Second
	defaultStateFile    = "last_commits.json"
	defaultBoltPath     = "data/cursors.db"
)

// Config holds all configuration for the application
type Config struct {
	Repositories []models.Repository
	WebhookURL   string
	GitHubToken  string
	SourceAPIURL string
	PollInterval time.Duration
	Blacklist    *filter.Blacklist
	LogLevel     string
	State        store.Config
}

// NewConfig creates a new Config instance
func NewConfig() *Config {
	return &Config{}
}

// Load loads configuration from environment variables
func (c *Config) Load() error {
	// Set up Viper
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()

	// Read .env file if it exists
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Required fields
	repos, err := parseRepositories(viper.GetString("REPOSITORIES"))
	if err != nil {
		return err
	}
	c.Repositories = repos

	c.WebhookURL = viper.GetString("DISCORD_WEBHOOK_URL")
	if c.WebhookURL == "" {
		return fmt.Errorf("DISCORD_WEBHOOK_URL is required")
	}

	// Optional fields with defaults
	c.GitHubToken = viper.GetString("GITHUB_TOKEN")

	c.SourceAPIURL = viper.GetString("SOURCE_API_URL")
	if c.SourceAPIURL == "" {
		c.SourceAPIURL = defaultSourceAPIURL
	}

	interval := viper.GetInt("POLL_INTERVAL_SECONDS")
	if interval <= 0 {
		c.PollInterval = defaultPollInterval
	} else {
		c.PollInterval = time.Duration(interval) * time.Second
	}

	blacklist, err := filter.ParseBlacklist(splitList(viper.GetString("BRANCH_BLACKLIST")))
	if err != nil {
		return fmt.Errorf("invalid BRANCH_BLACKLIST: %w", err)
	}
	c.Blacklist = blacklist

	c.LogLevel = viper.GetString("LOG_LEVEL")
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}

	return c.loadState()
}

// loadState reads the state backend selection and its settings.
func (c *Config) loadState() error {
	backend := viper.GetString("STATE_BACKEND")
	if backend == "" {
		backend = store.BackendFile
	}
	c.State.Backend = backend

	switch backend {
	case store.BackendFile:
		c.State.FilePath = viper.GetString("STATE_FILE")
		if c.State.FilePath == "" {
			c.State.FilePath = defaultStateFile
		}
	case store.BackendBolt:
		c.State.BoltPath = viper.GetString("BOLT_PATH")
		if c.State.BoltPath == "" {
			c.State.BoltPath = defaultBoltPath
		}
	case store.BackendRedis:
		c.State.Redis.Addr = viper.GetString("REDIS_ADDR")
		if c.State.Redis.Addr == "" {
			c.State.Redis.Addr = "localhost:6379"
		}
		c.State.Redis.Password = viper.GetString("REDIS_PASSWORD")
		c.State.Redis.Database = viper.GetInt("REDIS_DB")
	case store.BackendPostgres:
		c.State.Postgres = store.PostgresConfig{
			Host:     viper.GetString("POSTGRES_HOST"),
			Port:     viper.GetString("POSTGRES_PORT"),
			User:     viper.GetString("POSTGRES_USER"),
			Password: viper.GetString("POSTGRES_PASSWORD"),
			DBName:   viper.GetString("POSTGRES_DB"),
		}
		if c.State.Postgres.Host == "" {
			return fmt.Errorf("POSTGRES_HOST is required for the postgres state backend")
		}
		if c.State.Postgres.User == "" {
			return fmt.Errorf("POSTGRES_USER is required for the postgres state backend")
		}
		if c.State.Postgres.DBName == "" {
			return fmt.Errorf("POSTGRES_DB is required for the postgres state backend")
		}
		if c.State.Postgres.Port == "" {
			c.State.Postgres.Port = "5432"
		}
	default:
		return fmt.Errorf("%w: %q", store.ErrUnsupportedBackend, backend)
	}

	return nil
}

func parseRepositories(list string) ([]models.Repository, error) {
	entries := splitList(list)
	if len(entries) == 0 {
		return nil, fmt.Errorf("REPOSITORIES is required")
	}

	repos := make([]models.Repository, 0, len(entries))
	for _, entry := range entries {
		repo, err := models.ParseRepository(entry)
		if err != nil {
			return nil, fmt.Errorf("invalid REPOSITORIES entry: %w", err)
		}
		repos = append(repos, repo)
	}
	return repos, nil
}

// splitList splits a comma-separated value, dropping empty entries.
func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
