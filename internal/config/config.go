package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	JWT        JWTConfig        `yaml:"jwt"`
	Jira       JiraConfig       `yaml:"jira"`
	Slack      SlackConfig      `yaml:"slack"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Redis      RedisConfig      `yaml:"redis"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port string `yaml:"port"`
	Mode string `yaml:"mode"` // debug, release, test
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite, mysql, postgres
	DSN    string `yaml:"dsn"`
}

type JWTConfig struct {
	Secret     string `yaml:"secret"`
	ExpireHour int    `yaml:"expire_hour"`
}

// JiraConfig holds the tracker identity and the label to issue-type mapping.
// IssueTypes must cover every canonical label; this is validated at startup.
type JiraConfig struct {
	BaseURL         string            `yaml:"base_url"`
	Email           string            `yaml:"email"`
	APIToken        string            `yaml:"api_token"`
	ProjectID       string            `yaml:"project_id"`
	IssueTypes      map[string]string `yaml:"issue_types"` // label name -> issue type id
	SyncIntervalMin int               `yaml:"sync_interval_min"`
}

type SlackConfig struct {
	BotToken string `yaml:"bot_token"`
	BaseURL  string `yaml:"base_url"` // overridable for tests
}

// ClassifierConfig configures the two inference tiers. Both tiers are
// optional; a tier with no model/credential is skipped at runtime.
type ClassifierConfig struct {
	Local  LocalTierConfig  `yaml:"local"`
	Remote RemoteTierConfig `yaml:"remote"`
}

type LocalTierConfig struct {
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

type RemoteTierConfig struct {
	Provider   string `yaml:"provider"` // openai, anthropic, gemini
	BaseURL    string `yaml:"base_url"`
	APIKey     string `yaml:"api_key"`
	Model      string `yaml:"model"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

// RedisConfig for optional async task queue
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config.yaml"
	}

	var cfg *Config

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg = DefaultConfig()
	} else {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, err
		}

		var fileCfg Config
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return nil, err
		}
		cfg = &fileCfg
	}

	cfg.overrideFromEnv()
	return cfg, nil
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: "8080",
			Mode: "debug",
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "ticketflow.db",
		},
		JWT: JWTConfig{
			Secret:     "ticketflow-secret-key-change-in-production",
			ExpireHour: 24,
		},
		Jira: JiraConfig{
			IssueTypes:      map[string]string{},
			SyncIntervalMin: 10,
		},
		Slack: SlackConfig{
			BaseURL: "https://slack.com/api",
		},
		Classifier: ClassifierConfig{
			Local: LocalTierConfig{
				BaseURL:    "http://localhost:11434",
				TimeoutSec: 20,
			},
			Remote: RemoteTierConfig{
				Provider:   "openai",
				Model:      "gpt-4o-mini",
				TimeoutSec: 30,
			},
		},
		Redis: RedisConfig{
			Enabled: false,
			Addr:    "localhost:6379",
			DB:      0,
		},
	}
}

func (c *Config) overrideFromEnv() {
	if host := os.Getenv("SERVER_HOST"); host != "" {
		c.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		c.Server.Port = port
	}
	if mode := os.Getenv("SERVER_MODE"); mode != "" {
		c.Server.Mode = mode
	}
	if driver := os.Getenv("DB_DRIVER"); driver != "" {
		c.Database.Driver = driver
	}
	if dsn := os.Getenv("DB_DSN"); dsn != "" {
		c.Database.DSN = dsn
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		c.JWT.Secret = secret
	}
	if baseURL := os.Getenv("JIRA_BASE_URL"); baseURL != "" {
		c.Jira.BaseURL = baseURL
	}
	if email := os.Getenv("JIRA_EMAIL"); email != "" {
		c.Jira.Email = email
	}
	if token := os.Getenv("JIRA_API_TOKEN"); token != "" {
		c.Jira.APIToken = token
	}
	if projectID := os.Getenv("JIRA_PROJECT_ID"); projectID != "" {
		c.Jira.ProjectID = projectID
	}
	if token := os.Getenv("SLACK_BOT_TOKEN"); token != "" {
		c.Slack.BotToken = token
	}
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		c.Classifier.Local.BaseURL = baseURL
	}
	if model := os.Getenv("OLLAMA_MODEL"); model != "" {
		c.Classifier.Local.Model = model
	}
	if provider := os.Getenv("CLASSIFIER_PROVIDER"); provider != "" {
		c.Classifier.Remote.Provider = provider
	}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		c.Classifier.Remote.BaseURL = baseURL
	}
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		c.Classifier.Remote.APIKey = apiKey
	}
	if model := os.Getenv("OPENAI_MODEL"); model != "" {
		c.Classifier.Remote.Model = model
	}
	// Redis URL override (format: redis://:password@host:port/db)
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		c.Redis.Enabled = true
		c.parseRedisURL(redisURL)
	}
}

// parseRedisURL parses a Redis URL and sets config values
// Format: redis://:password@host:port/db
func (c *Config) parseRedisURL(redisURL string) {
	url := strings.TrimPrefix(redisURL, "redis://")

	if atIdx := strings.Index(url, "@"); atIdx != -1 {
		authPart := url[:atIdx]
		url = url[atIdx+1:]
		// Password format: :password or user:password
		if colonIdx := strings.Index(authPart, ":"); colonIdx != -1 {
			c.Redis.Password = authPart[colonIdx+1:]
		}
	}

	if slashIdx := strings.LastIndex(url, "/"); slashIdx != -1 {
		dbStr := url[slashIdx+1:]
		url = url[:slashIdx]
		if db, err := strconv.Atoi(dbStr); err == nil {
			c.Redis.DB = db
		}
	}

	c.Redis.Addr = url
}

// Validate checks the configuration required for the service to run at all.
// Classifier tiers are deliberately not checked here: a missing local model or
// remote credential degrades that tier to unavailable at runtime.
func (c *Config) Validate() error {
	if c.Jira.BaseURL == "" {
		return fmt.Errorf("jira.base_url is required")
	}
	if c.Jira.Email == "" || c.Jira.APIToken == "" {
		return fmt.Errorf("jira.email and jira.api_token are required")
	}
	if c.Jira.ProjectID == "" {
		return fmt.Errorf("jira.project_id is required")
	}
	if c.Slack.BotToken == "" {
		return fmt.Errorf("slack.bot_token is required")
	}
	return nil
}
