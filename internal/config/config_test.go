package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Server.Port != "8080" {
		t.Errorf("default port = %q, expected %q", cfg.Server.Port, "8080")
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("default driver = %q, expected %q", cfg.Database.Driver, "sqlite")
	}
	if cfg.Classifier.Remote.Provider != "openai" {
		t.Errorf("default remote provider = %q, expected %q", cfg.Classifier.Remote.Provider, "openai")
	}
	if cfg.Classifier.Local.TimeoutSec != 20 {
		t.Errorf("default local timeout = %d, expected 20", cfg.Classifier.Local.TimeoutSec)
	}
	if cfg.Jira.SyncIntervalMin != 10 {
		t.Errorf("default sync interval = %d, expected 10", cfg.Jira.SyncIntervalMin)
	}
	if cfg.Redis.Enabled {
		t.Error("redis should be disabled by default")
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Host = %q, expected default", cfg.Server.Host)
	}
}

func TestLoad_FromFile(t *testing.T) {
	content := `
server:
  port: "9090"
jira:
  base_url: https://example.atlassian.net
  project_id: "10000"
  issue_types:
    Task: "10001"
    Bug: "10004"
classifier:
  local:
    model: llama3
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("Port = %q, expected %q", cfg.Server.Port, "9090")
	}
	if cfg.Jira.BaseURL != "https://example.atlassian.net" {
		t.Errorf("Jira.BaseURL = %q", cfg.Jira.BaseURL)
	}
	if cfg.Jira.IssueTypes["Bug"] != "10004" {
		t.Errorf(`IssueTypes["Bug"] = %q, expected "10004"`, cfg.Jira.IssueTypes["Bug"])
	}
	if cfg.Classifier.Local.Model != "llama3" {
		t.Errorf("local model = %q, expected llama3", cfg.Classifier.Local.Model)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("JIRA_API_TOKEN", "env-token")
	t.Setenv("SLACK_BOT_TOKEN", "xoxb-env")
	t.Setenv("OLLAMA_MODEL", "mistral")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Jira.APIToken != "env-token" {
		t.Errorf("APIToken = %q, expected env override", cfg.Jira.APIToken)
	}
	if cfg.Slack.BotToken != "xoxb-env" {
		t.Errorf("BotToken = %q, expected env override", cfg.Slack.BotToken)
	}
	if cfg.Classifier.Local.Model != "mistral" {
		t.Errorf("local model = %q, expected env override", cfg.Classifier.Local.Model)
	}
}

func TestParseRedisURL(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		addr     string
		password string
		db       int
	}{
		{"plain", "redis://localhost:6379", "localhost:6379", "", 0},
		{"with db", "redis://localhost:6379/2", "localhost:6379", "", 2},
		{"with password", "redis://:secret@redis.internal:6380/1", "redis.internal:6380", "secret", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.parseRedisURL(tt.url)
			if cfg.Redis.Addr != tt.addr {
				t.Errorf("Addr = %q, expected %q", cfg.Redis.Addr, tt.addr)
			}
			if cfg.Redis.Password != tt.password {
				t.Errorf("Password = %q, expected %q", cfg.Redis.Password, tt.password)
			}
			if cfg.Redis.DB != tt.db {
				t.Errorf("DB = %d, expected %d", cfg.Redis.DB, tt.db)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	valid := DefaultConfig()
	valid.Jira.BaseURL = "https://example.atlassian.net"
	valid.Jira.Email = "bot@example.com"
	valid.Jira.APIToken = "token"
	valid.Jira.ProjectID = "10000"
	valid.Slack.BotToken = "xoxb-123"

	if err := valid.Validate(); err != nil {
		t.Errorf("Validate() on complete config returned %v", err)
	}

	missing := DefaultConfig()
	if err := missing.Validate(); err == nil {
		t.Error("Validate() should fail when jira config is missing")
	}

	noSlack := *valid
	noSlack.Slack.BotToken = ""
	if err := noSlack.Validate(); err == nil {
		t.Error("Validate() should fail when slack token is missing")
	}
}
