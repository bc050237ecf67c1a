package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTOML(t *testing.T, data string) string {
	t.Helper()
	file := filepath.Join(t.TempDir(), "botpanel.toml")
	if err := os.WriteFile(file, []byte(data), 0o644); err != nil {
		t.Fatalf("write toml: %v", err)
	}
	return file
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.API.URL != "http://localhost:5000/api" || cfg.API.Timeout != 10*time.Second {
		t.Fatalf("unexpected api defaults: %+v", cfg.API)
	}
	if cfg.Dashboard.PollInterval != 10*time.Second || cfg.Dashboard.AlertTimeout != 5*time.Second || cfg.Dashboard.LogCapacity != 100 {
		t.Fatalf("unexpected dashboard defaults: %+v", cfg.Dashboard)
	}
	if cfg.Log.MaxSizeMB != 10 || cfg.Log.MaxBackups != 3 || cfg.Log.MaxAgeDays != 7 {
		t.Fatalf("unexpected log defaults: %+v", cfg.Log)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestLoad_Full(t *testing.T) {
	file := writeTOML(t, `
[api]
url = "https://bot.example.com/api"
timeout = "3s"
server_name = "bot.example.com"

[push]
handshake_timeout = "2s"

[dashboard]
poll_interval = "30s"
alert_timeout = "8s"
log_capacity = 250

[log]
level = "debug"
format = "json"
file = "/var/log/botpanel.log"
max_size_mb = 50
compress = true

[metrics]
enabled = true
listen = "127.0.0.1:9191"
`)
	cfg, err := Load(file)
	require.NoError(t, err)

	assert.Equal(t, "https://bot.example.com/api", cfg.API.URL)
	assert.Equal(t, 3*time.Second, cfg.API.Timeout)
	assert.Equal(t, 2*time.Second, cfg.Push.HandshakeTimeout)
	assert.Equal(t, 30*time.Second, cfg.Dashboard.PollInterval)
	assert.Equal(t, 8*time.Second, cfg.Dashboard.AlertTimeout)
	assert.Equal(t, 250, cfg.Dashboard.LogCapacity)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "/var/log/botpanel.log", cfg.Log.File)
	assert.Equal(t, 50, cfg.Log.MaxSizeMB)
	assert.Equal(t, 3, cfg.Log.MaxBackups, "unset keys keep defaults")
	assert.True(t, cfg.Log.Compress)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "127.0.0.1:9191", cfg.Metrics.Listen)
	assert.Equal(t, "wss://bot.example.com/ws", cfg.PushURL())
	require.NoError(t, cfg.Validate())

	cc := cfg.ClientConfig()
	require.NotNil(t, cc.TLS)
	assert.True(t, cc.TLS.Enabled)
	assert.Equal(t, "bot.example.com", cc.TLS.ServerName)
}

func TestLoad_EnvOverrides(t *testing.T) {
	file := writeTOML(t, "[api]\nurl = \"http://file:5000/api\"\n")
	t.Setenv("BOTPANEL_API_URL", "http://env:6000/api")
	t.Setenv("BOTPANEL_DASHBOARD_POLL_INTERVAL", "2s")

	cfg, err := Load(file)
	require.NoError(t, err)
	assert.Equal(t, "http://env:6000/api", cfg.API.URL)
	assert.Equal(t, 2*time.Second, cfg.Dashboard.PollInterval)
	assert.Equal(t, "ws://env:6000/ws", cfg.PushURL())
}

func TestLoad_EnvFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "bot.env"), []byte("# secrets\nBOTPANEL_API_TIMEOUT=7s\nBOTPANEL_TEST_ONLY=from-file\n"), 0o644); err != nil {
		t.Fatalf("write env: %v", err)
	}
	file := filepath.Join(dir, "botpanel.toml")
	if err := os.WriteFile(file, []byte("env_files = [\"bot.env\"]\n"), 0o644); err != nil {
		t.Fatalf("write toml: %v", err)
	}
	t.Setenv("BOTPANEL_TEST_ONLY", "from-env")
	t.Cleanup(func() { _ = os.Unsetenv("BOTPANEL_API_TIMEOUT") })

	cfg, err := Load(file)
	require.NoError(t, err)
	assert.Equal(t, 7*time.Second, cfg.API.Timeout)
	assert.Equal(t, "from-env", os.Getenv("BOTPANEL_TEST_ONLY"), "existing variables win")
}

func TestLoad_Errors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
	if _, err := Load(writeTOML(t, "[api\nurl=")); err == nil {
		t.Fatalf("expected error for malformed toml")
	}
	if _, err := Load(writeTOML(t, "[dashboard]\npoll_interval = \"soon\"\n")); err == nil {
		t.Fatalf("expected error for bad duration")
	}
	if _, err := Load(writeTOML(t, "env_files = [\"nope.env\"]\n")); err == nil {
		t.Fatalf("expected error for missing env file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad scheme", func(c *Config) { c.API.URL = "ftp://bot/api" }, "scheme must be http or https"},
		{"no host", func(c *Config) { c.API.URL = "http:///api" }, "missing host"},
		{"zero timeout", func(c *Config) { c.API.Timeout = 0 }, "api.timeout"},
		{"cert without key", func(c *Config) { c.API.ClientCert = "c.pem" }, "client_key"},
		{"push scheme", func(c *Config) { c.Push.URL = "http://bot/ws" }, "push.url"},
		{"poll", func(c *Config) { c.Dashboard.PollInterval = -time.Second }, "poll_interval"},
		{"alert", func(c *Config) { c.Dashboard.AlertTimeout = 0 }, "alert_timeout"},
		{"capacity", func(c *Config) { c.Dashboard.LogCapacity = 0 }, "log_capacity"},
		{"level", func(c *Config) { c.Log.Level = "chatty" }, "log.level"},
		{"format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"metrics", func(c *Config) { c.Metrics.Enabled = true; c.Metrics.Listen = "" }, "metrics.listen"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate_JoinsErrors(t *testing.T) {
	cfg := Default()
	cfg.API.Timeout = 0
	cfg.Dashboard.LogCapacity = 0
	err := cfg.Validate()
	require.Error(t, err)
	assert.Equal(t, 2, len(strings.Split(err.Error(), "\n")))
}

func TestPushURL(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "ws://localhost:5000/ws", cfg.PushURL())

	cfg.Push.URL = "ws://elsewhere:7000/events"
	assert.Equal(t, "ws://elsewhere:7000/events", cfg.PushURL())

	cfg = Default()
	cfg.API.URL = "::not a url"
	assert.Equal(t, "", cfg.PushURL())
}

func TestClientConfig_Plain(t *testing.T) {
	cfg := Default()
	cfg.API.Insecure = true
	cc := cfg.ClientConfig()
	assert.Nil(t, cc.TLS)
	assert.True(t, cc.Insecure)
	assert.Equal(t, cfg.API.URL, cc.BaseURL)
	assert.Equal(t, cfg.API.Timeout, cc.Timeout)
}

func TestLoadEnvFile(t *testing.T) {
	dotenv := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(dotenv, []byte("A=1\n#comment\nB = two\n\nnot-a-pair\n"), 0o644); err != nil {
		t.Fatalf("write env: %v", err)
	}
	pairs, err := LoadEnvFile(dotenv)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"A=1", "B=two"}, pairs)
}
