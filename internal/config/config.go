// Package config loads the botpanel TOML configuration.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/loykin/botpanel/internal/logger"
	"github.com/loykin/botpanel/pkg/client"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. BOTPANEL_API_URL.
const EnvPrefix = "BOTPANEL"

// Config represents the top-level TOML structure.
type Config struct {
	// EnvFiles are .env files loaded into the process environment before
	// BOTPANEL_* overrides are resolved. Variables already set win.
	EnvFiles  []string        `toml:"env_files" mapstructure:"env_files"`
	API       APIConfig       `toml:"api" mapstructure:"api"`
	Push      PushConfig      `toml:"push" mapstructure:"push"`
	Dashboard DashboardConfig `toml:"dashboard" mapstructure:"dashboard"`
	Log       logger.Config   `toml:"log" mapstructure:"log"`
	Metrics   MetricsConfig   `toml:"metrics" mapstructure:"metrics"`
}

type APIConfig struct {
	URL        string        `toml:"url" mapstructure:"url"`
	Timeout    time.Duration `toml:"timeout" mapstructure:"timeout"`
	Insecure   bool          `toml:"insecure" mapstructure:"insecure"`
	CACert     string        `toml:"ca_cert" mapstructure:"ca_cert"`
	ClientCert string        `toml:"client_cert" mapstructure:"client_cert"`
	ClientKey  string        `toml:"client_key" mapstructure:"client_key"`
	ServerName string        `toml:"server_name" mapstructure:"server_name"`
}

type PushConfig struct {
	URL              string        `toml:"url" mapstructure:"url"`
	HandshakeTimeout time.Duration `toml:"handshake_timeout" mapstructure:"handshake_timeout"`
	Disabled         bool          `toml:"disabled" mapstructure:"disabled"`
}

type DashboardConfig struct {
	PollInterval time.Duration `toml:"poll_interval" mapstructure:"poll_interval"`
	AlertTimeout time.Duration `toml:"alert_timeout" mapstructure:"alert_timeout"`
	LogCapacity  int           `toml:"log_capacity" mapstructure:"log_capacity"`
}

type MetricsConfig struct {
	Enabled bool   `toml:"enabled" mapstructure:"enabled"`
	Listen  string `toml:"listen" mapstructure:"listen"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		API: APIConfig{
			URL:     "http://localhost:5000/api",
			Timeout: 10 * time.Second,
		},
		Push: PushConfig{HandshakeTimeout: 10 * time.Second},
		Dashboard: DashboardConfig{
			PollInterval: 10 * time.Second,
			AlertTimeout: 5 * time.Second,
			LogCapacity:  100,
		},
		Log: logger.Config{
			Level:      "info",
			Format:     logger.FormatText,
			MaxSizeMB:  logger.DefaultMaxSizeMB,
			MaxBackups: logger.DefaultMaxBackups,
			MaxAgeDays: logger.DefaultMaxAgeDays,
		},
		Metrics: MetricsConfig{Listen: ":9090"},
	}
}

// Load reads path (TOML) over the defaults and applies BOTPANEL_* environment
// overrides. An empty path loads defaults and environment only.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v, Default())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	for _, f := range v.GetStringSlice("env_files") {
		if err := applyEnvFile(relativeTo(path, f)); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("env_files", []string{})
	v.SetDefault("api.url", d.API.URL)
	v.SetDefault("api.timeout", d.API.Timeout)
	v.SetDefault("api.insecure", d.API.Insecure)
	v.SetDefault("api.ca_cert", "")
	v.SetDefault("api.client_cert", "")
	v.SetDefault("api.client_key", "")
	v.SetDefault("api.server_name", "")
	v.SetDefault("push.url", "")
	v.SetDefault("push.handshake_timeout", d.Push.HandshakeTimeout)
	v.SetDefault("push.disabled", false)
	v.SetDefault("dashboard.poll_interval", d.Dashboard.PollInterval)
	v.SetDefault("dashboard.alert_timeout", d.Dashboard.AlertTimeout)
	v.SetDefault("dashboard.log_capacity", d.Dashboard.LogCapacity)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", d.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", d.Log.MaxBackups)
	v.SetDefault("log.max_age_days", d.Log.MaxAgeDays)
	v.SetDefault("log.compress", false)
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.listen", d.Metrics.Listen)
}

// Validate checks the configuration for values the dashboard cannot run with.
func (c Config) Validate() error {
	var errs []error
	u, err := url.Parse(c.API.URL)
	switch {
	case err != nil:
		errs = append(errs, fmt.Errorf("api.url: %w", err))
	case u.Scheme != "http" && u.Scheme != "https":
		errs = append(errs, fmt.Errorf("api.url: scheme must be http or https, got %q", u.Scheme))
	case u.Host == "":
		errs = append(errs, errors.New("api.url: missing host"))
	}
	if c.API.Timeout <= 0 {
		errs = append(errs, errors.New("api.timeout must be positive"))
	}
	if (c.API.ClientCert == "") != (c.API.ClientKey == "") {
		errs = append(errs, errors.New("api.client_cert and api.client_key must be set together"))
	}
	if c.Push.URL != "" {
		pu, err := url.Parse(c.Push.URL)
		if err != nil || (pu.Scheme != "ws" && pu.Scheme != "wss") {
			errs = append(errs, fmt.Errorf("push.url: must be a ws:// or wss:// URL, got %q", c.Push.URL))
		}
	}
	if c.Dashboard.PollInterval <= 0 {
		errs = append(errs, errors.New("dashboard.poll_interval must be positive"))
	}
	if c.Dashboard.AlertTimeout <= 0 {
		errs = append(errs, errors.New("dashboard.alert_timeout must be positive"))
	}
	if c.Dashboard.LogCapacity <= 0 {
		errs = append(errs, errors.New("dashboard.log_capacity must be positive"))
	}
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	switch strings.ToLower(c.Log.Format) {
	case "", logger.FormatText, logger.FormatJSON, logger.FormatColor:
	default:
		errs = append(errs, fmt.Errorf("log.format: unknown format %q", c.Log.Format))
	}
	if c.Metrics.Enabled && c.Metrics.Listen == "" {
		errs = append(errs, errors.New("metrics.listen is required when metrics are enabled"))
	}
	return errors.Join(errs...)
}

// PushURL returns the push channel URL. Without an explicit push.url it is the
// API host with ws:// (or wss:// for https) and path /ws.
func (c Config) PushURL() string {
	if c.Push.URL != "" {
		return c.Push.URL
	}
	u, err := url.Parse(c.API.URL)
	if err != nil || u.Host == "" {
		return ""
	}
	scheme := "ws"
	if u.Scheme == "https" {
		scheme = "wss"
	}
	return (&url.URL{Scheme: scheme, Host: u.Host, Path: "/ws"}).String()
}

// ClientConfig maps the [api] section onto the bot API client configuration.
func (c Config) ClientConfig() client.Config {
	cc := client.Config{
		BaseURL:  c.API.URL,
		Timeout:  c.API.Timeout,
		Insecure: c.API.Insecure,
	}
	if c.API.CACert != "" || c.API.ClientCert != "" || c.API.ServerName != "" {
		cc.TLS = &client.TLSClientConfig{
			Enabled:    true,
			CACert:     c.API.CACert,
			ClientCert: c.API.ClientCert,
			ClientKey:  c.API.ClientKey,
			ServerName: c.API.ServerName,
		}
	}
	return cc
}

// LoadEnvFile parses a simple .env file and returns a slice of "KEY=VALUE" entries.
func LoadEnvFile(path string) ([]string, error) {
	m, err := loadEnvFile(path)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(m))
	for k, v := range m {
		out = append(out, k+"="+v)
	}
	return out, nil
}

// applyEnvFile exports the file's variables that are not already set.
func applyEnvFile(path string) error {
	m, err := loadEnvFile(path)
	if err != nil {
		return fmt.Errorf("env file %s: %w", path, err)
	}
	for k, v := range m {
		if _, ok := os.LookupEnv(k); ok {
			continue
		}
		if err := os.Setenv(k, v); err != nil {
			return err
		}
	}
	return nil
}

// loadEnvFile parses KEY=VALUE lines (no export, no quotes). Lines starting with # are ignored.
func loadEnvFile(path string) (map[string]string, error) {
	b, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	m := make(map[string]string)
	for _, line := range strings.Split(string(b), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if i := strings.IndexByte(line, '='); i >= 0 {
			m[strings.TrimSpace(line[:i])] = strings.TrimSpace(line[i+1:])
		}
	}
	return m, nil
}

// relativeTo resolves p against the directory of the config file.
func relativeTo(configPath, p string) string {
	if configPath == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(filepath.Dir(configPath), p)
}
