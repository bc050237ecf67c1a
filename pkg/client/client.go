package client

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"
)

// ErrUnexpectedStatus is returned when the server answers with a non-2xx status
// and a body that is not a command result.
var ErrUnexpectedStatus = errors.New("unexpected HTTP status")

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 1 << 20

// Client talks to the bot's control API.
type Client struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// Config holds client configuration
type Config struct {
	BaseURL  string
	Timeout  time.Duration
	Logger   *slog.Logger // Optional logger for client operations
	TLS      *TLSClientConfig
	Insecure bool // Skip TLS verification
}

// TLSClientConfig holds TLS configuration for client
type TLSClientConfig struct {
	Enabled    bool   // Enable TLS
	CACert     string // CA certificate file path
	ClientCert string // Client certificate file
	ClientKey  string // Client private key file
	ServerName string // Server name for verification
	SkipVerify bool   // Skip certificate verification
}

// DefaultConfig returns default client configuration
func DefaultConfig() Config {
	return Config{
		BaseURL: "http://localhost:5000/api",
		Timeout: 10 * time.Second,
	}
}

// New creates a new bot API client
func New(config Config) *Client {
	def := DefaultConfig()
	if config.BaseURL == "" {
		config.BaseURL = def.BaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = def.Timeout
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	transport := &http.Transport{Proxy: http.ProxyFromEnvironment}
	if tlsConfig, err := TLSConfig(config); err != nil {
		config.Logger.Error("TLS setup failed", "error", err)
	} else if tlsConfig != nil {
		transport.TLSClientConfig = tlsConfig
	}

	return &Client{
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		logger:  config.Logger,
		client: &http.Client{
			Timeout:   config.Timeout,
			Transport: transport,
		},
	}
}

// BaseURL returns the API base URL without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// IsReachable reports whether the stats endpoint answers at all.
func (c *Client) IsReachable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/stats", nil)
	if err != nil {
		c.logger.Debug("Failed to create request for reachability check", "error", err)
		return false
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug("Bot API unreachable", "error", err)
		return false
	}
	defer func() { _ = resp.Body.Close() }()

	reachable := resp.StatusCode != http.StatusNotFound
	c.logger.Debug("Bot API reachability check", "reachable", reachable, "status", resp.StatusCode)
	return reachable
}

// Start asks the bot to begin automated operation.
func (c *Client) Start(ctx context.Context) (CommandResult, error) {
	return c.Do(ctx, CommandStart)
}

// Stop asks the bot to halt automated operation.
func (c *Client) Stop(ctx context.Context) (CommandResult, error) {
	return c.Do(ctx, CommandStop)
}

// Post triggers an immediate manual post.
func (c *Client) Post(ctx context.Context) (CommandResult, error) {
	return c.Do(ctx, CommandPost)
}

// Engage triggers an immediate community engagement round.
func (c *Client) Engage(ctx context.Context) (CommandResult, error) {
	return c.Do(ctx, CommandEngage)
}

// Do issues a command. A result with Success=false is an operation failure and is
// returned with a nil error; transport and decoding problems are returned as errors.
func (c *Client) Do(ctx context.Context, cmd Command) (CommandResult, error) {
	c.logger.Debug("Issuing bot command", "command", cmd)

	body, status, err := c.doRequest(ctx, http.MethodPost, c.baseURL+cmd.Path())
	if err != nil {
		return CommandResult{}, err
	}

	var result CommandResult
	if err := json.Unmarshal(body, &result); err != nil {
		if status/100 != 2 {
			return CommandResult{}, fmt.Errorf("%w: HTTP %d", ErrUnexpectedStatus, status)
		}
		c.logger.Error("Failed to decode command result", "command", cmd, "error", err)
		return CommandResult{}, fmt.Errorf("decode %s result: %w", cmd, err)
	}
	if status/100 != 2 && result.Success {
		// a 5xx claiming success is not trustworthy
		return CommandResult{}, fmt.Errorf("%w: HTTP %d", ErrUnexpectedStatus, status)
	}

	c.logger.Debug("Bot command completed", "command", cmd, "success", result.Success)
	return result, nil
}

// Stats fetches the current stats snapshot.
func (c *Client) Stats(ctx context.Context) (Stats, error) {
	body, status, err := c.doRequest(ctx, http.MethodGet, c.baseURL+"/stats")
	if err != nil {
		return Stats{}, err
	}
	if status/100 != 2 {
		return Stats{}, fmt.Errorf("%w: HTTP %d", ErrUnexpectedStatus, status)
	}
	var stats Stats
	if err := json.Unmarshal(body, &stats); err != nil {
		return Stats{}, fmt.Errorf("decode stats: %w", err)
	}
	return stats, nil
}

// TLSConfig builds the TLS settings shared by the HTTP client and the push channel.
// It returns nil when TLS is neither enabled nor insecure.
func TLSConfig(config Config) (*tls.Config, error) {
	if !(config.TLS != nil && config.TLS.Enabled || config.Insecure) {
		return nil, nil
	}
	return setupClientTLS(config)
}

// setupClientTLS configures TLS settings for HTTP client
func setupClientTLS(config Config) (*tls.Config, error) {
	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}

	if config.Insecure {
		tlsConfig.InsecureSkipVerify = true
		return tlsConfig, nil
	}

	if config.TLS != nil {
		if config.TLS.SkipVerify {
			tlsConfig.InsecureSkipVerify = true
		}
		if config.TLS.ServerName != "" {
			tlsConfig.ServerName = config.TLS.ServerName
		}
		if config.TLS.CACert != "" {
			if err := loadCACert(tlsConfig, config.TLS.CACert); err != nil {
				return nil, fmt.Errorf("failed to load CA certificate: %w", err)
			}
		}
		if config.TLS.ClientCert != "" && config.TLS.ClientKey != "" {
			cert, err := tls.LoadX509KeyPair(config.TLS.ClientCert, config.TLS.ClientKey)
			if err != nil {
				return nil, fmt.Errorf("failed to load client certificate: %w", err)
			}
			tlsConfig.Certificates = []tls.Certificate{cert}
		}
	}

	return tlsConfig, nil
}

// loadCACert loads CA certificate from file and adds it to TLS config
func loadCACert(tlsConfig *tls.Config, caCertPath string) error {
	caCert, err := os.ReadFile(caCertPath)
	if err != nil {
		return fmt.Errorf("failed to read CA certificate file: %w", err)
	}

	caCertPool := x509.NewCertPool()
	if !caCertPool.AppendCertsFromPEM(caCert) {
		return fmt.Errorf("failed to parse CA certificate")
	}

	tlsConfig.RootCAs = caCertPool
	return nil
}

// doRequest performs the HTTP round trip and returns the raw body and status.
func (c *Client) doRequest(ctx context.Context, method, url string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Error("HTTP request failed", "error", err, "url", url)
		return nil, 0, fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		c.logger.Error("API request failed", "status", resp.StatusCode, "url", url)
	}
	return body, resp.StatusCode, nil
}
