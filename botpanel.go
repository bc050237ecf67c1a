// Package botpanel wires the bot dashboard: API client, push channel,
// scheduler, display panel and controller.
package botpanel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/loykin/botpanel/internal/config"
	"github.com/loykin/botpanel/internal/dashboard"
	"github.com/loykin/botpanel/internal/logger"
	"github.com/loykin/botpanel/internal/metrics"
	"github.com/loykin/botpanel/internal/push"
	"github.com/loykin/botpanel/internal/schedule"
	"github.com/loykin/botpanel/pkg/client"
	"github.com/prometheus/client_golang/prometheus"
)

// Re-export core types for external consumers.

type Config = config.Config

type RunStatus = dashboard.RunStatus

type Panel = dashboard.Panel

type Controller = dashboard.Controller

type Action = dashboard.Action

// DefaultConfig returns the built-in configuration.
func DefaultConfig() Config { return config.Default() }

// LoadConfig reads and validates a TOML configuration file.
func LoadConfig(path string) (Config, error) {
	c, err := config.Load(path)
	if err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return c, nil
}

// Options are optional overrides for Open.
type Options struct {
	// LogOutput receives logs when no log file is configured. Nil discards them.
	LogOutput io.Writer
	// Panel is rendered into; a full panel is created when nil.
	Panel *Panel
}

// Dashboard is a running dashboard instance.
type Dashboard struct {
	cfg       Config
	logger    *slog.Logger
	logCloser io.Closer
	client    *client.Client
	push      *push.Client
	sched     *schedule.Realtime
	panel     *Panel
	ctl       *Controller
}

// Open builds a dashboard from cfg. Nothing talks to the bot until Run.
func Open(cfg Config, opts ...Options) (*Dashboard, error) {
	var o Options
	if len(opts) > 0 {
		o = opts[0]
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	log, closer, err := logger.New(cfg.Log, o.LogOutput)
	if err != nil {
		return nil, err
	}

	cc := cfg.ClientConfig()
	cc.Logger = log
	tlsConf, err := client.TLSConfig(cc)
	if err != nil {
		_ = closer.Close()
		return nil, fmt.Errorf("tls: %w", err)
	}

	d := &Dashboard{
		cfg:       cfg,
		logger:    log,
		logCloser: closer,
		client:    client.New(cc),
		sched:     schedule.NewRealtime(log),
		panel:     o.Panel,
	}
	if d.panel == nil {
		d.panel = dashboard.NewPanel()
	}
	if !cfg.Push.Disabled {
		d.push = push.New(push.Config{
			URL:              cfg.PushURL(),
			TLS:              tlsConf,
			HandshakeTimeout: cfg.Push.HandshakeTimeout,
			Logger:           log.With("component", "push"),
		})
	}

	d.ctl, err = dashboard.New(dashboard.Options{
		API:          d.client,
		Surface:      d.panel,
		Scheduler:    d.sched,
		Logger:       log.With("component", "dashboard"),
		PollInterval: cfg.Dashboard.PollInterval,
		AlertTimeout: cfg.Dashboard.AlertTimeout,
		LogCapacity:  cfg.Dashboard.LogCapacity,
	})
	if err != nil {
		d.Close()
		return nil, err
	}
	return d, nil
}

func (d *Dashboard) Panel() *Panel           { return d.panel }
func (d *Dashboard) Controller() *Controller { return d.ctl }
func (d *Dashboard) Client() *client.Client  { return d.client }
func (d *Dashboard) Logger() *slog.Logger    { return d.logger }
func (d *Dashboard) Config() Config          { return d.cfg }
func (d *Dashboard) PushConnected() bool     { return d.push != nil && d.push.Connected() }
func (d *Dashboard) Dispatch(ctx context.Context, a Action) error {
	return d.ctl.Dispatch(ctx, a)
}

// Run polls stats and follows the push channel until ctx is done. When metrics
// are enabled it also serves /metrics on the configured address.
func (d *Dashboard) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	if d.cfg.Metrics.Enabled {
		if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
			return fmt.Errorf("register metrics: %w", err)
		}
		go func() { errCh <- ServeMetrics(ctx, d.cfg.Metrics.Listen) }()
	}

	d.logger.Info("dashboard started", "api", d.client.BaseURL(), "push", d.cfg.PushURL())
	task := d.ctl.StartPolling(ctx)
	defer task.Cancel()

	if d.push != nil {
		go func() {
			err := d.push.Run(ctx, d.ctl)
			if errors.Is(err, context.Canceled) || errors.Is(err, push.ErrClosed) {
				err = nil
			}
			errCh <- err
		}()
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		if err != nil {
			return err
		}
		<-ctx.Done()
		return nil
	}
}

// Close stops the push channel and scheduler and releases the log file.
func (d *Dashboard) Close() {
	if d.push != nil {
		d.push.Close()
	}
	if d.sched != nil {
		<-d.sched.Stop().Done()
	}
	if d.logCloser != nil {
		_ = d.logCloser.Close()
	}
}

// Metrics helpers (public facade)

func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }

// ServeMetrics serves /metrics on addr until ctx is done.
func ServeMetrics(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
