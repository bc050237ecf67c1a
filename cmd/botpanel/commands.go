package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/loykin/botpanel"
	"github.com/loykin/botpanel/internal/dashboard"
	"github.com/loykin/botpanel/internal/logbuf"
	"github.com/loykin/botpanel/internal/logger"
	"github.com/loykin/botpanel/internal/push"
	"github.com/loykin/botpanel/internal/tui"
	"github.com/loykin/botpanel/pkg/client"
)

// command carries the global flags into every subcommand handler
type command struct {
	global *GlobalFlags
	// now stamps watch output; time.Now when nil
	now func() time.Time
}

// config loads the config file (if any) and applies flag overrides.
func (c command) config() (botpanel.Config, error) {
	cfg, err := botpanel.LoadConfig(c.global.ConfigPath)
	if err != nil {
		return botpanel.Config{}, err
	}
	if c.global.APIUrl != "" {
		cfg.API.URL = c.global.APIUrl
	}
	if c.global.APITimeout > 0 {
		cfg.API.Timeout = c.global.APITimeout
	}
	if err := cfg.Validate(); err != nil {
		return botpanel.Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// apiClient builds a bot API client that logs to stderr per the [log] section.
func (c command) apiClient() (*client.Client, botpanel.Config, func(), error) {
	cfg, err := c.config()
	if err != nil {
		return nil, cfg, nil, err
	}
	log, closer, err := logger.New(cfg.Log, os.Stderr)
	if err != nil {
		return nil, cfg, nil, err
	}
	cc := cfg.ClientConfig()
	cc.Logger = log
	return client.New(cc), cfg, func() { _ = closer.Close() }, nil
}

// Run issues one bot command and prints the reply.
func (c command) Run(ctx context.Context, out io.Writer, name string) error {
	api, _, done, err := c.apiClient()
	if err != nil {
		return err
	}
	defer done()

	cmd := client.Command(name)
	if !api.IsReachable(ctx) {
		return fmt.Errorf("bot API not reachable at %s", api.BaseURL())
	}
	res, err := api.Do(ctx, cmd)
	if err != nil {
		return fmt.Errorf("%s failed: %w", name, err)
	}
	msg := res.Summary()
	if !res.Success {
		if msg == "" {
			msg = "bot reported failure"
		}
		return fmt.Errorf("%s failed: %s", name, msg)
	}
	if msg == "" {
		msg = "OK"
	}
	_, _ = fmt.Fprintln(out, msg)
	return nil
}

// Stats prints the projected stats, or the raw snapshot with --json.
func (c command) Stats(ctx context.Context, out io.Writer, f StatsFlags) error {
	api, _, done, err := c.apiClient()
	if err != nil {
		return err
	}
	defer done()

	stats, err := api.Stats(ctx)
	if err != nil {
		return fmt.Errorf("stats failed: %w", err)
	}
	if f.JSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}

	rows := [][2]string{
		{"Status", dashboard.ParseRunStatus(stats.Status).Label()},
		{"Last Post", stats.LastPostOr(dashboard.NeverPosted)},
		{"Posts Today", humanize.Comma(int64(stats.PostsTodayOr(0)))},
		{"Engagements Today", humanize.Comma(int64(stats.EngagementsTodayOr(0)))},
	}
	if stats.ContentPoolSize != nil {
		rows = append(rows, [2]string{"Content Pool", humanize.Comma(int64(*stats.ContentPoolSize))})
	}
	for _, r := range rows {
		_, _ = fmt.Fprintf(out, "%-18s %s\n", r[0]+":", r[1])
	}
	return nil
}

// Watch prints push events as timestamped log lines until ctx is done.
func (c command) Watch(ctx context.Context, out io.Writer, f WatchFlags) error {
	cfg, err := c.config()
	if err != nil {
		return err
	}
	if f.PushURL != "" {
		cfg.Push.URL = f.PushURL
	}
	log, closer, err := logger.New(cfg.Log, os.Stderr)
	if err != nil {
		return err
	}
	defer func() { _ = closer.Close() }()

	tlsConf, err := client.TLSConfig(cfg.ClientConfig())
	if err != nil {
		return fmt.Errorf("tls: %w", err)
	}
	pc := push.New(push.Config{
		URL:              cfg.PushURL(),
		TLS:              tlsConf,
		HandshakeTimeout: cfg.Push.HandshakeTimeout,
		Logger:           log,
	})
	defer pc.Close()

	now := c.now
	if now == nil {
		now = time.Now
	}
	emit := func(msg string) {
		_, _ = fmt.Fprintln(out, logbuf.NewEntry(now(), msg).String())
	}

	err = pc.Run(ctx, push.HandlerFunc(func(ev push.Event) {
		switch ev.Name {
		case push.EventConnect:
			emit("Connected to bot dashboard")
		case push.EventDisconnect:
			emit("Disconnected from server")
		case push.EventLogUpdate:
			if p, err := push.DecodeLogUpdate(ev); err == nil {
				emit(p.Message)
			}
		case push.EventBotStatus:
			if p, err := push.DecodeBotStatus(ev); err == nil {
				emit("Status: " + dashboard.ParseRunStatus(p.Status).Label())
			}
		}
	}))
	if errors.Is(err, context.Canceled) || errors.Is(err, push.ErrClosed) {
		return nil
	}
	return err
}

// Dashboard runs the interactive terminal dashboard.
func (c command) Dashboard(ctx context.Context, f DashboardFlags) error {
	cfg, err := c.config()
	if err != nil {
		return err
	}
	if f.PushURL != "" {
		cfg.Push.URL = f.PushURL
	}
	if f.NoPush {
		cfg.Push.Disabled = true
	}
	if f.MetricsListen != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Listen = f.MetricsListen
	}

	// the terminal belongs to the UI; logs go to [log].file or nowhere
	d, err := botpanel.Open(cfg)
	if err != nil {
		return err
	}
	defer d.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	runErr := make(chan error, 1)
	go func() { runErr <- d.Run(ctx) }()

	uiErr := tui.Run(ctx, d, d.Panel(), tui.Options{
		Endpoint:  d.Client().BaseURL(),
		AltScreen: true,
	})
	cancel()
	if err := <-runErr; err != nil {
		return err
	}
	return uiErr
}
