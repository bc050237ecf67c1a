package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := buildRoot()
	if err := root.ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func buildRoot() *cobra.Command {
	globalFlags := &GlobalFlags{}
	dashboardFlags := &DashboardFlags{}
	statsFlags := &StatsFlags{}
	watchFlags := &WatchFlags{}

	botCommand := command{global: globalFlags}

	root := createRootCommand(globalFlags)
	root.AddCommand(
		createDashboardCommand(botCommand, dashboardFlags),
		createBotCommand(botCommand, "start", "Start the bot's automated operation"),
		createBotCommand(botCommand, "stop", "Stop the bot's automated operation"),
		createBotCommand(botCommand, "post", "Publish a post immediately"),
		createBotCommand(botCommand, "engage", "Run an engagement round immediately"),
		createStatsCommand(botCommand, statsFlags),
		createWatchCommand(botCommand, watchFlags),
	)
	return root
}

// createRootCommand creates the root command with the persistent connection flags
func createRootCommand(flags *GlobalFlags) *cobra.Command {
	root := &cobra.Command{
		Use:   "botpanel",
		Short: "Control panel for a social media bot",
		Long: `Botpanel monitors and controls a running social media bot through its
HTTP control API and realtime push channel.

Examples:
  botpanel dashboard                              # Interactive dashboard
  botpanel start                                  # Start the bot
  botpanel stats --json                           # Current stats as JSON
  botpanel watch --api-url=http://bot:5000/api    # Follow the activity log`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "path to TOML config file (optional)")
	root.PersistentFlags().StringVar(&flags.APIUrl, "api-url", "", "bot API base URL (e.g. http://localhost:5000/api)")
	root.PersistentFlags().DurationVar(&flags.APITimeout, "api-timeout", 0, "request timeout (default from config, 10s)")

	return root
}

// createDashboardCommand creates the interactive dashboard subcommand
func createDashboardCommand(botCommand command, flags *DashboardFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Open the interactive terminal dashboard",
		Long: `Open the interactive terminal dashboard. Stats are polled on a fixed
interval and the activity log follows the bot's push channel.

Keys: s start, x stop, p post, e engage, r refresh, q quit.

Examples:
  botpanel dashboard
  botpanel dashboard --push-url=ws://bot:5000/ws --metrics-listen=:9090`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return botCommand.Dashboard(cmd.Context(), *flags)
		},
	}
	cmd.Flags().StringVar(&flags.PushURL, "push-url", "", "push channel URL (default derived from --api-url)")
	cmd.Flags().BoolVar(&flags.NoPush, "no-push", false, "poll only, do not connect the push channel")
	cmd.Flags().StringVar(&flags.MetricsListen, "metrics-listen", "", "serve Prometheus metrics on this address (e.g. :9090)")
	return cmd
}

// createBotCommand creates a one-shot command subcommand (start, stop, post, engage)
func createBotCommand(botCommand command, name, short string) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: short,
		Long: short + `. Prints the bot's reply and exits non-zero when the
request fails or the bot reports failure.

Examples:
  botpanel ` + name + `
  botpanel ` + name + ` --api-url=http://bot:5000/api`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return botCommand.Run(cmd.Context(), cmd.OutOrStdout(), name)
		},
	}
}

// createStatsCommand creates the stats subcommand
func createStatsCommand(botCommand command, flags *StatsFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show the bot's current stats",
		Long: `Show the bot's status and daily counters.

Examples:
  botpanel stats
  botpanel stats --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return botCommand.Stats(cmd.Context(), cmd.OutOrStdout(), *flags)
		},
	}
	cmd.Flags().BoolVar(&flags.JSON, "json", false, "print the raw stats as JSON")
	return cmd
}

// createWatchCommand creates the watch subcommand
func createWatchCommand(botCommand command, flags *WatchFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow the bot's activity log",
		Long: `Connect to the push channel and print log and status events until
interrupted. Reconnects automatically when the connection drops.

Examples:
  botpanel watch
  botpanel watch --push-url=ws://bot:5000/ws`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return botCommand.Watch(cmd.Context(), cmd.OutOrStdout(), *flags)
		},
	}
	cmd.Flags().StringVar(&flags.PushURL, "push-url", "", "push channel URL (default derived from --api-url)")
	return cmd
}
