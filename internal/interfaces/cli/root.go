// Package cli implements the calsync command line interface.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nackswinget/calsync/internal/app"
	"github.com/nackswinget/calsync/internal/application/notify"
	"github.com/nackswinget/calsync/internal/config"
	"github.com/nackswinget/calsync/internal/infrastructure/monitoring/logging"
)

// Build-time variables injected via ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

var configPath string

// NewRootCommand builds the calsync command tree.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "calsync",
		Short:        "Mirror booking portal calendars into iCal feeds and push notifications",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file (default: CALSYNC_* environment)")

	root.AddCommand(
		newServeCommand(),
		newSyncCommand(),
		newLoginCommand(),
		newStatusCommand(),
		newVersionCommand(),
	)
	return root
}

// Execute runs the CLI, exiting non-zero on error.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.Load(configPath)
	}
	return config.LoadFromEnv()
}

func buildApp() (*app.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		return nil, err
	}
	logging.SetDefault(logger)
	return app.Build(cfg, logger)
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and, when configured, the periodic sync schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if configPath != "" {
				// Hot reload covers the process-default logger; components
				// keep the logger they were wired with.
				config.Watch(configPath, func(next *config.Config) {
					l, lerr := logging.NewLogger(next.Log)
					if lerr != nil {
						return
					}
					logging.SetDefault(l)
					l.Info("configuration reloaded", logging.String("log_level", next.Log.Level))
				})
			}

			if a.Scheduler != nil {
				a.Scheduler.Start()
				defer a.Scheduler.Stop()
			}

			errCh := make(chan error, 1)
			go func() { errCh <- a.Server.Start() }()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			select {
			case err := <-errCh:
				return err
			case sig := <-sigCh:
				a.Logger.Info("received signal", logging.String("signal", sig.String()))
				return a.Server.Stop(context.Background())
			}
		},
	}
}

func newSyncCommand() *cobra.Command {
	var (
		lean  bool
		orgID string
	)
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one reconciliation pass and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if orgID == "" {
				orgID = a.Config.Sync.OrgID
			}
			report, err := a.Runner.Run(cmd.Context(), orgID, lean)
			if err != nil {
				return err
			}
			for _, r := range report.Calendars {
				fmt.Fprintln(cmd.OutOrStdout(), r.String())
			}
			if failed := report.Failed(); len(failed) > 0 {
				return fmt.Errorf("%d of %d calendars failed", len(failed), len(report.Calendars))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&lean, "lean", false, "reuse the stored session and calendar list")
	cmd.Flags().StringVar(&orgID, "org", "", "organization id (default: sync.org_id from config)")
	return cmd
}

func newLoginCommand() *cobra.Command {
	var orgID string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to the portal and store a fresh session",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if orgID == "" {
				orgID = a.Config.Sync.OrgID
			}
			sess, err := a.Portal.Login(cmd.Context(), orgID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stored session with %d cookies for org %s\n",
				len(sess.Cookies), orgID)
			return nil
		},
	}
	cmd.Flags().StringVar(&orgID, "org", "", "organization id (default: sync.org_id from config)")
	return cmd
}

func newStatusCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the persisted state of every known calendar",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			defer a.Close()

			records, err := a.Store.All(cmd.Context(), a.Config.Sync.OrgID)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(records)
			}
			now := a.Clock.Now()
			for _, md := range records {
				fmt.Fprintf(cmd.OutOrStdout(), "%-30s %4d events, cursor %-10s updated %s\n",
					md.CalendarName, md.Size, md.LastNotifiedEventID.String(),
					notify.UpdatedAgo(now, md.UpdatedAt))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit raw JSON records")
	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "calsync %s (commit %s, built %s)\n", Version, GitCommit, BuildDate)
		},
	}
}
