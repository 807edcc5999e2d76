package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"recurring/internal/backend"
	applog "recurring/internal/log"
	"recurring/internal/services"
)

// Version is set at build time.
var Version = "0.1.0"

// app carries the state one command invocation shares across its hooks.
type app struct {
	verbose  bool
	jsonOut  bool
	account  string
	backend  *backend.BackendResult
	service  *services.RecurringService
	defaults struct {
		daysBack     int
		upcomingDays int
	}
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "recurring",
		Short: "Detect and manage recurring transactions",
		Long: `Recurring finds subscriptions, bills and salaries in an account's transaction
history and keeps a list of recurring patterns you can review, annotate and ignore.

The data backend is selected by DATA_BACKEND (sqlite, sheets or memory).`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "version" {
				return nil
			}
			return a.open(cmd.Context())
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return a.close()
		},
	}

	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log at debug level to stderr")
	root.PersistentFlags().BoolVar(&a.jsonOut, "json", false, "print JSON instead of tables")
	root.PersistentFlags().StringVarP(&a.account, "account", "a", "", "account id")

	root.AddCommand(
		a.detectCmd(),
		a.listCmd(),
		a.summaryCmd(),
		a.overdueCmd(),
		a.upcomingCmd(),
		a.showCmd(),
		a.ignoreCmd(),
		a.unignoreCmd(),
		a.noteCmd(),
		a.activeCmd("activate", true),
		a.activeCmd("deactivate", false),
	)
	return root
}

// Execute runs the CLI against os.Args.
func Execute() error {
	return NewRootCmd().ExecuteContext(context.Background())
}

func (a *app) open(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	LoadEnvFile()
	cfg, err := LoadConfig()
	if err != nil {
		return err
	}

	level := slog.LevelWarn
	if a.verbose {
		level = slog.LevelDebug
	}
	logger, _ := applog.New(applog.Config{
		Component: applog.ComponentCLI,
		Handler:   slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}),
	})
	applog.SetDefault(logger)

	res, err := OpenBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	a.backend = res
	a.service = NewService(res)
	a.defaults.daysBack = cfg.DefaultDaysBack
	a.defaults.upcomingDays = cfg.UpcomingDays
	return nil
}

func (a *app) close() error {
	if a.backend == nil {
		return nil
	}
	err := a.backend.Close()
	a.backend = nil
	if err != nil {
		return fmt.Errorf("close backend: %w", err)
	}
	return nil
}

func (a *app) requireAccount() error {
	if a.account == "" {
		return fmt.Errorf("--account is required")
	}
	return nil
}
