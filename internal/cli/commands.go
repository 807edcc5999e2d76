package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"recurring/internal/core"
)

func (a *app) detectCmd() *cobra.Command {
	var daysBack int
	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Run pattern detection for an account",
		Example: `  recurring detect --account acc-1
  recurring detect -a acc-1 --days-back 180`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.requireAccount(); err != nil {
				return err
			}
			if !cmd.Flags().Changed("days-back") {
				daysBack = a.defaults.daysBack
			}
			res, err := a.service.Detect(cmd.Context(), a.account, daysBack)
			if err != nil {
				return err
			}
			if a.jsonOut {
				return printJSON(cmd.OutOrStdout(), res)
			}
			return printDetection(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().IntVar(&daysBack, "days-back", core.DefaultDaysBack, "lookback window in days")
	return cmd
}

func (a *app) listCmd() *cobra.Command {
	var (
		frequency string
		orderBy   string
		active    string
		ignored   string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recurring patterns",
		Example: `  recurring list -a acc-1
  recurring list --frequency monthly --order-by amount
  recurring list --active true --ignored false`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter := core.PatternFilter{AccountID: a.account, OrderBy: orderBy}
			if frequency != "" {
				f, err := core.ParseFrequency(frequency)
				if err != nil {
					return err
				}
				filter.Frequency = f
			}
			var err error
			if filter.IsActive, err = parseTriState("active", active); err != nil {
				return err
			}
			if filter.IsIgnored, err = parseTriState("ignored", ignored); err != nil {
				return err
			}

			patterns, err := a.service.List(cmd.Context(), filter)
			if err != nil {
				return err
			}
			return a.printPatterns(cmd, "Recurring patterns", patterns)
		},
	}
	cmd.Flags().StringVarP(&frequency, "frequency", "f", "", "weekly, bi-weekly, monthly, quarterly or yearly")
	cmd.Flags().StringVarP(&orderBy, "order-by", "o", "", "confidence, next_expected_date, last_occurrence_date, amount or merchant_name")
	cmd.Flags().StringVar(&active, "active", "", "filter by active flag (true or false)")
	cmd.Flags().StringVar(&ignored, "ignored", "", "filter by ignored flag (true or false)")
	return cmd
}

func (a *app) summaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Show recurring costs and top patterns",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sum, err := a.service.Summary(cmd.Context(), a.account)
			if err != nil {
				return err
			}
			if a.jsonOut {
				return printJSON(cmd.OutOrStdout(), sum)
			}
			return printSummary(cmd.OutOrStdout(), sum)
		},
	}
}

func (a *app) overdueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "overdue",
		Short: "List patterns whose next payment is late",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			patterns, err := a.service.Overdue(cmd.Context(), a.account)
			if err != nil {
				return err
			}
			return a.printPatterns(cmd, "Overdue", patterns)
		},
	}
}

func (a *app) upcomingCmd() *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "upcoming",
		Short: "List patterns expected in the next days",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("days") {
				days = a.defaults.upcomingDays
			}
			patterns, err := a.service.Upcoming(cmd.Context(), a.account, days)
			if err != nil {
				return err
			}
			return a.printPatterns(cmd, fmt.Sprintf("Upcoming (%d days)", days), patterns)
		},
	}
	cmd.Flags().IntVarP(&days, "days", "d", core.DefaultUpcomingDays, "horizon in days")
	return cmd
}

func (a *app) showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <pattern-id>",
		Short: "Show one pattern in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.service.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.printPattern(cmd, p)
		},
	}
}

func (a *app) ignoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ignore <pattern-id>",
		Short: "Hide a pattern from summaries and alerts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.service.Ignore(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.printPattern(cmd, p)
		},
	}
}

func (a *app) unignoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unignore <pattern-id>",
		Short: "Undo ignore",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.service.Unignore(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.printPattern(cmd, p)
		},
	}
}

func (a *app) noteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "note <pattern-id> <text...>",
		Short: "Replace the notes of a pattern",
		Long:  "Replace the notes of a pattern. An empty text clears them.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.TrimSpace(strings.Join(args[1:], " "))
			p, err := a.service.AddNote(cmd.Context(), args[0], text)
			if err != nil {
				return err
			}
			return a.printPattern(cmd, p)
		},
	}
}

func (a *app) activeCmd(name string, active bool) *cobra.Command {
	short := "Mark a pattern active"
	if !active {
		short = "Mark a pattern inactive"
	}
	return &cobra.Command{
		Use:   name + " <pattern-id>",
		Short: short,
		Long:  short + ". The next detection run for the account evaluates the pattern again.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.service.SetActive(cmd.Context(), args[0], active)
			if err != nil {
				return err
			}
			return a.printPattern(cmd, p)
		},
	}
}

func parseTriState(name, v string) (*bool, error) {
	switch strings.ToLower(v) {
	case "":
		return nil, nil
	case "true", "yes", "1":
		b := true
		return &b, nil
	case "false", "no", "0":
		b := false
		return &b, nil
	}
	return nil, fmt.Errorf("--%s must be true or false, got %q", name, v)
}
