package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"recurring/internal/core"
)

// Theme holds the color scheme for terminal output.
type Theme struct {
	Title   lipgloss.Color
	Success lipgloss.Color
	Warn    lipgloss.Color
	Hint    lipgloss.Color
	Border  lipgloss.Color
}

var defaultTheme = Theme{
	Title:   lipgloss.Color("#5FAFD7"),
	Success: lipgloss.Color("#00D787"),
	Warn:    lipgloss.Color("#FFAF00"),
	Hint:    lipgloss.Color("#6C6C6C"),
	Border:  lipgloss.Color("#3A3A3A"),
}

func (t Theme) titleStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Title).Bold(true)
}

func (t Theme) successStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Success).Bold(true)
}

func (t Theme) warnStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Warn)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

func (t Theme) labelStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Width(16)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printDetection(w io.Writer, r core.DetectionResult) error {
	_, err := fmt.Fprintf(w, "%s %s: %d created, %d updated, %d deactivated\n",
		defaultTheme.successStyle().Render("Detection complete"),
		r.AccountID, r.PatternsCreated, r.PatternsUpdated, r.PatternsDeactivated)
	return err
}

func (a *app) printPatterns(cmd *cobra.Command, title string, ps []core.RecurringPattern) error {
	w := cmd.OutOrStdout()
	if a.jsonOut {
		if ps == nil {
			ps = []core.RecurringPattern{}
		}
		return printJSON(w, ps)
	}
	if len(ps) == 0 {
		_, err := fmt.Fprintln(w, defaultTheme.hintStyle().Render("No recurring patterns found."))
		return err
	}
	fmt.Fprintf(w, "%s\n", defaultTheme.titleStyle().Render(fmt.Sprintf("%s (%d)", title, len(ps))))
	_, err := fmt.Fprintln(w, patternTable(ps))
	return err
}

func patternTable(ps []core.RecurringPattern) string {
	rows := make([][]string, 0, len(ps))
	for _, p := range ps {
		rows = append(rows, []string{
			p.ID,
			p.MerchantName,
			string(p.Frequency),
			money(p.AverageAmount),
			p.NextExpectedDate.String(),
			strconv.Itoa(p.OccurrenceCount),
			p.ConfidenceScore.StringFixed(2),
			flags(p),
		})
	}
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(defaultTheme.Border)).
		Headers("ID", "MERCHANT", "FREQUENCY", "AMOUNT", "NEXT", "SEEN", "CONF", "FLAGS").
		Rows(rows...).
		String()
}

func flags(p core.RecurringPattern) string {
	var out []string
	if !p.IsActive {
		out = append(out, "inactive")
	}
	if p.IsIgnored {
		out = append(out, "ignored")
	}
	if p.UserNotes != "" {
		out = append(out, "note")
	}
	return strings.Join(out, ",")
}

func (a *app) printPattern(cmd *cobra.Command, p core.RecurringPattern) error {
	w := cmd.OutOrStdout()
	if a.jsonOut {
		return printJSON(w, p)
	}
	label := defaultTheme.labelStyle()
	line := func(k, v string) {
		fmt.Fprintf(w, "%s%s\n", label.Render(k), v)
	}

	fmt.Fprintln(w, defaultTheme.titleStyle().Render(p.MerchantName))
	line("ID", p.ID)
	line("Account", p.AccountID)
	line("Key", p.NormalizedKey)
	line("Description", p.Description)
	line("Frequency", string(p.Frequency))
	line("Amount", money(p.Amount))
	line("Average", money(p.AverageAmount))
	line("Last seen", p.LastOccurrenceDate.String())
	line("Next expected", p.NextExpectedDate.String())
	line("Occurrences", strconv.Itoa(p.OccurrenceCount))
	line("Confidence", p.ConfidenceScore.StringFixed(2))
	line("Active", strconv.FormatBool(p.IsActive))
	line("Ignored", strconv.FormatBool(p.IsIgnored))
	if p.UserNotes != "" {
		line("Notes", p.UserNotes)
	}
	if len(p.SimilarDescriptions) > 0 {
		line("Also seen as", strings.Join(p.SimilarDescriptions, "; "))
	}
	return nil
}

func printSummary(w io.Writer, s core.Summary) error {
	label := defaultTheme.labelStyle()
	fmt.Fprintln(w, defaultTheme.titleStyle().Render("Recurring summary"))
	fmt.Fprintf(w, "%s%d (%d active)\n", label.Render("Patterns"), s.TotalCount, s.ActiveCount)
	fmt.Fprintf(w, "%s%s\n", label.Render("Monthly cost"), money(s.MonthlyRecurringCost))
	fmt.Fprintf(w, "%s%s\n", label.Render("Yearly cost"), money(s.YearlyRecurringCost))
	if s.OverdueCount > 0 {
		fmt.Fprintln(w, defaultTheme.warnStyle().Render(fmt.Sprintf("%d overdue", s.OverdueCount)))
	}

	for _, f := range core.Frequencies() {
		t, ok := s.ByFrequency[f]
		if !ok || t.Count == 0 {
			continue
		}
		fmt.Fprintf(w, "%s%d totalling %s\n", label.Render("  "+string(f)), t.Count, money(t.TotalAmount))
	}

	if len(s.TopRecurring) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, defaultTheme.titleStyle().Render("Top recurring"))
		_, err := fmt.Fprintln(w, patternTable(s.TopRecurring))
		return err
	}
	return nil
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}
