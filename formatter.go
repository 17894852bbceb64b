package gauntlet

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/gauntlet-ci/gauntlet/runner"
	"github.com/gauntlet-ci/gauntlet/types"
)

// ResultFormatter is responsible for formatting and displaying run results.
type ResultFormatter interface {
	FormatResults(results []*runner.RunResult) error
}

// ConsoleResultFormatter renders a results table to the console.
type ConsoleResultFormatter struct {
	logger *slog.Logger
	out    io.Writer
}

// NewConsoleResultFormatter creates a new ConsoleResultFormatter writing to
// out (stdout when nil).
func NewConsoleResultFormatter(logger *slog.Logger, out io.Writer) *ConsoleResultFormatter {
	if logger == nil {
		logger = slog.Default()
	}
	if out == nil {
		out = os.Stdout
	}
	return &ConsoleResultFormatter{
		logger: logger,
		out:    out,
	}
}

// FormatResults renders one table covering every suite run: a row per
// suite with its stats, then a row per case in emission order.
func (f *ConsoleResultFormatter) FormatResults(results []*runner.RunResult) error {
	f.logger.Info("Printing results...")

	var totalStats runner.Stats
	var totalDuration time.Duration
	overall := types.StatusSuccess

	t := table.NewWriter()
	t.SetOutputMirror(f.out)

	t.AppendHeader(table.Row{
		"Type", "ID", "Duration", "Cases", "Passed", "Failed", "Cancelled", "Ignored", "Status", "Error",
	})

	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Type", AutoMerge: true},
		{Name: "ID", WidthMax: 50, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Duration", Align: text.AlignRight},
		{Name: "Cases", Align: text.AlignRight},
		{Name: "Passed", Align: text.AlignRight},
		{Name: "Failed", Align: text.AlignRight},
		{Name: "Cancelled", Align: text.AlignRight},
		{Name: "Ignored", Align: text.AlignRight},
		{Name: "Error", WidthMax: 80, WidthMaxEnforcer: text.WrapSoft},
	})

	for _, result := range results {
		t.AppendRow(table.Row{
			"Suite",
			result.Suite,
			formatDuration(result.Duration),
			"-", // Don't count the suite as a case
			result.Stats.Passed,
			result.Stats.Failed,
			result.Stats.Cancelled,
			result.Stats.Ignored,
			getResultString(result.Status),
			"",
		})

		for i, o := range result.Outcomes {
			prefix := "├──"
			if i == len(result.Outcomes)-1 {
				prefix = "└──"
			}

			t.AppendRow(table.Row{
				"Case",
				fmt.Sprintf("%s %s", prefix, o.Name),
				formatOutcomeDuration(o),
				"1", // Count actual case
				boolToInt(o.Status == types.StatusSuccess),
				boolToInt(o.Status == types.StatusFailure),
				boolToInt(o.Status == types.StatusCancelled),
				boolToInt(o.Status == types.StatusIgnored),
				getResultString(o.Status),
				extractKeyErrorMessage(o),
			})
		}

		t.AppendSeparator()

		totalStats.Total += result.Stats.Total
		totalStats.Passed += result.Stats.Passed
		totalStats.Failed += result.Stats.Failed
		totalStats.Cancelled += result.Stats.Cancelled
		totalStats.Ignored += result.Stats.Ignored
		totalDuration += result.Duration
		if result.Status == types.StatusFailure {
			overall = types.StatusFailure
		}
	}

	// Update the table style setting based on the overall status
	switch overall {
	case types.StatusSuccess:
		t.SetStyle(table.StyleColoredBlackOnGreenWhite)
	case types.StatusCancelled, types.StatusIgnored:
		t.SetStyle(table.StyleColoredBlackOnYellowWhite)
	default:
		t.SetStyle(table.StyleColoredBlackOnRedWhite)
	}

	t.AppendFooter(table.Row{
		"TOTAL",
		"",
		formatDuration(totalDuration),
		totalStats.Total,
		totalStats.Passed,
		totalStats.Failed,
		totalStats.Cancelled,
		totalStats.Ignored,
		getResultString(overall),
		"",
	})

	t.Render()
	return nil
}

// extractKeyErrorMessage keeps the table readable: reasons for cancelled
// and ignored cases, and the first line of a failure cause capped at 80
// characters.
func extractKeyErrorMessage(o types.Outcome) string {
	switch o.Status {
	case types.StatusCancelled, types.StatusIgnored:
		return o.Reason
	}
	if o.Err == nil {
		return ""
	}

	errStr := o.Err.Error()
	if idx := strings.Index(errStr, "\n"); idx != -1 {
		errStr = errStr[:idx]
	}
	if len(errStr) > 80 {
		errStr = errStr[:70] + "..."
	}
	return errStr
}

// Helper function to convert bool to int
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// getResultString returns a short string representing an outcome status
func getResultString(status types.Status) string {
	switch status {
	case types.StatusSuccess:
		return "✓ pass"
	case types.StatusCancelled:
		return "~ cancelled"
	case types.StatusIgnored:
		return "- ignored"
	default:
		return "✗ fail"
	}
}

// Helper function to format duration to seconds with 1 decimal place
func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%.1fs", d.Seconds())
}

// formatOutcomeDuration renders "-" for cases that never ran.
func formatOutcomeDuration(o types.Outcome) string {
	if !o.Timed {
		return "-"
	}
	return formatDuration(o.Duration)
}
