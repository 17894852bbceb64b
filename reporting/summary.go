package reporting

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/gauntlet-ci/gauntlet/runner"
	"github.com/gauntlet-ci/gauntlet/types"
)

// SummaryFormatter renders a completed run as a plain-text block suitable
// for the run's summary.log and for the console.
type SummaryFormatter struct {
	includeOutcomes bool
	includeDetails  bool
}

// NewSummaryFormatter creates a text formatter. includeOutcomes lists every
// case; includeDetails appends error text to the failed-case list.
func NewSummaryFormatter(includeOutcomes, includeDetails bool) *SummaryFormatter {
	return &SummaryFormatter{
		includeOutcomes: includeOutcomes,
		includeDetails:  includeDetails,
	}
}

// Format renders the summary.
func (f *SummaryFormatter) Format(result *runner.RunResult) string {
	var buf bytes.Buffer

	buf.WriteString("Run Summary\n")
	buf.WriteString(strings.Repeat("=", 50) + "\n\n")

	buf.WriteString(fmt.Sprintf("Suite: %s\n", result.Suite))
	buf.WriteString(fmt.Sprintf("Run ID: %s\n", result.RunID))
	buf.WriteString(fmt.Sprintf("Duration: %s\n", formatDuration(result.Duration)))
	buf.WriteString(fmt.Sprintf("Total Cases: %d\n", result.Stats.Total))
	buf.WriteString(fmt.Sprintf("Passed: %d\n", result.Stats.Passed))
	buf.WriteString(fmt.Sprintf("Failed: %d\n", result.Stats.Failed))
	buf.WriteString(fmt.Sprintf("Cancelled: %d\n", result.Stats.Cancelled))
	buf.WriteString(fmt.Sprintf("Ignored: %d\n", result.Stats.Ignored))
	buf.WriteString(fmt.Sprintf("Pass Rate: %.1f%%\n", passRate(result.Stats)))
	buf.WriteString(fmt.Sprintf("Status: %s\n", strings.ToUpper(string(result.Status))))

	if f.includeOutcomes && len(result.Outcomes) > 0 {
		buf.WriteString("\nCases:\n")
		buf.WriteString(strings.Repeat("-", 30) + "\n")
		for _, o := range result.Outcomes {
			f.writeOutcomeLine(&buf, o)
		}
	}

	if failed := result.FailedOutcomes(); len(failed) > 0 {
		buf.WriteString("\nFailed Cases:\n")
		buf.WriteString(strings.Repeat("-", 20) + "\n")
		for _, o := range failed {
			buf.WriteString(fmt.Sprintf("- %s", o.QualifiedName()))
			if f.includeDetails && o.Err != nil {
				buf.WriteString(fmt.Sprintf(" (Error: %s)", o.Err.Error()))
			}
			buf.WriteString("\n")
		}
	}

	return buf.String()
}

func (f *SummaryFormatter) writeOutcomeLine(buf *bytes.Buffer, o types.Outcome) {
	line := fmt.Sprintf("%s %s", statusChar(o.Status), o.Name)
	if o.Timed {
		line += fmt.Sprintf(" (%s)", formatDuration(o.Duration))
	}
	if o.Reason != "" {
		line += fmt.Sprintf(" [%s]", o.Reason)
	}
	buf.WriteString(line + "\n")
}

func statusChar(status types.Status) string {
	switch status {
	case types.StatusSuccess:
		return "✓"
	case types.StatusFailure:
		return "✗"
	default:
		return "-"
	}
}

func passRate(stats runner.Stats) float64 {
	if stats.Total == 0 {
		return 0
	}
	return float64(stats.Passed) * 100.0 / float64(stats.Total)
}

// formatDuration formats a duration for display
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return d.Truncate(time.Millisecond).String()
}
