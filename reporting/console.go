// Package reporting renders run outcomes for humans: a live per-outcome
// console feed and plain-text summaries for log files.
package reporting

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"

	"github.com/gauntlet-ci/gauntlet/types"
)

// Reporter consumes outcomes as they are emitted.
type Reporter interface {
	Report(o types.Outcome)
}

// ConsoleReporter prints one line per outcome as the run progresses.
// Safe for concurrent use; outcomes from parallel runs arrive interleaved.
type ConsoleReporter struct {
	mu         sync.Mutex
	out        io.Writer
	showOutput bool

	pass   *color.Color
	fail   *color.Color
	cancel *color.Color
	ignore *color.Color
}

// NewConsoleReporter creates a reporter writing to out (stdout when nil).
// When showOutput is set, the captured output of failed cases is dumped
// under the failure line.
func NewConsoleReporter(out io.Writer, showOutput bool) *ConsoleReporter {
	if out == nil {
		out = os.Stdout
	}
	return &ConsoleReporter{
		out:        out,
		showOutput: showOutput,
		pass:       color.New(color.FgGreen),
		fail:       color.New(color.FgRed, color.Bold),
		cancel:     color.New(color.FgYellow),
		ignore:     color.New(color.FgCyan),
	}
}

// Report prints the line for one outcome.
func (c *ConsoleReporter) Report(o types.Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch o.Status {
	case types.StatusSuccess:
		c.pass.Fprintf(c.out, "✓ %s", o.Name)
		fmt.Fprintf(c.out, " (%s)\n", formatDuration(o.Duration))
	case types.StatusFailure:
		c.fail.Fprintf(c.out, "✗ %s", o.Name)
		if o.Err != nil {
			fmt.Fprintf(c.out, " (%s): %s\n", formatDuration(o.Duration), o.Err)
		} else {
			fmt.Fprintf(c.out, " (%s)\n", formatDuration(o.Duration))
		}
		if c.showOutput && o.Output != "" {
			fmt.Fprint(c.out, indent(o.Output, "    "))
		}
	case types.StatusCancelled:
		c.cancel.Fprintf(c.out, "- %s", o.Name)
		fmt.Fprintf(c.out, " %s\n", annotate("cancelled", o.Reason))
	case types.StatusIgnored:
		c.ignore.Fprintf(c.out, "- %s", o.Name)
		fmt.Fprintf(c.out, " %s\n", annotate("ignored", o.Reason))
	default:
		fmt.Fprintf(c.out, "? %s [%s]\n", o.Name, o.Status)
	}
}

// annotate renders "[kind]" or "[kind: reason]".
func annotate(kind, reason string) string {
	if reason == "" {
		return "[" + kind + "]"
	}
	return fmt.Sprintf("[%s: %s]", kind, reason)
}

func indent(s, prefix string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	var b strings.Builder
	for _, line := range lines {
		b.WriteString(prefix)
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}
