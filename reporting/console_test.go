package reporting

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"

	"github.com/gauntlet-ci/gauntlet/types"
)

func plainReporter(buf *bytes.Buffer, showOutput bool) *ConsoleReporter {
	return NewConsoleReporter(buf, showOutput)
}

func TestConsoleReporterLines(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = prev }()

	tests := []struct {
		name     string
		outcome  types.Outcome
		contains []string
	}{
		{
			name: "success line",
			outcome: types.Outcome{
				Name:     "ok",
				Status:   types.StatusSuccess,
				Duration: 5 * time.Millisecond,
				Timed:    true,
			},
			contains: []string{"✓ ok (5ms)"},
		},
		{
			name: "failure line with error",
			outcome: types.Outcome{
				Name:     "bad",
				Status:   types.StatusFailure,
				Err:      errors.New("assertion failed"),
				Duration: 1500 * time.Millisecond,
				Timed:    true,
			},
			contains: []string{"✗ bad (1.5s): assertion failed"},
		},
		{
			name: "cancelled line with reason",
			outcome: types.Outcome{
				Name:   "gone",
				Status: types.StatusCancelled,
				Reason: "env down",
			},
			contains: []string{"- gone [cancelled: env down]"},
		},
		{
			name: "ignored line without reason",
			outcome: types.Outcome{
				Name:   "meh",
				Status: types.StatusIgnored,
			},
			contains: []string{"- meh [ignored]"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			r := plainReporter(&buf, false)
			r.Report(tt.outcome)
			for _, want := range tt.contains {
				assert.Contains(t, buf.String(), want)
			}
		})
	}
}

func TestConsoleReporterDumpsFailureOutput(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = prev }()

	var buf bytes.Buffer
	r := plainReporter(&buf, true)
	r.Report(types.Outcome{
		Name:   "bad",
		Status: types.StatusFailure,
		Err:    errors.New("nope"),
		Output: "step one\nstep two\n",
		Timed:  true,
	})

	out := buf.String()
	assert.Contains(t, out, "    step one\n")
	assert.Contains(t, out, "    step two\n")
}

func TestConsoleReporterSkipsOutputWhenDisabled(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = prev }()

	var buf bytes.Buffer
	r := plainReporter(&buf, false)
	r.Report(types.Outcome{
		Name:   "bad",
		Status: types.StatusFailure,
		Err:    errors.New("nope"),
		Output: "hidden detail",
		Timed:  true,
	})

	assert.NotContains(t, buf.String(), "hidden detail")
}

func TestAnnotate(t *testing.T) {
	assert.Equal(t, "[cancelled]", annotate("cancelled", ""))
	assert.Equal(t, "[ignored: later]", annotate("ignored", "later"))
}

func TestIndent(t *testing.T) {
	assert.Equal(t, "  a\n  b\n", indent("a\nb\n", "  "))
	assert.Equal(t, "  a\n", indent("a", "  "))
}
