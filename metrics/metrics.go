package metrics

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/gauntlet-ci/gauntlet/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	MetricsNamespace = "gauntlet"
)

var (
	Debug                bool = true
	nonAlphanumericRegex      = regexp.MustCompile(`[^a-zA-Z ]+`)

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "errors_total",
		Help:      "Count of errors",
	}, []string{
		"error",
	})

	outcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "outcomes_total",
		Help:      "Count of case outcomes",
	}, []string{
		"suite",
		"run_id",
		"name",
		"status",
	})

	runResults = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_results",
		Help:      "Result of suite runs",
	}, []string{
		"suite",
		"run_id",
		"status",
	})

	runCasesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "run_cases_total",
		Help:      "Total number of cases executed per run",
	}, []string{
		"suite",
		"run_id",
	})

	runCasesPassed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "run_cases_passed",
		Help:      "Number of passed cases per run",
	}, []string{
		"suite",
		"run_id",
	})

	runCasesFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "run_cases_failed",
		Help:      "Number of failed cases per run",
	}, []string{
		"suite",
		"run_id",
	})

	runDuration = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_duration_seconds",
		Help:      "Duration of suite runs",
	}, []string{
		"suite",
		"run_id",
	})
)

// errToLabel tries to make the error string a more valid Prometheus label
func errToLabel(err error) string {
	if err == nil {
		return "nil"
	}
	errClean := nonAlphanumericRegex.ReplaceAllString(err.Error(), "")
	errClean = strings.ReplaceAll(errClean, " ", "_")
	errClean = strings.ReplaceAll(errClean, "__", "_")
	return errClean
}

func RecordError(error string) {
	if Debug {
		slog.Debug("metric inc",
			"m", "errors_total",
			"error", error,
		)
	}
	errorsTotal.WithLabelValues(error).Inc()
}

// RecordErrorDetails concats the error message to the label
// and also tries to clean the label to be a valid Prometheus label
func RecordErrorDetails(label string, err error) {
	if err == nil {
		return
	}
	label = fmt.Sprintf("%s.%s", label, errToLabel(err))
	RecordError(label)
}

func RecordOutcome(suite string, runID string, name string, status types.Status) {
	if !status.Valid() {
		slog.Error("RecordOutcome - invalid status", "status", status)
		return
	}
	if Debug {
		slog.Debug("metric inc",
			"m", "outcomes_total",
			"suite", suite,
			"run_id", runID,
			"case", name,
			"status", status)
	}
	outcomesTotal.WithLabelValues(suite, runID, name, string(status)).Inc()
}

func RecordRun(
	suite string,
	runID string,
	status string,
	total int,
	passed int,
	failed int,
	duration time.Duration,
) {
	runResults.WithLabelValues(suite, runID, status).Set(1)
	runCasesTotal.WithLabelValues(suite, runID).Add(float64(total))
	runCasesPassed.WithLabelValues(suite, runID).Add(float64(passed))
	runCasesFailed.WithLabelValues(suite, runID).Add(float64(failed))
	runDuration.WithLabelValues(suite, runID).Set(duration.Seconds())
}
