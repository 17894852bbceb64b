package runner

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gauntlet-ci/gauntlet/types"
)

// ProgressIndicator receives run lifecycle events for UI updates
type ProgressIndicator interface {
	StartRun(suite string, totalCases int)
	StartCase(name string)
	CompleteCase(name string, status types.Status)
	CompleteRun(suite string)
}

// noOpProgressIndicator provides a no-op implementation of ProgressIndicator
type noOpProgressIndicator struct{}

// NewNoOpProgressIndicator creates a progress indicator that does nothing
func NewNoOpProgressIndicator() ProgressIndicator {
	return &noOpProgressIndicator{}
}

func (n *noOpProgressIndicator) StartRun(suite string, totalCases int)         {}
func (n *noOpProgressIndicator) StartCase(name string)                         {}
func (n *noOpProgressIndicator) CompleteCase(name string, status types.Status) {}
func (n *noOpProgressIndicator) CompleteRun(suite string)                      {}

// consoleProgressIndicator periodically logs run progress, including the
// longest-running cases, so long parallel runs stay observable.
type consoleProgressIndicator struct {
	logger   *slog.Logger
	interval time.Duration

	mu     sync.RWMutex
	ticker *time.Ticker
	stopCh chan struct{}

	suite          string
	completedCases int
	totalCases     int
	runStartTime   time.Time

	runningCases map[string]time.Time // case name -> start time
}

// NewConsoleProgressIndicator creates a progress indicator that logs
// periodic updates. The reporter goroutine runs between StartRun and
// CompleteRun, so one indicator can serve successive runs.
func NewConsoleProgressIndicator(logger *slog.Logger, updateInterval time.Duration) ProgressIndicator {
	if logger == nil {
		logger = slog.Default()
	}
	if updateInterval == 0 {
		updateInterval = 30 * time.Second
	}

	return &consoleProgressIndicator{
		logger:       logger,
		interval:     updateInterval,
		runningCases: make(map[string]time.Time),
	}
}

func (c *consoleProgressIndicator) StartRun(suite string, totalCases int) {
	c.mu.Lock()
	c.stopReporterLocked()

	c.suite = suite
	c.totalCases = totalCases
	c.completedCases = 0
	c.runStartTime = time.Now()
	c.runningCases = make(map[string]time.Time)

	ticker := time.NewTicker(c.interval)
	stopCh := make(chan struct{})
	c.ticker = ticker
	c.stopCh = stopCh
	c.mu.Unlock()

	go c.progressReporter(ticker, stopCh)

	c.logger.Info("Starting run", "suite", suite, "totalCases", totalCases)
}

func (c *consoleProgressIndicator) StartCase(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.runningCases[name] = time.Now()
	c.logger.Debug("Case started", "case", name, "runningCases", len(c.runningCases))
}

func (c *consoleProgressIndicator) CompleteCase(name string, status types.Status) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.runningCases, name)
	c.completedCases++

	c.logger.Debug("Case completed", "case", name, "status", status,
		"completed", c.completedCases, "total", c.totalCases)
}

func (c *consoleProgressIndicator) CompleteRun(suite string) {
	c.mu.Lock()
	duration := time.Since(c.runStartTime).Truncate(time.Second)
	completed := c.completedCases
	total := c.totalCases
	c.runningCases = make(map[string]time.Time)
	c.stopReporterLocked()
	c.mu.Unlock()

	c.logger.Info("Completed run", "suite", suite, "completed", completed, "total", total, "duration", duration)
}

// progressReporter runs in a goroutine and periodically reports progress
// until its run completes.
func (c *consoleProgressIndicator) progressReporter(ticker *time.Ticker, stopCh chan struct{}) {
	for {
		select {
		case <-ticker.C:
			c.reportProgress()
		case <-stopCh:
			return
		}
	}
}

func (c *consoleProgressIndicator) reportProgress() {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var percentComplete float64
	if c.totalCases > 0 {
		percentComplete = float64(c.completedCases) * 100.0 / float64(c.totalCases)
	}

	c.logger.Info("Progress update",
		"suite", c.suite,
		"completed", c.completedCases,
		"total", c.totalCases,
		"percent", fmt.Sprintf("%.1f%%", percentComplete),
		"numRunning", len(c.runningCases),
		"longestRunning", formatRunningCases(c.runningCases, 3))
}

// stopReporterLocked halts the reporter of the run in progress, if any.
// Callers must hold c.mu.
func (c *consoleProgressIndicator) stopReporterLocked() {
	if c.ticker != nil {
		c.ticker.Stop()
		c.ticker = nil
	}
	if c.stopCh != nil {
		close(c.stopCh)
		c.stopCh = nil
	}
}

// formatRunningCases lists the longest-running cases, capped at maxShow.
func formatRunningCases(runningCases map[string]time.Time, maxShow int) string {
	if len(runningCases) == 0 {
		return ""
	}

	type runningCase struct {
		name     string
		duration time.Duration
	}

	var running []runningCase
	now := time.Now()
	for name, startTime := range runningCases {
		running = append(running, runningCase{name: name, duration: now.Sub(startTime)})
	}

	sort.Slice(running, func(i, j int) bool {
		return running[i].duration > running[j].duration
	})

	if len(running) > maxShow {
		running = running[:maxShow]
	}

	parts := make([]string, 0, len(running))
	for _, rc := range running {
		parts = append(parts, fmt.Sprintf("%s (%s)", rc.name, rc.duration.Truncate(time.Second)))
	}
	return strings.Join(parts, ", ")
}
