package logging

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/acarl005/stripansi"

	"github.com/gauntlet-ci/gauntlet/types"
)

// RunDirectoryPrefix is the prefix for per-run log directories.
const RunDirectoryPrefix = "run-"

// OutcomeSink is an interface for different ways of consuming case outcomes
type OutcomeSink interface {
	// Consume processes a single outcome
	Consume(o *types.Outcome, runID string) error
	// Complete is called when all outcomes have been consumed
	Complete(runID string) error
}

// MultiSink fans outcomes out to several sinks, stopping at the first error.
type MultiSink struct {
	Sinks []OutcomeSink
}

func (m *MultiSink) Consume(o *types.Outcome, runID string) error {
	for _, s := range m.Sinks {
		if err := s.Consume(o, runID); err != nil {
			return fmt.Errorf("error in sink: %w", err)
		}
	}
	return nil
}

func (m *MultiSink) Complete(runID string) error {
	for _, s := range m.Sinks {
		if err := s.Complete(runID); err != nil {
			return fmt.Errorf("error completing sink: %w", err)
		}
	}
	return nil
}

// CleanOutput strips ANSI escape sequences from captured case output so
// log files stay readable in plain viewers.
func CleanOutput(s string) string {
	return stripansi.Strip(s)
}

// FileLogger writes case outcomes to per-run log files
type FileLogger struct {
	baseDir      string // base directory for all runs
	logDir       string // directory for the current run
	failedDir    string // directory holding one file per failed case
	summaryFile  string
	allLogsFile  string
	mu           sync.Mutex
	sinks        *MultiSink
	asyncWriters map[string]*AsyncFile
	runID        string
}

// AsyncFile provides non-blocking file writing capabilities
type AsyncFile struct {
	file    *os.File
	queue   chan []byte
	wg      sync.WaitGroup
	mu      sync.Mutex
	stopped bool
}

// NewAsyncFile creates a new AsyncFile for non-blocking writes
func NewAsyncFile(path string) (*AsyncFile, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create file %s: %w", path, err)
	}

	af := &AsyncFile{
		file:  file,
		queue: make(chan []byte, 100),
	}

	af.wg.Add(1)
	go af.processQueue()

	return af, nil
}

// Write queues data to be written asynchronously
func (af *AsyncFile) Write(data []byte) error {
	af.mu.Lock()
	defer af.mu.Unlock()

	if af.stopped {
		return fmt.Errorf("async file is closed")
	}

	dataCopy := make([]byte, len(data))
	copy(dataCopy, data)

	af.queue <- dataCopy
	return nil
}

func (af *AsyncFile) processQueue() {
	defer af.wg.Done()

	for data := range af.queue {
		if _, err := af.file.Write(data); err != nil {
			slog.Error("Error writing to log file", "file", af.file.Name(), "error", err)
		}
	}
}

// Close stops the async writer and closes the file after the queue drains.
func (af *AsyncFile) Close() error {
	af.mu.Lock()
	if !af.stopped {
		af.stopped = true
		close(af.queue)
	}
	af.mu.Unlock()

	af.wg.Wait()
	return af.file.Close()
}

// NewFileLogger creates a FileLogger rooted at baseDir for the given run.
// It registers the combined-log, failed-case and JSON-lines sinks.
func NewFileLogger(baseDir string, runID string) (*FileLogger, error) {
	if runID == "" {
		return nil, fmt.Errorf("runID cannot be empty")
	}
	if baseDir == "" {
		return nil, fmt.Errorf("baseDir cannot be empty")
	}

	logDir := filepath.Join(baseDir, RunDirectoryPrefix+runID)
	failedDir := filepath.Join(logDir, "failed")

	for _, dir := range []string{baseDir, logDir, failedDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	l := &FileLogger{
		baseDir:      baseDir,
		logDir:       logDir,
		failedDir:    failedDir,
		summaryFile:  filepath.Join(logDir, "summary.log"),
		allLogsFile:  filepath.Join(logDir, "all.log"),
		asyncWriters: make(map[string]*AsyncFile),
		runID:        runID,
	}

	l.sinks = &MultiSink{Sinks: []OutcomeSink{
		&AllLogsFileSink{logger: l},
		&FailedCaseFileSink{logger: l, written: make(map[string]bool)},
		&JSONLinesSink{logger: l},
	}}

	return l, nil
}

// getAsyncWriter gets or creates an AsyncFile for the given path
func (l *FileLogger) getAsyncWriter(path string) (*AsyncFile, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if writer, exists := l.asyncWriters[path]; exists {
		return writer, nil
	}

	writer, err := NewAsyncFile(path)
	if err != nil {
		return nil, err
	}

	l.asyncWriters[path] = writer
	return writer, nil
}

func (l *FileLogger) closeAllWriters() {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, writer := range l.asyncWriters {
		_ = writer.Close()
	}
	l.asyncWriters = make(map[string]*AsyncFile)
}

// GetDirectoryForRunID returns the log directory for a specific runID.
func (l *FileLogger) GetDirectoryForRunID(runID string) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("runID cannot be empty")
	}
	if runID == l.runID {
		return l.logDir, nil
	}
	return filepath.Join(l.baseDir, RunDirectoryPrefix+runID), nil
}

// Consume feeds one outcome through all registered sinks.
func (l *FileLogger) Consume(o *types.Outcome, runID string) error {
	if runID == "" {
		return fmt.Errorf("runID cannot be empty")
	}
	return l.sinks.Consume(o, runID)
}

// LogSummary writes the run summary file.
func (l *FileLogger) LogSummary(summary string, runID string) error {
	if runID == "" {
		return fmt.Errorf("runID cannot be empty")
	}

	dir, err := l.GetDirectoryForRunID(runID)
	if err != nil {
		return err
	}

	writer, err := l.getAsyncWriter(filepath.Join(dir, "summary.log"))
	if err != nil {
		return err
	}
	return writer.Write([]byte(summary))
}

// Complete finalizes all sinks and closes all file writers
func (l *FileLogger) Complete(runID string) error {
	if runID == "" {
		return fmt.Errorf("runID cannot be empty")
	}

	if err := l.sinks.Complete(runID); err != nil {
		return err
	}

	l.closeAllWriters()
	return nil
}

// GetRunID returns the current runID
func (l *FileLogger) GetRunID() string {
	return l.runID
}

// GetBaseDir returns the directory for the current run
func (l *FileLogger) GetBaseDir() string {
	return l.logDir
}

// GetFailedDir returns the directory containing one log per failed case
func (l *FileLogger) GetFailedDir() string {
	return l.failedDir
}

// GetSummaryFile returns the path to the summary file
func (l *FileLogger) GetSummaryFile() string {
	return l.summaryFile
}

// GetAllLogsFile returns the path to the combined log file
func (l *FileLogger) GetAllLogsFile() string {
	return l.allLogsFile
}

// safeFilename converts a string to a safe filename by replacing problematic characters
func safeFilename(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ':
			return '_'
		}
		return r
	}, s)
}

// outcomeFilename builds the per-case log filename, e.g. "checkout_AddItem".
func outcomeFilename(o *types.Outcome) string {
	if o.Suite == "" {
		return safeFilename(o.Name)
	}
	return safeFilename(o.Suite + "_" + o.Name)
}

// AllLogsFileSink writes every outcome to a single "all.log" file
type AllLogsFileSink struct {
	logger *FileLogger
}

// Consume appends a framed block for the outcome to all.log
func (s *AllLogsFileSink) Consume(o *types.Outcome, runID string) error {
	dir, err := s.logger.GetDirectoryForRunID(runID)
	if err != nil {
		return err
	}

	writer, err := s.logger.getAsyncWriter(filepath.Join(dir, "all.log"))
	if err != nil {
		return err
	}

	var content strings.Builder
	fmt.Fprintf(&content, "\n")
	fmt.Fprintf(&content, "=== CASE: %s\n", o.QualifiedName())
	fmt.Fprintf(&content, "    Status:   %s\n", o.Status)
	if o.Timed {
		fmt.Fprintf(&content, "    Duration: %s\n", o.Duration)
	}
	fmt.Fprintf(&content, "    Time:     %s\n", time.Now().Format(time.RFC3339))
	if o.Location != nil {
		fmt.Fprintf(&content, "    Source:   %s\n", o.Location)
	}

	if o.Err != nil {
		fmt.Fprintf(&content, "\nERROR:\n%s\n", o.Err.Error())
	}
	if o.Reason != "" {
		fmt.Fprintf(&content, "\nREASON:\n%s\n", o.Reason)
	}
	if o.Output != "" {
		fmt.Fprintf(&content, "\nOUTPUT:\n%s\n", indentText(CleanOutput(o.Output), "  "))
	}
	fmt.Fprintf(&content, "\n")

	return writer.Write([]byte(content.String()))
}

// Complete is a no-op for AllLogsFileSink
func (s *AllLogsFileSink) Complete(runID string) error {
	return nil
}

// FailedCaseFileSink creates a dedicated log file for each failed case
type FailedCaseFileSink struct {
	logger  *FileLogger
	mu      sync.Mutex
	written map[string]bool
}

// Consume writes the full output of a failed case to failed/<case>.log.
// Duplicate names get one file per failing occurrence.
func (s *FailedCaseFileSink) Consume(o *types.Outcome, runID string) error {
	if !o.Failed() {
		return nil
	}

	dir, err := s.logger.GetDirectoryForRunID(runID)
	if err != nil {
		return err
	}

	failedDir := filepath.Join(dir, "failed")
	if err := os.MkdirAll(failedDir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", failedDir, err)
	}

	name := outcomeFilename(o)
	s.mu.Lock()
	if s.written[name] {
		name = fmt.Sprintf("%s.%d", name, o.Index)
	}
	s.written[name] = true
	s.mu.Unlock()

	writer, err := s.logger.getAsyncWriter(filepath.Join(failedDir, name+".log"))
	if err != nil {
		return err
	}

	var content strings.Builder
	fmt.Fprintf(&content, "CASE:     %s\n", o.QualifiedName())
	fmt.Fprintf(&content, "STATUS:   %s\n", o.Status)
	if o.Timed {
		fmt.Fprintf(&content, "DURATION: %s\n", o.Duration)
	}
	if o.Err != nil {
		fmt.Fprintf(&content, "\nERROR:\n%s\n", o.Err.Error())
	}
	if o.Output != "" {
		fmt.Fprintf(&content, "\nOUTPUT:\n%s\n", CleanOutput(o.Output))
	}

	return writer.Write([]byte(content.String()))
}

// Complete is a no-op for FailedCaseFileSink
func (s *FailedCaseFileSink) Complete(runID string) error {
	return nil
}

// indentText adds indentation to each line of text for better readability
func indentText(text, indent string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if line != "" {
			lines[i] = indent + line
		}
	}
	return strings.Join(lines, "\n")
}
