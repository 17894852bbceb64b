package logging

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// TestLogger is the logger handed to each case body. Everything written
// through it is captured and attached to the case's Outcome; when echo is
// enabled the lines are also forwarded to the engine logger as they arrive.
type TestLogger struct {
	mu   sync.Mutex
	buf  bytes.Buffer
	echo *slog.Logger // nil unless realtime forwarding is enabled
}

// NewTestLogger creates a capture logger for a single case. echo may be nil.
func NewTestLogger(echo *slog.Logger) *TestLogger {
	return &TestLogger{echo: echo}
}

// Logf records a formatted line of case output.
func (l *TestLogger) Logf(format string, args ...any) {
	l.write(fmt.Sprintf(format, args...))
}

// Log records the arguments as a single line, space-separated.
func (l *TestLogger) Log(args ...any) {
	l.write(fmt.Sprintln(args...))
}

func (l *TestLogger) write(line string) {
	if len(line) == 0 || line[len(line)-1] != '\n' {
		line += "\n"
	}

	l.mu.Lock()
	l.buf.WriteString(line)
	l.mu.Unlock()

	if l.echo != nil {
		l.echo.Info(line[:len(line)-1])
	}
}

// Writer exposes the capture buffer as an io.Writer so case bodies can
// redirect command output or wire their own loggers into the capture.
func (l *TestLogger) Writer() io.Writer {
	return testLogWriter{l}
}

// Slog returns a structured logger whose records land in the capture
// buffer, for case bodies that want key-value logging.
func (l *TestLogger) Slog() *slog.Logger {
	return slog.New(slog.NewTextHandler(l.Writer(), &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// Output returns everything the case has written so far.
func (l *TestLogger) Output() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.buf.String()
}

type testLogWriter struct {
	l *TestLogger
}

func (w testLogWriter) Write(p []byte) (int, error) {
	w.l.mu.Lock()
	n, err := w.l.buf.Write(p)
	w.l.mu.Unlock()

	if w.l.echo != nil && n > 0 {
		w.l.echo.Info(string(bytes.TrimRight(p[:n], "\n")))
	}
	return n, err
}
