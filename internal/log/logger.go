package log

import (
	"bytes"
	"fmt"
	"io"
	stdlog "log"
	"os"
	"strings"
	"sync"

	"poe2openai/internal/core"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// AppLogger is the application logger implementation.
type AppLogger struct {
	logger     *logrus.Logger
	fileHandle io.Closer
	mu         sync.RWMutex
}

// lineFormatter renders "2006/01/02 15:04:05 [LEVEL] message".
type lineFormatter struct{}

func (lineFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	var b bytes.Buffer
	b.WriteString(entry.Time.Format("2006/01/02 15:04:05"))
	b.WriteString(" [")
	b.WriteString(levelLabel(entry.Level))
	b.WriteString("] ")
	b.WriteString(entry.Message)
	for key, value := range entry.Data {
		fmt.Fprintf(&b, " %s=%v", key, value)
	}
	b.WriteByte('\n')
	return b.Bytes(), nil
}

func levelLabel(level logrus.Level) string {
	if level == logrus.WarnLevel {
		return "WARN"
	}
	return strings.ToUpper(level.String())
}

// NewAppLoggerWithConfig creates a logger instance with configuration.
func NewAppLoggerWithConfig(output io.Writer, debugMode bool) *AppLogger {
	level := logrus.InfoLevel
	if debugMode {
		level = logrus.DebugLevel
	}
	return &AppLogger{logger: newLogrus(output, level)}
}

func newLogrus(output io.Writer, level logrus.Level) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(output)
	l.SetFormatter(lineFormatter{})
	l.SetLevel(level)
	return l
}

// Debug logs a message at DEBUG level.
func (l *AppLogger) Debug(format string, args ...any) {
	if l != nil {
		l.logger.Debugf(format, args...)
	}
}

// Info logs a message at INFO level.
func (l *AppLogger) Info(format string, args ...any) {
	if l != nil {
		l.logger.Infof(format, args...)
	}
}

// Warn logs a message at WARN level.
func (l *AppLogger) Warn(format string, args ...any) {
	if l != nil {
		l.logger.Warnf(format, args...)
	}
}

// Error logs a message at ERROR level.
func (l *AppLogger) Error(format string, args ...any) {
	if l != nil {
		l.logger.Errorf(format, args...)
	}
}

// Fatal logs a message at FATAL level and terminates the process.
func (l *AppLogger) Fatal(format string, args ...any) {
	if l != nil {
		l.logger.Fatalf(format, args...)
	} else {
		stdlog.Fatalf("[FATAL] "+format, args...)
	}
}

// IsDebugEnabled reports whether debug lines are emitted.
func (l *AppLogger) IsDebugEnabled() bool {
	return l != nil && l.logger.IsLevelEnabled(logrus.DebugLevel)
}

// Close safely closes log file handle.
func (l *AppLogger) Close() error {
	if l == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.fileHandle != nil {
		err := l.fileHandle.Close()
		l.fileHandle = nil
		return err
	}
	return nil
}

// containsPathTraversal checks if path contains path traversal characters.
func containsPathTraversal(path string) bool {
	return strings.Contains(path, "..")
}

// createFileOutput adds a rotating LOG_FILE sink next to stdout, falls back to stdout on bad paths.
func createFileOutput() (io.Writer, io.Closer) {
	logFile := os.Getenv("LOG_FILE")
	if logFile == "" {
		return os.Stdout, nil
	}

	if len(logFile) > core.MaxLogFilePathLength {
		stdlog.Printf("[WARN] LOG_FILE path too long, falling back to stdout")
		return os.Stdout, nil
	}

	if containsPathTraversal(logFile) {
		stdlog.Printf("[WARN] LOG_FILE contains path traversal characters, falling back to stdout")
		return os.Stdout, nil
	}

	rotator := &lumberjack.Logger{
		Filename:   logFile,
		MaxSize:    core.LogFileMaxSizeMB,
		MaxBackups: core.LogFileMaxBackups,
		MaxAge:     core.LogFileMaxAgeDays,
	}
	return io.MultiWriter(os.Stdout, rotator), rotator
}

// IsDebug returns whether the app is running in debug mode.
func IsDebug() bool {
	return os.Getenv("GIN_MODE") == "debug"
}

// levelFromEnv reads LOG_LEVEL; GIN_MODE=debug always enables debug output.
func levelFromEnv() logrus.Level {
	if IsDebug() {
		return logrus.DebugLevel
	}
	raw := strings.TrimSpace(os.Getenv("LOG_LEVEL"))
	if raw == "" {
		return logrus.InfoLevel
	}
	level, err := logrus.ParseLevel(raw)
	if err != nil {
		stdlog.Printf("[WARN] Invalid LOG_LEVEL '%s', using info", raw)
		return logrus.InfoLevel
	}
	return level
}

// CreateLogger creates a logger instance (for dependency injection).
func CreateLogger() core.Logger {
	output, fileHandle := createFileOutput()

	return &AppLogger{
		logger:     newLogrus(output, levelFromEnv()),
		fileHandle: fileHandle,
	}
}
