package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"dronecam/internal/config"

	"github.com/rs/zerolog"
)

// Log file names, one per level.
const (
	InfoFile    = "info.log"
	WarningFile = "warning.log"
	ErrorFile   = "error.log"
)

// Logger provides leveled logging (info/warning/error) to files and stdout/stderr.
type Logger struct {
	infoLog    zerolog.Logger
	warningLog zerolog.Logger
	errorLog   zerolog.Logger
	logDir     string
	files      []*os.File
}

// NewLogger creates a Logger writing to the console and, when LogDirectory
// is set, to one file per level inside it.
func NewLogger(cfg *config.Config) (*Logger, error) {
	l := &Logger{logDir: cfg.LogDirectory}

	stdout := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	stderr := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}

	if l.logDir == "" {
		l.infoLog = newZerolog(stdout)
		l.warningLog = newZerolog(stdout)
		l.errorLog = newZerolog(stderr)
		return l, nil
	}

	if err := os.MkdirAll(l.logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	infoFile, err := l.openLogFile(InfoFile)
	if err != nil {
		return nil, err
	}
	warningFile, err := l.openLogFile(WarningFile)
	if err != nil {
		l.Close()
		return nil, err
	}
	errorFile, err := l.openLogFile(ErrorFile)
	if err != nil {
		l.Close()
		return nil, err
	}

	l.infoLog = newZerolog(zerolog.MultiLevelWriter(stdout, infoFile))
	l.warningLog = newZerolog(zerolog.MultiLevelWriter(stdout, warningFile))
	l.errorLog = newZerolog(zerolog.MultiLevelWriter(stderr, errorFile))
	return l, nil
}

// NewNop returns a Logger that discards everything.
func NewNop() *Logger {
	nop := zerolog.Nop()
	return &Logger{infoLog: nop, warningLog: nop, errorLog: nop}
}

func newZerolog(w io.Writer) zerolog.Logger {
	return zerolog.New(w).With().Timestamp().Logger()
}

// openLogFile opens or creates a log file for appending.
func (l *Logger) openLogFile(name string) (*os.File, error) {
	path := filepath.Join(l.logDir, name)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}
	l.files = append(l.files, file)
	return file, nil
}

// Info writes a formatted info-level log entry.
func (l *Logger) Info(format string, v ...interface{}) {
	l.infoLog.Info().Msgf(format, v...)
}

// Warning writes a formatted warning-level log entry.
func (l *Logger) Warning(format string, v ...interface{}) {
	l.warningLog.Warn().Msgf(format, v...)
}

// Error writes a formatted error-level log entry.
func (l *Logger) Error(format string, v ...interface{}) {
	l.errorLog.Error().Msgf(format, v...)
}

// Dir returns the log directory, empty for console-only loggers.
func (l *Logger) Dir() string {
	return l.logDir
}

// CleanLogs truncates the specified log file.
func (l *Logger) CleanLogs(fileName string) error {
	if l.logDir == "" {
		return nil
	}
	filePath := filepath.Join(l.logDir, fileName)
	if err := os.Truncate(filePath, 0); err != nil {
		l.Error("Error truncating %s: %v", fileName, err)
		return err
	}

	l.Info("Log file %s has been cleared", fileName)
	return nil
}

// Close closes the level files.
func (l *Logger) Close() error {
	var firstErr error
	for _, f := range l.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	l.files = nil
	return firstErr
}
