// Package logger provides structured logging for the pet server.
// Every action applied to a pet should be traceable through this.
package logger

import (
	"io"
	"log"
	"os"
)

// Logger provides leveled logging with context.
type Logger struct {
	infoLogger  *log.Logger
	warnLogger  *log.Logger
	errorLogger *log.Logger
}

// NewLogger creates a logger writing info/warn to stdout and errors to stderr.
func NewLogger() *Logger {
	return New(os.Stdout, os.Stderr)
}

// New creates a logger over explicit writers.
func New(out, errOut io.Writer) *Logger {
	flags := log.Ldate | log.Ltime | log.Lshortfile
	return &Logger{
		infoLogger:  log.New(out, "[PET-INFO] ", flags),
		warnLogger:  log.New(out, "[PET-WARN] ", flags),
		errorLogger: log.New(errOut, "[PET-ERROR] ", flags),
	}
}

// Discard returns a logger that drops everything. Used by tests.
func Discard() *Logger {
	return New(io.Discard, io.Discard)
}

// Info logs informational messages.
func (l *Logger) Info(msg string) {
	l.infoLogger.Output(2, msg)
}

// Warn logs warning messages.
func (l *Logger) Warn(msg string) {
	l.warnLogger.Output(2, msg)
}

// Error logs error messages.
func (l *Logger) Error(msg string) {
	l.errorLogger.Output(2, msg)
}

// Event logs a pet event with the owner it concerns.
func (l *Logger) Event(eventType string, ownerID string, details string) {
	l.infoLogger.Printf("[EVENT:%s] Owner:%s | %s", eventType, ownerID, details)
}
