package logger

import (
	"io"
	"log"
	"os"
	"sync/atomic"
)

var (
	// Logger is the process-wide logger used by every pipeline stage.
	Logger *log.Logger

	verbose atomic.Bool
)

func init() {
	Logger = log.New(os.Stderr, "", log.Ltime|log.Lmicroseconds)
	// --verbose overrides this through SetVerbose
	verbose.Store(os.Getenv("EMBROIDER_VERBOSE") == "1")
}

// SetVerbose enables or disables debug and info output.
func SetVerbose(enabled bool) {
	verbose.Store(enabled)
}

// Verbose reports whether debug output is enabled.
func Verbose() bool {
	return verbose.Load()
}

// SetOutput redirects logger output (useful for testing)
func SetOutput(w io.Writer) {
	Logger.SetOutput(w)
}

// Debugf prints a debug message if verbose mode is enabled
func Debugf(format string, args ...any) {
	if verbose.Load() {
		Logger.Printf("[DEBUG] "+format, args...)
	}
}

// Infof prints an info message if verbose mode is enabled
func Infof(format string, args ...any) {
	if verbose.Load() {
		Logger.Printf("[INFO] "+format, args...)
	}
}

// Todof reports behavior the pipeline recognizes but does not handle.
// Always printed.
func Todof(format string, args ...any) {
	Logger.Printf("[TODO] "+format, args...)
}

// Warnf always prints a warning.
func Warnf(format string, args ...any) {
	Logger.Printf("[WARN] "+format, args...)
}

// Errorf always prints an error message regardless of verbose mode
func Errorf(format string, args ...any) {
	Logger.Printf("[ERROR] "+format, args...)
}
