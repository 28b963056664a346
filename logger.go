package vodom

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/gogpu/vodom/compute"
)

// nopHandler is a slog.Handler that silently discards all log records.
// The Enabled method returns false so the caller skips message formatting
// entirely, making disabled logging effectively zero-cost.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

// newNopLogger creates a logger that silently discards all output.
func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

// loggerPtr stores the active logger. Accessed atomically so that
// SetLogger can be called concurrently with logging from any goroutine.
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	l := newNopLogger()
	loggerPtr.Store(l)
}

// SetLogger configures the logger for vodom and all its sub-packages.
// By default, vodom produces no log output. Call SetLogger to enable logging.
//
// SetLogger is safe for concurrent use: it stores the new logger atomically.
// Pass nil to disable logging (restore default silent behavior).
//
// Log levels used by vodom:
//   - [slog.LevelDebug]: internal diagnostics (kernel compiles, buffer counts)
//   - [slog.LevelInfo]: important lifecycle events (adapter selected, pose found)
//   - [slog.LevelWarn]: non-fatal issues (out-of-range replay pairs, drain errors)
//
// Example:
//
//	// Enable info-level logging to stderr:
//	vodom.SetLogger(slog.Default())
//
//	// Enable debug-level logging for full diagnostics:
//	vodom.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)
	compute.SetLogger(l)
}

// Logger returns the current logger used by vodom. Sub-packages share the
// same configuration through [compute.SetLogger]; this accessor exists for
// embedding applications that want to log alongside the pipeline.
//
// Logger is safe for concurrent use.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}

// slogger is the package-internal accessor.
func slogger() *slog.Logger { return loggerPtr.Load() }
