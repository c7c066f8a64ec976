// Package logger provides leveled, process-wide logging with debug, info,
// warn, and error levels. It wraps a zap SugaredLogger so call sites keep a
// simple printf-style API while output can be switched between console and
// JSON encoding.
package logger

import (
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// defaultLogger discards everything until Init is called, so packages may
// log freely from tests.
var defaultLogger atomic.Pointer[zap.SugaredLogger]

func init() {
	defaultLogger.Store(zap.NewNop().Sugar())
}

// ParseLevel maps a configured level name to a zap level. Unknown names
// fall back to info.
func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	}
	return zapcore.InfoLevel
}

// Init initializes the default logger with the specified level and format.
// format is "json" or "text"; text selects a human-readable console encoder.
func Init(level string, format string) {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder
	if strings.ToLower(format) == "json" {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	core := zapcore.NewCore(enc, zapcore.Lock(os.Stderr), ParseLevel(level))
	SetLogger(zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)))
}

// SetLogger replaces the process-wide logger.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	defaultLogger.Store(l.Sugar())
}

// L returns the underlying sugared logger for structured key/value logging.
func L() *zap.SugaredLogger {
	return defaultLogger.Load()
}

// Sync flushes buffered log entries.
func Sync() {
	_ = defaultLogger.Load().Sync()
}

// Debug logs a message at debug level.
func Debug(format string, args ...interface{}) {
	defaultLogger.Load().Debugf(format, args...)
}

// Info logs a message at info level.
func Info(format string, args ...interface{}) {
	defaultLogger.Load().Infof(format, args...)
}

// Warn logs a message at warn level.
func Warn(format string, args ...interface{}) {
	defaultLogger.Load().Warnf(format, args...)
}

// Error logs a message at error level.
func Error(format string, args ...interface{}) {
	defaultLogger.Load().Errorf(format, args...)
}

// Fatal logs a message and exits the process.
func Fatal(format string, args ...interface{}) {
	l := defaultLogger.Load()
	l.Errorf(format, args...)
	_ = l.Sync()
	// The nop logger swallows everything, so make sure the reason survives.
	fmt.Fprintf(os.Stderr, "fatal: "+format+"\n", args...)
	os.Exit(1)
}
