package logger

import (
	"io"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Leveled logger for the service, backed by zap.
// - printf-style Debugf/Infof/Warnf/Errorf/Fatalf for call sites that just need a line
// - L() for structured fields (request logs, background jobs)
// - Init(level) adjusts the level at runtime; SetOutput swaps sink and encoding

var (
	mu    sync.RWMutex
	level = zap.NewAtomicLevelAt(zap.InfoLevel)
	base  = build(os.Stdout, "json")
	sugar = base.Sugar()
)

// Init sets the global log level (case-insensitive: debug, info, warn, error, fatal).
// Call early during startup. Default level is Info.
func Init(l string) {
	s := strings.ToLower(strings.TrimSpace(l))
	switch s {
	case "debug":
		level.SetLevel(zap.DebugLevel)
	case "warn", "warning":
		level.SetLevel(zap.WarnLevel)
	case "error":
		level.SetLevel(zap.ErrorLevel)
	case "fatal":
		level.SetLevel(zap.FatalLevel)
	default:
		level.SetLevel(zap.InfoLevel)
	}
}

// SetOutput directs logs to w using the "json" or "console" encoding.
func SetOutput(w io.Writer, format string) {
	l := build(w, format)
	mu.Lock()
	defer mu.Unlock()
	base = l
	sugar = l.Sugar()
}

func build(w io.Writer, format string) *zap.Logger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.RFC3339TimeEncoder
	var enc zapcore.Encoder
	if strings.EqualFold(format, "console") {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	} else {
		enc = zapcore.NewJSONEncoder(encCfg)
	}
	return zap.New(zapcore.NewCore(enc, zapcore.AddSync(w), level), zap.AddCaller(), zap.AddCallerSkip(1))
}

// L returns the structured logger.
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base.WithOptions(zap.AddCallerSkip(-1))
}

func s() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return sugar
}

func Debugf(format string, v ...interface{}) { s().Debugf(format, v...) }
func Infof(format string, v ...interface{})  { s().Infof(format, v...) }
func Warnf(format string, v ...interface{})  { s().Warnf(format, v...) }
func Errorf(format string, v ...interface{}) { s().Errorf(format, v...) }
func Fatalf(format string, v ...interface{}) { s().Fatalf(format, v...) }

// Println kept for brief messages (maps to Info)
func Println(v ...interface{}) { s().Infoln(v...) }

// Sync flushes buffered entries; call before exit.
func Sync() { _ = s().Sync() }

// LevelString returns the current level as text.
func LevelString() string {
	return level.Level().String()
}
