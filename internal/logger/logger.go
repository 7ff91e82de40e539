// internal/logger/logger.go
//
// Structured JSON logger (Zap + Lumberjack).
//
// Context
// -------
// forumd writes lifecycle and error events to one JSON log per day under
// `<root>/logs/YYYY-MM-DD.log`.  When running in an interactive TTY (or with
// `log.tee`) the same events are teed to stdout in console format.
// Rotation, compression, and retention are handled by Lumberjack; no
// external log-rotate job is required.
//
// Usage
// -----
//
//	log, err := logger.New(cfg.Paths.Root, cfg.Log.Level, tee)
//	if err != nil { … }
//	log.Infow("site online", "host", host)
//
// Notes
// -----
// • Zap core uses ISO-8601 timestamps and lowercase levels.
// • Errors are written to the same sink via `ErrorOutput`.
// • The returned AtomicLevel-backed logger honours SetLevel at runtime.
// • Oxford commas, two spaces after periods.
package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/natefinch/lumberjack"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var level = zap.NewAtomicLevelAt(zap.InfoLevel)

// New returns a *zap.SugaredLogger that writes JSON to /logs/YYYY-MM-DD.log
// at lvl ("debug", "info", "warn", "error"; empty means info).  When tee is
// true a console core is also attached.  The logger is installed as the
// process-wide default via zap.ReplaceGlobals.
func New(rootDir, lvl string, tee bool) (*zap.SugaredLogger, error) {
	if err := SetLevel(lvl); err != nil {
		return nil, err
	}

	logDir := filepath.Join(rootDir, "logs")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, err
	}

	fileName := time.Now().Format("2006-01-02") + ".log"
	fileSink := &lumberjack.Logger{
		Filename:   filepath.Join(logDir, fileName),
		MaxSize:    50, // MB
		MaxBackups: 7,  // keep last seven files
		MaxAge:     14, // days
		Compress:   true,
	}

	encCfg := zapcore.EncoderConfig{
		TimeKey:      "ts",
		LevelKey:     "level",
		MessageKey:   "msg",
		CallerKey:    "caller",
		EncodeTime:   zapcore.ISO8601TimeEncoder,
		EncodeLevel:  zapcore.LowercaseLevelEncoder,
		EncodeCaller: zapcore.ShortCallerEncoder,
	}
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(fileSink), level),
	}
	if tee {
		cores = append(cores,
			zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(os.Stdout), level))
	}

	z := zap.New(
		zapcore.NewTee(cores...),
		zap.AddCaller(),
		zap.ErrorOutput(zapcore.AddSync(fileSink)),
	).Sugar()

	// Make this the global logger so zap.L() works everywhere after startup.
	zap.ReplaceGlobals(z.Desugar())

	z.Infow("logger online", "tee", tee, "level", level.String())
	return z, nil
}

// SetLevel changes the level of every logger built by New.
func SetLevel(lvl string) error {
	if lvl == "" {
		lvl = "info"
	}
	l, err := zapcore.ParseLevel(lvl)
	if err != nil {
		return fmt.Errorf("log level %q: %w", lvl, err)
	}
	level.SetLevel(l)
	return nil
}

// Bootstrap installs a console logger for the time before config is
// loaded.
func Bootstrap() *zap.SugaredLogger {
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = level
	z, err := cfg.Build()
	if err != nil {
		z = zap.NewNop()
	}
	zap.ReplaceGlobals(z)
	return z.Sugar()
}
