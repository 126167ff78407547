// Package observability provides the process-wide loggers.
//
// CLI commands log human-oriented lines to stderr so stdout stays
// reserved for JSONL report output. The level can be raised with the
// root --verbose flag or the logging.level config key.
package observability

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// CLILogger is the logger used by CLI commands. It writes to stderr,
// keeping stdout clean for report records.
var CLILogger = newCLILogger(zapcore.InfoLevel)

// InitCLILogger reconfigures the CLI logger at the given level.
// Unknown level strings fall back to info.
func InitCLILogger(level string) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	CLILogger = newCLILogger(lvl)
}

func newCLILogger(level zapcore.Level) *zap.Logger {
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.Lock(os.Stderr),
		level,
	)
	return zap.New(core)
}

// ServerLogger returns a structured JSON logger for the status server.
func ServerLogger(level string) *zap.Logger {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	encCfg := zap.NewProductionEncoderConfig()
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encCfg),
		zapcore.Lock(os.Stderr),
		lvl,
	)
	return zap.New(core)
}
