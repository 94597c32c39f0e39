// Package logging builds the zap.Logger used throughout the collector
// from the --loglevel and --logfile CLI flags.
package logging

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ParseLevel maps the CLI's level names onto zapcore levels. "off"
// disables logging entirely.
func ParseLevel(s string) (level zapcore.Level, off bool, err error) {
	switch s {
	case "off":
		return 0, true, nil
	case "error":
		return zapcore.ErrorLevel, false, nil
	case "warn":
		return zapcore.WarnLevel, false, nil
	case "info":
		return zapcore.InfoLevel, false, nil
	case "debug":
		return zapcore.DebugLevel, false, nil
	case "trace":
		// zap has no trace level; map onto debug rather than invent one.
		return zapcore.DebugLevel, false, nil
	default:
		return 0, false, fmt.Errorf("unknown log level %q", s)
	}
}

// New builds a logger writing to logfile (stderr if empty) at the given
// level, or a no-op logger if levelName is "off".
func New(levelName, logfile string) (*zap.Logger, error) {
	level, off, err := ParseLevel(levelName)
	if err != nil {
		return nil, err
	}
	if off {
		return zap.NewNop(), nil
	}

	var ws zapcore.WriteSyncer
	if logfile == "" {
		ws = zapcore.Lock(os.Stderr)
	} else {
		f, err := os.OpenFile(logfile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open logfile: %w", err)
		}
		ws = zapcore.Lock(f)
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), ws, level)
	return zap.New(core), nil
}
