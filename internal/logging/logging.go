// Package logging builds the application logger: JSON lines into a rotated
// file, mirrored to the console in debug mode.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	maxSizeMB  = 10
	maxBackups = 3
)

type Config struct {
	Level string
	File  string
}

// New returns a logger and a flush func. An empty File logs to stderr only.
func New(cfg Config) (*zap.Logger, func(), error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}

	var cores []zapcore.Core
	if path := strings.TrimSpace(cfg.File); path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log directory: %w", err)
		}
		rotator := &lumberjack.Logger{
			Filename:   path,
			MaxSize:    maxSizeMB,
			MaxBackups: maxBackups,
		}
		encoder := zap.NewProductionEncoderConfig()
		encoder.EncodeTime = zapcore.ISO8601TimeEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encoder), zapcore.AddSync(rotator), level))
	}
	if level == zapcore.DebugLevel || len(cores) == 0 {
		console := zap.NewDevelopmentEncoderConfig()
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(console), zapcore.Lock(os.Stderr), level))
	}

	logger := zap.New(zapcore.NewTee(cores...), zap.AddCaller())
	return logger, func() { _ = logger.Sync() }, nil
}

func parseLevel(value string) (zapcore.Level, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return zapcore.InfoLevel, nil
	}
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(value))); err != nil {
		return zapcore.InfoLevel, fmt.Errorf("invalid log level %q", value)
	}
	return level, nil
}
