package logger

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/galia-project/iiifcore/internal/config"
)

// DynamicLogger wraps zap.Logger with the ability to switch levels at
// runtime, e.g. to force INFO visibility during shutdown regardless of the
// configured level.
type DynamicLogger struct {
	*zap.Logger
	consoleLevel     *zap.AtomicLevel
	fileLevel        *zap.AtomicLevel
	configuredConfig config.LogConfig
}

// SwitchToConfiguredLevel restores both outputs to the originally
// configured level.
func (dl *DynamicLogger) SwitchToConfiguredLevel() {
	globalLevel := parseLogLevel(dl.configuredConfig.Level)

	dl.Info("switching logger to configured level", zap.String("level", dl.configuredConfig.Level))

	if dl.consoleLevel != nil {
		dl.consoleLevel.SetLevel(resolveLogLevel(dl.configuredConfig.Console.Level, globalLevel))
	}
	if dl.fileLevel != nil {
		dl.fileLevel.SetLevel(resolveLogLevel(dl.configuredConfig.File.Level, globalLevel))
	}
}

// EnsureInfoLevelForShutdown raises both outputs to at least INFO so
// shutdown sequence logs are never silently dropped by a WARN/ERROR level.
func (dl *DynamicLogger) EnsureInfoLevelForShutdown() {
	changed := false
	if dl.consoleLevel != nil && dl.consoleLevel.Level() > zap.InfoLevel {
		dl.consoleLevel.SetLevel(zap.InfoLevel)
		changed = true
	}
	if dl.fileLevel != nil && dl.fileLevel.Level() > zap.InfoLevel {
		dl.fileLevel.SetLevel(zap.InfoLevel)
		changed = true
	}
	if changed {
		dl.Info("switched to INFO level for shutdown visibility")
	}
}

// NewLogger builds a zap logger from the console/file dual-output config.
func NewLogger(cfg config.LogConfig) (*DynamicLogger, error) {
	globalLevel := parseLogLevel(cfg.Level)

	var cores []zapcore.Core
	var consoleLevel *zap.AtomicLevel
	var fileLevel *zap.AtomicLevel

	if cfg.Console.Enabled {
		level := zap.NewAtomicLevelAt(resolveLogLevel(cfg.Console.Level, globalLevel))
		consoleLevel = &level
		encoder := createEncoder(cfg.Console.Format)
		cores = append(cores, zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), consoleLevel))
	}

	if cfg.File.Enabled {
		if cfg.File.Path == "" {
			return nil, fmt.Errorf("log.file.path must be specified when file logging is enabled")
		}
		level := zap.NewAtomicLevelAt(resolveLogLevel(cfg.File.Level, globalLevel))
		fileLevel = &level
		format := cfg.File.Format
		if format == "" {
			format = "text"
		}
		encoder := createEncoder(format)
		writer := createFileWriter(cfg.File)
		cores = append(cores, zapcore.NewCore(encoder, writer, fileLevel))
	}

	if len(cores) == 0 {
		return nil, fmt.Errorf("at least one log output (console or file) must be enabled")
	}

	var core zapcore.Core
	if len(cores) == 1 {
		core = cores[0]
	} else {
		core = zapcore.NewTee(cores...)
	}

	return &DynamicLogger{
		Logger:           zap.New(core),
		consoleLevel:     consoleLevel,
		fileLevel:        fileLevel,
		configuredConfig: cfg,
	}, nil
}

func parseLogLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zap.DebugLevel
	case "info":
		return zap.InfoLevel
	case "warn":
		return zap.WarnLevel
	case "error":
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}

func resolveLogLevel(outputLevel string, globalLevel zapcore.Level) zapcore.Level {
	if outputLevel != "" {
		return parseLogLevel(outputLevel)
	}
	return globalLevel
}

func createEncoder(format string) zapcore.Encoder {
	if format == "json" {
		return zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	}
	encoderConfig := zap.NewDevelopmentEncoderConfig()
	if format == "text" {
		encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	} else {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	return zapcore.NewConsoleEncoder(encoderConfig)
}

func createFileWriter(cfg config.FileConfig) zapcore.WriteSyncer {
	lumberLogger := &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSizeMB,
		MaxAge:     cfg.MaxAgeDays,
		MaxBackups: cfg.MaxBackups,
		Compress:   cfg.Compress,
	}
	return zapcore.AddSync(lumberLogger)
}

// NewDefaultLogger creates a console-only debug-level logger, used before
// the configuration file has been loaded.
func NewDefaultLogger() (*DynamicLogger, error) {
	return NewLogger(config.LogConfig{
		Level:   "debug",
		Console: config.ConsoleConfig{Enabled: true, Format: "console"},
	})
}
