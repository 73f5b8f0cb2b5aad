package utils

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	log  *zap.Logger
	once sync.Once
)

// LogOptions select level, encoding and sinks for the keeper logger
type LogOptions struct {
	Debug bool
	// Format is "json" (default) or "console"
	Format string
	// File is appended to alongside stdout. Empty disables the file sink.
	File string
}

// NewLogger builds a keeper logger without touching the global one
func NewLogger(opts LogOptions) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	if opts.Debug {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}

	switch opts.Format {
	case "", "json":
	case "console":
		config.Encoding = "console"
		config.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	default:
		return nil, fmt.Errorf("unknown log format %q", opts.Format)
	}

	config.OutputPaths = []string{"stdout"}
	config.ErrorOutputPaths = []string{"stderr"}
	if opts.File != "" {
		config.OutputPaths = append(config.OutputPaths, opts.File)
	}

	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncoderConfig.EncodeDuration = zapcore.StringDurationEncoder
	config.Sampling = nil

	logger, err := config.Build(zap.AddStacktrace(zapcore.ErrorLevel))
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger.Named("keeper"), nil
}

// InitLogger installs the global keeper logger. Only the first call takes effect;
// a bad option falls back to the production defaults.
func InitLogger(opts LogOptions) *zap.Logger {
	once.Do(func() {
		logger, err := NewLogger(opts)
		if err != nil {
			fallback, ferr := NewLogger(LogOptions{Debug: opts.Debug})
			if ferr != nil {
				panic(ferr)
			}
			logger = fallback
			logger.Warn("Falling back to default logger", zap.Error(err))
		}
		log = logger
	})
	return log
}

// GetLogger returns the global logger, initializing it at info level if needed
func GetLogger() *zap.Logger {
	return InitLogger(LogOptions{})
}

// CleanupLogger flushes any buffered log entries
func CleanupLogger() {
	if log != nil {
		_ = log.Sync()
	}
}
