package observ

import (
	"os"
	"path/filepath"

	"github.com/lalith-99/echoforum/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogOptions selects the encoder, level and optional rotating file sink.
type LogOptions struct {
	Env        string
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

func LogOptionsFromConfig(cfg *config.Config) LogOptions {
	return LogOptions{
		Env:        cfg.Env,
		Level:      cfg.LogLevel,
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAgeDays: cfg.LogMaxAgeDays,
		Compress:   cfg.LogCompress,
	}
}

// NewLogger builds a JSON logger in production and a console logger
// elsewhere. When File is set, entries are written to stdout and to a
// lumberjack-rotated file.
func NewLogger(opts LogOptions) (*zap.Logger, error) {
	var config zap.Config
	if opts.Env == "production" {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
	}

	zapLevel, err := zapcore.ParseLevel(opts.Level)
	if err != nil {
		zapLevel = zapcore.InfoLevel
	}
	config.Level = zap.NewAtomicLevelAt(zapLevel)

	if opts.File == "" {
		return config.Build()
	}

	if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
		return nil, err
	}
	rotate := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   opts.Compress,
	}

	var encoder zapcore.Encoder
	if opts.Env == "production" {
		encoder = zapcore.NewJSONEncoder(config.EncoderConfig)
	} else {
		encoder = zapcore.NewConsoleEncoder(config.EncoderConfig)
	}
	// The file always gets JSON so it can be shipped as-is.
	fileEncoder := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())

	core := zapcore.NewTee(
		zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), config.Level),
		zapcore.NewCore(fileEncoder, zapcore.AddSync(rotate), config.Level),
	)
	return zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)), nil
}
