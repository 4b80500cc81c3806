// Package logging builds the zap loggers used by the programs.
package logging

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options configures a logger.
type Options struct {
	// Level is the minimum level: debug, info, warn or error.
	Level string `json:"level" yaml:"level"`
	// Development enables caller-heavy development output and DPanic panics.
	Development bool `json:"development" yaml:"development"`
	// Encoding is "console" or "json".
	Encoding string `json:"encoding" yaml:"encoding"`
	// OutputPaths are zap sink URLs or file paths. Defaults to stdout.
	OutputPaths []string `json:"output_paths" yaml:"output_paths"`
}

// DefaultOptions logs Info and above to stdout in console format.
func DefaultOptions() Options {
	return Options{Level: "info", Encoding: "console"}
}

// NewConfig returns the zap configuration for opts.
// Stacktraces are disabled and levels are coloured in console output.
func NewConfig(opts Options) (zap.Config, error) {
	level := zap.NewAtomicLevelAt(zap.InfoLevel)
	if opts.Level != "" {
		if err := level.UnmarshalText([]byte(opts.Level)); err != nil {
			return zap.Config{}, errors.Wrapf(err, "invalid log level %q", opts.Level)
		}
	}

	encoding := opts.Encoding
	if encoding == "" {
		encoding = "console"
	}
	if encoding != "console" && encoding != "json" {
		return zap.Config{}, errors.Errorf("invalid log encoding %q", encoding)
	}

	encodeLevel := zapcore.CapitalColorLevelEncoder
	if encoding == "json" {
		encodeLevel = zapcore.LowercaseLevelEncoder
	}

	outputs := opts.OutputPaths
	if len(outputs) == 0 {
		outputs = []string{"stdout"}
	}

	return zap.Config{
		Level:       level,
		Development: opts.Development,
		Encoding:    encoding,
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "ts",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			FunctionKey:    zapcore.OmitKey,
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    encodeLevel,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		DisableStacktrace: true,
		OutputPaths:       outputs,
		ErrorOutputPaths:  []string{"stderr"},
	}, nil
}

// New builds a logger named name.
//
// Arguments:
//   - name: The logger name, usually the program name.
//   - opts: Level, encoding and outputs.
//
// Returns:
//   - *zap.Logger: The logger. Call Sync before exiting.
//   - error: An error if opts is invalid.
func New(name string, opts Options) (*zap.Logger, error) {
	cfg, err := NewConfig(opts)
	if err != nil {
		return nil, err
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, errors.Wrap(err, "failed to build logger")
	}
	return logger.Named(name), nil
}
