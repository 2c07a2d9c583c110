package logging

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the process logger. Output goes to stderr so that stdout only
// carries the completion line. A non-empty DEBUG environment variable
// forces debug level.
func New(level, format string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		return nil, errors.Wrapf(err, "log level %q", level)
	}
	if os.Getenv("DEBUG") != "" {
		lvl = zapcore.DebugLevel
	}

	encoding := "json"
	encoderConfig := zap.NewProductionEncoderConfig()
	switch strings.ToLower(format) {
	case "", "json":
	case "console":
		encoding = "console"
		encoderConfig = zap.NewDevelopmentEncoderConfig()
	default:
		return nil, errors.Errorf("unknown log format %q", format)
	}
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	config := &zap.Config{
		Level:            zap.NewAtomicLevelAt(lvl),
		Encoding:         encoding,
		EncoderConfig:    encoderConfig,
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}
	l, err := config.Build(zap.Fields(zap.String("service", "hkcovid")))
	if err != nil {
		return nil, errors.Wrap(err, "build logger")
	}
	return l, nil
}
