// Package log builds the zap logger shared by every offerd component.
package log

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-colorable"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options configures New
type Options struct {
	Level  string // debug, info, warn, error
	Format string // console or json
	File   string // optional JSON log file, appended to

	// Console overrides the console destination, stdout by default
	Console io.Writer
}

// New builds a logger writing to the console and, when File is set, also
// to a JSON file.
func New(opts Options) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(opts.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
	}

	pe := zap.NewProductionEncoderConfig()
	pe.EncodeTime = zapcore.ISO8601TimeEncoder
	pe.MessageKey = "message"
	pe.TimeKey = "time"
	jsonEncoder := zapcore.NewJSONEncoder(pe)

	console := opts.Console
	colored := false
	if console == nil {
		console = colorable.NewColorableStdout()
		colored = true
	}

	var consoleEncoder zapcore.Encoder
	switch opts.Format {
	case "", "console":
		ce := pe
		if colored {
			ce.EncodeLevel = zapcore.CapitalColorLevelEncoder
		} else {
			ce.EncodeLevel = zapcore.CapitalLevelEncoder
		}
		consoleEncoder = zapcore.NewConsoleEncoder(ce)
	case "json":
		consoleEncoder = jsonEncoder
	default:
		return nil, fmt.Errorf("invalid log format %q", opts.Format)
	}

	cores := []zapcore.Core{
		zapcore.NewCore(consoleEncoder, zapcore.AddSync(console), level),
	}
	if opts.File != "" {
		f, err := os.OpenFile(opts.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		cores = append(cores, zapcore.NewCore(jsonEncoder, zapcore.AddSync(f), level))
	}

	return zap.New(zapcore.NewTee(cores...)), nil
}
