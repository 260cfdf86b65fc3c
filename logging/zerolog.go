package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config selects and configures a logging backend.
type Config struct {
	Level   string     `mapstructure:"level"`   // debug, info, warn, error
	Backend string     `mapstructure:"backend"` // zerolog (default), slog, none
	Format  string     `mapstructure:"format"`  // json (default) or console; slog accepts json or text
	File    FileConfig `mapstructure:"file"`    // optional file output next to stderr
}

// FileConfig configures rotated file output.
type FileConfig struct {
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// New builds a Logger from cfg. The returned closer releases the log file, if any.
func New(cfg Config) (Logger, io.Closer, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}

	var (
		w      io.Writer = os.Stderr
		closer io.Closer = nopCloser{}
	)

	if cfg.File.Path != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File.Path), 0o755); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		lj := &lumberjack.Logger{
			Filename:   cfg.File.Path,
			MaxSize:    cfg.File.MaxSizeMB,
			MaxBackups: cfg.File.MaxBackups,
			MaxAge:     cfg.File.MaxAgeDays,
			Compress:   cfg.File.Compress,
		}
		w = io.MultiWriter(os.Stderr, lj)
		closer = lj
	}

	switch strings.ToLower(cfg.Backend) {
	case "", "zerolog":
		return NewZerologLogger(w, level, cfg.Format), closer, nil
	case "slog":
		return NewSlogLogger(level, cfg.Format, w), closer, nil
	case "none":
		return NoOpLogger{}, closer, nil
	default:
		_ = closer.Close()
		return nil, nil, fmt.Errorf("unknown log backend %q", cfg.Backend)
	}
}

// ZerologAdapter wraps zerolog.Logger to implement the Logger interface.
type ZerologAdapter struct {
	logger zerolog.Logger
}

// NewZerologAdapter creates a Logger from an existing zerolog.Logger.
func NewZerologAdapter(l zerolog.Logger) Logger {
	return &ZerologAdapter{logger: l}
}

// NewZerologLogger builds a timestamped zerolog Logger. Format "console"
// selects the human readable writer.
func NewZerologLogger(w io.Writer, level LogLevel, format string) Logger {
	if format == "console" {
		w = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: "15:04:05.000",
			FormatLevel: func(i interface{}) string {
				return strings.ToUpper(fmt.Sprintf("| %-6s|", i))
			},
		}
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano

	return NewZerologAdapter(zerolog.New(w).Level(zerologLevel(level)).With().Timestamp().Logger())
}

func zerologLevel(l LogLevel) zerolog.Level {
	switch l {
	case LogLevelDebug:
		return zerolog.DebugLevel
	case LogLevelWarn:
		return zerolog.WarnLevel
	case LogLevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Debug logs a debug message.
func (z *ZerologAdapter) Debug(msg string, args ...any) { z.write(z.logger.Debug(), msg, args) }

// Info logs an informational message.
func (z *ZerologAdapter) Info(msg string, args ...any) { z.write(z.logger.Info(), msg, args) }

// Warn logs a warning message.
func (z *ZerologAdapter) Warn(msg string, args ...any) { z.write(z.logger.Warn(), msg, args) }

// Error logs an error message.
func (z *ZerologAdapter) Error(msg string, args ...any) { z.write(z.logger.Error(), msg, args) }

func (z *ZerologAdapter) write(ev *zerolog.Event, msg string, args []any) {
	if ev == nil { // level disabled
		return
	}
	if len(args)%2 == 1 {
		args = append(args, "(MISSING)")
	}
	ev.Fields(args).Msg(msg)
}
