package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Rotation settings for the service log file
const (
	FileName   = "index_service.log"
	MaxSizeMB  = 5
	MaxBackups = 3
)

var logLevel = new(slog.LevelVar)

// Options control ConfigureLogging
type Options struct {
	Level   string    // DEBUG, INFO, WARN or ERROR; unknown values mean DEBUG
	Dir     string    // Directory for the rotating log file; empty disables it
	Console io.Writer // Defaults to os.Stderr
}

// ConfigureLogging sets the default slog logger to a text handler writing to
// the console and, when a directory is given, to a rotating log file.
// The returned closer releases the file.
func ConfigureLogging(opts Options) (io.Closer, error) {
	logLevel.Set(ParseLevel(opts.Level))

	console := opts.Console
	if console == nil {
		console = os.Stderr
	}

	var (
		out    io.Writer = console
		closer io.Closer = nopCloser{}
	)
	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
			return nil, err
		}
		file := &lumberjack.Logger{
			Filename:   filepath.Join(opts.Dir, FileName),
			MaxSize:    MaxSizeMB,
			MaxBackups: MaxBackups,
		}
		out = io.MultiWriter(console, file)
		closer = file
	}

	handler := slog.NewTextHandler(out, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
	return closer, nil
}

// ParseLevel maps a level name to a slog level. Unknown names mean DEBUG.
func ParseLevel(name string) slog.Level {
	level, _ := LookupLevel(name)
	return level
}

// LookupLevel maps a level name to a slog level and reports whether the name
// is known
func LookupLevel(name string) (slog.Level, bool) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "DEBUG":
		return slog.LevelDebug, true
	case "INFO":
		return slog.LevelInfo, true
	case "WARN", "WARNING":
		return slog.LevelWarn, true
	case "ERROR":
		return slog.LevelError, true
	default:
		return slog.LevelDebug, false
	}
}

// SetLogLevel changes the level of the logger configured by ConfigureLogging
func SetLogLevel(level slog.Level) {
	logLevel.Set(level)
}

// Level returns the current level
func Level() slog.Level {
	return logLevel.Level()
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
