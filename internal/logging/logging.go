package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	charmlog "github.com/charmbracelet/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

func ParseLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func rotating(file string) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   file,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	}
}

// NewServer returns the JSON logger of the API. When file is set, lines also
// go to a rotating log file. The returned closer flushes that file.
func NewServer(out io.Writer, level, file string) (*slog.Logger, io.Closer) {
	var closer io.Closer = nopCloser{}
	writer := out
	if strings.TrimSpace(file) != "" {
		fw := rotating(file)
		writer = io.MultiWriter(out, fw)
		closer = fw
	}
	handler := slog.NewJSONHandler(writer, &slog.HandlerOptions{Level: ParseLevel(level)})
	return slog.New(handler), closer
}

// NewCLI returns a human readable logger for the command line client. Logs go
// to a rotating file under dir and, in debug mode, to stderr as well.
func NewCLI(dir string, debug bool) (*slog.Logger, error) {
	var writer io.Writer = io.Discard
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
		writer = rotating(filepath.Join(dir, "barberctl.log"))
	}

	level := charmlog.WarnLevel
	if debug {
		level = charmlog.DebugLevel
		writer = io.MultiWriter(os.Stderr, writer)
	}

	logger := charmlog.NewWithOptions(writer, charmlog.Options{
		ReportCaller:    debug,
		ReportTimestamp: true,
		Level:           level,
		Prefix:          "barberctl",
	})
	return slog.New(logger), nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
