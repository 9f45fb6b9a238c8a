package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"carprobe/internal/config"
)

// Options describes logger construction parameters.
type Options struct {
	Level string
	// Format is "console" (default) or "json".
	Format string
	// OutputPaths accepts "stdout", "stderr" or file paths. Empty means stderr.
	OutputPaths []string
	Development bool
}

var handlerFactories = map[string]func(io.Writer, *slog.HandlerOptions) slog.Handler{
	"console": newConsoleHandler,
	"json": func(w io.Writer, opts *slog.HandlerOptions) slog.Handler {
		opts.ReplaceAttr = jsonAttr
		return slog.NewJSONHandler(w, opts)
	},
}

// New constructs a slog logger. Caller locations are attached in
// development mode and at debug level.
func New(opts Options) (*slog.Logger, error) {
	format := strings.ToLower(strings.TrimSpace(opts.Format))
	if format == "" {
		format = "console"
	}
	factory, ok := handlerFactories[format]
	if !ok {
		return nil, fmt.Errorf("log format: unsupported value %q", opts.Format)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(opts.Level))); err != nil {
		level = slog.LevelInfo
	}

	sink, err := openSinks(opts.OutputPaths)
	if err != nil {
		return nil, err
	}
	handlerOpts := &slog.HandlerOptions{
		Level:     level,
		AddSource: opts.Development || level <= slog.LevelDebug,
	}
	return slog.New(factory(sink, handlerOpts)), nil
}

// NewFromConfig builds the daemon logger. Output goes to stderr and, when a
// log directory is configured, is mirrored to carprobe.log inside it.
func NewFromConfig(cfg *config.Config) (*slog.Logger, error) {
	if cfg == nil {
		return New(Options{})
	}
	paths := []string{"stderr"}
	if dir := cfg.Paths.LogDir; dir != "" {
		paths = append(paths, filepath.Join(dir, "carprobe.log"))
	}
	return New(Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format, OutputPaths: paths})
}

func openSinks(paths []string) (io.Writer, error) {
	var sinks []io.Writer
	seen := make(map[string]bool, len(paths))
	for _, raw := range paths {
		path := strings.TrimSpace(raw)
		if path == "" || seen[path] {
			continue
		}
		seen[path] = true
		switch path {
		case "stdout":
			sinks = append(sinks, os.Stdout)
		case "stderr":
			sinks = append(sinks, os.Stderr)
		default:
			file, err := openLogFile(path)
			if err != nil {
				return nil, err
			}
			sinks = append(sinks, file)
		}
	}
	switch len(sinks) {
	case 0:
		return os.Stderr, nil
	case 1:
		return sinks[0], nil
	}
	return io.MultiWriter(sinks...), nil
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure log directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o664)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", path, err)
	}
	return file, nil
}

// jsonAttr renames time to "ts", lowercases levels and shortens sources.
func jsonAttr(_ []string, attr slog.Attr) slog.Attr {
	switch attr.Key {
	case slog.TimeKey:
		attr.Key = "ts"
		if attr.Value.Kind() == slog.KindTime {
			attr.Value = slog.StringValue(attr.Value.Time().UTC().Format(time.RFC3339))
		}
	case slog.LevelKey:
		attr.Value = slog.StringValue(strings.ToLower(attr.Value.String()))
	case slog.SourceKey:
		if src, ok := attr.Value.Any().(*slog.Source); ok && src != nil {
			attr.Value = slog.StringValue(fmt.Sprintf("%s:%d", filepath.Base(src.File), src.Line))
		}
	}
	return attr
}
