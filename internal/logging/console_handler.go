package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
)

// consoleHandler writes one human-readable line per record:
//
//	2024-03-01T09:00:00Z INFO registry: lookup done registration="AB12 CDE"
//
// The component attribute becomes the line prefix instead of a field.
// Attributes added through WithAttrs are rendered once and reused.
type consoleHandler struct {
	sink      *lockedWriter
	opts      slog.HandlerOptions
	color     bool
	component string
	group     string
	fields    []byte
}

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

var levelColors = map[slog.Level]text.Colors{
	slog.LevelDebug: {text.FgHiBlack},
	slog.LevelInfo:  {text.FgCyan},
	slog.LevelWarn:  {text.FgYellow},
	slog.LevelError: {text.FgRed, text.Bold},
}

func newConsoleHandler(w io.Writer, opts *slog.HandlerOptions) slog.Handler {
	h := &consoleHandler{sink: &lockedWriter{w: w}}
	if opts != nil {
		h.opts = *opts
	}
	if file, ok := w.(*os.File); ok {
		h.color = isatty.IsTerminal(file.Fd())
	}
	return h
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	threshold := slog.LevelInfo
	if h.opts.Level != nil {
		threshold = h.opts.Level.Level()
	}
	return level >= threshold
}

func (h *consoleHandler) Handle(_ context.Context, record slog.Record) error {
	stamp := record.Time
	if stamp.IsZero() {
		stamp = time.Now()
	}
	component := h.component
	var fields []byte
	record.Attrs(func(attr slog.Attr) bool {
		fields = h.appendAttr(fields, h.group, attr, &component)
		return true
	})

	line := make([]byte, 0, 96+len(h.fields)+len(fields))
	line = stamp.UTC().AppendFormat(line, time.RFC3339)
	line = append(line, ' ')
	line = append(line, h.levelLabel(record.Level)...)
	line = append(line, ' ')
	if component != "" {
		line = append(line, component...)
		line = append(line, ": "...)
	}
	if msg := strings.TrimSpace(record.Message); msg != "" {
		line = append(line, msg...)
	} else {
		line = append(line, "(no message)"...)
	}
	if h.opts.AddSource && record.PC != 0 {
		frame, _ := runtime.CallersFrames([]uintptr{record.PC}).Next()
		if frame.File != "" {
			line = fmt.Appendf(line, " [%s:%d]", filepath.Base(frame.File), frame.Line)
		}
	}
	line = append(line, h.fields...)
	line = append(line, fields...)
	line = append(line, '\n')

	h.sink.mu.Lock()
	defer h.sink.mu.Unlock()
	_, err := h.sink.w.Write(line)
	return err
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.fields = append([]byte(nil), h.fields...)
	for _, attr := range attrs {
		next.fields = next.appendAttr(next.fields, h.group, attr, &next.component)
	}
	return &next
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.group = h.group + name + "."
	return &next
}

// appendAttr renders attr as " key=value", flattening groups into dotted
// keys. A top-level component attribute is captured rather than rendered.
func (h *consoleHandler) appendAttr(dst []byte, prefix string, attr slog.Attr, component *string) []byte {
	attr.Value = attr.Value.Resolve()
	if attr.Equal(slog.Attr{}) {
		return dst
	}
	if attr.Value.Kind() == slog.KindGroup {
		if attr.Key != "" {
			prefix += attr.Key + "."
		}
		for _, member := range attr.Value.Group() {
			dst = h.appendAttr(dst, prefix, member, component)
		}
		return dst
	}
	if prefix == "" && attr.Key == FieldComponent {
		*component = valueText(attr.Value)
		return dst
	}
	if attr.Key == "" {
		return dst
	}
	dst = append(dst, ' ')
	dst = append(dst, prefix...)
	dst = append(dst, attr.Key...)
	dst = append(dst, '=')
	return appendValue(dst, attr.Value)
}

func (h *consoleHandler) levelLabel(level slog.Level) string {
	bucket := slog.LevelDebug
	for _, candidate := range []slog.Level{slog.LevelError, slog.LevelWarn, slog.LevelInfo} {
		if level >= candidate {
			bucket = candidate
			break
		}
	}
	label := bucket.String()
	if h.color {
		return levelColors[bucket].Sprint(label)
	}
	return label
}

func appendValue(dst []byte, v slog.Value) []byte {
	switch v.Kind() {
	case slog.KindBool:
		return strconv.AppendBool(dst, v.Bool())
	case slog.KindInt64:
		return strconv.AppendInt(dst, v.Int64(), 10)
	case slog.KindUint64:
		return strconv.AppendUint(dst, v.Uint64(), 10)
	case slog.KindFloat64:
		return strconv.AppendFloat(dst, v.Float64(), 'f', -1, 64)
	case slog.KindDuration:
		return append(dst, v.Duration().String()...)
	case slog.KindTime:
		return v.Time().UTC().AppendFormat(dst, time.RFC3339)
	}
	s := valueText(v)
	if s == "" || strings.ContainsFunc(s, func(r rune) bool { return r <= ' ' || r == '=' || r == '"' }) {
		return strconv.AppendQuote(dst, s)
	}
	return append(dst, s...)
}

func valueText(v slog.Value) string {
	if v.Kind() == slog.KindAny {
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
		return fmt.Sprint(v.Any())
	}
	return v.String()
}
