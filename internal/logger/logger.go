// Package logger provides structured logging with colored console output,
// optional file output, and per-component prefixing using log/slog.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Guliveer/guildkit/internal/model"
)

var eventEmoji = map[model.Event]string{
	model.EventGatewayConnected:    "🔌",
	model.EventGatewayDisconnected: "⚡",
	model.EventGatewayReconnecting: "🔁",
	model.EventGatewayGaveUp:       "🛑",
	model.EventMemberJoined:        "👋",
	model.EventMemberRemoved:       "🚪",
	model.EventMemberBanned:        "🔨",
	model.EventMemberUnbanned:      "🕊️",
	model.EventTokenRotated:        "🔑",
}

// ANSI color codes for terminal output.
const (
	colorReset   = "\033[0m"
	colorRed     = "\033[31m"
	colorGreen   = "\033[32m"
	colorYellow  = "\033[33m"
	colorBlue    = "\033[34m"
	colorMagenta = "\033[35m"
	colorCyan    = "\033[36m"
	colorGray    = "\033[90m"
)

// coloredAttrKeys maps slog attribute keys to ANSI color codes for value highlighting.
var coloredAttrKeys = map[string]string{
	"server":  colorMagenta,
	"channel": colorMagenta,
	"user":    colorBlue,
	"event":   colorCyan,
}

// Config holds logger configuration options.
type Config struct {
	Level     slog.Level
	FileLevel slog.Level
	Colored   bool
	LogDir    string
	// Output defaults to os.Stdout.
	Output io.Writer
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Level:     slog.LevelInfo,
		FileLevel: slog.LevelDebug,
		Colored:   true,
	}
}

// Logger wraps slog.Logger with component-scoped prefixes and lifecycle events.
type Logger struct {
	*slog.Logger
	component string
}

// Setup creates a new Logger based on the provided configuration.
// It sets up console and optional file handlers.
func Setup(cfg Config) (*Logger, error) {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}

	handlers := []slog.Handler{newColorHandler(out, cfg.Level, cfg.Colored)}

	if cfg.LogDir != "" {
		if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating log directory %s: %w", cfg.LogDir, err)
		}

		logFile, err := os.OpenFile(
			filepath.Join(cfg.LogDir, "guildkit.log"),
			os.O_CREATE|os.O_WRONLY|os.O_APPEND,
			0o644,
		)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}

		handlers = append(handlers, slog.NewTextHandler(logFile, &slog.HandlerOptions{
			Level: cfg.FileLevel,
		}))
	}

	var handler slog.Handler = handlers[0]
	if len(handlers) > 1 {
		handler = &multiHandler{handlers: handlers}
	}

	return &Logger{Logger: slog.New(handler)}, nil
}

// Nop returns a Logger that discards everything. Useful in tests and as a
// default when callers pass nil.
func Nop() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelError + 1,
	}))}
}

// WithComponent returns a child Logger whose console lines are prefixed with
// [name]. Nested components are joined with a dot.
func (l *Logger) WithComponent(name string) *Logger {
	component := name
	if l.component != "" {
		component = l.component + "." + name
	}
	return &Logger{
		Logger:    slog.New(withPrefix(l.Handler(), component)),
		component: component,
	}
}

// Component returns the component name, empty for the root logger.
func (l *Logger) Component() string {
	return l.component
}

// Event logs a lifecycle event at INFO level. If the event has a mapped
// emoji, it is prepended to the message.
func (l *Logger) Event(ctx context.Context, event model.Event, msg string, args ...any) {
	if emoji, ok := eventEmoji[event]; ok {
		msg = emoji + " " + msg
	}
	l.Logger.InfoContext(ctx, msg, append(args, "event", string(event))...)
}

// ParseLevel converts a string log level to slog.Level.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// withPrefix sets the console prefix on color handlers, including those
// wrapped in a multiHandler. Other handlers get a "component" attribute.
func withPrefix(h slog.Handler, component string) slog.Handler {
	switch v := h.(type) {
	case *colorHandler:
		c := v.clone()
		c.prefix = component
		return c
	case *multiHandler:
		next := make([]slog.Handler, len(v.handlers))
		for i, inner := range v.handlers {
			next[i] = withPrefix(inner, component)
		}
		return &multiHandler{handlers: next}
	default:
		return h.WithAttrs([]slog.Attr{slog.String("component", component)})
	}
}

type colorHandler struct {
	mu      *sync.Mutex
	writer  io.Writer
	level   slog.Level
	colored bool
	prefix  string
	attrs   []slog.Attr
	group   string
}

func newColorHandler(w io.Writer, level slog.Level, colored bool) *colorHandler {
	return &colorHandler{
		mu:      &sync.Mutex{},
		writer:  w,
		level:   level,
		colored: colored,
	}
}

func (h *colorHandler) clone() *colorHandler {
	return &colorHandler{
		mu:      h.mu,
		writer:  h.writer,
		level:   h.level,
		colored: h.colored,
		prefix:  h.prefix,
		attrs:   copyAttrs(h.attrs),
		group:   h.group,
	}
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, record slog.Record) error {
	var b strings.Builder

	timeStr := record.Time.Format("2006-01-02 15:04:05")
	levelStr := fmt.Sprintf("%-5s", record.Level.String())

	prefix := ""
	if h.prefix != "" {
		prefix = "[" + h.prefix + "] "
	}

	if h.colored {
		fmt.Fprintf(&b, "%s%s%s %s%s%s %s%s",
			colorGray, timeStr, colorReset,
			h.levelColor(record.Level), levelStr, colorReset,
			prefix, record.Message,
		)
	} else {
		fmt.Fprintf(&b, "%s %s %s%s", timeStr, levelStr, prefix, record.Message)
	}

	for _, a := range h.attrs {
		h.writeAttr(&b, a)
	}
	record.Attrs(func(a slog.Attr) bool {
		if h.group != "" {
			a.Key = h.group + "." + a.Key
		}
		h.writeAttr(&b, a)
		return true
	})
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.writer, b.String())
	return err
}

func (h *colorHandler) writeAttr(b *strings.Builder, a slog.Attr) {
	if h.colored {
		if color, ok := coloredAttrKeys[a.Key]; ok {
			fmt.Fprintf(b, " %s=%s%v%s", a.Key, color, a.Value, colorReset)
			return
		}
	}
	fmt.Fprintf(b, " %s=%v", a.Key, a.Value)
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := h.clone()
	for _, a := range attrs {
		if h.group != "" {
			a.Key = h.group + "." + a.Key
		}
		c.attrs = append(c.attrs, a)
	}
	return c
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	c := h.clone()
	if c.group != "" {
		c.group += "." + name
	} else {
		c.group = name
	}
	return c
}

func copyAttrs(attrs []slog.Attr) []slog.Attr {
	if len(attrs) == 0 {
		return nil
	}
	cp := make([]slog.Attr, len(attrs))
	copy(cp, attrs)
	return cp
}

func (h *colorHandler) levelColor(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return colorRed
	case level >= slog.LevelWarn:
		return colorYellow
	case level >= slog.LevelInfo:
		return colorGreen
	default:
		return colorCyan
	}
}

type multiHandler struct {
	handlers []slog.Handler
}

func (handler *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range handler.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (handler *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, h := range handler.handlers {
		if h.Enabled(ctx, r.Level) {
			if err := h.Handle(ctx, r.Clone()); err != nil {
				return err
			}
		}
	}
	return nil
}

func (handler *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newHandlers := make([]slog.Handler, len(handler.handlers))
	for i, h := range handler.handlers {
		newHandlers[i] = h.WithAttrs(attrs)
	}
	return &multiHandler{handlers: newHandlers}
}

func (handler *multiHandler) WithGroup(name string) slog.Handler {
	newHandlers := make([]slog.Handler, len(handler.handlers))
	for i, h := range handler.handlers {
		newHandlers[i] = h.WithGroup(name)
	}
	return &multiHandler{handlers: newHandlers}
}
