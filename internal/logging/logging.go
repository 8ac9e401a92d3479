// Package logging configures the agent's default slog output: colorized
// text when attached to a terminal, plain JSON otherwise. The handler
// itself is a small slog.Handler implementation in the same shape as the
// teacher's TUI log handler, just forwarding to a writer instead of a
// Bubble Tea program.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// Setup installs the process-wide default slog logger and returns it.
func Setup(w io.Writer, level slog.Level) *slog.Logger {
	var handler slog.Handler
	if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		handler = newColorHandler(w, level)
	} else {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// colorHandler is a minimal slog.Handler that colorizes the level prefix
// and renders attributes as key=value pairs, for interactive terminals.
type colorHandler struct {
	mu     *sync.Mutex
	w      io.Writer
	level  slog.Level
	attrs  []slog.Attr
	group  string
}

func newColorHandler(w io.Writer, level slog.Level) *colorHandler {
	return &colorHandler{mu: &sync.Mutex{}, w: w, level: level}
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	b.WriteString(levelColor(r.Level).Sprint(levelLabel(r.Level)))
	b.WriteString(" ")
	b.WriteString(r.Message)

	for _, a := range h.attrs {
		fmt.Fprintf(&b, " %s=%v", h.qualifiedKey(a.Key), a.Value)
	}
	r.Attrs(func(a slog.Attr) bool {
		fmt.Fprintf(&b, " %s=%v", h.qualifiedKey(a.Key), a.Value)
		return true
	})
	b.WriteString("\n")

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	copy(newAttrs[len(h.attrs):], attrs)
	return &colorHandler{mu: h.mu, w: h.w, level: h.level, attrs: newAttrs, group: h.group}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	newGroup := name
	if h.group != "" {
		newGroup = h.group + "." + name
	}
	return &colorHandler{mu: h.mu, w: h.w, level: h.level, attrs: h.attrs, group: newGroup}
}

func (h *colorHandler) qualifiedKey(key string) string {
	if h.group == "" {
		return key
	}
	return h.group + "." + key
}

func levelLabel(l slog.Level) string {
	switch {
	case l >= slog.LevelError:
		return "ERROR"
	case l >= slog.LevelWarn:
		return "WARN "
	case l >= slog.LevelInfo:
		return "INFO "
	default:
		return "DEBUG"
	}
}

func levelColor(l slog.Level) *color.Color {
	switch {
	case l >= slog.LevelError:
		return color.New(color.FgRed, color.Bold)
	case l >= slog.LevelWarn:
		return color.New(color.FgYellow)
	case l >= slog.LevelInfo:
		return color.New(color.FgCyan)
	default:
		return color.New(color.FgHiBlack)
	}
}
