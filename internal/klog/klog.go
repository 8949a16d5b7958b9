// Package klog provides the kernel's structured logging output: one
// line per record, suitable for a serial console rather than a terminal
// pager.
package klog

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

/// LevelVar is the package's runtime-adjustable minimum level, shared by
/// the default logger and anything that wraps it.
var LevelVar = &slog.LevelVar{}

/// Default returns a logger that writes single-line records to w: the
/// level, then the message, then any attached hart/pid attributes.
func Default(w io.Writer) *slog.Logger {
	return slog.New(NewHandler(w))
}

/// Handler implements slog.Handler with a compact, single-line format:
//
//	LEVEL message key=value key=value
type Handler struct {
	mu   *sync.Mutex
	out  io.Writer
	opts slog.HandlerOptions
	pre  []slog.Attr
}

/// NewHandler builds a Handler writing to out at the package's shared
/// level.
func NewHandler(out io.Writer) *Handler {
	return &Handler{
		mu:  new(sync.Mutex),
		out: out,
		opts: slog.HandlerOptions{
			Level: LevelVar,
		},
	}
}

func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.opts.Level.Level()
}

func (h *Handler) Handle(_ context.Context, rec slog.Record) error {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%-5s %s", rec.Level.String(), rec.Message)

	for _, a := range h.pre {
		writeAttr(&buf, a)
	}
	rec.Attrs(func(a slog.Attr) bool {
		writeAttr(&buf, a)
		return true
	})
	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.out.Write(buf.Bytes())
	return err
}

func writeAttr(buf *bytes.Buffer, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	fmt.Fprintf(buf, " %s=%v", strings.ToLower(a.Key), a.Value)
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	pre := make([]slog.Attr, 0, len(h.pre)+len(attrs))
	pre = append(pre, h.pre...)
	pre = append(pre, attrs...)
	return &Handler{mu: h.mu, out: h.out, opts: h.opts, pre: pre}
}

func (h *Handler) WithGroup(_ string) slog.Handler {
	// kernel log lines stay flat; grouping would only add nesting no
	// reader of a serial console benefits from.
	return h
}

var defaultLogger = Default(os.Stderr)

/// Hart returns the default logger with a hart attribute attached,
/// the common case for kernel subsystems that know which hart they're
/// running on.
func Hart(hart int) *slog.Logger {
	return defaultLogger.With("hart", hart)
}

/// L returns the package default logger.
func L() *slog.Logger { return defaultLogger }

/// SetDefault replaces the package default logger, e.g. to redirect
/// kernel logs onto the emulated console once it is up.
func SetDefault(l *slog.Logger) { defaultLogger = l }
