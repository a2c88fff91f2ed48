package snag

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/charliek/snag/report"
)

// consoleCapture owns the console interception state: the stored originals
// for every logging global the engine replaces.
type consoleCapture struct {
	origWriter   io.Writer
	origFlags    int
	origSlog     *slog.Logger
	slogReplaced bool
	origZerolog  zerolog.Logger
	installed    bool
}

// installConsole replaces the process logging globals with recording
// wrappers that forward to the stored originals. Visible output is
// unchanged; each emitted line or record is additionally appended to the
// console buffer.
func (e *Engine) installConsole() {
	c := &e.console

	c.origWriter = log.Writer()
	c.origFlags = log.Flags()
	c.origSlog = slog.Default()

	// The builtin slog handler already writes through the stdlib logger, so
	// the line tee below records it; wrapping it too would record every
	// record twice. Only programs that installed their own default handler
	// get the structured wrap.
	if fmt.Sprintf("%T", c.origSlog.Handler()) != "*slog.defaultHandler" {
		slog.SetDefault(slog.New(&capturingHandler{
			next: c.origSlog.Handler(),
			record: func(level report.Level, msg string) {
				e.appendConsole(level, msg, "")
			},
		}))
		c.slogReplaced = true
	}

	// slog.SetDefault reroutes the stdlib logger and zeroes its flags, so
	// the tee and the flags go in after it.
	log.SetFlags(c.origFlags)
	log.SetOutput(&lineWriter{
		out: c.origWriter,
		record: func(line string) {
			e.appendConsole(report.LevelLog, line, "")
		},
	})

	c.origZerolog = zlog.Logger
	zlog.Logger = zlog.Logger.Hook(zerologHook{
		record: func(level report.Level, msg string) {
			e.appendConsole(level, msg, "")
		},
	})

	c.installed = true
}

// restoreConsole puts every replaced logging global back. Safe to call when
// nothing was installed.
func (e *Engine) restoreConsole() {
	c := &e.console
	if !c.installed {
		return
	}
	log.SetOutput(c.origWriter)
	log.SetFlags(c.origFlags)
	if c.slogReplaced {
		slog.SetDefault(c.origSlog)
	}
	zlog.Logger = c.origZerolog
	*c = consoleCapture{}
}

// originalLogOutput returns the writer stdlib log used before interception,
// or the current one when console capture is not installed. Engine
// diagnostics write here so they stay visible without re-entering the tee.
func (e *Engine) originalLogOutput() io.Writer {
	if e.console.installed {
		return e.console.origWriter
	}
	return log.Writer()
}

// lineWriter tees stdlib log output: bytes go to the original writer first
// and untouched, completed lines are then recorded. Recording failures
// never reach the host.
type lineWriter struct {
	out    io.Writer
	record func(line string)

	mu      sync.Mutex
	pending []byte
}

func (w *lineWriter) Write(p []byte) (int, error) {
	n, err := w.out.Write(p)
	if n > 0 {
		w.capture(p[:n])
	}
	return n, err
}

func (w *lineWriter) capture(p []byte) {
	defer func() {
		_ = recover()
	}()

	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending = append(w.pending, p...)
	for {
		i := bytes.IndexByte(w.pending, '\n')
		if i < 0 {
			return
		}
		line := string(w.pending[:i])
		w.pending = w.pending[i+1:]
		if line != "" {
			w.record(line)
		}
	}
}

// capturingHandler wraps the default slog handler. Every record is
// captured; delegation to the wrapped handler happens only when it reports
// the level enabled, so visible output matches the uninstrumented process.
type capturingHandler struct {
	next   slog.Handler
	record func(level report.Level, msg string)
	attrs  []string
	groups []string
}

func (h *capturingHandler) Enabled(context.Context, slog.Level) bool {
	return true
}

func (h *capturingHandler) Handle(ctx context.Context, r slog.Record) error {
	h.capture(r)
	if h.next.Enabled(ctx, r.Level) {
		return h.next.Handle(ctx, r)
	}
	return nil
}

func (h *capturingHandler) capture(r slog.Record) {
	defer func() {
		_ = recover()
	}()

	parts := make([]string, 0, 1+len(h.attrs)+r.NumAttrs())
	if r.Message != "" {
		parts = append(parts, r.Message)
	}
	parts = append(parts, h.attrs...)
	r.Attrs(func(a slog.Attr) bool {
		if !a.Equal(slog.Attr{}) {
			parts = append(parts, h.renderAttr(a))
		}
		return true
	})
	h.record(slogKind(r.Level), strings.Join(parts, " "))
}

func (h *capturingHandler) renderAttr(a slog.Attr) string {
	key := a.Key
	if len(h.groups) > 0 {
		key = strings.Join(h.groups, ".") + "." + key
	}
	return key + "=" + report.Stringify(a.Value.Resolve().Any())
}

func (h *capturingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	nh := h.clone()
	for _, a := range attrs {
		nh.attrs = append(nh.attrs, h.renderAttr(a))
	}
	nh.next = h.next.WithAttrs(attrs)
	return nh
}

func (h *capturingHandler) WithGroup(name string) slog.Handler {
	nh := h.clone()
	nh.groups = append(nh.groups, name)
	nh.next = h.next.WithGroup(name)
	return nh
}

func (h *capturingHandler) clone() *capturingHandler {
	return &capturingHandler{
		next:   h.next,
		record: h.record,
		attrs:  append([]string(nil), h.attrs...),
		groups: append([]string(nil), h.groups...),
	}
}

func slogKind(level slog.Level) report.Level {
	switch {
	case level < slog.LevelInfo:
		return report.LevelDebug
	case level < slog.LevelWarn:
		return report.LevelInfo
	case level < slog.LevelError:
		return report.LevelWarn
	default:
		return report.LevelError
	}
}

// zerologHook records events passing through the global zerolog logger.
// Hooks run inside zerolog's emit path, so output is already guaranteed.
type zerologHook struct {
	record func(level report.Level, msg string)
}

func (h zerologHook) Run(_ *zerolog.Event, level zerolog.Level, message string) {
	defer func() {
		_ = recover()
	}()
	h.record(zerologKind(level), message)
}

func zerologKind(level zerolog.Level) report.Level {
	switch level {
	case zerolog.TraceLevel, zerolog.DebugLevel:
		return report.LevelDebug
	case zerolog.InfoLevel:
		return report.LevelInfo
	case zerolog.WarnLevel:
		return report.LevelWarn
	case zerolog.ErrorLevel, zerolog.FatalLevel, zerolog.PanicLevel:
		return report.LevelError
	default:
		return report.LevelLog
	}
}

// Recover records an in-flight panic as an error entry with its stack and
// re-panics, leaving the host's crash behavior unchanged. Defer it directly:
//
//	defer engine.Recover()
func (e *Engine) Recover() {
	if v := recover(); v != nil {
		e.recordPanic(v)
		panic(v)
	}
}

// Go runs fn on a new goroutine with panic recording installed. A panic in
// fn is recorded and then crashes the process exactly as an unwrapped
// goroutine panic would.
func (e *Engine) Go(fn func()) {
	go func() {
		defer e.Recover()
		fn()
	}()
}

func (e *Engine) recordPanic(v any) {
	defer func() {
		_ = recover()
	}()
	e.appendConsole(report.LevelError, "panic: "+report.Stringify(v), string(debug.Stack()))
}

// appendConsole records one console entry, observing the installed state
// and the category toggle.
func (e *Engine) appendConsole(level report.Level, msg, stack string) {
	if !e.active.Load() || !e.config.Capture.ConsoleEnabled() {
		return
	}
	e.consoleBuf.Append(report.ConsoleLog{
		Type:      level,
		Message:   msg,
		Timestamp: report.Now(),
		Stack:     stack,
	})
}
