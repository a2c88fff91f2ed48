package snag

import (
	"bytes"
	"io"
	"log"
	"log/slog"
	"testing"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charliek/snag/report"
)

func TestConsoleCapture_StdlibLog(t *testing.T) {
	var sink bytes.Buffer
	orig := log.Writer()
	t.Cleanup(func() { log.SetOutput(orig) })
	log.SetOutput(&sink)

	e := newTestEngine(t)

	log.Print("checkout failed for order 4411")
	log.Print("retrying")

	snap := e.Capture()
	require.Len(t, snap.ConsoleLogs, 2)
	assert.Equal(t, report.LevelLog, snap.ConsoleLogs[0].Type)
	assert.Contains(t, snap.ConsoleLogs[0].Message, "checkout failed for order 4411")
	assert.Contains(t, snap.ConsoleLogs[1].Message, "retrying")
	assert.Positive(t, snap.ConsoleLogs[0].Timestamp)

	// The host sees its output unchanged.
	assert.Contains(t, sink.String(), "checkout failed for order 4411")
	assert.Contains(t, sink.String(), "retrying")
}

func TestConsoleCapture_Slog(t *testing.T) {
	var sink bytes.Buffer
	origSlog := slog.Default()
	origWriter := log.Writer()
	origFlags := log.Flags()
	t.Cleanup(func() {
		slog.SetDefault(origSlog)
		log.SetOutput(origWriter)
		log.SetFlags(origFlags)
	})
	slog.SetDefault(slog.New(slog.NewTextHandler(&sink, nil)))

	e := newTestEngine(t)

	slog.Info("payment settled", "order", 4411)
	slog.Warn("inventory low", slog.String("sku", "A-302"))
	slog.Error("charge declined")

	snap := e.Capture()
	require.Len(t, snap.ConsoleLogs, 3)
	assert.Equal(t, report.LevelInfo, snap.ConsoleLogs[0].Type)
	assert.Equal(t, "payment settled order=4411", snap.ConsoleLogs[0].Message)
	assert.Equal(t, report.LevelWarn, snap.ConsoleLogs[1].Type)
	assert.Equal(t, "inventory low sku=A-302", snap.ConsoleLogs[1].Message)
	assert.Equal(t, report.LevelError, snap.ConsoleLogs[2].Type)
	assert.Equal(t, "charge declined", snap.ConsoleLogs[2].Message)

	// Delegation still reaches the host handler.
	assert.Contains(t, sink.String(), "payment settled")
	assert.Contains(t, sink.String(), "charge declined")
}

func TestConsoleCapture_SlogAttrsAndGroups(t *testing.T) {
	origSlog := slog.Default()
	origWriter := log.Writer()
	origFlags := log.Flags()
	t.Cleanup(func() {
		slog.SetDefault(origSlog)
		log.SetOutput(origWriter)
		log.SetFlags(origFlags)
	})
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))

	e := newTestEngine(t)

	logger := slog.Default().With("service", "checkout").WithGroup("req")
	logger.Info("handled", "id", "r-9")

	snap := e.Capture()
	require.Len(t, snap.ConsoleLogs, 1)
	assert.Equal(t, "handled service=checkout req.id=r-9", snap.ConsoleLogs[0].Message)
}

func TestConsoleCapture_BuiltinSlogRecordsOnce(t *testing.T) {
	var sink bytes.Buffer
	orig := log.Writer()
	t.Cleanup(func() { log.SetOutput(orig) })
	log.SetOutput(&sink)

	e := newTestEngine(t)

	// The builtin slog handler emits through the stdlib logger, so the line
	// tee is the only recorder that must fire.
	slog.Info("single entry")

	snap := e.Capture()
	require.Len(t, snap.ConsoleLogs, 1)
	assert.Equal(t, report.LevelLog, snap.ConsoleLogs[0].Type)
	assert.Contains(t, snap.ConsoleLogs[0].Message, "single entry")
	assert.Contains(t, sink.String(), "single entry")
}

func TestConsoleCapture_Zerolog(t *testing.T) {
	orig := zlog.Logger
	t.Cleanup(func() { zlog.Logger = orig })
	zlog.Logger = zerolog.New(io.Discard)

	e := newTestEngine(t)

	zlog.Error().Str("order", "4411").Msg("charge declined")
	zlog.Debug().Msg("noise")

	snap := e.Capture()
	require.Len(t, snap.ConsoleLogs, 2)
	assert.Equal(t, report.LevelError, snap.ConsoleLogs[0].Type)
	assert.Equal(t, "charge declined", snap.ConsoleLogs[0].Message)
	assert.Equal(t, report.LevelDebug, snap.ConsoleLogs[1].Type)
}

func TestConsoleCapture_DisabledByConfig(t *testing.T) {
	writer := log.Writer()

	e := newTestEngine(t, func(c *Config) { c.Capture.Console = boolPtr(false) })

	// Nothing was installed and nothing is recorded.
	assert.Equal(t, writer, log.Writer())
	e.appendConsole(report.LevelError, "dropped", "")
	assert.Empty(t, e.Capture().ConsoleLogs)
}

func TestConsoleCapture_EvictsOldest(t *testing.T) {
	e := newTestEngine(t, func(c *Config) { c.Capture.MaxConsoleLogs = 3 })

	for _, msg := range []string{"one", "two", "three", "four", "five"} {
		e.appendConsole(report.LevelLog, msg, "")
	}

	snap := e.Capture()
	require.Len(t, snap.ConsoleLogs, 3)
	assert.Equal(t, "three", snap.ConsoleLogs[0].Message)
	assert.Equal(t, "four", snap.ConsoleLogs[1].Message)
	assert.Equal(t, "five", snap.ConsoleLogs[2].Message)
}

func TestConsoleCapture_EvictionAcrossLevels(t *testing.T) {
	zorig := zlog.Logger
	t.Cleanup(func() { zlog.Logger = zorig })
	zlog.Logger = zerolog.New(io.Discard)
	lorig := log.Writer()
	t.Cleanup(func() { log.SetOutput(lorig) })
	log.SetOutput(io.Discard)

	e := newTestEngine(t, func(c *Config) { c.Capture.MaxConsoleLogs = 2 })

	zlog.Error().Msg("a")
	zlog.Warn().Msg("b")
	log.Print("c")

	snap := e.Capture()
	require.Len(t, snap.ConsoleLogs, 2)
	assert.Equal(t, report.LevelWarn, snap.ConsoleLogs[0].Type)
	assert.Equal(t, "b", snap.ConsoleLogs[0].Message)
	assert.Equal(t, report.LevelLog, snap.ConsoleLogs[1].Type)
	assert.Contains(t, snap.ConsoleLogs[1].Message, "c")
}

func TestRecover_RecordsAndRepanics(t *testing.T) {
	e := newTestEngine(t)

	recovered := func() (v any) {
		defer func() { v = recover() }()
		func() {
			defer e.Recover()
			panic("boom")
		}()
		return nil
	}()

	assert.Equal(t, "boom", recovered)

	snap := e.Capture()
	require.Len(t, snap.ConsoleLogs, 1)
	entry := snap.ConsoleLogs[0]
	assert.Equal(t, report.LevelError, entry.Type)
	assert.Equal(t, "panic: boom", entry.Message)
	assert.NotEmpty(t, entry.Stack)
}

func TestGo_RunsFunction(t *testing.T) {
	e := newTestEngine(t)

	done := make(chan struct{})
	e.Go(func() { close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("goroutine never ran")
	}
}

func TestLineWriter_AssemblesPartialLines(t *testing.T) {
	var lines []string
	var out bytes.Buffer
	w := &lineWriter{out: &out, record: func(l string) { lines = append(lines, l) }}

	io.WriteString(w, "first ha")
	io.WriteString(w, "lf\nsecond\n\n")

	assert.Equal(t, []string{"first half", "second"}, lines)
	assert.Equal(t, "first half\nsecond\n\n", out.String())
}

func TestSlogKindMapping(t *testing.T) {
	assert.Equal(t, report.LevelDebug, slogKind(slog.LevelDebug))
	assert.Equal(t, report.LevelInfo, slogKind(slog.LevelInfo))
	assert.Equal(t, report.LevelWarn, slogKind(slog.LevelWarn))
	assert.Equal(t, report.LevelError, slogKind(slog.LevelError))
	assert.Equal(t, report.LevelError, slogKind(slog.LevelError+4))
}
