package snag

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/charliek/snag/buffer"
	"github.com/charliek/snag/report"
)

// Version is the SDK version advertised in device snapshots and submission
// headers.
const Version = "0.3.0"

// Engine is one independent capture instance: interception state, trace
// buffers, page identity, and submission plumbing. Most programs use the
// package-level functions, which drive a single shared engine.
type Engine struct {
	mu        sync.Mutex
	config    Config
	installed bool
	active    atomic.Bool

	console consoleCapture
	network networkCapture
	actions *ActionRecorder

	consoleBuf *buffer.Buffer[report.ConsoleLog]
	networkBuf *buffer.Buffer[report.NetworkLog]
	actionBuf  *buffer.Buffer[report.UserAction]

	pageURL  string
	pageHTML string

	log zerolog.Logger
}

// New builds an engine from config without installing anything. Defaults
// are applied first; validation problems return ErrInvalidConfig.
func New(config Config) (*Engine, error) {
	config.applyDefaults()
	if err := Validate(&config); err != nil {
		return nil, err
	}
	if config.AppURL == "" {
		config.AppURL = defaultAppURL()
	}

	level, _ := zerolog.ParseLevel(config.LogLevel)
	e := &Engine{
		config:     config,
		consoleBuf: buffer.New[report.ConsoleLog](config.Capture.MaxConsoleLogs),
		networkBuf: buffer.New[report.NetworkLog](config.Capture.MaxNetworkLogs),
		actionBuf:  buffer.New[report.UserAction](config.Capture.MaxUserActions),
		pageURL:    config.AppURL,
		log:        zerolog.New(os.Stderr).With().Timestamp().Str("component", "snag").Logger().Level(level),
	}
	e.actions = newActionRecorder(e.actionBuf, &e.active, config.Capture.ActionsEnabled())
	return e, nil
}

// Init installs the enabled interception categories. It is idempotent:
// calling it while installed is a no-op returning nil.
func (e *Engine) Init() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.installed {
		return nil
	}

	e.active.Store(true)
	if e.config.Capture.ConsoleEnabled() {
		e.installConsole()
	}
	if e.config.Capture.NetworkEnabled() {
		e.installNetwork()
	}
	e.installed = true

	e.log.Debug().
		Bool("console", e.config.Capture.ConsoleEnabled()).
		Bool("network", e.config.Capture.NetworkEnabled()).
		Bool("actions", e.config.Capture.ActionsEnabled()).
		Msg("capture installed")
	return nil
}

// Teardown restores every global Init replaced, clears the trace buffers,
// and deactivates recording. Safe to call repeatedly and before Init.
// Wrappers still referenced by in-flight work become no-ops.
func (e *Engine) Teardown() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.active.Store(false)
	if !e.installed {
		return
	}
	e.restoreConsole()
	e.restoreNetwork()
	e.consoleBuf.Clear()
	e.networkBuf.Clear()
	e.actionBuf.Clear()
	e.installed = false

	e.log.Debug().Msg("capture removed")
}

// Clear empties all trace buffers without touching interception state.
func (e *Engine) Clear() {
	e.consoleBuf.Clear()
	e.networkBuf.Clear()
	e.actionBuf.Clear()
}

// Actions returns the recorder host UI layers report interactions to.
func (e *Engine) Actions() *ActionRecorder {
	return e.actions
}

// Config returns a copy of the engine's effective configuration.
func (e *Engine) Config() Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.config
}

// SetPage updates the page identity captured in snapshots: the current
// URL and, optionally, markup a renderer can rasterize. An empty url keeps
// the previous one.
func (e *Engine) SetPage(url, markup string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if url != "" {
		e.pageURL = url
	}
	e.pageHTML = markup
}

// Page returns the tracked page URL and markup.
func (e *Engine) Page() (url, markup string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pageURL, e.pageHTML
}

func defaultAppURL() string {
	name := "process"
	if len(os.Args) > 0 && os.Args[0] != "" {
		name = filepath.Base(os.Args[0])
	}
	return "app://" + name
}

// The package-level API drives a single shared engine.
var (
	defaultMu  sync.Mutex
	defaultEng *Engine
)

// Init creates and installs the package-level engine. While installed,
// further calls are no-ops and their configuration is ignored. A config
// problem returns ErrInvalidConfig and installs nothing.
func Init(config Config) error {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultEng != nil {
		return defaultEng.Init()
	}
	e, err := New(config)
	if err != nil {
		return err
	}
	if err := e.Init(); err != nil {
		return err
	}
	defaultEng = e
	return nil
}

// Default returns the package-level engine, or nil before Init.
func Default() *Engine {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	return defaultEng
}

// Teardown removes the package-level engine's interception and discards
// the engine. Safe to call without a prior Init.
func Teardown() {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultEng == nil {
		return
	}
	defaultEng.Teardown()
	defaultEng = nil
}

// Capture assembles a snapshot from the package-level engine. Before Init
// it returns an empty snapshot.
func Capture() *report.Snapshot {
	if e := Default(); e != nil {
		return e.Capture()
	}
	return &report.Snapshot{}
}

// Collect assembles a snapshot, optionally with a screenshot.
func Collect(ctx context.Context, includeScreenshot bool) *report.Snapshot {
	if e := Default(); e != nil {
		return e.Collect(ctx, includeScreenshot)
	}
	return &report.Snapshot{}
}

// CaptureScreenshot rasterizes the tracked page through the package-level
// engine.
func CaptureScreenshot(ctx context.Context) (string, error) {
	if e := Default(); e != nil {
		return e.CaptureScreenshot(ctx)
	}
	return "", ErrNotInitialized
}

// Submit collects a snapshot and sends it to the configured endpoint.
func Submit(ctx context.Context, opts report.SubmitOptions) (*report.SubmitResult, error) {
	if e := Default(); e != nil {
		return e.Submit(ctx, opts)
	}
	return nil, ErrNotInitialized
}

// Clear empties the package-level engine's trace buffers.
func Clear() {
	if e := Default(); e != nil {
		e.Clear()
	}
}

// SetPage updates the package-level engine's tracked page.
func SetPage(url, markup string) {
	if e := Default(); e != nil {
		e.SetPage(url, markup)
	}
}

// Actions returns the package-level action recorder; its methods are safe
// to call even before Init.
func Actions() *ActionRecorder {
	if e := Default(); e != nil {
		return e.Actions()
	}
	return nil
}

// Recover records a panic through the package-level engine and re-panics,
// leaving crash behavior unchanged. Defer it directly:
//
//	defer snag.Recover()
func Recover() {
	if v := recover(); v != nil {
		if e := Default(); e != nil {
			e.recordPanic(v)
		}
		panic(v)
	}
}

// Go runs fn on a new goroutine with panic recording installed.
func Go(fn func()) {
	go func() {
		defer Recover()
		fn()
	}()
}

// WrapClient wraps client with the package-level engine's recording
// transport. Before Init the client is returned unwrapped.
func WrapClient(client *http.Client) *http.Client {
	if e := Default(); e != nil {
		return e.WrapClient(client)
	}
	if client == nil {
		return http.DefaultClient
	}
	return client
}

// RoundTripper wraps next with the package-level engine's recording
// transport. Before Init, next is returned as-is.
func RoundTripper(next http.RoundTripper) http.RoundTripper {
	if e := Default(); e != nil {
		return e.RoundTripper(next)
	}
	if next == nil {
		return http.DefaultTransport
	}
	return next
}

// ShowDialog runs the interactive capture form against the package-level
// engine.
func ShowDialog(ctx context.Context) error {
	if e := Default(); e != nil {
		return e.ShowDialog(ctx)
	}
	return ErrNotInitialized
}

// BadgeHTML returns the embeddable trigger fragment for the package-level
// engine, or "" before Init.
func BadgeHTML() string {
	if e := Default(); e != nil {
		return e.BadgeHTML()
	}
	return ""
}
