package snag

import (
	"log"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charliek/snag/report"
)

func boolPtr(b bool) *bool { return &b }

// testConfig returns a valid config pointing at a placeholder endpoint.
// Screenshots are off so no test accidentally probes a renderer.
func testConfig() Config {
	return Config{
		ProjectKey: "proj_test",
		Endpoint:   "https://ingest.example/api/v1/reports",
		AppURL:     "https://shop.example/checkout",
		Screenshot: ScreenshotConfig{Enabled: boolPtr(false)},
	}
}

// newTestEngine builds and installs an engine and removes it with the test.
// Tests mutate process-wide logging and transport globals through it, so
// none of them may run in parallel.
func newTestEngine(t *testing.T, mutate ...func(*Config)) *Engine {
	t.Helper()
	cfg := testConfig()
	for _, m := range mutate {
		m(&cfg)
	}
	e, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, e.Init())
	t.Cleanup(e.Teardown)
	return e
}

func TestNew_InvalidConfig(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestNew_DefaultAppURL(t *testing.T) {
	cfg := testConfig()
	cfg.AppURL = ""
	e, err := New(cfg)
	require.NoError(t, err)

	url, _ := e.Page()
	assert.True(t, strings.HasPrefix(url, "app://"), "got %q", url)
}

func TestInit_Idempotent(t *testing.T) {
	e := newTestEngine(t)

	transport := http.DefaultTransport
	writer := log.Writer()

	require.NoError(t, e.Init())
	require.NoError(t, e.Init())

	// Repeat installs must not stack wrappers.
	assert.Same(t, transport, http.DefaultTransport)
	assert.Equal(t, writer, log.Writer())
}

func TestTeardown_RestoresGlobals(t *testing.T) {
	origTransport := http.DefaultTransport
	origWriter := log.Writer()

	e := newTestEngine(t)
	assert.NotEqual(t, origTransport, http.DefaultTransport)
	assert.NotEqual(t, origWriter, log.Writer())

	e.appendConsole(report.LevelInfo, "before teardown", "")
	e.Teardown()

	assert.Equal(t, origTransport, http.DefaultTransport)
	assert.Equal(t, origWriter, log.Writer())

	snap := e.Capture()
	assert.Empty(t, snap.ConsoleLogs)
}

func TestTeardown_SafeWithoutInit(t *testing.T) {
	e, err := New(testConfig())
	require.NoError(t, err)

	e.Teardown()
	e.Teardown()
}

func TestClear_KeepsInterceptionInstalled(t *testing.T) {
	e := newTestEngine(t)

	e.appendConsole(report.LevelLog, "one", "")
	e.appendConsole(report.LevelLog, "two", "")
	require.Len(t, e.Capture().ConsoleLogs, 2)

	e.Clear()
	assert.Empty(t, e.Capture().ConsoleLogs)

	// Recording continues after a clear.
	e.appendConsole(report.LevelLog, "three", "")
	assert.Len(t, e.Capture().ConsoleLogs, 1)
}

func TestSetPage(t *testing.T) {
	e := newTestEngine(t)

	e.SetPage("https://shop.example/cart", "<main>cart</main>")
	url, markup := e.Page()
	assert.Equal(t, "https://shop.example/cart", url)
	assert.Equal(t, "<main>cart</main>", markup)

	// Empty URL keeps the previous one; markup is replaced wholesale.
	e.SetPage("", "")
	url, markup = e.Page()
	assert.Equal(t, "https://shop.example/cart", url)
	assert.Empty(t, markup)

	snap := e.Capture()
	assert.Equal(t, "https://shop.example/cart", snap.PageURL)
}

func TestConfig_ReturnsCopy(t *testing.T) {
	e := newTestEngine(t)

	cfg := e.Config()
	cfg.ProjectKey = "mutated"

	assert.Equal(t, "proj_test", e.Config().ProjectKey)
}

func TestCaptureIndependentSnapshots(t *testing.T) {
	e := newTestEngine(t)

	e.appendConsole(report.LevelError, "first", "")
	snap1 := e.Capture()
	require.Len(t, snap1.ConsoleLogs, 1)

	e.appendConsole(report.LevelError, "second", "")
	snap2 := e.Capture()

	snap2.ConsoleLogs[0].Message = "tampered"

	assert.Len(t, snap1.ConsoleLogs, 1)
	assert.Equal(t, "first", snap1.ConsoleLogs[0].Message)
}

func TestPackageLevelLifecycle(t *testing.T) {
	t.Cleanup(Teardown)

	// Everything is inert before Init.
	assert.Nil(t, Default())
	assert.Empty(t, Capture().ConsoleLogs)
	assert.Nil(t, Actions())
	_, err := Submit(t.Context(), report.SubmitOptions{})
	assert.ErrorIs(t, err, ErrNotInitialized)

	require.NoError(t, Init(testConfig()))
	require.NotNil(t, Default())

	// A second Init is a no-op; the first engine stays installed.
	first := Default()
	require.NoError(t, Init(testConfig()))
	assert.Same(t, first, Default())

	SetPage("https://shop.example/cart", "")
	assert.Equal(t, "https://shop.example/cart", Capture().PageURL)

	Clear()
	assert.Empty(t, Capture().ConsoleLogs)

	Teardown()
	assert.Nil(t, Default())
}

func TestPackageInit_InvalidConfig(t *testing.T) {
	t.Cleanup(Teardown)

	err := Init(Config{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Nil(t, Default())
}

func TestWrapClient_BeforeInit(t *testing.T) {
	Teardown()

	client := &http.Client{}
	assert.Same(t, client, WrapClient(client))
	assert.Same(t, http.DefaultClient, WrapClient(nil))
	assert.Same(t, http.DefaultTransport, RoundTripper(nil))
}
