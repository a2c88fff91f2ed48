package render

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDevTools serves the discovery endpoints and a single page target
// speaking just enough of the protocol for Render.
type fakeDevTools struct {
	mu      sync.Mutex
	methods []string
	html    string
	png     []byte
}

func (f *fakeDevTools) start(t *testing.T) *httptest.Server {
	t.Helper()

	upgrader := websocket.Upgrader{}
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	mux.HandleFunc("/json/version", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"Browser": "HeadlessTest/1.0"})
	})
	mux.HandleFunc("/json", func(w http.ResponseWriter, _ *http.Request) {
		wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/devtools/page/1"
		_ = json.NewEncoder(w).Encode([]map[string]string{{
			"type":                 "page",
			"url":                  "about:blank",
			"webSocketDebuggerUrl": wsURL,
		}})
	})
	mux.HandleFunc("/devtools/page/1", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			var req struct {
				ID     int            `json:"id"`
				Method string         `json:"method"`
				Params map[string]any `json:"params"`
			}
			if conn.ReadJSON(&req) != nil {
				return
			}

			f.mu.Lock()
			f.methods = append(f.methods, req.Method)
			result := map[string]any{}
			switch req.Method {
			case "Page.getFrameTree":
				result = map[string]any{"frameTree": map[string]any{"frame": map[string]any{"id": "frame-1"}}}
			case "Page.setDocumentContent":
				f.html, _ = req.Params["html"].(string)
			case "Page.captureScreenshot":
				result = map[string]any{"data": base64.StdEncoding.EncodeToString(f.png)}
			}
			f.mu.Unlock()

			if conn.WriteJSON(map[string]any{"id": req.ID, "result": result}) != nil {
				return
			}
		}
	})

	return srv
}

func (f *fakeDevTools) snapshot() ([]string, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.methods...), f.html
}

func TestDevToolsRendererRendersSuppliedHTML(t *testing.T) {
	fake := &fakeDevTools{png: []byte{0x89, 'P', 'N', 'G', 1, 2, 3}}
	srv := fake.start(t)

	r := NewDevToolsRenderer(srv.URL, srv.Client())
	png, err := r.Render(context.Background(), Document{
		HTML:   "<html><body><h1>broken page</h1></body></html>",
		Width:  800,
		Height: 600,
	})
	require.NoError(t, err)
	assert.Equal(t, fake.png, png)

	methods, html := fake.snapshot()
	assert.Contains(t, methods, "Page.setDocumentContent")
	assert.Contains(t, methods, "Page.captureScreenshot")
	assert.Contains(t, html, "broken page")
}

func TestDevToolsRendererShootsLivePage(t *testing.T) {
	fake := &fakeDevTools{png: []byte{0x89, 'P', 'N', 'G'}}
	srv := fake.start(t)

	r := NewDevToolsRenderer(srv.URL, srv.Client())
	png, err := r.Render(context.Background(), Document{URL: "about:blank"})
	require.NoError(t, err)
	assert.Equal(t, fake.png, png)

	methods, _ := fake.snapshot()
	assert.NotContains(t, methods, "Page.setDocumentContent")
	assert.Contains(t, methods, "Page.captureScreenshot")
}

func TestDevToolsRendererEndpointDown(t *testing.T) {
	r := NewDevToolsRenderer("http://127.0.0.1:1", &http.Client{})

	_, err := r.Render(context.Background(), Document{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestDevToolsRendererNoPageTargets(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/json/version", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"Browser": "HeadlessTest/1.0"})
	})
	mux.HandleFunc("/json", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	r := NewDevToolsRenderer(srv.URL, srv.Client())
	_, err := r.Render(context.Background(), Document{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
}
