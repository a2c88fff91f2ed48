package render

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// devToolsProbeTimeout bounds the version probe when the caller's context
// carries no deadline.
const devToolsProbeTimeout = 3 * time.Second

// DevToolsRenderer rasterizes documents through a browser's DevTools
// protocol endpoint (typically a locally running headless browser).
type DevToolsRenderer struct {
	endpoint string
	client   *http.Client
	dialer   *websocket.Dialer
}

// NewDevToolsRenderer creates a renderer for the given http endpoint, e.g.
// http://127.0.0.1:9222. The client carries the discovery probes; pass one
// whose transport bypasses capture so screenshot attempts don't record
// themselves.
func NewDevToolsRenderer(endpoint string, client *http.Client) *DevToolsRenderer {
	if client == nil {
		client = &http.Client{}
	}
	return &DevToolsRenderer{
		endpoint: strings.TrimRight(endpoint, "/"),
		client:   client,
		dialer:   websocket.DefaultDialer,
	}
}

// Render probes the endpoint, attaches to a page target, and captures a
// PNG screenshot. When doc.HTML is set the target's document is replaced
// with it first; otherwise whatever the target currently shows is shot.
func (r *DevToolsRenderer) Render(ctx context.Context, doc Document) ([]byte, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, devToolsProbeTimeout)
		defer cancel()
	}

	wsURL, err := r.pickTarget(ctx, doc.URL)
	if err != nil {
		return nil, err
	}

	conn, resp, err := r.dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: dialing %s: %v", ErrUnavailable, wsURL, err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
		_ = conn.SetWriteDeadline(deadline)
	}

	c := &devToolsConn{ws: conn}
	if err := c.call("Page.enable", nil, nil); err != nil {
		return nil, err
	}

	if doc.Width > 0 && doc.Height > 0 {
		_ = c.call("Emulation.setDeviceMetricsOverride", map[string]any{
			"width":             doc.Width,
			"height":            doc.Height,
			"deviceScaleFactor": 1,
			"mobile":            false,
		}, nil)
	}

	if doc.HTML != "" {
		var tree struct {
			FrameTree struct {
				Frame struct {
					ID string `json:"id"`
				} `json:"frame"`
			} `json:"frameTree"`
		}
		if err := c.call("Page.getFrameTree", nil, &tree); err != nil {
			return nil, err
		}
		if err := c.call("Page.setDocumentContent", map[string]any{
			"frameId": tree.FrameTree.Frame.ID,
			"html":    doc.HTML,
		}, nil); err != nil {
			return nil, err
		}
	}

	var shot struct {
		Data string `json:"data"`
	}
	if err := c.call("Page.captureScreenshot", map[string]any{"format": "png"}, &shot); err != nil {
		return nil, err
	}
	png, err := base64.StdEncoding.DecodeString(shot.Data)
	if err != nil {
		return nil, fmt.Errorf("decoding screenshot: %w", err)
	}
	return png, nil
}

// pickTarget verifies the endpoint is live and returns the debugger URL of
// the page to attach to: the target already showing pageURL when there is
// one, otherwise the first page target.
func (r *DevToolsRenderer) pickTarget(ctx context.Context, pageURL string) (string, error) {
	var version struct {
		Browser string `json:"Browser"`
	}
	if err := r.getJSON(ctx, "/json/version", &version); err != nil {
		return "", err
	}

	var targets []struct {
		Type         string `json:"type"`
		URL          string `json:"url"`
		WebSocketURL string `json:"webSocketDebuggerUrl"`
	}
	if err := r.getJSON(ctx, "/json", &targets); err != nil {
		return "", err
	}

	first := ""
	for _, t := range targets {
		if t.Type != "page" || t.WebSocketURL == "" {
			continue
		}
		if pageURL != "" && t.URL == pageURL {
			return t.WebSocketURL, nil
		}
		if first == "" {
			first = t.WebSocketURL
		}
	}
	if first == "" {
		return "", fmt.Errorf("%w: no page target at %s", ErrUnavailable, r.endpoint)
	}
	return first, nil
}

func (r *DevToolsRenderer) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.endpoint+path, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: probing %s: %v", ErrUnavailable, r.endpoint+path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s returned status %d", ErrUnavailable, r.endpoint+path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decoding %s: %v", ErrUnavailable, path, err)
	}
	return nil
}

// devToolsConn is a minimal JSON-RPC client over one websocket. Calls are
// serialized; protocol events arriving between replies are skipped.
type devToolsConn struct {
	ws     *websocket.Conn
	nextID int
}

type devToolsError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *devToolsError) Error() string {
	return fmt.Sprintf("devtools: %s (code %d)", e.Message, e.Code)
}

func (c *devToolsConn) call(method string, params, result any) error {
	c.nextID++
	id := c.nextID

	req := map[string]any{"id": id, "method": method}
	if params != nil {
		req["params"] = params
	}
	if err := c.ws.WriteJSON(req); err != nil {
		return fmt.Errorf("devtools %s: %w", method, err)
	}

	for {
		var msg struct {
			ID     int             `json:"id"`
			Result json.RawMessage `json:"result"`
			Error  *devToolsError  `json:"error"`
		}
		if err := c.ws.ReadJSON(&msg); err != nil {
			return fmt.Errorf("devtools %s: %w", method, err)
		}
		if msg.ID != id {
			continue
		}
		if msg.Error != nil {
			return fmt.Errorf("devtools %s: %w", method, msg.Error)
		}
		if result != nil && len(msg.Result) > 0 {
			if err := json.Unmarshal(msg.Result, result); err != nil {
				return fmt.Errorf("devtools %s: decoding result: %w", method, err)
			}
		}
		return nil
	}
}
