package snag

import (
	"context"
	"fmt"
	"net/http"

	"github.com/charliek/snag/render"
	"github.com/charliek/snag/report"
)

// CaptureScreenshot rasterizes the tracked page and returns it as a PNG
// data URI. Rasterization failure is not an error: the result is empty and
// one warning is recorded. The only error is calling before Init.
func (e *Engine) CaptureScreenshot(ctx context.Context) (string, error) {
	if !e.active.Load() {
		return "", ErrNotInitialized
	}
	return e.captureScreenshot(ctx), nil
}

// captureScreenshot runs one rasterization attempt. Any error or panic,
// including inside an embedder-supplied renderer, resolves to "no
// screenshot" with exactly one warning surfaced through the console path.
func (e *Engine) captureScreenshot(ctx context.Context) (uri string) {
	defer func() {
		if v := recover(); v != nil {
			e.warn(fmt.Sprintf("screenshot capture failed: %v", v))
			uri = ""
		}
	}()

	url, markup := e.Page()
	doc := render.Document{
		URL:    url,
		HTML:   render.Sanitize(markup),
		Width:  e.config.Screenshot.Width,
		Height: e.config.Screenshot.Height,
	}

	png, err := e.renderer().Render(ctx, doc)
	if err != nil {
		e.warn(fmt.Sprintf("screenshot capture failed: %v", err))
		return ""
	}
	return render.DataURI(png)
}

// renderer resolves the renderer for one capture attempt: the configured
// one wins, otherwise a DevTools renderer probing the configured endpoint.
// The probe client rides the original transport so screenshot attempts
// never record themselves as network traffic.
func (e *Engine) renderer() render.Renderer {
	if e.config.Renderer != nil {
		return e.config.Renderer
	}
	return render.NewDevToolsRenderer(e.config.Screenshot.RendererEndpoint, &http.Client{
		Transport: e.originalTransport(),
	})
}

// warn surfaces an engine diagnostic the way an embedder sees a console
// warning: recorded in the console buffer and written to the original log
// output, bypassing the interception tee so it is not recorded twice.
func (e *Engine) warn(msg string) {
	e.appendConsole(report.LevelWarn, "snag: "+msg, "")
	fmt.Fprintf(e.originalLogOutput(), "snag: %s\n", msg)
}
