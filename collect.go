package snag

import (
	"context"

	"github.com/charliek/snag/report"
)

// Capture assembles a synchronous snapshot: independent copies of the three
// trace buffers, a fresh device snapshot, and the tracked page URL. No
// screenshot is taken and no renderer is ever invoked.
func (e *Engine) Capture() *report.Snapshot {
	return e.assemble("")
}

// Collect assembles a snapshot like Capture, optionally rasterizing a
// screenshot first. The screenshot runs before the buffers are copied so a
// capture warning lands in the same snapshot it describes. Rasterization
// failure never fails collection; the snapshot is simply returned without
// a screenshot.
func (e *Engine) Collect(ctx context.Context, includeScreenshot bool) *report.Snapshot {
	var screenshot string
	if includeScreenshot && e.config.Screenshot.ScreenshotEnabled() {
		screenshot = e.captureScreenshot(ctx)
	}
	return e.assemble(screenshot)
}

func (e *Engine) assemble(screenshot string) *report.Snapshot {
	url, _ := e.Page()
	return &report.Snapshot{
		ConsoleLogs: e.consoleBuf.Snapshot(),
		NetworkLogs: e.networkBuf.Snapshot(),
		UserActions: e.actionBuf.Snapshot(),
		DeviceInfo:  e.deviceInfo(),
		PageURL:     url,
		Screenshot:  screenshot,
	}
}
