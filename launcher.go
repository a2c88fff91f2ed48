package snag

import (
	"context"
	"fmt"

	"github.com/charliek/snag/internal/tui"
	"github.com/charliek/snag/report"
)

// badgeLabel is the text on the embeddable trigger fragment
const badgeLabel = "Report a bug"

// ShowDialog opens the interactive capture form in the terminal and
// blocks until the user submits or cancels. Submission goes through
// Submit, so the report carries everything captured so far.
func (e *Engine) ShowDialog(ctx context.Context) error {
	if !e.active.Load() {
		return ErrNotInitialized
	}

	result, err := tui.Run(ctx, tui.Options{
		Submit: e.Submit,
		Defaults: report.SubmitOptions{
			ReporterName:  e.config.Reporter.Name,
			ReporterEmail: e.config.Reporter.Email,
		},
		Position: string(e.config.Launcher.Position),
	})
	if err != nil {
		return err
	}
	if result != nil {
		e.log.Info().Str("report_id", result.ID).Msg("report submitted")
	}
	return nil
}

// BadgeHTML returns an embeddable fragment for server-rendered pages: a
// fixed-position trigger in the configured corner, marked with
// data-snag-ui so screenshots exclude it. Returns "" when the launcher
// is disabled.
func (e *Engine) BadgeHTML() string {
	if !e.config.Launcher.Enabled {
		return ""
	}

	return fmt.Sprintf(
		`<div data-snag-ui style="position:fixed;%s;z-index:2147483647">`+
			`<button type="button" style="background:#4f46e5;color:#fff;border:none;`+
			`border-radius:9999px;padding:10px 16px;font:14px system-ui,sans-serif;`+
			`box-shadow:0 2px 8px rgba(0,0,0,0.25);cursor:pointer">%s</button></div>`,
		cornerCSS(e.config.Launcher.Position), badgeLabel)
}

// cornerCSS maps a launcher position to fixed-position offsets
func cornerCSS(pos Position) string {
	switch pos {
	case PositionTopLeft:
		return "top:16px;left:16px"
	case PositionTopRight:
		return "top:16px;right:16px"
	case PositionBottomLeft:
		return "bottom:16px;left:16px"
	default:
		return "bottom:16px;right:16px"
	}
}
