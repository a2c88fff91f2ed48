package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/charliek/snag/report"
)

// Run starts the capture form and blocks until it closes.
//
// It returns the submission result when a report was sent, (nil, nil)
// when the user cancelled, and an error when the last submission
// attempt failed or the terminal could not be driven.
func Run(ctx context.Context, opts Options) (*report.SubmitResult, error) {
	model := NewForm(ctx, opts)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	final, err := p.Run()
	if err != nil {
		return nil, err
	}

	form, ok := final.(Form)
	if !ok {
		return nil, nil
	}

	switch form.Phase() {
	case PhaseDone:
		return form.Result(), nil
	case PhaseFailed:
		return nil, form.Err()
	default:
		return nil, nil
	}
}
