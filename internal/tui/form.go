package tui

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/charliek/snag/report"
)

// formWidth is the inner width of the capture form fields
const formWidth = 48

// descriptionHeight is the number of visible description rows
const descriptionHeight = 5

// maxErrorDisplayLen is the maximum length of error messages in the failure view
const maxErrorDisplayLen = 120

// Phase represents the form lifecycle stage
type Phase int

const (
	PhaseEditing Phase = iota
	PhaseSubmitting
	PhaseDone
	PhaseFailed
)

// Field focus order within the form
const (
	fieldTitle = iota
	fieldDescription
	fieldEmail
	fieldCount
)

// SubmitFunc sends the finished report and returns the ingestion result
type SubmitFunc func(ctx context.Context, opts report.SubmitOptions) (*report.SubmitResult, error)

// Options configures the capture form
type Options struct {
	// Submit is called when the user confirms the form
	Submit SubmitFunc

	// Defaults pre-fill the form fields; ReporterName and SkipScreenshot
	// are carried through to the submission unchanged
	Defaults report.SubmitOptions

	// Position is the screen corner the form box is placed in
	// (top-left, top-right, bottom-left, bottom-right)
	Position string
}

// Form is the bubbletea model for the capture form
type Form struct {
	ctx      context.Context
	submit   SubmitFunc
	defaults report.SubmitOptions
	position string

	// UI components
	title       textinput.Model
	description textarea.Model
	email       textinput.Model
	spinner     spinner.Model

	phase  Phase
	focus  int
	result *report.SubmitResult
	err    error

	// Dimensions
	width  int
	height int
}

// NewForm creates a capture form model
func NewForm(ctx context.Context, opts Options) Form {
	ti := textinput.New()
	ti.Placeholder = report.DefaultTitle
	ti.CharLimit = 200
	ti.Width = formWidth
	ti.SetValue(opts.Defaults.Title)
	ti.Focus()

	ta := textarea.New()
	ta.Placeholder = "What happened?"
	ta.ShowLineNumbers = false
	ta.CharLimit = 4000
	ta.SetWidth(formWidth)
	ta.SetHeight(descriptionHeight)
	ta.SetValue(opts.Defaults.Description)

	em := textinput.New()
	em.Placeholder = "you@example.com"
	em.CharLimit = 120
	em.Width = formWidth
	em.SetValue(opts.Defaults.ReporterEmail)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle

	return Form{
		ctx:         ctx,
		submit:      opts.Submit,
		defaults:    opts.Defaults,
		position:    opts.Position,
		title:       ti,
		description: ta,
		email:       em,
		spinner:     sp,
		phase:       PhaseEditing,
	}
}

// Init initializes the model
func (f Form) Init() tea.Cmd {
	return textinput.Blink
}

// Phase returns the current lifecycle stage
func (f Form) Phase() Phase {
	return f.phase
}

// Result returns the submission result, if any
func (f Form) Result() *report.SubmitResult {
	return f.result
}

// Err returns the last submission error, if any
func (f Form) Err() error {
	return f.err
}

// submitResultMsg is sent when the submit call completes
type submitResultMsg struct {
	result *report.SubmitResult
	err    error
}

// submitCmd runs the submit callback off the UI loop
func submitCmd(ctx context.Context, submit SubmitFunc, opts report.SubmitOptions) tea.Cmd {
	return func() tea.Msg {
		if submit == nil {
			return submitResultMsg{err: errors.New("no submit handler configured")}
		}
		result, err := submit(ctx, opts)
		return submitResultMsg{result: result, err: err}
	}
}

// Update handles messages
func (f Form) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		f.width = msg.Width
		f.height = msg.Height
		return f, nil

	case tea.KeyMsg:
		return f.handleKey(msg)

	case submitResultMsg:
		if msg.err != nil {
			f.phase = PhaseFailed
			f.err = msg.err
			return f, nil
		}
		f.phase = PhaseDone
		f.result = msg.result
		f.err = nil
		return f, nil

	case spinner.TickMsg:
		if f.phase != PhaseSubmitting {
			return f, nil
		}
		var cmd tea.Cmd
		f.spinner, cmd = f.spinner.Update(msg)
		return f, cmd
	}

	return f.updateFocused(msg)
}

// handleKey handles key presses across all phases
func (f Form) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return f, tea.Quit
	}

	switch f.phase {
	case PhaseSubmitting:
		// Report is in flight, ignore input
		return f, nil

	case PhaseDone:
		return f, tea.Quit

	case PhaseFailed:
		if msg.String() == "r" {
			f.phase = PhaseEditing
			return f, f.focusField(f.focus)
		}
		return f, tea.Quit
	}

	switch msg.String() {
	case "esc":
		return f, tea.Quit

	case "tab":
		return f.cycleFocus(1)

	case "shift+tab":
		return f.cycleFocus(-1)

	case "enter":
		// Enter advances from the title and submits from the email
		// field; in the description it inserts a newline
		switch f.focus {
		case fieldTitle:
			return f.cycleFocus(1)
		case fieldEmail:
			return f.startSubmit()
		}

	case "ctrl+s":
		return f.startSubmit()
	}

	return f.updateFocused(msg)
}

// cycleFocus moves focus by delta, wrapping around the field list
func (f Form) cycleFocus(delta int) (tea.Model, tea.Cmd) {
	f.focus = (f.focus + delta + fieldCount) % fieldCount
	return f, f.focusField(f.focus)
}

// focusField focuses one field and blurs the rest
func (f *Form) focusField(idx int) tea.Cmd {
	f.title.Blur()
	f.description.Blur()
	f.email.Blur()

	switch idx {
	case fieldTitle:
		return f.title.Focus()
	case fieldDescription:
		return f.description.Focus()
	case fieldEmail:
		return f.email.Focus()
	}
	return nil
}

// startSubmit kicks off the submission and switches to the spinner view
func (f Form) startSubmit() (tea.Model, tea.Cmd) {
	f.phase = PhaseSubmitting
	f.err = nil

	opts := report.SubmitOptions{
		Title:          strings.TrimSpace(f.title.Value()),
		Description:    strings.TrimSpace(f.description.Value()),
		ReporterEmail:  strings.TrimSpace(f.email.Value()),
		ReporterName:   f.defaults.ReporterName,
		SkipScreenshot: f.defaults.SkipScreenshot,
	}

	return f, tea.Batch(f.spinner.Tick, submitCmd(f.ctx, f.submit, opts))
}

// updateFocused routes a message to the focused field
func (f Form) updateFocused(msg tea.Msg) (tea.Model, tea.Cmd) {
	if f.phase != PhaseEditing {
		return f, nil
	}

	var cmd tea.Cmd
	switch f.focus {
	case fieldTitle:
		f.title, cmd = f.title.Update(msg)
	case fieldDescription:
		f.description, cmd = f.description.Update(msg)
	case fieldEmail:
		f.email, cmd = f.email.Update(msg)
	}
	return f, cmd
}

// View renders the form placed in the configured corner
func (f Form) View() string {
	box := formStyle.Render(f.content())
	if f.width == 0 || f.height == 0 {
		return box
	}

	h, v := placement(f.position)
	return lipgloss.Place(f.width, f.height, h, v, box)
}

// content renders the inner form body for the current phase
func (f Form) content() string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render("Report a bug"))
	sb.WriteString("\n\n")

	switch f.phase {
	case PhaseSubmitting:
		sb.WriteString(f.spinner.View())
		sb.WriteString(" Sending report...")
		return sb.String()

	case PhaseDone:
		sb.WriteString(successStyle.Render("Report sent"))
		if f.result != nil && f.result.ID != "" {
			sb.WriteString("\n\nReport ID: " + f.result.ID)
		}
		sb.WriteString("\n\n")
		sb.WriteString(helpStyle.Render("Press any key to close"))
		return sb.String()

	case PhaseFailed:
		sb.WriteString(errorStyle.Render("Submission failed"))
		if f.err != nil {
			sb.WriteString("\n\n")
			sb.WriteString(truncateError(f.err, maxErrorDisplayLen))
		}
		sb.WriteString("\n\n")
		sb.WriteString(helpStyle.Render("r: retry | any other key: close"))
		return sb.String()
	}

	sb.WriteString(f.fieldLabel("Title", fieldTitle))
	sb.WriteString("\n")
	sb.WriteString(f.title.View())
	sb.WriteString("\n\n")

	sb.WriteString(f.fieldLabel("Description", fieldDescription))
	sb.WriteString("\n")
	sb.WriteString(f.description.View())
	sb.WriteString("\n\n")

	sb.WriteString(f.fieldLabel("Email", fieldEmail))
	sb.WriteString("\n")
	sb.WriteString(f.email.View())
	sb.WriteString("\n\n")

	sb.WriteString(helpStyle.Render("tab: next field | ctrl+s: send | esc: cancel"))

	return sb.String()
}

// fieldLabel renders a field label, highlighted when focused
func (f Form) fieldLabel(name string, idx int) string {
	if f.phase == PhaseEditing && f.focus == idx {
		return focusedLabelStyle.Render(name)
	}
	return labelStyle.Render(name)
}

// placement maps a corner name to lipgloss alignment positions
func placement(position string) (lipgloss.Position, lipgloss.Position) {
	switch position {
	case "top-left":
		return lipgloss.Left, lipgloss.Top
	case "top-right":
		return lipgloss.Right, lipgloss.Top
	case "bottom-left":
		return lipgloss.Left, lipgloss.Bottom
	default:
		return lipgloss.Right, lipgloss.Bottom
	}
}

// truncateError truncates an error message to maxLen characters
func truncateError(err error, maxLen int) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if len(msg) > maxLen {
		return msg[:maxLen-3] + "..."
	}
	return msg
}
