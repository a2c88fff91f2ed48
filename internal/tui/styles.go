package tui

import "github.com/charmbracelet/lipgloss"

// Colors
var (
	accentColor  = lipgloss.Color("12") // Blue
	successColor = lipgloss.Color("10") // Green
	errorColor   = lipgloss.Color("9")  // Red
	dimColor     = lipgloss.Color("8")  // Gray
	borderColor  = lipgloss.Color("240")
)

// Styles
var (
	// Form container style
	formStyle = lipgloss.NewStyle().
			Padding(1, 2).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(borderColor)

	// Form title style
	titleStyle = lipgloss.NewStyle().
			Foreground(accentColor).
			Bold(true)

	// Field label style
	labelStyle = lipgloss.NewStyle().
			Foreground(dimColor)

	// Label style for the focused field
	focusedLabelStyle = lipgloss.NewStyle().
				Foreground(accentColor)

	// Success banner style
	successStyle = lipgloss.NewStyle().
			Foreground(successColor).
			Bold(true)

	// Failure banner style
	errorStyle = lipgloss.NewStyle().
			Foreground(errorColor).
			Bold(true)

	// Help line style
	helpStyle = lipgloss.NewStyle().
			Foreground(dimColor)

	// Spinner style while a report is in flight
	spinnerStyle = lipgloss.NewStyle().
			Foreground(accentColor)
)
