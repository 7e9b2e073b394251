// Package tui holds chore's terminal styling and interactive prompt.
package tui

import "github.com/charmbracelet/lipgloss"

var (
	primaryColor = lipgloss.Color("#7C3AED")
	successColor = lipgloss.Color("#10B981")
	warningColor = lipgloss.Color("#F59E0B")
	errorColor   = lipgloss.Color("#EF4444")
	mutedColor   = lipgloss.Color("#6B7280")
	cyanColor    = lipgloss.Color("#06B6D4")

	headingStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor)

	successStyle = lipgloss.NewStyle().
			Foreground(successColor).
			Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(warningColor)

	errorStyle = lipgloss.NewStyle().
			Foreground(errorColor).
			Bold(true)

	echoStyle = lipgloss.NewStyle().
			Foreground(cyanColor).
			Bold(true)

	mutedStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	promptLabelStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("205")).
				Bold(true)
)

// Heading renders a progress message between task steps.
func Heading(s string) string { return headingStyle.Render(s) }

// Success renders a success message.
func Success(s string) string { return successStyle.Render(s) }

// Warn renders a warning.
func Warn(s string) string { return warnStyle.Render(s) }

// Error renders an error message.
func Error(s string) string { return errorStyle.Render(s) }

// Muted renders secondary text.
func Muted(s string) string { return mutedStyle.Render(s) }

// Echo renders a command line about to run.
func Echo(command string) string { return echoStyle.Render(command) }

// Status renders a run status word in its color.
func Status(status string) string {
	switch status {
	case "succeeded":
		return successStyle.Render("✓ " + status)
	case "failed":
		return errorStyle.Render("✗ " + status)
	case "aborted":
		return warnStyle.Render("○ " + status)
	default:
		return headingStyle.Render("◐ " + status)
	}
}
