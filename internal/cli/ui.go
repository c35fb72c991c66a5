package cli

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// UI styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED"))

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#3B82F6")).
			MarginTop(1)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F59E0B")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EF4444")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280"))
)

func printTitle(s string) {
	fmt.Println(titleStyle.Render(s))
}

func printSection(s string) {
	fmt.Println(sectionStyle.Render(s))
}

// statusLine renders a collector status with a colored marker.
func statusLine(status string) string {
	switch status {
	case "success":
		return successStyle.Render("✓ " + status)
	case "partial":
		return warnStyle.Render("⚠ " + status)
	default:
		return errorStyle.Render("✗ " + status)
	}
}
