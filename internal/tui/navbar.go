package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
)

// TreeWidthPct is the percentage of terminal width used for the left (tree) pane.
const TreeWidthPct = 50

func renderNavbar(live bool, profileName string, tabs, windows int, width int) string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62"))
	liveStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	offlineStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	statsStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	profileStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("245"))

	mode := offlineStyle.Render("offline (read-only)")
	if live {
		mode = liveStyle.Render("live")
	}
	stats := fmt.Sprintf("%s tabs in %s windows", humanize.Comma(int64(tabs)), humanize.Comma(int64(windows)))

	left := " " + titleStyle.Render("Tabgruppen") + "  " + mode + "   " + statsStyle.Render(stats)

	right := ""
	if profileName != "" {
		right = profileStyle.Render("Profile: " + profileName)
	}
	gap := max(width-lipgloss.Width(left)-lipgloss.Width(right)-2, 1)
	padding := lipgloss.NewStyle().Width(gap)

	return left + padding.Render("") + right + " "
}
