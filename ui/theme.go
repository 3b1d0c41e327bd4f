package ui

import (
	"github.com/charmbracelet/lipgloss"

	"wristrelay/models"
)

// Catppuccin Mocha palette.
var (
	ctpOverlay0 = lipgloss.Color("#6c7086")
	ctpSubtext1 = lipgloss.Color("#bac2de")
	ctpText     = lipgloss.Color("#cdd6f4")
	ctpBlue     = lipgloss.Color("#89b4fa")
	ctpGreen    = lipgloss.Color("#a6e3a1")
	ctpRed      = lipgloss.Color("#f38ba8")
	ctpYellow   = lipgloss.Color("#f9e2af")
	ctpMauve    = lipgloss.Color("#cba6f7")
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ctpMauve).
			MarginBottom(1)

	valueStyle   = lipgloss.NewStyle().Foreground(ctpText)
	mutedStyle   = lipgloss.NewStyle().Foreground(ctpOverlay0)
	detailStyle  = lipgloss.NewStyle().Foreground(ctpSubtext1)
	dataStyle    = lipgloss.NewStyle().Foreground(ctpBlue)
	onlineStyle  = lipgloss.NewStyle().Foreground(ctpGreen)
	warningStyle = lipgloss.NewStyle().Foreground(ctpYellow)
	errorStyle   = lipgloss.NewStyle().Foreground(ctpRed)

	helpStyle = lipgloss.NewStyle().
			Foreground(ctpOverlay0).
			MarginTop(1)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ctpOverlay0).
			Padding(0, 1)
)

func noticeStyle(level models.NoticeLevel) lipgloss.Style {
	switch level {
	case models.NoticeWarning:
		return warningStyle
	case models.NoticeError:
		return errorStyle
	default:
		return onlineStyle
	}
}
