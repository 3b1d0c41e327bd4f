package ui

import (
	"context"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"wristrelay/models"
	"wristrelay/relay"
)

// HandheldController is the subset of the handheld app the screen drives.
type HandheldController interface {
	Connect(ctx context.Context) models.Notice
}

// DataMsg carries the last message received from the watch.
type DataMsg struct {
	Text string
}

// RelayMsg carries a relay state change.
type RelayMsg struct {
	Result relay.Result
}

// HandheldModel is the handheld operator screen.
type HandheldModel struct {
	ctx     context.Context
	app     HandheldController
	name    string
	info    string
	level   models.NoticeLevel
	data    string
	details string
}

// NewHandheldModel builds the screen.
func NewHandheldModel(ctx context.Context, app HandheldController, name string) HandheldModel {
	return HandheldModel{
		ctx:  ctx,
		app:  app,
		name: name,
	}
}

// Init implements tea.Model.
func (m HandheldModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m HandheldModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "c":
			return m, runNotice(m.ctx, m.app.Connect)
		}
	case NoticeMsg:
		m.info = msg.Notice.Text
		m.level = msg.Notice.Level
		// Already-connected keeps the details of the adopted watch.
		if msg.Notice.Detail != "" || msg.Notice.Level != models.NoticeInfo {
			m.details = msg.Notice.Detail
		}
	case DataMsg:
		m.data = msg.Text
	case RelayMsg:
		switch msg.Result.State {
		case relay.StateDelivered:
			m.info = " Sent to the server:\n" + msg.Result.Text
			m.level = models.NoticeInfo
		case relay.StateFailed:
			m.info = msg.Result.Text
			m.level = models.NoticeError
		}
	}
	return m, nil
}

// View implements tea.Model.
func (m HandheldModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("wristrelay · " + m.name))
	b.WriteString("\n")

	if m.info == "" {
		b.WriteString(mutedStyle.Render("Press c to connect to the watch"))
	} else {
		b.WriteString(noticeStyle(m.level).Render(m.info))
	}
	b.WriteString("\n\n")

	if m.data == "" {
		b.WriteString(mutedStyle.Render("No data yet"))
	} else {
		b.WriteString(dataStyle.Render(m.data))
	}

	if m.details != "" {
		b.WriteString("\n\n")
		b.WriteString(detailStyle.Render(m.details))
	}

	b.WriteString(helpStyle.Render("\nc connect · q quit"))
	return panelStyle.Render(b.String()) + "\n"
}
