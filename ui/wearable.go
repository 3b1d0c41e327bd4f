package ui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"wristrelay/models"
	"wristrelay/sensor"
)

// WearableController is the subset of the wearable app the screen drives.
type WearableController interface {
	Connect(ctx context.Context) models.Notice
	Send(ctx context.Context) models.Notice
	Reading() models.SensorReading
}

// ReadingMsg carries a fresh sensor reading into the program.
type ReadingMsg struct {
	Reading models.SensorReading
}

// NoticeMsg carries the outcome of an operator action.
type NoticeMsg struct {
	Notice models.Notice
}

// WearableModel is the wearable operator screen.
type WearableModel struct {
	ctx          context.Context
	app          WearableController
	name         string
	availability sensor.Availability
	reading      models.SensorReading
	notice       models.Notice
	pending      string
}

// NewWearableModel builds the screen. name is shown in the title.
func NewWearableModel(ctx context.Context, app WearableController, name string, availability sensor.Availability) WearableModel {
	return WearableModel{
		ctx:          ctx,
		app:          app,
		name:         name,
		availability: availability,
		reading:      app.Reading(),
	}
}

// Init implements tea.Model.
func (m WearableModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m WearableModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "c":
			m.pending = "Looking for a phone..."
			return m, runNotice(m.ctx, m.app.Connect)
		case "s":
			m.pending = "Sending..."
			return m, runNotice(m.ctx, m.app.Send)
		}
	case ReadingMsg:
		m.reading = msg.Reading
	case NoticeMsg:
		m.pending = ""
		m.notice = msg.Notice
	}
	return m, nil
}

// View implements tea.Model.
func (m WearableModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("wristrelay · " + m.name))
	b.WriteString("\n")
	b.WriteString(heartRateLine(m.availability.HeartRate, m.reading.HeartRateBPM))
	b.WriteString("\n")
	b.WriteString(lightLine(m.availability.Light, m.reading.LightLevelLux))
	b.WriteString("\n\n")

	switch {
	case m.pending != "":
		b.WriteString(mutedStyle.Render(m.pending))
	case m.notice.Text != "":
		b.WriteString(noticeStyle(m.notice.Level).Render(m.notice.Text))
	default:
		b.WriteString(mutedStyle.Render("Not connected"))
	}

	b.WriteString(helpStyle.Render("\nc connect · s send · q quit"))
	return panelStyle.Render(b.String()) + "\n"
}

func heartRateLine(available bool, bpm *int) string {
	switch {
	case !available:
		return warningStyle.Render(" Heart rate sensor not available")
	case bpm == nil:
		return mutedStyle.Render(" Heart rate: -- bpm")
	default:
		return valueStyle.Render(fmt.Sprintf(" Heart rate: %d bpm", *bpm))
	}
}

func lightLine(available bool, lux *int) string {
	switch {
	case !available:
		return warningStyle.Render(" Light sensor not available")
	case lux == nil:
		return mutedStyle.Render(" Light: -- lx")
	default:
		return valueStyle.Render(fmt.Sprintf(" Ambient light: %d lx", *lux))
	}
}

func runNotice(ctx context.Context, action func(context.Context) models.Notice) tea.Cmd {
	return func() tea.Msg {
		return NoticeMsg{Notice: action(ctx)}
	}
}
