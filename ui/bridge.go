package ui

import (
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"

	"wristrelay/models"
	"wristrelay/relay"
)

// MessageSender accepts messages from outside the program loop. *tea.Program satisfies it.
type MessageSender interface {
	Send(msg tea.Msg)
}

// Bridge delivers background events to a program that is created after the
// components producing them. Events arriving before SetProgram are dropped.
type Bridge struct {
	program atomic.Pointer[MessageSender]
}

// SetProgram enables delivery.
func (b *Bridge) SetProgram(p MessageSender) {
	b.program.Store(&p)
}

// Send implements MessageSender.
func (b *Bridge) Send(msg tea.Msg) {
	if p := b.program.Load(); p != nil {
		(*p).Send(msg)
	}
}

// OnReading forwards a sensor reading.
func (b *Bridge) OnReading(reading models.SensorReading) {
	b.Send(ReadingMsg{Reading: reading})
}

// OnSensorData forwards inbound message text.
func (b *Bridge) OnSensorData(text string) {
	b.Send(DataMsg{Text: text})
}

// OnRelayResult implements relay.Observer.
func (b *Bridge) OnRelayResult(result relay.Result) {
	b.Send(RelayMsg{Result: result})
}
