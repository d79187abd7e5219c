// Package monitor wires the overlay's interrupt pins to their diagnostic
// handlers and writes the fixed status lines.
package monitor

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sweeney/status-overlay/internal/gpio"
	"github.com/sweeney/status-overlay/internal/logic"
)

// Lines written to the output stream.
const (
	SOCLine         = "SOC event detected!"
	PowerButtonLine = "Power button pressed!"
	HeartbeatLine   = "Main thread sleeping..."
)

// HeartbeatInterval is the main loop sleep between heartbeat lines.
const HeartbeatInterval = 10 * time.Second

// Handler binds a pin to the line written when it fires.
type Handler struct {
	Pin  int
	Edge gpio.Edge
	Type logic.EventType
	Line string
}

// DefaultHandlers returns the handlers for the overlay board: a falling edge
// on the fuel gauge GPOUT pin and a falling edge on the power button pin.
func DefaultHandlers() []Handler {
	return []Handler{
		{Pin: gpio.PinSOC, Edge: gpio.EdgeFalling, Type: logic.EventSOC, Line: SOCLine},
		{Pin: gpio.PinPower, Edge: gpio.EdgeFalling, Type: logic.EventPowerButton, Line: PowerButtonLine},
	}
}

// Listener receives every event after its line has been written.
// It runs in interrupt context and must not block.
type Listener func(logic.Event)

// Monitor owns the handler table and the output stream.
type Monitor struct {
	watcher  gpio.Watcher
	handlers []Handler

	// mu serializes writes so lines from concurrent callbacks never interleave.
	mu  sync.Mutex
	out io.Writer

	listeners []Listener
	started   bool
}

// New creates a Monitor. Handlers are not registered until Start.
func New(watcher gpio.Watcher, out io.Writer, handlers []Handler) *Monitor {
	return &Monitor{
		watcher:  watcher,
		handlers: handlers,
		out:      out,
	}
}

// OnEvent adds a listener. Must be called before Start.
func (m *Monitor) OnEvent(l Listener) {
	if m.started {
		panic("monitor: OnEvent called after Start")
	}
	m.listeners = append(m.listeners, l)
}

// Start configures each handler's pin as an input and registers its
// callback. Pins not in the handler table are never touched.
func (m *Monitor) Start() error {
	if m.started {
		return fmt.Errorf("monitor already started")
	}
	m.started = true

	for _, h := range m.handlers {
		h := h
		if err := m.watcher.Watch(h.Pin, h.Edge, func(ev gpio.Event) {
			m.dispatch(h, ev)
		}); err != nil {
			return fmt.Errorf("watch %s pin %d: %w", h.Type, h.Pin, err)
		}
	}
	return nil
}

func (m *Monitor) dispatch(h Handler, ev gpio.Event) {
	m.writeLine(h.Line)

	e := logic.Event{
		Timestamp: ev.Time,
		Type:      h.Type,
		Pin:       ev.Pin,
	}
	for _, l := range m.listeners {
		l(e)
	}
}

// Heartbeat writes the main loop heartbeat line.
func (m *Monitor) Heartbeat() {
	m.writeLine(HeartbeatLine)
}

// Println writes an arbitrary line, serialized with the handler output.
func (m *Monitor) Println(line string) {
	m.writeLine(line)
}

func (m *Monitor) writeLine(line string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	// Output errors are not actionable here.
	fmt.Fprintln(m.out, line)
}

// PinLevel is the raw level of one handler pin.
type PinLevel struct {
	Pin   int
	Type  logic.EventType
	Level int
}

// Levels reads the current raw level of every handler pin. Start must have
// been called.
func (m *Monitor) Levels() ([]PinLevel, error) {
	levels := make([]PinLevel, 0, len(m.handlers))
	for _, h := range m.handlers {
		v, err := m.watcher.Value(h.Pin)
		if err != nil {
			return nil, fmt.Errorf("read %s pin %d: %w", h.Type, h.Pin, err)
		}
		levels = append(levels, PinLevel{Pin: h.Pin, Type: h.Type, Level: v})
	}
	return levels, nil
}
