// Package gpio provides edge-triggered GPIO input watching with hardware abstraction.
// The real implementations use the Linux GPIO character device (gpiocdev) or
// the memory mapped BCM2835 registers (go-rpio).
// The fake implementation allows testing without hardware.
package gpio

import "time"

// Pin definitions (BCM numbering)
const (
	PinSOC   = 5  // Fuel gauge GPOUT, header pin 29
	PinPower = 16 // Power button, header pin 36 (tied to GPIO6 on the board)
)

// Edge selects which signal transitions trigger a handler.
type Edge int

const (
	EdgeFalling Edge = iota
	EdgeRising
	EdgeBoth
)

func (e Edge) String() string {
	switch e {
	case EdgeFalling:
		return "falling"
	case EdgeRising:
		return "rising"
	case EdgeBoth:
		return "both"
	}
	return "unknown"
}

// Matches reports whether an observed transition should be delivered to a
// handler registered for e.
func (e Edge) Matches(observed Edge) bool {
	return e == EdgeBoth || e == observed
}

// Event is a single edge observed on a pin.
type Event struct {
	Pin  int
	Edge Edge // EdgeFalling or EdgeRising
	Time time.Time
}

// Handler is invoked asynchronously, from the backend's event goroutine,
// once per delivered edge. It must not block.
type Handler func(Event)

// Watcher configures input pins and delivers edge events.
type Watcher interface {
	// Watch configures pin as an input and calls handler on every edge
	// matching edge. A pin can only be watched once.
	Watch(pin int, edge Edge, handler Handler) error

	// Value returns the raw level (0 or 1) of a watched pin.
	Value(pin int) (int, error)

	// Close releases GPIO resources.
	Close() error
}
