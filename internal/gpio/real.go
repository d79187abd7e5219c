//go:build linux

package gpio

import (
	"fmt"
	"sync"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

// RealWatcher watches GPIO edges on actual hardware using the Linux GPIO
// character device. The kernel delivers edge events, gpiocdev dispatches
// them from its own watcher goroutine.
type RealWatcher struct {
	chip *gpiocdev.Chip

	mu    sync.Mutex
	lines map[int]*gpiocdev.Line
}

// NewRealWatcher opens the named GPIO chip (e.g. "gpiochip0").
func NewRealWatcher(chipName string) (*RealWatcher, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", chipName, err)
	}
	return &RealWatcher{
		chip:  chip,
		lines: make(map[int]*gpiocdev.Line),
	}, nil
}

// Watch requests pin as an input with edge detection enabled.
// Bias is left as-is to match the board's external pull-ups.
func (w *RealWatcher) Watch(pin int, edge Edge, handler Handler) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.lines[pin]; ok {
		return fmt.Errorf("pin %d already watched", pin)
	}

	opts := []gpiocdev.LineReqOption{
		gpiocdev.AsInput,
		edgeOption(edge),
		gpiocdev.WithEventHandler(func(evt gpiocdev.LineEvent) {
			observed := EdgeRising
			if evt.Type == gpiocdev.LineEventFallingEdge {
				observed = EdgeFalling
			}
			handler(Event{
				Pin:  evt.Offset,
				Edge: observed,
				Time: time.Now(),
			})
		}),
	}

	line, err := w.chip.RequestLine(pin, opts...)
	if err != nil {
		return fmt.Errorf("request pin %d: %w", pin, err)
	}
	w.lines[pin] = line
	return nil
}

func edgeOption(edge Edge) gpiocdev.LineReqOption {
	switch edge {
	case EdgeRising:
		return gpiocdev.WithRisingEdge
	case EdgeBoth:
		return gpiocdev.WithBothEdges
	default:
		return gpiocdev.WithFallingEdge
	}
}

// Value returns the raw level of a watched pin.
func (w *RealWatcher) Value(pin int) (int, error) {
	w.mu.Lock()
	line, ok := w.lines[pin]
	w.mu.Unlock()
	if !ok {
		return 0, fmt.Errorf("pin %d not watched", pin)
	}

	v, err := line.Value()
	if err != nil {
		return 0, fmt.Errorf("read pin %d: %w", pin, err)
	}
	return v, nil
}

// Close releases GPIO resources.
// Lines are reconfigured as plain inputs (edge detection off) before being
// released so the pins are left in their boot default direction.
func (w *RealWatcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var errs []error
	for pin, line := range w.lines {
		if err := line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithoutEdges); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure pin %d: %w", pin, err))
		}
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pin %d: %w", pin, err))
		}
		delete(w.lines, pin)
	}
	if w.chip != nil {
		if err := w.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
		w.chip = nil
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
