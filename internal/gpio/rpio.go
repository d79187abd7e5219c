//go:build linux

package gpio

import (
	"fmt"
	"sync"
	"time"

	"github.com/stianeikeland/go-rpio/v4"
)

// RPIOWatcher watches GPIO edges through the BCM2835 event detect
// registers, mapped from /dev/gpiomem. The hardware latches edges; a poller
// goroutine checks and clears the latch every interval, so at most one edge
// per pin is reported per interval.
type RPIOWatcher struct {
	interval time.Duration

	mu   sync.Mutex
	pins map[int]rpioPin

	stop chan struct{}
	done chan struct{}

	closeOnce sync.Once
	closeErr  error
}

type rpioPin struct {
	pin     rpio.Pin
	edge    Edge
	handler Handler
}

// NewRPIOWatcher maps GPIO memory and starts the edge poller.
func NewRPIOWatcher(interval time.Duration) (*RPIOWatcher, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("invalid poll interval %v", interval)
	}
	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("open gpio memory: %w", err)
	}
	return startRPIOWatcher(interval), nil
}

// startRPIOWatcher starts the poller. GPIO memory must already be mapped
// before any pin is watched.
func startRPIOWatcher(interval time.Duration) *RPIOWatcher {
	w := &RPIOWatcher{
		interval: interval,
		pins:     make(map[int]rpioPin),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go w.poll()
	return w
}

// Watch sets pin as an input and enables edge detection on it.
func (w *RPIOWatcher) Watch(pin int, edge Edge, handler Handler) error {
	if pin < 0 || pin > 53 {
		return fmt.Errorf("pin %d out of range", pin)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.pins[pin]; ok {
		return fmt.Errorf("pin %d already watched", pin)
	}

	p := rpio.Pin(pin)
	p.Input()
	p.Detect(rpioEdge(edge))
	w.pins[pin] = rpioPin{pin: p, edge: edge, handler: handler}
	return nil
}

func rpioEdge(edge Edge) rpio.Edge {
	switch edge {
	case EdgeRising:
		return rpio.RiseEdge
	case EdgeBoth:
		return rpio.AnyEdge
	default:
		return rpio.FallEdge
	}
}

// Value returns the raw level of a watched pin.
func (w *RPIOWatcher) Value(pin int) (int, error) {
	w.mu.Lock()
	p, ok := w.pins[pin]
	w.mu.Unlock()
	if !ok {
		return 0, fmt.Errorf("pin %d not watched", pin)
	}
	return int(p.pin.Read()), nil
}

func (w *RPIOWatcher) poll() {
	defer close(w.done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stop:
			return
		case <-ticker.C:
		}

		w.mu.Lock()
		var fired []rpioPin
		for _, p := range w.pins {
			if p.pin.EdgeDetected() {
				fired = append(fired, p)
			}
		}
		w.mu.Unlock()

		now := time.Now()
		for _, p := range fired {
			p.handler(Event{
				Pin:  int(p.pin),
				Edge: observedEdge(p),
				Time: now,
			})
		}
	}
}

// observedEdge infers the transition direction. The event detect register
// does not record it, so for EdgeBoth the current level decides.
func observedEdge(p rpioPin) Edge {
	if p.edge != EdgeBoth {
		return p.edge
	}
	if p.pin.Read() == rpio.Low {
		return EdgeFalling
	}
	return EdgeRising
}

// Close stops the poller, disables edge detection and unmaps GPIO memory.
// Later calls return the first call's result.
func (w *RPIOWatcher) Close() error {
	w.closeOnce.Do(func() { w.closeErr = w.close() })
	return w.closeErr
}

func (w *RPIOWatcher) close() error {
	close(w.stop)
	<-w.done

	w.mu.Lock()
	for pin, p := range w.pins {
		p.pin.Detect(rpio.NoEdge)
		delete(w.pins, pin)
	}
	w.mu.Unlock()

	if err := rpio.Close(); err != nil {
		return fmt.Errorf("close gpio memory: %w", err)
	}
	return nil
}
