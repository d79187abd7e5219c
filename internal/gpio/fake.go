package gpio

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// FakeWatcher is a test double that delivers edges on demand.
// Trigger runs the handler synchronously on the caller's goroutine,
// standing in for the backend's event goroutine.
type FakeWatcher struct {
	mu sync.Mutex

	lines map[int]fakeLine

	// levels tracks the simulated raw level per pin. Pins start high
	// (pulled up) until a falling edge is triggered.
	levels map[int]int

	// WatchError, if set, will be returned by Watch().
	WatchError error

	// Closed tracks if Close was called
	Closed bool

	// Now supplies event timestamps; defaults to time.Now.
	Now func() time.Time
}

type fakeLine struct {
	edge    Edge
	handler Handler
}

// NewFakeWatcher creates a FakeWatcher with no pins watched.
func NewFakeWatcher() *FakeWatcher {
	return &FakeWatcher{
		lines:  make(map[int]fakeLine),
		levels: make(map[int]int),
		Now:    time.Now,
	}
}

// Watch records the pin and its handler.
func (f *FakeWatcher) Watch(pin int, edge Edge, handler Handler) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.WatchError != nil {
		return f.WatchError
	}
	if f.Closed {
		return errors.New("watcher closed")
	}
	if _, ok := f.lines[pin]; ok {
		return fmt.Errorf("pin %d already watched", pin)
	}
	f.lines[pin] = fakeLine{edge: edge, handler: handler}
	if _, ok := f.levels[pin]; !ok {
		f.levels[pin] = 1
	}
	return nil
}

// Pins returns the watched pins in ascending order.
func (f *FakeWatcher) Pins() []int {
	f.mu.Lock()
	defer f.mu.Unlock()

	pins := make([]int, 0, len(f.lines))
	for pin := range f.lines {
		pins = append(pins, pin)
	}
	sort.Ints(pins)
	return pins
}

// Trigger simulates a transition on pin. The level is updated and, if the
// transition matches the registered edge, the handler is called.
// Returns whether the handler was called.
func (f *FakeWatcher) Trigger(pin int, edge Edge) (bool, error) {
	if edge == EdgeBoth {
		return false, errors.New("trigger needs a falling or rising edge")
	}

	f.mu.Lock()
	if f.Closed {
		f.mu.Unlock()
		return false, errors.New("watcher closed")
	}
	line, ok := f.lines[pin]
	if !ok {
		f.mu.Unlock()
		return false, fmt.Errorf("pin %d not watched", pin)
	}
	if edge == EdgeFalling {
		f.levels[pin] = 0
	} else {
		f.levels[pin] = 1
	}
	now := f.Now()
	f.mu.Unlock()

	if !line.edge.Matches(edge) {
		return false, nil
	}
	line.handler(Event{Pin: pin, Edge: edge, Time: now})
	return true, nil
}

// Value returns the simulated level of a watched pin.
func (f *FakeWatcher) Value(pin int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.lines[pin]; !ok {
		return 0, fmt.Errorf("pin %d not watched", pin)
	}
	return f.levels[pin], nil
}

// Close marks the watcher as closed. Later triggers fail.
func (f *FakeWatcher) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}
