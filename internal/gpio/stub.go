//go:build !linux

package gpio

import (
	"errors"
	"time"
)

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// RealWatcher is not available on non-Linux platforms.
type RealWatcher struct{}

// NewRealWatcher returns an error on non-Linux platforms.
func NewRealWatcher(chipName string) (*RealWatcher, error) {
	return nil, errUnsupported
}

// Watch is not implemented on non-Linux platforms.
func (w *RealWatcher) Watch(pin int, edge Edge, handler Handler) error {
	return errUnsupported
}

// Value is not implemented on non-Linux platforms.
func (w *RealWatcher) Value(pin int) (int, error) {
	return 0, errUnsupported
}

// Close is not implemented on non-Linux platforms.
func (w *RealWatcher) Close() error {
	return nil
}

// RPIOWatcher is not available on non-Linux platforms.
type RPIOWatcher struct{}

// NewRPIOWatcher returns an error on non-Linux platforms.
func NewRPIOWatcher(interval time.Duration) (*RPIOWatcher, error) {
	return nil, errUnsupported
}

// Watch is not implemented on non-Linux platforms.
func (w *RPIOWatcher) Watch(pin int, edge Edge, handler Handler) error {
	return errUnsupported
}

// Value is not implemented on non-Linux platforms.
func (w *RPIOWatcher) Value(pin int) (int, error) {
	return 0, errUnsupported
}

// Close is not implemented on non-Linux platforms.
func (w *RPIOWatcher) Close() error {
	return nil
}
