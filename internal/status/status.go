// Package status provides a thread-safe status tracker for the status-overlay daemon.
// It is read by the HTTP status page and by MQTT system events.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/status-overlay/internal/logic"
)

// NetworkInfo contains network state as reported by pi-helper.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	Backend     string // "cdev", "rpio" or "simulate"
	Chip        string
	PinSOC      int
	PinPower    int
	HeartbeatMs int64 // MQTT heartbeat interval, 0 = disabled
	Broker      string
	HTTPAddr    string
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Counts        logic.EventCounts
	LastEvent     *logic.Event
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
		now: time.Now,
	}
}

// Update sets event counts and the most recent event.
// Called from runLoop on every tick and after each event.
func (t *Tracker) Update(counts logic.EventCounts, last *logic.Event) {
	t.mu.Lock()
	t.snap.Counts = counts
	if last != nil {
		e := *last
		t.snap.LastEvent = &e
	}
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	if s.LastEvent != nil {
		e := *s.LastEvent
		s.LastEvent = &e
	}
	t.mu.RUnlock()
	s.Now = t.now()
	return s
}
