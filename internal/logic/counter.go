package logic

import (
	"sync"
	"time"
)

// Counter tallies events and schedules heartbeats.
// Record is called from interrupt handlers, so all methods are safe for
// concurrent use.
type Counter struct {
	mu            sync.Mutex
	startTime     time.Time
	counts        EventCounts
	last          *Event
	lastHeartbeat time.Time
}

// NewCounter creates a Counter. The startTime is used for calculating
// uptime in heartbeat events.
func NewCounter(startTime time.Time) *Counter {
	return &Counter{
		startTime:     startTime,
		lastHeartbeat: startTime,
	}
}

// Record counts an event. Unknown event types are ignored.
func (c *Counter) Record(e Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch e.Type {
	case EventSOC:
		c.counts.SOC++
	case EventPowerButton:
		c.counts.PowerButton++
	default:
		return
	}
	c.last = &e
}

// Counts returns a copy of the current event counts.
func (c *Counter) Counts() EventCounts {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts
}

// LastEvent returns a copy of the most recently recorded event, or nil.
func (c *Counter) LastEvent() *Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last == nil {
		return nil
	}
	e := *c.last
	return &e
}

// CheckHeartbeat returns heartbeat data if the interval has elapsed since the
// last heartbeat (or startup). Returns nil if the interval has not elapsed,
// or if interval is <= 0 (disabled).
func (c *Counter) CheckHeartbeat(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if now.Sub(c.lastHeartbeat) < interval {
		return nil
	}

	c.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(c.startTime),
		Counts:    c.counts,
	}
}
