// Package logic contains pure event bookkeeping for the status overlay monitor.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import "time"

// EventType identifies which overlay signal fired.
type EventType string

const (
	EventSOC         EventType = "SOC"
	EventPowerButton EventType = "POWER_BUTTON"
)

// Event represents one interrupt delivered on an overlay pin.
type Event struct {
	Timestamp time.Time
	Type      EventType
	Pin       int
}

// EventCounts tracks the number of each event type since startup.
type EventCounts struct {
	SOC         int
	PowerButton int
}

// Total returns the number of events of all types.
func (c EventCounts) Total() int {
	return c.SOC + c.PowerButton
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Counts    EventCounts
}
