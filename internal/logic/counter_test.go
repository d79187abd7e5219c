package logic

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestCounterRecord(t *testing.T) {
	c := NewCounter(t0)

	c.Record(Event{Timestamp: t0, Type: EventSOC, Pin: 5})
	c.Record(Event{Timestamp: t0, Type: EventSOC, Pin: 5})
	c.Record(Event{Timestamp: t0.Add(time.Second), Type: EventPowerButton, Pin: 16})

	counts := c.Counts()
	assert.Equal(t, 2, counts.SOC)
	assert.Equal(t, 1, counts.PowerButton)
	assert.Equal(t, 3, counts.Total())

	last := c.LastEvent()
	require.NotNil(t, last)
	assert.Equal(t, EventPowerButton, last.Type)
	assert.Equal(t, 16, last.Pin)
}

func TestCounterIgnoresUnknownType(t *testing.T) {
	c := NewCounter(t0)
	c.Record(Event{Type: "BOGUS"})

	assert.Equal(t, 0, c.Counts().Total())
	assert.Nil(t, c.LastEvent())
}

func TestCounterLastEventIsCopy(t *testing.T) {
	c := NewCounter(t0)
	c.Record(Event{Type: EventSOC, Pin: 5})

	last := c.LastEvent()
	last.Pin = 99
	assert.Equal(t, 5, c.LastEvent().Pin)
}

func TestCounterConcurrentRecord(t *testing.T) {
	c := NewCounter(t0)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			c.Record(Event{Type: EventSOC})
		}()
		go func() {
			defer wg.Done()
			c.Record(Event{Type: EventPowerButton})
		}()
	}
	wg.Wait()

	assert.Equal(t, EventCounts{SOC: 50, PowerButton: 50}, c.Counts())
}

func TestCheckHeartbeatDisabled(t *testing.T) {
	c := NewCounter(t0)
	assert.Nil(t, c.CheckHeartbeat(t0.Add(time.Hour), 0))
	assert.Nil(t, c.CheckHeartbeat(t0.Add(time.Hour), -time.Minute))
}

func TestCheckHeartbeatInterval(t *testing.T) {
	c := NewCounter(t0)
	interval := 15 * time.Minute

	// Not yet elapsed
	assert.Nil(t, c.CheckHeartbeat(t0.Add(14*time.Minute), interval))

	c.Record(Event{Type: EventSOC})

	hb := c.CheckHeartbeat(t0.Add(15*time.Minute), interval)
	require.NotNil(t, hb)
	assert.Equal(t, t0.Add(15*time.Minute), hb.Timestamp)
	assert.Equal(t, 15*time.Minute, hb.Uptime)
	assert.Equal(t, 1, hb.Counts.SOC)

	// Interval restarts from the last heartbeat
	assert.Nil(t, c.CheckHeartbeat(t0.Add(29*time.Minute), interval))

	hb = c.CheckHeartbeat(t0.Add(30*time.Minute), interval)
	require.NotNil(t, hb)
	assert.Equal(t, 30*time.Minute, hb.Uptime)
}
