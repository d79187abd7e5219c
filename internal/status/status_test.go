package status

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/status-overlay/internal/logic"
)

var start = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func fixedTracker(cfg Config, now time.Time) *Tracker {
	tr := NewTracker(start, cfg)
	tr.now = func() time.Time { return now }
	return tr
}

func TestNewTracker(t *testing.T) {
	cfg := Config{Backend: "cdev", Chip: "gpiochip0", PinSOC: 5, PinPower: 16}
	tr := NewTracker(start, cfg)

	snap := tr.Snapshot()
	assert.True(t, snap.StartTime.Equal(start))
	assert.Equal(t, cfg, snap.Config)
	assert.Nil(t, snap.LastEvent)
	assert.False(t, snap.MQTTConnected)
	assert.Equal(t, 0, snap.Counts.Total())
}

func TestUpdateAndSnapshot(t *testing.T) {
	tr := NewTracker(start, Config{})

	last := &logic.Event{Timestamp: start.Add(time.Minute), Type: logic.EventSOC, Pin: 5}
	tr.Update(logic.EventCounts{SOC: 3, PowerButton: 1}, last)

	snap := tr.Snapshot()
	assert.Equal(t, 3, snap.Counts.SOC)
	assert.Equal(t, 1, snap.Counts.PowerButton)
	require.NotNil(t, snap.LastEvent)
	assert.Equal(t, logic.EventSOC, snap.LastEvent.Type)

	// A nil last event keeps the previous one
	tr.Update(logic.EventCounts{SOC: 3, PowerButton: 1}, nil)
	assert.NotNil(t, tr.Snapshot().LastEvent)
}

func TestSnapshotIsIsolated(t *testing.T) {
	tr := NewTracker(start, Config{})
	tr.Update(logic.EventCounts{SOC: 1}, &logic.Event{Type: logic.EventSOC, Pin: 5})

	snap := tr.Snapshot()
	snap.LastEvent.Pin = 99
	assert.Equal(t, 5, tr.Snapshot().LastEvent.Pin)
}

func TestSetMQTTConnectedAndNetwork(t *testing.T) {
	tr := NewTracker(start, Config{})

	tr.SetMQTTConnected(true)
	assert.True(t, tr.Snapshot().MQTTConnected)

	tr.SetNetwork(&NetworkInfo{Type: "wifi", IP: "192.168.1.42", Status: "connected"})
	snap := tr.Snapshot()
	require.NotNil(t, snap.Network)
	assert.Equal(t, "192.168.1.42", snap.Network.IP)
}

func TestUptime(t *testing.T) {
	tr := fixedTracker(Config{}, start.Add(90*time.Second))
	assert.Equal(t, 90*time.Second, tr.Snapshot().Uptime())
}

func TestConcurrentAccess(t *testing.T) {
	tr := NewTracker(start, Config{})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			tr.Update(logic.EventCounts{SOC: n}, &logic.Event{Type: logic.EventSOC})
			tr.SetMQTTConnected(n%2 == 0)
		}(i)
		go func() {
			defer wg.Done()
			_ = tr.Snapshot()
		}()
	}
	wg.Wait()
}

func TestFormatJSON(t *testing.T) {
	tr := fixedTracker(Config{
		Backend:     "cdev",
		Chip:        "gpiochip0",
		PinSOC:      5,
		PinPower:    16,
		HeartbeatMs: 900000,
		Broker:      "tcp://192.168.1.200:1883",
	}, start.Add(65*time.Second+500*time.Millisecond))
	tr.Update(logic.EventCounts{SOC: 2, PowerButton: 7},
		&logic.Event{Timestamp: start.Add(time.Minute), Type: logic.EventPowerButton, Pin: 16})
	tr.SetMQTTConnected(true)

	var sj StatusJSON
	require.NoError(t, json.Unmarshal(FormatJSON(tr.Snapshot()), &sj))

	assert.Empty(t, sj.Status.Event)
	assert.Equal(t, int64(65), sj.Status.UptimeSeconds)
	assert.Equal(t, "2026-01-01T00:00:00Z", sj.Status.StartTime)
	assert.Equal(t, "2026-01-01T00:01:05Z", sj.Status.Timestamp)
	assert.True(t, sj.Status.MQTT.Connected)
	assert.Equal(t, "tcp://192.168.1.200:1883", sj.Status.MQTT.Broker)
	assert.Equal(t, CountsJSON{SOC: 2, PowerButton: 7}, sj.Status.Counts)
	require.NotNil(t, sj.Status.LastEvent)
	assert.Equal(t, "POWER_BUTTON", sj.Status.LastEvent.Type)
	assert.Equal(t, 16, sj.Status.LastEvent.Pin)
	assert.Nil(t, sj.Status.Network)
	assert.Equal(t, 5, sj.Status.Config.PinSOC)
	assert.Equal(t, 16, sj.Status.Config.PinPower)
	assert.Equal(t, "cdev", sj.Status.Config.Backend)
}

func TestFormatStatusEvent(t *testing.T) {
	tr := fixedTracker(Config{Backend: "rpio"}, start.Add(time.Hour))
	tr.SetNetwork(&NetworkInfo{Type: "ethernet", IP: "10.0.0.2", Status: "connected"})

	data := FormatStatusEvent(tr.Snapshot(), "SHUTDOWN", "SIGTERM")

	var sj StatusJSON
	require.NoError(t, json.Unmarshal(data, &sj))
	assert.Equal(t, "SHUTDOWN", sj.Status.Event)
	assert.Equal(t, "SIGTERM", sj.Status.Reason)
	assert.Equal(t, int64(3600), sj.Status.UptimeSeconds)
	require.NotNil(t, sj.Status.Network)
	assert.Equal(t, "ethernet", sj.Status.Network.Type)
	assert.Nil(t, sj.Status.LastEvent)

	// MQTT payloads are compact
	assert.NotContains(t, string(data), "\n")
}

func TestFormatStatusEventOmitsEmptyReason(t *testing.T) {
	data := FormatStatusEvent(NewTracker(start, Config{}).Snapshot(), "STARTUP", "")

	var raw map[string]map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))
	_, ok := raw["status"]["reason"]
	assert.False(t, ok)
	assert.Equal(t, "STARTUP", raw["status"]["event"])
}
