package mqtt

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/status-overlay/internal/logic"
)

func TestFormatPayload(t *testing.T) {
	event := logic.Event{
		Timestamp: time.Date(2026, 2, 2, 22, 18, 12, 0, time.UTC),
		Type:      logic.EventSOC,
		Pin:       5,
	}

	payload, err := FormatPayload(event)
	require.NoError(t, err)
	assert.JSONEq(t, `{"overlay":{"timestamp":"2026-02-02T22:18:12Z","event":"SOC","pin":5}}`, string(payload))
}

func TestFormatPayloadTimezoneConversion(t *testing.T) {
	nz := time.FixedZone("NZDT", 13*3600)
	event := logic.Event{
		Timestamp: time.Date(2026, 2, 3, 11, 18, 12, 500000000, nz),
		Type:      logic.EventPowerButton,
		Pin:       16,
	}

	payload, err := FormatPayload(event)
	require.NoError(t, err)

	var parsed Payload
	require.NoError(t, json.Unmarshal(payload, &parsed))
	assert.Equal(t, "2026-02-02T22:18:12.5Z", parsed.Overlay.Timestamp)
	assert.Equal(t, "POWER_BUTTON", parsed.Overlay.Event)
	assert.Equal(t, 16, parsed.Overlay.Pin)
}

func TestFormatSystemPayload(t *testing.T) {
	event := SystemEvent{
		Timestamp: time.Date(2026, 2, 2, 22, 18, 12, 0, time.UTC),
		Event:     "SHUTDOWN",
		Reason:    "SIGTERM",
	}

	payload, err := FormatSystemPayload(event)
	require.NoError(t, err)
	assert.Equal(t, `{"system":{"timestamp":"2026-02-02T22:18:12Z","event":"SHUTDOWN","reason":"SIGTERM"}}`, string(payload))
}

func TestFormatSystemPayloadOmitsEmptyReason(t *testing.T) {
	payload, err := FormatSystemPayload(SystemEvent{
		Timestamp: time.Date(2026, 2, 2, 22, 18, 12, 0, time.UTC),
		Event:     "RECONNECTED",
	})
	require.NoError(t, err)

	var parsed map[string]map[string]interface{}
	require.NoError(t, json.Unmarshal(payload, &parsed))
	_, hasReason := parsed["system"]["reason"]
	assert.False(t, hasReason)
}

func TestFormatSystemPayloadRawPassthrough(t *testing.T) {
	raw := []byte(`{"status":{"event":"STARTUP"}}`)
	payload, err := FormatSystemPayload(SystemEvent{Event: "STARTUP", RawPayload: raw})
	require.NoError(t, err)
	assert.Equal(t, raw, payload)
}

func TestWillPayloadFormat(t *testing.T) {
	assert.Equal(t, `{"system":{"event":"OFFLINE","reason":"LWT"}}`, string(willPayload()))
}

func TestTopics(t *testing.T) {
	assert.Equal(t, "power/status_overlay/events", Topic)
	assert.Equal(t, "power/status_overlay/system", TopicSystem)
}

// Compile-time interface checks.
var (
	_ Publisher        = (*FakePublisher)(nil)
	_ ConnectionStatus = (*FakePublisher)(nil)
	_ Publisher        = (*RealPublisher)(nil)
	_ ConnectionStatus = (*RealPublisher)(nil)
)

func TestFakePublisher(t *testing.T) {
	f := NewFakePublisher()

	require.NoError(t, f.Publish(logic.Event{Timestamp: time.Now(), Type: logic.EventSOC, Pin: 5}))
	require.NoError(t, f.Publish(logic.Event{Timestamp: time.Now(), Type: logic.EventPowerButton, Pin: 16}))

	require.Len(t, f.Events, 2)
	assert.Equal(t, logic.EventSOC, f.Events[0].Type)
	assert.Equal(t, logic.EventPowerButton, f.Events[1].Type)
	assert.Len(t, f.Payloads, 2)
	assert.Equal(t, 2, f.EventCount())
}

func TestFakePublisherErrors(t *testing.T) {
	f := NewFakePublisher()
	f.PublishError = errors.New("broker down")
	f.PublishSystemError = errors.New("broker down")

	assert.Error(t, f.Publish(logic.Event{Type: logic.EventSOC}))
	assert.Error(t, f.PublishSystem(SystemEvent{Event: "HEARTBEAT"}))
	assert.Empty(t, f.Events)
	assert.Empty(t, f.SystemEvents)
}

func TestFakePublisherSystemEvents(t *testing.T) {
	f := NewFakePublisher()

	require.NoError(t, f.PublishSystem(SystemEvent{Event: "STARTUP", Retained: true}))
	require.NoError(t, f.PublishSystem(SystemEvent{Event: "SHUTDOWN", Reason: "SIGINT"}))

	assert.Equal(t, []string{"STARTUP", "SHUTDOWN"}, f.SystemEventNames())
	assert.True(t, f.SystemEvents[0].Retained)
	assert.Len(t, f.SystemPayloads, 2)
}

func TestFakePublisherReset(t *testing.T) {
	f := NewFakePublisher()
	f.Publish(logic.Event{Type: logic.EventSOC})
	f.PublishSystem(SystemEvent{Event: "STARTUP"})
	f.Connected = true
	f.Close()

	f.Reset()

	assert.Empty(t, f.Events)
	assert.Empty(t, f.Payloads)
	assert.Empty(t, f.SystemEvents)
	assert.Empty(t, f.SystemPayloads)
	assert.False(t, f.Closed)
	assert.False(t, f.IsConnected())
}
