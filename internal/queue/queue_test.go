package queue

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEvent() RouteSettledEvent {
	return RouteSettledEvent{
		RouteID:    17,
		DriverID:   4,
		TruckID:    2,
		RouteDate:  "2026-03-14",
		Status:     "LOCKED_DEBT",
		Strategy:   "INVENTORY_PARITY",
		DebtAmount: "300.00",
		Delta:      5,
		Message:    "MISMATCH DETECTED. Missing 5 units. Debt: $300.00",
		SettledBy:  1,
		SettledAt:  "2026-03-14T17:30:00Z",
	}
}

func TestHandleMessageAppendsLines(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	c := NewConsumer("", dir, nil)

	body, err := json.Marshal(sampleEvent())
	require.NoError(t, err)
	require.NoError(t, c.handleMessage(body))
	require.NoError(t, c.handleMessage(body))

	raw, err := os.ReadFile(filepath.Join(dir, SettlementLogFile))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "route_id=17")
	assert.Contains(t, lines[0], "status=LOCKED_DEBT")
	assert.Contains(t, lines[0], "debt=300.00")
}

func TestHandleMessageRejectsGarbage(t *testing.T) {
	c := NewConsumer("", t.TempDir(), nil)
	assert.Error(t, c.handleMessage([]byte("not json")))
	assert.Error(t, c.handleMessage([]byte(`{"status":"CLOSED"}`)))
}

func TestFormatLineIsSingleLine(t *testing.T) {
	ev := sampleEvent()
	ev.Message = "line one\nline two"
	line := FormatLine(ev)
	assert.True(t, strings.HasSuffix(line, "\n"))
	assert.Equal(t, 1, strings.Count(line, "\n"))
}

func TestNewPublishing(t *testing.T) {
	now := time.Date(2026, 3, 14, 17, 30, 0, 0, time.UTC)
	pub, err := newPublishing(sampleEvent(), now)
	require.NoError(t, err)

	assert.Equal(t, "application/json", pub.ContentType)
	assert.Equal(t, amqp.Persistent, pub.DeliveryMode)
	assert.Equal(t, now, pub.Timestamp)
	assert.Len(t, pub.MessageId, 36)

	var back RouteSettledEvent
	require.NoError(t, json.Unmarshal(pub.Body, &back))
	assert.Equal(t, uint64(17), back.RouteID)

	other, err := newPublishing(sampleEvent(), now)
	require.NoError(t, err)
	assert.NotEqual(t, pub.MessageId, other.MessageId)
}
