// Package server defines the wire envelope, event names, and payload types
// shared by the dispatcher, protocol handler, and clients.
package server

import (
	"encoding/json"
	"strings"

	"github.com/Tyrowin/sensorhub/internal/sensor"
)

// Outbound events.
const (
	EventConnected      = "connected"
	EventPresence       = "presence"
	EventSensorUpdate   = "sensor_update"
	EventSubscribed     = "subscribed"
	EventOK             = "ok"
	EventError          = "error"
	EventChat           = "chat"
	EventPrivateMessage = "private_message"
)

// Inbound events. chat and private_message share their outbound names.
const (
	EventSubscribe         = "subscribe"
	EventSetSensorInterval = "set_sensor_interval"
)

// Presence statuses.
const (
	StatusConnected    = "connected"
	StatusDisconnected = "disconnected"
)

// Message is the JSON envelope exchanged in both directions.
type Message struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// InboundMessage keeps both fields raw. Event is usually a JSON string but
// is echoed back as sent when it is not one; data is echoed verbatim or
// decoded per event.
type InboundMessage struct {
	Event json.RawMessage `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// ConnectedData is sent to a connection right after it registers.
type ConnectedData struct {
	ClientID string        `json:"clientId"`
	Sensors  []sensor.Info `json:"sensors"`
}

// PresenceData announces a connection joining or leaving.
type PresenceData struct {
	ClientID string `json:"clientId"`
	Status   string `json:"status"`
}

// ChatData is the payload of both chat and private_message events.
type ChatData struct {
	From      string `json:"from"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

// ReplyData is the payload of ok and error replies. The contextual fields
// are only set when they relate to the request.
type ReplyData struct {
	Msg      string          `json:"msg"`
	SensorID string          `json:"sensorId,omitempty"`
	To       string          `json:"to,omitempty"`
	Event    json.RawMessage `json:"event,omitempty"`
}

type setIntervalRequest struct {
	SensorID   string `json:"sensorId"`
	IntervalMs any    `json:"intervalMs"`
}

type chatRequest struct {
	Text string `json:"text"`
}

type privateMessageRequest struct {
	To   string `json:"to"`
	Text string `json:"text"`
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
