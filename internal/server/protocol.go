package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/Tyrowin/sensorhub/internal/logging"
	"github.com/Tyrowin/sensorhub/internal/metrics"
	"github.com/Tyrowin/sensorhub/internal/sensor"
)

// defaultIntervalMs replaces any interval that is missing, not numeric, or not positive.
const defaultIntervalMs = 1000

// maxIntervalMs keeps the period representable as a time.Duration.
const maxIntervalMs = int64(24 * time.Hour / time.Millisecond)

// Handler implements the per-connection request/reply protocol.
type Handler struct {
	hub        *Hub
	dispatcher *Dispatcher
	sensors    *sensor.Roster
	clock      clockwork.Clock
	metrics    *metrics.Metrics
}

// NewHandler creates a protocol handler.
func NewHandler(hub *Hub, dispatcher *Dispatcher, sensors *sensor.Roster, clock clockwork.Clock) *Handler {
	return &Handler{
		hub:        hub,
		dispatcher: dispatcher,
		sensors:    sensors,
		clock:      clock,
		metrics:    hub.metrics,
	}
}

// Connect registers conn, greets it with its id and the sensor roster, and
// announces it to every connection, itself included.
func (h *Handler) Connect(conn Connection) string {
	infos := h.sensors.Infos()
	id := h.hub.RegisterWith(conn, func(id string) {
		h.dispatcher.deliver(id, conn, Message{
			Event: EventConnected,
			Data:  ConnectedData{ClientID: id, Sensors: infos},
		})
	})

	h.dispatcher.BroadcastAll(Message{
		Event: EventPresence,
		Data:  PresenceData{ClientID: id, Status: StatusConnected},
	})
	return id
}

// Disconnect unregisters id and announces its departure to the remaining
// connections. Only the first call for an id has any effect.
func (h *Handler) Disconnect(id string) {
	if !h.hub.Unregister(id) {
		return
	}
	h.dispatcher.BroadcastAll(Message{
		Event: EventPresence,
		Data:  PresenceData{ClientID: id, Status: StatusDisconnected},
	})
}

// HandleMessage parses one inbound frame from clientID and acts on it.
// Frames that are not JSON, or are JSON null, are dropped without a reply.
// Any other frame whose event is not a known string gets an error reply.
func (h *Handler) HandleMessage(clientID string, raw []byte) {
	msg, ok := parseInbound(raw)
	if !ok {
		logging.WithClient(clientID).Debug("Dropping malformed message", "bytes", len(raw))
		return
	}

	event := eventName(msg.Event)
	h.metrics.MessagesReceived.WithLabelValues(receivedLabel(event)).Inc()

	switch event {
	case EventSubscribe:
		h.handleSubscribe(clientID, msg.Data)
	case EventSetSensorInterval:
		h.handleSetSensorInterval(clientID, msg.Data)
	case EventChat:
		h.handleChat(clientID, msg.Data)
	case EventPrivateMessage:
		h.handlePrivateMessage(clientID, msg.Data)
	default:
		h.reply(clientID, EventError, ReplyData{Msg: "unknown event", Event: msg.Event})
	}
}

// parseInbound accepts any JSON value except null. Only objects carry an
// event and data; arrays, strings and numbers parse with both left empty.
func parseInbound(raw []byte) (InboundMessage, bool) {
	var msg InboundMessage
	trimmed := bytes.TrimSpace(raw)
	if !json.Valid(trimmed) || bytes.Equal(trimmed, []byte("null")) {
		return msg, false
	}
	if trimmed[0] == '{' {
		if err := json.Unmarshal(trimmed, &msg); err != nil {
			return msg, false
		}
	}
	return msg, true
}

// eventName decodes a string event. A missing or non-string event yields "".
func eventName(raw json.RawMessage) string {
	var name string
	if len(raw) == 0 || json.Unmarshal(raw, &name) != nil {
		return ""
	}
	return name
}

// handleSubscribe acknowledges with the request data echoed unchanged.
func (h *Handler) handleSubscribe(clientID string, data json.RawMessage) {
	reply := Message{Event: EventSubscribed}
	if len(data) > 0 {
		reply.Data = data
	}
	h.dispatcher.SendTo(clientID, reply)
}

func (h *Handler) handleSetSensorInterval(clientID string, data json.RawMessage) {
	var req setIntervalRequest
	decodeData(data, &req)

	s, ok := h.sensors.Get(req.SensorID)
	if !ok {
		h.reply(clientID, EventError, ReplyData{Msg: "sensor not found", SensorID: req.SensorID})
		return
	}

	ms := coerceIntervalMs(req.IntervalMs)
	interval := s.Reschedule(time.Duration(ms)*time.Millisecond, h.dispatcher.PublishReading)
	h.metrics.ObserveInterval(s.ID(), interval)

	h.reply(clientID, EventOK, ReplyData{
		Msg: fmt.Sprintf("interval set for %s = %dms", s.ID(), interval.Milliseconds()),
	})
}

func (h *Handler) handleChat(clientID string, data json.RawMessage) {
	var req chatRequest
	decodeData(data, &req)

	h.dispatcher.BroadcastAll(Message{
		Event: EventChat,
		Data:  ChatData{From: clientID, Text: req.Text, Timestamp: h.now()},
	})
}

func (h *Handler) handlePrivateMessage(clientID string, data json.RawMessage) {
	var req privateMessageRequest
	decodeData(data, &req)

	delivered := h.dispatcher.SendTo(req.To, Message{
		Event: EventPrivateMessage,
		Data:  ChatData{From: clientID, Text: req.Text, Timestamp: h.now()},
	})
	if !delivered {
		h.reply(clientID, EventError, ReplyData{Msg: "client not found or offline", To: req.To})
		return
	}
	h.reply(clientID, EventOK, ReplyData{Msg: "sent", To: req.To})
}

func (h *Handler) reply(clientID, event string, data ReplyData) {
	h.dispatcher.SendTo(clientID, Message{Event: event, Data: data})
}

func (h *Handler) now() int64 {
	return h.clock.Now().UnixMilli()
}

// decodeData fills v from the event data. Missing data, a non-object, or a
// field of the wrong type leaves the affected fields at their zero value.
func decodeData(data json.RawMessage, v any) {
	if len(data) == 0 {
		return
	}
	if err := json.Unmarshal(data, v); err != nil {
		slog.Debug("Lenient decode of event data", "error", err)
	}
}

// coerceIntervalMs converts a number-like value to whole milliseconds.
func coerceIntervalMs(v any) int64 {
	var ms float64
	switch x := v.(type) {
	case float64:
		ms = x
	case json.Number:
		if f, err := x.Float64(); err == nil {
			ms = f
		}
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(x), 64); err == nil {
			ms = f
		}
	case bool:
		if x {
			ms = 1
		}
	}

	if math.IsNaN(ms) || math.IsInf(ms, 0) || ms < 1 {
		return defaultIntervalMs
	}
	if ms >= float64(maxIntervalMs) {
		return maxIntervalMs
	}
	return int64(ms)
}

// receivedLabel keeps metric cardinality bounded for unrecognized events.
func receivedLabel(event string) string {
	switch event {
	case EventSubscribe, EventSetSensorInterval, EventChat, EventPrivateMessage:
		return event
	default:
		return "unknown"
	}
}
