package server

import (
	"encoding/json"
	"log/slog"

	"github.com/Tyrowin/sensorhub/internal/metrics"
	"github.com/Tyrowin/sensorhub/internal/sensor"
)

// Dispatcher serializes outbound messages and delivers them to every open
// connection or to a single one. Delivery is best effort: a closed or
// saturated connection simply misses the message.
type Dispatcher struct {
	hub     *Hub
	metrics *metrics.Metrics
}

// NewDispatcher creates a dispatcher over hub.
func NewDispatcher(hub *Hub) *Dispatcher {
	return &Dispatcher{hub: hub, metrics: hub.metrics}
}

// BroadcastAll serializes msg once and sends the same bytes to every open
// connection. It returns the number of connections that accepted it.
func (d *Dispatcher) BroadcastAll(msg Message) int {
	payload, err := json.Marshal(msg)
	if err != nil {
		slog.Error("Error marshaling broadcast", "event", msg.Event, "error", err)
		return 0
	}

	conns := d.hub.AllOpen()
	delivered := 0
	for _, conn := range conns {
		if conn.Send(payload) {
			delivered++
			continue
		}
		d.metrics.SendsDropped.Inc()
	}

	d.metrics.MessagesSent.WithLabelValues(msg.Event).Add(float64(delivered))
	slog.Debug("Broadcast message", "event", msg.Event, "targets", len(conns), "delivered", delivered)
	return delivered
}

// SendTo delivers msg to the connection registered under id. It returns
// false when id is unknown, the connection is closed, or the send was dropped.
func (d *Dispatcher) SendTo(id string, msg Message) bool {
	conn, ok := d.hub.Lookup(id)
	if !ok {
		return false
	}
	return d.deliver(id, conn, msg)
}

// deliver sends msg to an already resolved connection. It does not touch the
// registry, so it is safe to call from a RegisterWith greeting.
func (d *Dispatcher) deliver(id string, conn Connection, msg Message) bool {
	if !conn.Open() {
		return false
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		slog.Error("Error marshaling message", "event", msg.Event, "client_id", id, "error", err)
		return false
	}

	if !conn.Send(payload) {
		d.metrics.SendsDropped.Inc()
		slog.Debug("Dropped message for client", "event", msg.Event, "client_id", id)
		return false
	}

	d.metrics.MessagesSent.WithLabelValues(msg.Event).Inc()
	return true
}

// PublishReading broadcasts a sensor reading. It is the sensor.DispatchFunc
// every sensor in the roster runs with.
func (d *Dispatcher) PublishReading(r sensor.Reading) {
	d.metrics.SensorTicks.WithLabelValues(r.SensorID).Inc()
	d.BroadcastAll(Message{Event: EventSensorUpdate, Data: r})
}
