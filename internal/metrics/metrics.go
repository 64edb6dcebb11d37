// Package metrics defines the Prometheus collectors exported by the hub.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "sensorhub"

// Metrics holds every collector the hub updates.
type Metrics struct {
	ConnectionsActive prometheus.Gauge
	MessagesReceived  *prometheus.CounterVec
	MessagesSent      *prometheus.CounterVec
	SendsDropped      prometheus.Counter
	SensorTicks       *prometheus.CounterVec
	SensorInterval    *prometheus.GaugeVec
}

// New creates the hub metrics and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ConnectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Number of currently registered WebSocket connections.",
		}),
		MessagesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Inbound messages parsed, by event.",
		}, []string{"event"}),
		MessagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_sent_total",
			Help:      "Outbound messages handed to connections, by event.",
		}, []string{"event"}),
		SendsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sends_dropped_total",
			Help:      "Outbound messages dropped because the connection was closed or saturated.",
		}),
		SensorTicks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sensor_ticks_total",
			Help:      "Readings produced, by sensor.",
		}, []string{"sensor"}),
		SensorInterval: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sensor_interval_seconds",
			Help:      "Current update period, by sensor.",
		}, []string{"sensor"}),
	}

	reg.MustRegister(
		m.ConnectionsActive,
		m.MessagesReceived,
		m.MessagesSent,
		m.SendsDropped,
		m.SensorTicks,
		m.SensorInterval,
	)
	return m
}

// ObserveInterval records the current period of a sensor.
func (m *Metrics) ObserveInterval(sensorID string, interval time.Duration) {
	m.SensorInterval.WithLabelValues(sensorID).Set(interval.Seconds())
}
