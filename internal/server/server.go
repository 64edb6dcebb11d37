// Package server assembles the process-wide App that owns the registry,
// dispatcher, protocol handler, sensor roster, and metrics.
package server

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/Tyrowin/sensorhub/internal/metrics"
	"github.com/Tyrowin/sensorhub/internal/sensor"
)

// App holds everything a request handler needs. It is constructed once at
// startup and passed explicitly; nothing here is global.
type App struct {
	Config     *Config
	Hub        *Hub
	Dispatcher *Dispatcher
	Handler    *Handler
	Sensors    *sensor.Roster
	Metrics    *metrics.Metrics
	Registry   *prometheus.Registry

	upgrader websocket.Upgrader
}

// NewApp wires an App around the default sensor roster.
func NewApp(cfg *Config, clock clockwork.Clock) *App {
	return NewAppWithSensors(cfg, clock, sensor.DefaultRoster(sensor.WithClock(clock)))
}

// NewAppWithSensors wires an App around the given roster.
func NewAppWithSensors(cfg *Config, clock clockwork.Clock, sensors *sensor.Roster) *App {
	if cfg == nil {
		cfg = NewConfig()
	}
	sanitized := sanitizeConfig(*cfg)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	hub := NewHub(m)
	dispatcher := NewDispatcher(hub)
	origins := newOriginPolicy(sanitized.AllowedOrigins)

	return &App{
		Config:     &sanitized,
		Hub:        hub,
		Dispatcher: dispatcher,
		Handler:    NewHandler(hub, dispatcher, sensors, clock),
		Sensors:    sensors,
		Metrics:    m,
		Registry:   registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     origins.checkOrigin,
		},
	}
}

// StartSensors starts every sensor, publishing readings through the dispatcher.
func (a *App) StartSensors() {
	for _, s := range a.Sensors.All() {
		a.Metrics.ObserveInterval(s.ID(), s.Interval())
	}
	a.Sensors.StartAll(a.Dispatcher.PublishReading)
	slog.Info("Sensors started", "count", len(a.Sensors.All()))
}

// Shutdown stops the sensors and closes every client connection.
func (a *App) Shutdown(timeout time.Duration) error {
	a.Sensors.StopAll()
	slog.Info("Sensors stopped")

	if err := a.Hub.Shutdown(timeout); err != nil {
		return fmt.Errorf("hub shutdown: %w", err)
	}
	return nil
}
