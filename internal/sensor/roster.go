package sensor

import (
	"time"
)

// Roster is the fixed set of sensors created at process start.
type Roster struct {
	sensors []*Sensor
	byID    map[string]*Sensor
}

// NewRoster builds a roster from the given sensors, keeping their order.
// Later sensors with a duplicate id are ignored.
func NewRoster(sensors ...*Sensor) *Roster {
	r := &Roster{
		sensors: make([]*Sensor, 0, len(sensors)),
		byID:    make(map[string]*Sensor, len(sensors)),
	}
	for _, s := range sensors {
		if _, exists := r.byID[s.ID()]; exists {
			continue
		}
		r.sensors = append(r.sensors, s)
		r.byID[s.ID()] = s
	}
	return r
}

// DefaultRoster returns the temperature, humidity and pressure sensors.
func DefaultRoster(opts ...Option) *Roster {
	return NewRoster(
		New("sensor-temp-1", "temperature", 15, 35, 1000*time.Millisecond, opts...),
		New("sensor-hum-1", "humidity", 20, 90, 1500*time.Millisecond, opts...),
		New("sensor-pres-1", "pressure", 980, 1050, 2000*time.Millisecond, opts...),
	)
}

// Get looks up a sensor by id.
func (r *Roster) Get(id string) (*Sensor, bool) {
	s, ok := r.byID[id]
	return s, ok
}

// All returns the sensors in roster order.
func (r *Roster) All() []*Sensor {
	return append([]*Sensor(nil), r.sensors...)
}

// Infos returns the id/type pairs for every sensor.
func (r *Roster) Infos() []Info {
	infos := make([]Info, 0, len(r.sensors))
	for _, s := range r.sensors {
		infos = append(infos, s.Info())
	}
	return infos
}

// StartAll starts every sensor with the same dispatch function.
func (r *Roster) StartAll(dispatch DispatchFunc) {
	for _, s := range r.sensors {
		s.Start(dispatch)
	}
}

// StopAll stops every sensor.
func (r *Roster) StopAll() {
	for _, s := range r.sensors {
		s.Stop()
	}
}
