// Package sensor simulates periodic data sources. Each Sensor owns its value
// and a cancellable recurring schedule, and hands every new reading to a
// caller-supplied DispatchFunc.
package sensor

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/Tyrowin/sensorhub/internal/logging"
)

// DefaultInterval is used whenever a requested update period is not positive.
const DefaultInterval = 1000 * time.Millisecond

// driftFactor bounds a single random-walk step to this fraction of the range width.
const driftFactor = 0.01

// Reading is a single sensor_update payload.
type Reading struct {
	SensorID  string  `json:"sensorId"`
	Type      string  `json:"type"`
	Value     float64 `json:"value"`
	Timestamp int64   `json:"timestamp"`
}

// Info is the static part of a sensor advertised to new connections.
type Info struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// DispatchFunc receives every reading a running sensor produces.
type DispatchFunc func(Reading)

// Option customizes a Sensor at construction time.
type Option func(*Sensor)

// WithClock sets the clock used for scheduling and timestamps.
func WithClock(clock clockwork.Clock) Option {
	return func(s *Sensor) { s.clock = clock }
}

// WithRand sets the uniform [0,1) generator used for drift.
func WithRand(fn func() float64) Option {
	return func(s *Sensor) { s.rand = fn }
}

// Sensor is a bounded random-walk value generator with its own schedule.
type Sensor struct {
	id    string
	kind  string
	min   float64
	max   float64
	clock clockwork.Clock
	rand  func() float64

	// lifecycle serializes Start, Stop and Reschedule.
	lifecycle sync.Mutex

	mu       sync.Mutex
	value    float64
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
}

// New creates a stopped sensor whose value starts at a random point in [min, max].
func New(id, kind string, min, max float64, interval time.Duration, opts ...Option) *Sensor {
	if min > max {
		min, max = max, min
	}

	s := &Sensor{
		id:       id,
		kind:     kind,
		min:      min,
		max:      max,
		clock:    clockwork.NewRealClock(),
		rand:     rand.Float64,
		interval: normalizeInterval(interval),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.value = s.clamp(round2(s.rand()*(max-min) + min))
	return s
}

// ID returns the sensor identifier.
func (s *Sensor) ID() string { return s.id }

// Type returns the sensor category label.
func (s *Sensor) Type() string { return s.kind }

// Bounds returns the closed value range.
func (s *Sensor) Bounds() (min, max float64) { return s.min, s.max }

// Info returns the id and type pair advertised to clients.
func (s *Sensor) Info() Info {
	return Info{ID: s.id, Type: s.kind}
}

// Value returns the current value.
func (s *Sensor) Value() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// Interval returns the current update period.
func (s *Sensor) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// Running reports whether a schedule is active.
func (s *Sensor) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stop != nil
}

// Start activates the recurring schedule. It is a no-op while already running.
func (s *Sensor) Start(dispatch DispatchFunc) {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	s.start(dispatch)
}

// Stop cancels the schedule and waits for the ticking goroutine to exit.
// It is safe to call on a stopped sensor.
func (s *Sensor) Stop() {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	s.halt()
}

// Reschedule changes the update period and restarts the schedule, so no
// tick at the old period can fire once it returns.
func (s *Sensor) Reschedule(interval time.Duration, dispatch DispatchFunc) time.Duration {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	interval = normalizeInterval(interval)

	s.mu.Lock()
	s.interval = interval
	s.mu.Unlock()

	s.halt()
	s.start(dispatch)

	logging.WithSensor(s.id).Info("Sensor rescheduled", "interval", interval)
	return interval
}

func (s *Sensor) start(dispatch DispatchFunc) {
	s.mu.Lock()
	if s.stop != nil {
		s.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	done := make(chan struct{})
	s.stop = stop
	s.done = done
	interval := s.interval
	s.mu.Unlock()

	// The ticker is created before the goroutine so it is armed when Start returns.
	ticker := s.clock.NewTicker(interval)
	go s.run(ticker, stop, done, dispatch)
}

func (s *Sensor) halt() {
	s.mu.Lock()
	stop, done := s.stop, s.done
	s.stop, s.done = nil, nil
	s.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}

func (s *Sensor) run(ticker clockwork.Ticker, stop <-chan struct{}, done chan<- struct{}, dispatch DispatchFunc) {
	defer close(done)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.Chan():
			// A stop racing with a tick wins.
			select {
			case <-stop:
				return
			default:
			}
			reading := s.Tick()
			if dispatch != nil {
				dispatch(reading)
			}
		}
	}
}

// Tick advances the random walk by one step and returns the new reading.
func (s *Sensor) Tick() Reading {
	s.mu.Lock()
	drift := (s.rand() - 0.5) * (s.max - s.min) * driftFactor
	s.value = s.clamp(round2(s.clamp(s.value + drift)))
	value := s.value
	s.mu.Unlock()

	return Reading{
		SensorID:  s.id,
		Type:      s.kind,
		Value:     value,
		Timestamp: s.clock.Now().UnixMilli(),
	}
}

func (s *Sensor) clamp(v float64) float64 {
	return math.Min(s.max, math.Max(s.min, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func normalizeInterval(interval time.Duration) time.Duration {
	if interval <= 0 {
		return DefaultInterval
	}
	return interval
}
