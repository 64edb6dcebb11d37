package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/sensorhub/internal/sensor"
)

var testEpoch = time.UnixMilli(1700000000000)

// fakeConn records every frame it accepts.
type fakeConn struct {
	mu     sync.Mutex
	open   bool
	full   bool
	frames [][]byte
}

func newFakeConn() *fakeConn {
	return &fakeConn{open: true}
}

func (f *fakeConn) Send(data []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.open || f.full {
		return false
	}
	f.frames = append(f.frames, append([]byte(nil), data...))
	return true
}

func (f *fakeConn) Open() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.open = false
	return nil
}

func (f *fakeConn) rawFrames() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.frames...)
}

func (f *fakeConn) messages(t *testing.T) []received {
	t.Helper()
	frames := f.rawFrames()
	out := make([]received, 0, len(frames))
	for _, frame := range frames {
		var msg received
		require.NoError(t, json.Unmarshal(frame, &msg))
		out = append(out, msg)
	}
	return out
}

func (f *fakeConn) eventsOf(t *testing.T, event string) []received {
	t.Helper()
	var out []received
	for _, msg := range f.messages(t) {
		if msg.Event == event {
			out = append(out, msg)
		}
	}
	return out
}

func (f *fakeConn) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = nil
}

// received is a decoded outbound message.
type received struct {
	Event string         `json:"event"`
	Data  map[string]any `json:"data"`
}

type handlerFixture struct {
	handler *Handler
	hub     *Hub
	clock   *clockwork.FakeClock
	sensors *sensor.Roster
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	clock := clockwork.NewFakeClockAt(testEpoch)
	roster := sensor.DefaultRoster(sensor.WithClock(clock))
	hub := NewHub(nil)
	dispatcher := NewDispatcher(hub)
	t.Cleanup(roster.StopAll)

	return &handlerFixture{
		handler: NewHandler(hub, dispatcher, roster, clock),
		hub:     hub,
		clock:   clock,
		sensors: roster,
	}
}

// connect registers a fake connection and clears its greeting frames.
func (f *handlerFixture) connect(t *testing.T) (string, *fakeConn) {
	t.Helper()
	conn := newFakeConn()
	id := f.handler.Connect(conn)
	conn.reset()
	return id, conn
}

func (f *handlerFixture) send(clientID string, event string, data any) {
	raw, _ := json.Marshal(map[string]any{"event": event, "data": data})
	f.handler.HandleMessage(clientID, raw)
}

type wsFixture struct {
	app   *App
	clock *clockwork.FakeClock
	srv   *httptest.Server
	url   string
}

func newWSFixture(t *testing.T) *wsFixture {
	t.Helper()
	return newWSFixtureWithConfig(t, NewConfig())
}

func newWSFixtureWithConfig(t *testing.T, cfg *Config) *wsFixture {
	t.Helper()
	clock := clockwork.NewFakeClockAt(testEpoch)
	app := NewApp(cfg, clock)
	srv := httptest.NewServer(SetupRoutes(app))
	t.Cleanup(func() {
		srv.Close()
		_ = app.Shutdown(2 * time.Second)
	})

	return &wsFixture{
		app:   app,
		clock: clock,
		srv:   srv,
		url:   "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws",
	}
}

// dial connects a WebSocket client with a browser-style Origin header.
func (f *wsFixture) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}

	headers := http.Header{}
	headers.Set("Origin", "http://localhost:3000")

	conn, resp, err := dialer.Dial(f.url, headers)
	if resp != nil {
		_ = resp.Body.Close()
	}
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// readEvent reads frames until one with the given event arrives.
func readEvent(t *testing.T, conn *websocket.Conn, event string) received {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		require.NoError(t, conn.SetReadDeadline(deadline))
		var msg received
		require.NoError(t, conn.ReadJSON(&msg), "waiting for %q", event)
		if msg.Event == event {
			return msg
		}
	}
}

// expectSilence asserts that nothing arrives on conn for d.
func expectSilence(t *testing.T, conn *websocket.Conn, d time.Duration) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(d)))
	_, data, err := conn.ReadMessage()
	require.Error(t, err, "unexpected message: %s", data)
}

func writeEvent(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]any{"event": event, "data": data}))
}
