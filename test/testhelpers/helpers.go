// Package testhelpers provides shared utilities for the black-box SensorHub
// integration tests: starting a fully wired server, dialing WebSocket
// clients, and reading protocol events.
package testhelpers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/sensorhub/internal/server"
)

// TestOrigin is the Origin header sent by ConnectWebSocket.
const TestOrigin = "http://localhost:3000"

// Event is a decoded outbound protocol message.
type Event struct {
	Event string         `json:"event"`
	Data  map[string]any `json:"data"`
}

// TestServer is a running App behind an HTTP test server built with the
// production server settings.
type TestServer struct {
	App    *server.App
	HTTP   *httptest.Server
	WSURL  string
	closed bool
}

// StartTestServer wires an App around the real clock, starts its sensors,
// and serves it. The server is shut down when the test ends.
func StartTestServer(t *testing.T, cfg *server.Config) *TestServer {
	t.Helper()

	app := server.NewApp(cfg, clockwork.NewRealClock())
	app.StartSensors()

	routes := server.SetupRoutes(app)
	testServer := httptest.NewUnstartedServer(routes)
	testServer.Config = server.CreateServer(":0", routes)
	testServer.Start()

	ts := &TestServer{
		App:   app,
		HTTP:  testServer,
		WSURL: "ws" + strings.TrimPrefix(testServer.URL, "http") + "/ws",
	}
	t.Cleanup(ts.Close)
	return ts
}

// Close stops the HTTP server and the App. It is safe to call more than once.
func (ts *TestServer) Close() {
	if ts.closed {
		return
	}
	ts.closed = true
	ts.HTTP.Close()
	_ = ts.App.Shutdown(5 * time.Second)
}

// MakeRequest executes an HTTP request with a 5-second timeout.
func MakeRequest(t *testing.T, method, url string) *http.Response {
	t.Helper()

	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	req, err := http.NewRequest(method, url, http.NoBody)
	require.NoError(t, err, "failed to create request")

	resp, err := client.Do(req)
	require.NoError(t, err, "failed to make request")
	return resp
}

// ConnectWebSocket dials url with TestOrigin as the Origin header.
func ConnectWebSocket(url string) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}

	headers := http.Header{}
	headers.Set("Origin", TestOrigin)

	conn, resp, err := dialer.Dial(url, headers)
	if resp != nil {
		_ = resp.Body.Close()
	}
	return conn, err
}

// SendEvent writes an {event, data} envelope.
func SendEvent(conn *websocket.Conn, event string, data any) error {
	return conn.WriteJSON(map[string]any{"event": event, "data": data})
}

// WaitForEvent reads until a message with the given event arrives or the
// timeout expires.
func WaitForEvent(t *testing.T, conn *websocket.Conn, event string, timeout time.Duration) Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(timeout)))
	for {
		var msg Event
		require.NoError(t, conn.ReadJSON(&msg), "waiting for %q", event)
		if msg.Event == event {
			return msg
		}
	}
}

// DrainUntilClosed reads until the connection fails and reports whether that
// happened before the timeout.
func DrainUntilClosed(conn *websocket.Conn, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	if err := conn.SetReadDeadline(deadline); err != nil {
		return true
	}
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return time.Now().Before(deadline)
		}
	}
}

// CloseWebSocket sends a normal close frame and closes conn.
func CloseWebSocket(conn *websocket.Conn) error {
	err := conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil {
		return err
	}
	return conn.Close()
}
