// Package server exposes HTTP handlers, including WebSocket upgrades, health
// checks, and the built-in test page.
package server

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
)

// WebSocketHandler upgrades the request to a WebSocket, registers the new
// client, and returns while the client's pumps keep running.
func (a *App) WebSocketHandler(c echo.Context) error {
	conn, err := a.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// The upgrader has already written the HTTP error response.
		slog.Warn("WebSocket upgrade failed", "remote_addr", c.Request().RemoteAddr, "error", err)
		return nil
	}

	client := NewClient(conn, a.Handler, c.Request().RemoteAddr, a.Config)
	client.Start(a.Hub)
	return nil
}

// HealthHandler provides a simple health check endpoint that returns server status.
func HealthHandler(c echo.Context) error {
	return c.String(http.StatusOK, "SensorHub server is running!")
}

// TestPageHandler serves an HTML page for exercising the WebSocket protocol by hand.
func TestPageHandler(c echo.Context) error {
	return c.HTML(http.StatusOK, testPageHTML)
}

const testPageHTML = `<!DOCTYPE html>
<html>
<head>
    <title>SensorHub WebSocket Test</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        #log { border: 1px solid #ccc; height: 300px; padding: 10px; overflow-y: scroll; background-color: #f9f9f9; }
        #sensors span { display: inline-block; min-width: 220px; }
        input[type="text"] { width: 260px; padding: 5px; margin-right: 10px; }
        button { padding: 5px 15px; background-color: #007cba; color: white; border: none; cursor: pointer; }
    </style>
</head>
<body>
    <h1>SensorHub WebSocket Test</h1>
    <div id="status">Disconnected</div>
    <div id="sensors"></div>
    <div>
        <input type="text" id="chatInput" placeholder="Chat message...">
        <button onclick="sendChat()">Send</button>
    </div>
    <div>
        <input type="text" id="pmTo" placeholder="Recipient id">
        <input type="text" id="pmText" placeholder="Private message...">
        <button onclick="sendPrivate()">Send private</button>
    </div>
    <div>
        <input type="text" id="sensorId" placeholder="sensor-temp-1">
        <input type="text" id="intervalMs" placeholder="interval ms">
        <button onclick="setInterval_()">Set interval</button>
    </div>
    <div id="log"></div>
    <script>
        const log = document.getElementById('log');
        const sensors = document.getElementById('sensors');
        const proto = location.protocol === 'https:' ? 'wss://' : 'ws://';
        const ws = new WebSocket(proto + location.host + '/ws');

        function addLine(text) {
            const el = document.createElement('div');
            el.textContent = text;
            log.appendChild(el);
            log.scrollTop = log.scrollHeight;
        }

        function send(event, data) {
            ws.send(JSON.stringify({ event: event, data: data }));
        }

        function sendChat() {
            send('chat', { text: document.getElementById('chatInput').value });
        }

        function sendPrivate() {
            send('private_message', {
                to: document.getElementById('pmTo').value,
                text: document.getElementById('pmText').value
            });
        }

        function setInterval_() {
            send('set_sensor_interval', {
                sensorId: document.getElementById('sensorId').value,
                intervalMs: document.getElementById('intervalMs').value
            });
        }

        ws.onopen = () => { document.getElementById('status').textContent = 'Connected'; };
        ws.onclose = () => { document.getElementById('status').textContent = 'Disconnected'; };
        ws.onmessage = (event) => {
            const msg = JSON.parse(event.data);
            if (msg.event === 'sensor_update') {
                let el = document.getElementById(msg.data.sensorId);
                if (!el) {
                    el = document.createElement('span');
                    el.id = msg.data.sensorId;
                    sensors.appendChild(el);
                }
                el.textContent = msg.data.sensorId + ' (' + msg.data.type + '): ' + msg.data.value;
                return;
            }
            addLine(event.data);
        };
    </script>
</body>
</html>`
