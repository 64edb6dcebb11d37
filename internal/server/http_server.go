// Package server runs the SensorHub HTTP listener that carries the /ws
// upgrade, health, test page and metrics routes.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Timeouts for plain HTTP requests. They do not bound upgraded WebSocket
// connections: the upgrader clears the deadlines and the client pumps manage
// their own (pongWait, writeWait).
const (
	httpReadTimeout  = 15 * time.Second
	httpWriteTimeout = 15 * time.Second
	httpIdleTimeout  = 60 * time.Second
)

// CreateServer returns the listener for addr serving handler, usually the
// echo router from SetupRoutes.
func CreateServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  httpReadTimeout,
		WriteTimeout: httpWriteTimeout,
		IdleTimeout:  httpIdleTimeout,
	}
}

// StartServer blocks serving srv. It returns http.ErrServerClosed once
// ShutdownServer has run.
func StartServer(srv *http.Server) error {
	slog.Info("Server listening", "addr", srv.Addr)
	return srv.ListenAndServe()
}

// ShutdownServer stops accepting requests and waits up to timeout for
// in-flight HTTP requests. Hijacked WebSocket connections are not tracked by
// net/http; App.Shutdown closes those.
func ShutdownServer(srv *http.Server, timeout time.Duration) error {
	slog.Info("Shutting down HTTP server...")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
		return err
	}

	slog.Info("HTTP server shutdown completed")
	return nil
}

// GracefulShutdown stops the sensors so no further readings are published,
// then stops the HTTP listener, then closes every client and waits for its
// pumps. Each stage gets up to timeout.
func GracefulShutdown(srv *http.Server, app *App, timeout time.Duration) error {
	app.Sensors.StopAll()

	httpErr := ShutdownServer(srv, timeout)
	if err := app.Shutdown(timeout); err != nil {
		return err
	}
	if httpErr != nil {
		return fmt.Errorf("http shutdown: %w", httpErr)
	}
	return nil
}
