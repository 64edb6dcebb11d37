// Package server wires HTTP handlers into the echo router for the SensorHub
// application via routing helpers.
package server

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes configures and returns an echo router with all application routes.
// It sets up handlers for health check, WebSocket endpoint, metrics, and test page.
func SetupRoutes(app *App) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())

	e.GET("/", HealthHandler)
	e.GET("/health", HealthHandler)
	e.GET("/ws", app.WebSocketHandler)
	e.GET("/test", TestPageHandler)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(app.Registry, promhttp.HandlerOpts{})))
	return e
}
