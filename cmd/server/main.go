package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"

	"github.com/Tyrowin/sensorhub/internal/logging"
	"github.com/Tyrowin/sensorhub/internal/server"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Server exited with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	config, err := server.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logging.InitLogger(config.LogLevel, config.LogFormat)
	slog.Info("Starting SensorHub server...")

	app := server.NewApp(config, clockwork.NewRealClock())
	app.StartSensors()

	routes := server.SetupRoutes(app)
	httpServer := server.CreateServer(app.Config.Port, routes)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.StartServer(httpServer)
	}()

	select {
	case err := <-serverErr:
		app.Sensors.StopAll()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		slog.Info("Shutdown signal received")
	}

	return server.GracefulShutdown(httpServer, app, app.Config.ShutdownTimeout)
}
