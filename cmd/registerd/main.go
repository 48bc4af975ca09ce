package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/furthemore/registerd/internal/api"
	"github.com/furthemore/registerd/internal/backend"
	"github.com/furthemore/registerd/internal/channel"
	"github.com/furthemore/registerd/internal/config"
	"github.com/furthemore/registerd/internal/gateway"
	"github.com/furthemore/registerd/internal/interfaces"
	"github.com/furthemore/registerd/internal/session"
	"github.com/furthemore/registerd/internal/telemetry"
)

func main() {
	// Load daemon settings
	settings := config.Load()

	// Initialize telemetry
	if err := telemetry.Init("registerd", settings.OTLPEndpoint); err != nil {
		panic(fmt.Sprintf("Failed to initialize telemetry: %v", err))
	}
	defer telemetry.Shutdown(context.Background())

	telemetry.Logger.Info("Starting terminal session daemon")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Collaborators
	store := config.NewStore(settings.ConfigPath, telemetry.Logger)
	eventChannel := channel.NewMQTTChannel(telemetry.Logger)
	backendClient := backend.NewClient(telemetry.Logger)

	var paymentGateway interfaces.PaymentGateway
	switch settings.GatewayMode {
	case "simulated":
		paymentGateway = gateway.NewSimulated(telemetry.Logger, settings.CurrencyCode)
	default:
		telemetry.Logger.Fatal("Unknown gateway mode", zap.String("mode", settings.GatewayMode))
	}

	// Session machine
	machine := session.NewMachine(telemetry.Logger, store, eventChannel, paymentGateway, backendClient)
	machine.Start(ctx)

	// Lifecycle signals: SIGUSR1 suspends the session (background), SIGUSR2
	// resumes it (active).
	phases := make(chan os.Signal, 1)
	signal.Notify(phases, syscall.SIGUSR1, syscall.SIGUSR2)
	go func() {
		for sig := range phases {
			switch sig {
			case syscall.SIGUSR1:
				telemetry.Logger.Info("Entering background phase")
				machine.OnPhaseChange(session.PhaseBackground)
			case syscall.SIGUSR2:
				telemetry.Logger.Info("Entering active phase")
				machine.OnPhaseChange(session.PhaseActive)
			}
		}
	}()

	// Admin/status HTTP surface
	r := api.NewRouter(machine, backendClient)

	srv := &http.Server{
		Addr:    ":" + settings.Port,
		Handler: r,
	}

	go func() {
		telemetry.Logger.Info("Admin server starting", zap.String("port", settings.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			telemetry.Logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	telemetry.Logger.Info("Shutting down...")
	machine.Disconnect()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		telemetry.Logger.Error("Server forced to shutdown", zap.Error(err))
	}

	telemetry.Logger.Info("Server exited")
}
