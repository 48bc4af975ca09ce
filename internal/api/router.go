package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/furthemore/registerd/internal/handlers"
	"github.com/furthemore/registerd/internal/interfaces"
	"github.com/furthemore/registerd/internal/session"
	"github.com/furthemore/registerd/internal/telemetry"
)

func NewRouter(machine *session.Machine, backend interfaces.Backend) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(telemetry.TracingMiddleware())

	// Prometheus metrics
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": telemetry.ServiceName})
	})

	sessionHandler := handlers.NewSessionHandler(machine, backend)
	r.GET("/session", sessionHandler.GetSession)
	r.POST("/session/connect", sessionHandler.Connect)
	r.POST("/session/disconnect", sessionHandler.Disconnect)
	r.POST("/session/alert/dismiss", sessionHandler.DismissAlert)
	r.POST("/session/token", sessionHandler.RequestToken)

	r.POST("/config/register", sessionHandler.RegisterConfig)
	r.POST("/config/import", sessionHandler.ImportConfig)
	r.DELETE("/config", sessionHandler.ClearConfig)

	return r
}
