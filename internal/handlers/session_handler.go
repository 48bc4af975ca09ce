package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/furthemore/registerd/internal/config"
	"github.com/furthemore/registerd/internal/interfaces"
	"github.com/furthemore/registerd/internal/session"
	"github.com/furthemore/registerd/internal/telemetry"
)

// SessionHandler exposes the session machine to the local admin surface:
// status snapshots plus the operator actions the terminal UI used to offer
// (connect toggle, config import, clear).
type SessionHandler struct {
	machine *session.Machine
	backend interfaces.Backend
}

func NewSessionHandler(machine *session.Machine, backend interfaces.Backend) *SessionHandler {
	return &SessionHandler{machine: machine, backend: backend}
}

func (h *SessionHandler) GetSession(c *gin.Context) {
	c.JSON(http.StatusOK, h.machine.Snapshot())
}

func (h *SessionHandler) Connect(c *gin.Context) {
	if h.machine.Snapshot().Config == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "terminal is not registered"})
		return
	}

	h.machine.Connect()
	c.JSON(http.StatusOK, gin.H{"status": "connecting"})
}

func (h *SessionHandler) Disconnect(c *gin.Context) {
	h.machine.Disconnect()
	c.JSON(http.StatusOK, gin.H{"status": "disconnected"})
}

func (h *SessionHandler) DismissAlert(c *gin.Context) {
	h.machine.DismissAlert()
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type registerRequest struct {
	Endpoint     string `json:"endpoint" binding:"required"`
	TerminalName string `json:"terminalName" binding:"required"`
	Token        string `json:"token" binding:"required"`
}

// RegisterConfig exchanges a registration token for a terminal config and
// installs it.
func (h *SessionHandler) RegisterConfig(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	cfg, err := h.backend.RegisterTerminal(c.Request.Context(), req.Endpoint, req.TerminalName, req.Token)
	if err != nil {
		telemetry.Logger.Error("Terminal registration failed",
			zap.String("terminal", req.TerminalName),
			zap.Error(err),
		)
		c.JSON(http.StatusBadGateway, gin.H{"error": "registration failed"})
		return
	}

	h.machine.OnConfigRegistered(*cfg)
	c.JSON(http.StatusOK, gin.H{
		"status":   "registered",
		"terminal": cfg.TerminalName,
	})
}

// ImportConfig installs a raw config record, the headless analogue of the
// app's QR-code import.
func (h *SessionHandler) ImportConfig(c *gin.Context) {
	var cfg config.Config
	if err := c.ShouldBindJSON(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid config payload"})
		return
	}

	if !cfg.IsComplete() {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "config record is incomplete"})
		return
	}

	h.machine.OnConfigRegistered(cfg)
	c.JSON(http.StatusOK, gin.H{
		"status":   "imported",
		"terminal": cfg.TerminalName,
	})
}

func (h *SessionHandler) ClearConfig(c *gin.Context) {
	h.machine.OnConfigCleared()
	c.JSON(http.StatusOK, gin.H{"status": "cleared"})
}

// RequestToken asks the backend for fresh gateway credentials; they arrive
// later as an updateToken event.
func (h *SessionHandler) RequestToken(c *gin.Context) {
	snap := h.machine.Snapshot()
	if snap.Config == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "terminal is not registered"})
		return
	}

	if err := h.backend.RequestSquareToken(c.Request.Context(), *snap.Config); err != nil {
		telemetry.Logger.Error("Token request failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "token request failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "requested"})
}
