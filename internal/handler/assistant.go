package handler

import (
	"errors"
	"io"
	"net/http"
	"time"

	"vexl-backend/internal/middleware"
	"vexl-backend/internal/model"
	"vexl-backend/internal/monitoring"
	"vexl-backend/internal/service"
	"vexl-backend/internal/utils"
	"vexl-backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

type AssistantHandlerConfig struct {
	// Heartbeat is the keep-alive period of SSE and WebSocket streams.
	Heartbeat time.Duration
	// AllowedOrigins for WebSocket upgrades. Empty means same origin only.
	AllowedOrigins []string
}

type AssistantHandler struct {
	svc       *service.AssistantService
	metrics   *monitoring.Metrics
	heartbeat time.Duration
	upgrader  websocket.Upgrader
}

func NewAssistantHandler(svc *service.AssistantService, metrics *monitoring.Metrics, cfg AssistantHandlerConfig) *AssistantHandler {
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = 30 * time.Second
	}
	return &AssistantHandler{
		svc:       svc,
		metrics:   metrics,
		heartbeat: cfg.Heartbeat,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin(cfg.AllowedOrigins),
		},
	}
}

// StartSession creates or resumes the visitor's assistant session.
func (h *AssistantHandler) StartSession(c *gin.Context) {
	var req model.StartSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, err)
		return
	}

	app := middleware.AppContext(c)
	lang := model.Language(req.Lang)
	if lang == "" {
		lang = app.Lang
	}

	snap, err := h.svc.StartSession(c.Request.Context(), req.SessionID, app.VisitorID, lang)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *AssistantHandler) GetSession(c *gin.Context) {
	snap, err := h.svc.Snapshot(c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *AssistantHandler) Open(c *gin.Context) {
	h.reply(c)(h.svc.Open(c.Param("id")))
}

func (h *AssistantHandler) Close(c *gin.Context) {
	h.reply(c)(h.svc.Close(c.Param("id")))
}

func (h *AssistantHandler) Toggle(c *gin.Context) {
	h.reply(c)(h.svc.Toggle(c.Param("id")))
}

func (h *AssistantHandler) Select(c *gin.Context) {
	var req model.SelectOptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	h.reply(c)(h.svc.Select(c.Param("id"), req.ActionKey))
}

func (h *AssistantHandler) ChangeLanguage(c *gin.Context) {
	var req model.ChangeLanguageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	h.reply(c)(h.svc.ChangeLanguage(c.Param("id"), req.Lang))
}

func (h *AssistantHandler) EndSession(c *gin.Context) {
	if err := h.svc.EndSession(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *AssistantHandler) reply(c *gin.Context) func(*model.Snapshot, error) {
	return func(snap *model.Snapshot, err error) {
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, snap)
	}
}

// Events streams the session's events over SSE until the client leaves
// or the session ends.
func (h *AssistantHandler) Events(c *gin.Context) {
	id := c.Param("id")
	events, cancel, err := h.svc.Subscribe(id)
	if err != nil {
		fail(c, err)
		return
	}
	defer cancel()
	defer h.metrics.StreamOpened("sse")()

	sse := utils.NewSSEWriter(c.Writer)
	c.Status(http.StatusOK)
	if err := sse.Retry(3 * time.Second); err != nil {
		return
	}

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				sse.Close()
				return
			}
			if err := sse.WriteJSON(ev.Type, ev); err != nil {
				logger.Warnf("Failed to write assistant event for %s: %v", id, err)
				return
			}
			if ev.Type == model.EventClosed {
				sse.Close()
				return
			}

		case <-heartbeat.C:
			h.svc.Touch(id)
			err := sse.WriteJSON(model.EventHeartbeat, model.AssistantEvent{
				Type:      model.EventHeartbeat,
				SessionID: id,
				Timestamp: time.Now().UnixMilli(),
			})
			if err != nil {
				logger.Warnf("Heartbeat failed for %s: %v", id, err)
				return
			}

		case <-ctx.Done():
			return
		}
	}
}
