package handler

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"vexl-backend/internal/model"
	"vexl-backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	wsWriteWait    = 10 * time.Second
	wsMaxFrameSize = 4096
)

// WebSocket command types.
const (
	cmdOpen     = "open"
	cmdClose    = "close"
	cmdToggle   = "toggle"
	cmdSelect   = "select"
	cmdLanguage = "language"
	cmdSnapshot = "snapshot"
	cmdPing     = "ping"
)

type wsError struct {
	Type  string `json:"type"`
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// Socket upgrades to a WebSocket that carries the session's events out and
// the visitor's commands in.
func (h *AssistantHandler) Socket(c *gin.Context) {
	id := c.Param("id")
	if _, err := h.svc.Snapshot(id); err != nil {
		fail(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warnf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	events, cancel, err := h.svc.Subscribe(id)
	if err != nil {
		conn.WriteJSON(wsError{Type: "error", Error: err.Error(), Code: classify(err).code})
		return
	}
	defer cancel()
	defer h.metrics.StreamOpened("ws")()

	replies := make(chan interface{}, 8)
	writerDone := make(chan struct{})
	go h.writeLoop(conn, id, events, replies, writerDone)

	h.readLoop(conn, id, replies, writerDone)
	cancel()
	<-writerDone
}

func (h *AssistantHandler) readLoop(conn *websocket.Conn, id string, replies chan<- interface{}, writerDone <-chan struct{}) {
	pongWait := 2 * h.heartbeat
	conn.SetReadLimit(wsMaxFrameSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		h.svc.Touch(id)
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var cmd model.WSCommand
		if err := conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debugf("WebSocket read error for %s: %v", id, err)
			}
			return
		}

		reply := h.execute(id, cmd)
		if reply == nil {
			continue
		}
		select {
		case replies <- reply:
		case <-writerDone:
			return
		}
	}
}

// execute runs one command. State changes reach the client as events, so
// only errors and explicit snapshots produce a reply.
func (h *AssistantHandler) execute(id string, cmd model.WSCommand) interface{} {
	var err error
	switch cmd.Type {
	case cmdOpen:
		_, err = h.svc.Open(id)
	case cmdClose:
		_, err = h.svc.Close(id)
	case cmdToggle:
		_, err = h.svc.Toggle(id)
	case cmdSelect:
		_, err = h.svc.Select(id, cmd.ActionKey)
	case cmdLanguage:
		_, err = h.svc.ChangeLanguage(id, cmd.Lang)
	case cmdSnapshot:
		snap, serr := h.svc.Snapshot(id)
		if serr != nil {
			err = serr
			break
		}
		return model.AssistantEvent{
			Type:      model.EventState,
			SessionID: id,
			Snapshot:  snap,
			Timestamp: time.Now().UnixMilli(),
		}
	case cmdPing:
		h.svc.Touch(id)
		return model.AssistantEvent{Type: model.EventHeartbeat, SessionID: id, Timestamp: time.Now().UnixMilli()}
	default:
		return wsError{Type: "error", Error: "unknown command " + cmd.Type, Code: "unknown_command"}
	}

	if err != nil {
		return wsError{Type: "error", Error: err.Error(), Code: classify(err).code}
	}
	return nil
}

func (h *AssistantHandler) writeLoop(conn *websocket.Conn, id string, events <-chan model.AssistantEvent, replies <-chan interface{}, done chan<- struct{}) {
	ping := time.NewTicker(h.heartbeat)
	defer func() {
		ping.Stop()
		conn.Close()
		close(done)
	}()

	write := func(v interface{}) bool {
		conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := conn.WriteJSON(v); err != nil {
			logger.Debugf("WebSocket write failed for %s: %v", id, err)
			return false
		}
		return true
	}

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session ended"))
				return
			}
			if !write(ev) {
				return
			}

		case reply := <-replies:
			if !write(reply) {
				return
			}

		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// checkOrigin allows the listed origins, any origin for "*", and the
// request's own host when the list is empty.
func checkOrigin(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || strings.EqualFold(a, origin) {
				return true
			}
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return strings.EqualFold(u.Host, r.Host)
	}
}
