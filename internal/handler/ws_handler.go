package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-agent/internal/middleware"
	"github.com/stemsi/exstem-agent/internal/monitor"
	"github.com/stemsi/exstem-agent/internal/session"
	ws "github.com/stemsi/exstem-agent/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams session events to the exam UI and receives
// proctoring signals from it.
type WSHandler struct {
	ctrl     *session.Controller
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(ctrl *session.Controller, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		ctrl:     ctrl,
		log:      log.With().Str("component", "ws_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// AttemptStream godoc
// WS /ws/v1/attempt/stream
// Upgrades to WebSocket. Outbound: every session event (ticks, time
// warnings, violations, forced submit, result). Inbound: proctoring
// signals and pings. One writer goroutine owns the connection's write
// side; both session events and read-loop replies funnel through it.
func (h *WSHandler) AttemptStream(c *gin.Context) {
	claims := middleware.GetAttemptClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().
		Str("test_id", claims.TestID).
		Int("student_id", claims.StudentID).
		Logger()
	wsLog.Info().Msg("Exam UI connected")

	// The controller emits events under its own lock, so the listener
	// must never block. Slow consumers lose ticks, never the stream.
	outbound := make(chan interface{}, 64)
	unsubscribe := h.ctrl.OnEvent(func(ev session.Event) {
		select {
		case outbound <- ev:
		default:
			wsLog.Warn().Str("event", string(ev.Type)).Msg("Outbound buffer full, dropping event")
		}
	})
	defer unsubscribe()

	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			select {
			case <-done:
				return
			case msg := <-outbound:
				if err := ws.WriteTyped(conn, msg); err != nil {
					wsLog.Debug().Err(err).Msg("Write failed, closing stream")
					conn.Close()
					return
				}
			}
		}
	}()

	mon := monitor.New(h.ctrl, claims.RequireFullscreen, wsLog)

	for {
		var msg ws.RequestPayload
		if err := ws.ReadJSON(conn, &msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			break
		}

		switch msg.Action {
		case ws.ActionPing:
			h.send(outbound, wsLog, ws.PongResponse{Event: ws.EventPong})
		case ws.ActionSignal:
			if mon.Observe(c.Request.Context(), monitor.Signal(msg.Signal)) {
				h.send(outbound, wsLog, ws.NoticeResponse{
					Event:  ws.EventNotice,
					Signal: msg.Signal,
				})
			}
		default:
			wsLog.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
			h.send(outbound, wsLog, ws.ErrorResponse{
				Event: ws.EventError,
				Error: "unknown action: " + string(msg.Action),
			})
		}
	}
}

func (h *WSHandler) send(outbound chan<- interface{}, wsLog zerolog.Logger, msg interface{}) {
	select {
	case outbound <- msg:
	default:
		wsLog.Warn().Msg("Outbound buffer full, dropping reply")
	}
}
