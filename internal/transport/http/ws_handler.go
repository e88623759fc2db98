package http

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"quiz-night-service/internal/app"
	"quiz-night-service/internal/domain"
)

// WSHandler pushes round changes to team pages and accepts heartbeats over the same socket.
type WSHandler struct {
	service  *app.QuizService
	log      *zap.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.QuizService, log *zap.Logger) *WSHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &WSHandler{
		service: service,
		log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type heartbeatMessage struct {
	PageHidden *bool `json:"pageHidden"`
}

type joinedPayload struct {
	TeamName string            `json:"teamName"`
	Round    domain.RoundState `json:"round"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS resolves the team from ?token= before upgrading, so unknown tokens get a plain HTTP error.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeError(w, http.StatusBadRequest, "missing token")
		return
	}
	teamName, err := h.service.Rejoin(r.Context(), token)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			h.log.Error("ws rejoin failed", zap.Error(err))
		}
		writeError(w, status, err.Error())
		return
	}
	state, err := h.service.RoundState(r.Context())
	if err != nil {
		h.log.Error("ws round lookup failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	// Subscribe before the upgrade so no round change falls between the snapshot and the feed.
	updates, cancel := h.service.SubscribeRounds()
	defer cancel()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	log := h.log.With(zap.String("team", teamName))
	log.Debug("ws connected", zap.Int("listeners", h.service.RoundListeners()))

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Debug("ws write failed", zap.Error(err))
				// Unblock the read loop; nothing else will be written.
				_ = conn.Close()
				return
			}
		}
	}()

	// push queues msg for the writer and reports false once the writer is gone.
	push := func(msg outboundMessage[any]) bool {
		select {
		case send <- msg:
			return true
		case <-writerDone:
			return false
		}
	}

	go func() {
		defer close(updatesDone)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "round", Payload: update}:
				case <-writerDone:
					return
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	alive := push(outboundMessage[any]{Type: "joined", Payload: joinedPayload{TeamName: teamName, Round: state}})

	for alive {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "heartbeat":
			var payload heartbeatMessage
			if len(inbound.Payload) > 0 {
				if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
					alive = push(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid heartbeat payload"}})
					continue
				}
			}
			if err := h.service.Heartbeat(r.Context(), token, payload.PageHidden); err != nil {
				alive = push(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}})
			}
		default:
			alive = push(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}})
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
	log.Debug("ws disconnected")
}
