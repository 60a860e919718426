// Package simulator serves a WebSocket that behaves like a handset dialing
// the service code, for driving dialogues during development.
package simulator

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/gkash/ussd/backend/internal/model/ussd"
	"github.com/gkash/ussd/backend/internal/validation"
)

const (
	readTimeout  = 60 * time.Second
	pingInterval = 54 * time.Second
)

// Dispatcher advances a dialogue by one round trip.
type Dispatcher interface {
	Handle(ctx context.Context, sessionID, phoneNumber, text string) string
}

// Handler upgrades simulator connections.
type Handler struct {
	dispatcher  Dispatcher
	serviceCode string
	upgrader    websocket.Upgrader
}

// New creates a simulator handler.
func New(dispatcher Dispatcher, serviceCode string) *Handler {
	return &Handler{
		dispatcher:  dispatcher,
		serviceCode: serviceCode,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes registers the simulator socket.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/simulator/ws", h.handleWebSocket)
}

type inboundMessage struct {
	Type        string `json:"type"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
	Text        string `json:"text,omitempty"`
}

type outgoingMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId,omitempty"`
	Data      any    `json:"data,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// Screen is what the handset displays after a round trip.
type Screen struct {
	Response string `json:"response"`
	Message  string `json:"message"`
	Ended    bool   `json:"ended"`
}

type handset struct {
	phoneNumber string
	sessionID   string
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	phone := strings.TrimSpace(r.URL.Query().Get("phoneNumber"))
	if phone != "" && !validation.ValidPhone(phone) {
		http.Error(w, "invalid phoneNumber", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[simulator] upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	go h.pingLoop(ctx, conn)

	state := &handset{}
	if phone != "" {
		state.phoneNumber = validation.NormalizePhone(phone)
	}

	h.send(conn, "connected", "", map[string]any{
		"serviceCode": h.serviceCode,
		"phoneNumber": state.phoneNumber,
	})

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[simulator] read error: %v", err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))

		h.handleMessage(ctx, conn, state, msg)
	}
}

func (h *Handler) handleMessage(ctx context.Context, conn *websocket.Conn, state *handset, msg inboundMessage) {
	switch msg.Type {
	case "dial":
		if msg.PhoneNumber != "" {
			if !validation.ValidPhone(msg.PhoneNumber) {
				h.sendError(conn, "invalid phone number")
				return
			}
			state.phoneNumber = validation.NormalizePhone(msg.PhoneNumber)
		}
		if state.phoneNumber == "" {
			h.sendError(conn, "phone number required")
			return
		}
		state.sessionID = uuid.NewString()
		log.Printf("[simulator] dial session=%s phone=%s", state.sessionID, state.phoneNumber)
		h.round(ctx, conn, state, "")
	case "input":
		if state.sessionID == "" {
			h.sendError(conn, "no active session, dial first")
			return
		}
		h.round(ctx, conn, state, msg.Text)
	case "hangup":
		state.sessionID = ""
		h.send(conn, "hangup", "", nil)
	default:
		h.sendError(conn, "unknown message type")
	}
}

func (h *Handler) round(ctx context.Context, conn *websocket.Conn, state *handset, text string) {
	sessionID := state.sessionID
	resp := h.dispatcher.Handle(ctx, sessionID, state.phoneNumber, text)

	screen := Screen{Response: resp, Ended: ussd.IsEnd(resp)}
	screen.Message = strings.TrimPrefix(strings.TrimPrefix(resp, "CON "), "END ")
	if screen.Ended {
		state.sessionID = ""
	}
	h.send(conn, "screen", sessionID, screen)
}

func (h *Handler) send(conn *websocket.Conn, kind, sessionID string, data any) {
	msg := outgoingMessage{
		Type:      kind,
		SessionID: sessionID,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}
	if err := conn.WriteJSON(msg); err != nil {
		log.Printf("[simulator] write failed: %v", err)
	}
}

func (h *Handler) sendError(conn *websocket.Conn, message string) {
	h.send(conn, "error", "", map[string]string{"message": message})
}

func (h *Handler) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second)); err != nil {
				return
			}
		}
	}
}
