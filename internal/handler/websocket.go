package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"metroplan/internal/domain"
	"metroplan/internal/hub"
	"metroplan/internal/planner"
)

const (
	wsSendBuffer   = 64
	wsPingInterval = 30 * time.Second
	wsWriteTimeout = 5 * time.Second
)

// WSHandler serves a WebSocket on which clients can plan routes and receive
// network_rebuilt events pushed through the hub.
type WSHandler struct {
	hub     *hub.Hub
	planner *planner.Service
	stats   *Stats
	logger  *slog.Logger
}

func NewWSHandler(h *hub.Hub, p *planner.Service, stats *Stats, logger *slog.Logger) *WSHandler {
	return &WSHandler{hub: h, planner: p, stats: stats, logger: logger.With("handler", "ws")}
}

type WSMessage struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

type wsReply struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

type wsErrorPayload struct {
	Error  string                  `json:"error"`
	Errors domain.ValidationErrors `json:"errors,omitempty"`
}

func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.logger.Error("websocket accept failed", "error", err)
		return
	}

	client := hub.NewClient(uuid.New().String(), wsSendBuffer)
	h.hub.Register(client)
	h.stats.IncWSConnections()
	defer h.stats.DecWSConnections()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go h.writeLoop(ctx, conn, client)

	h.readLoop(ctx, conn, client)
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *hub.Client) {
	defer func() {
		h.hub.Unregister(client)
		conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		msgType, data, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure {
				h.logger.Debug("websocket read error", "client_id", client.ID, "error", err)
			}
			return
		}
		h.stats.IncWSMessagesIn()

		if msgType != websocket.MessageText {
			continue
		}

		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.logger.Debug("invalid message format", "client_id", client.ID, "error", err)
			h.send(client, wsReply{Type: "error", Payload: wsErrorPayload{Error: "invalid message format"}})
			continue
		}

		switch msg.Type {
		case "plan":
			h.send(client, h.handlePlan(ctx, msg))
		case "ping":
			h.send(client, wsReply{Type: "pong", RequestID: msg.RequestID})
		default:
			h.send(client, wsReply{
				Type:      "error",
				RequestID: msg.RequestID,
				Payload:   wsErrorPayload{Error: "unknown message type: " + msg.Type},
			})
		}
	}
}

func (h *WSHandler) handlePlan(ctx context.Context, msg WSMessage) wsReply {
	req := domain.NewPlanRequest()
	if len(msg.Payload) > 0 {
		if err := json.Unmarshal(msg.Payload, &req); err != nil {
			return wsReply{Type: "error", RequestID: msg.RequestID, Payload: wsErrorPayload{Error: "invalid plan payload"}}
		}
	}

	result, err := h.planner.Plan(ctx, req)
	if err != nil {
		payload := wsErrorPayload{Error: err.Error()}
		var verrs domain.ValidationErrors
		if errors.As(err, &verrs) {
			payload = wsErrorPayload{Error: "validation failed", Errors: verrs}
		}
		return wsReply{Type: "error", RequestID: msg.RequestID, Payload: payload}
	}

	h.stats.IncPlans(len(result.Options))
	return wsReply{Type: "plan_result", RequestID: msg.RequestID, Payload: result}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *hub.Client) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case msg, ok := <-client.Send:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
			err := conn.Write(writeCtx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				return
			}
			h.stats.IncWSMessagesOut()

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

// send queues a reply for the client. It is only called from readLoop,
// before the client is unregistered.
func (h *WSHandler) send(client *hub.Client, reply wsReply) {
	data, err := json.Marshal(reply)
	if err != nil {
		h.logger.Error("failed to encode reply", "type", reply.Type, "error", err)
		return
	}

	select {
	case client.Send <- data:
	default:
		h.logger.Debug("failed to send reply, buffer full", "client_id", client.ID, "type", reply.Type)
	}
}
