package handlers

import (
	"context"
	"encoding/json"
	"time"

	"github.com/firedev99/glucoguide-backend/registry"
	"github.com/firedev99/glucoguide-backend/utils"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// WebSocketHandler owns the socket endpoints: live health monitoring rooms,
// per-user chat rooms and the unscoped admin pool.
type WebSocketHandler struct {
	logger   *zap.Logger
	registry *registry.Registry
	chat     *ChatHandler
}

func NewWebSocketHandler(logger *zap.Logger, reg *registry.Registry, chat *ChatHandler) *WebSocketHandler {
	return &WebSocketHandler{
		logger:   logger,
		registry: reg,
		chat:     chat,
	}
}

// UpgradeRequired gates socket routes so plain HTTP requests get a 426
// instead of hitting the upgrade handler.
func UpgradeRequired(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// inboundChatMessage is the frame clients send over a chat socket.
type inboundChatMessage struct {
	Type       string `json:"type"` // help, direct or reply
	Content    string `json:"content"`
	ReceiverID string `json:"receiver_id"`
}

// MonitoringSocket subscribes the connection to one patient's monitoring
// room. The socket is receive-only from the server's perspective: inbound
// frames just keep the connection alive, updates arrive when the patient's
// health record changes.
func (h *WebSocketHandler) MonitoringSocket() fiber.Handler {
	return websocket.New(func(c *websocket.Conn) {
		patientID, err := utils.DecodeID(c.Params("roomID"))
		if err != nil {
			c.WriteMessage(websocket.TextMessage, []byte(`{"error":"invalid room id"}`))
			c.Close()
			return
		}

		// patients may only watch their own room, staff roles any room
		userID, ok := c.Locals("userID").(uuid.UUID)
		role, _ := c.Locals("role").(string)
		if !ok || (role == "patient" && userID != patientID) {
			c.WriteMessage(websocket.TextMessage, []byte(`{"error":"not allowed to access this room"}`))
			c.Close()
			return
		}

		room := utils.MonitoringRoom(patientID)
		h.registry.Connect(c, room)
		defer h.registry.Disconnect(c, room)

		for {
			if _, _, err := c.ReadMessage(); err != nil {
				h.logger.Debug("monitoring connection closed",
					zap.String("room", room),
					zap.Error(err))
				return
			}
		}
	})
}

// ChatSocket subscribes the session user to their own chat room and routes
// every inbound frame: the message is persisted first, then fanned out to
// its audience. Help messages go to the admin pool, direct messages and
// replies to the receiver's room; the sender's room always gets an echo so
// all their open tabs stay in sync.
func (h *WebSocketHandler) ChatSocket() fiber.Handler {
	return websocket.New(func(c *websocket.Conn) {
		userID, ok := c.Locals("userID").(uuid.UUID)
		if !ok {
			c.WriteMessage(websocket.TextMessage, []byte(`{"error":"unauthorized"}`))
			c.Close()
			return
		}

		room := utils.ChatRoom(userID)
		h.registry.Connect(c, room)
		defer h.registry.Disconnect(c, room)

		for {
			_, raw, err := c.ReadMessage()
			if err != nil {
				h.logger.Debug("chat connection closed",
					zap.String("room", room),
					zap.Error(err))
				return
			}
			h.routeChatMessage(userID, raw)
		}
	})
}

// AdminSocket registers a staff connection into the unscoped admin pool,
// where every help message lands. Admin frames are routed like chat frames,
// so staff replies reach the asking user's room.
func (h *WebSocketHandler) AdminSocket() fiber.Handler {
	return websocket.New(func(c *websocket.Conn) {
		userID, ok := c.Locals("userID").(uuid.UUID)
		if !ok {
			c.WriteMessage(websocket.TextMessage, []byte(`{"error":"unauthorized"}`))
			c.Close()
			return
		}

		h.registry.Connect(c, "")
		defer h.registry.Disconnect(c, "")

		for {
			_, raw, err := c.ReadMessage()
			if err != nil {
				h.logger.Debug("admin connection closed", zap.Error(err))
				return
			}
			h.routeChatMessage(userID, raw)
		}
	})
}

func (h *WebSocketHandler) routeChatMessage(senderID uuid.UUID, raw []byte) {
	var in inboundChatMessage
	if err := json.Unmarshal(raw, &in); err != nil || in.Content == "" {
		return
	}

	switch in.Type {
	case "help", "direct", "reply":
	default:
		in.Type = "help"
	}

	var receiverID *uuid.UUID
	if in.ReceiverID != "" {
		id, err := utils.DecodeID(in.ReceiverID)
		if err != nil {
			h.logger.Warn("dropping chat message with invalid receiver",
				zap.String("receiverID", in.ReceiverID))
			return
		}
		receiverID = &id
	}
	if in.Type != "help" && receiverID == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	msg, err := h.chat.SaveMessage(ctx, senderID, receiverID, in.Type, in.Content)
	if err != nil {
		h.logger.Error("failed to persist chat message", zap.Error(err))
		return
	}

	payload, err := json.Marshal(messageData(msg))
	if err != nil {
		h.logger.Error("failed to encode chat message", zap.Error(err))
		return
	}

	if in.Type == "help" {
		h.registry.BroadcastToAdmins(payload)
	} else {
		h.registry.SendPrivate(utils.ChatRoom(*receiverID), payload)
	}
	// echo to the sender's own room
	h.registry.BroadcastToRoom(utils.ChatRoom(senderID), payload)
}
