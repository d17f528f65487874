package handlers

import (
	"context"
	"time"

	"github.com/firedev99/glucoguide-backend/config"
	"github.com/firedev99/glucoguide-backend/models"
	"github.com/firedev99/glucoguide-backend/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"
)

const messagesCollection = "messages"

type ChatHandler struct {
	config      *config.Config
	logger      *zap.Logger
	mongoClient *mongo.Client
}

func NewChatHandler(cfg *config.Config, logger *zap.Logger, mongoClient *mongo.Client) *ChatHandler {
	return &ChatHandler{
		config:      cfg,
		logger:      logger,
		mongoClient: mongoClient,
	}
}

func (h *ChatHandler) messages() *mongo.Collection {
	return h.mongoClient.Database(h.config.MongoDBName).Collection(messagesCollection)
}

// SaveMessage appends one message document. Used by the websocket receive
// loop; messages are never mutated afterwards.
func (h *ChatHandler) SaveMessage(ctx context.Context, senderID uuid.UUID, receiverID *uuid.UUID, msgType, content string) (models.Message, error) {
	msg := models.Message{
		ID:        utils.EncodeID(uuid.New()),
		SenderID:  utils.EncodeID(senderID),
		Type:      msgType,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	if receiverID != nil {
		msg.ReceiverID = utils.EncodeID(*receiverID)
	}

	if _, err := h.messages().InsertOne(ctx, msg); err != nil {
		return models.Message{}, errors.Wrap(err, "failed to insert message")
	}
	return msg, nil
}

// GetHelpMessages returns the session user's help-desk thread: their own
// help messages plus staff replies, newest first.
func (h *ChatHandler) GetHelpMessages(c *fiber.Ctx) error {
	userID, err := sessionUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
	}

	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", 20)

	filter := bson.M{
		"sender_id": utils.EncodeID(userID),
		"type":      bson.M{"$in": []string{"help", "reply"}},
	}

	data, total, err := h.pagedMessages(c.Context(), filter, page, limit)
	if err != nil {
		h.logger.Error("failed to retrieve help messages", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to retrieve messages",
		})
	}

	return fetchSuccessfulPage(c, "Successfully retrieved help messages", data, int(total))
}

// GetDirectMessages returns the two-way conversation between the session
// user and the :id user, newest first.
func (h *ChatHandler) GetDirectMessages(c *fiber.Ctx) error {
	userID, err := sessionUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
	}

	receiverID, err := utils.DecodeID(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid user id"})
	}

	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", 20)

	self := utils.EncodeID(userID)
	other := utils.EncodeID(receiverID)
	filter := bson.M{
		"type": "direct",
		"$or": []bson.M{
			{"sender_id": self, "receiver_id": other},
			{"sender_id": other, "receiver_id": self},
		},
	}

	data, total, err := h.pagedMessages(c.Context(), filter, page, limit)
	if err != nil {
		h.logger.Error("failed to retrieve direct messages",
			zap.String("receiverID", c.Params("id")),
			zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to retrieve messages",
		})
	}

	return fetchSuccessfulPage(c, "Successfully retrieved messages", data, int(total))
}

func (h *ChatHandler) pagedMessages(ctx context.Context, filter bson.M, page, limit int) ([]models.MessageData, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	total, err := h.messages().CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to count messages")
	}

	findOptions := options.Find()
	findOptions.SetSkip(int64((page - 1) * limit))
	findOptions.SetLimit(int64(limit))
	findOptions.SetSort(bson.D{{Key: "created_at", Value: -1}})

	cursor, err := h.messages().Find(ctx, filter, findOptions)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to query messages")
	}
	defer cursor.Close(ctx)

	var msgs []models.Message
	if err := cursor.All(ctx, &msgs); err != nil {
		return nil, 0, errors.Wrap(err, "failed to decode messages")
	}

	data := make([]models.MessageData, 0, len(msgs))
	for _, m := range msgs {
		data = append(data, messageData(m))
	}
	return data, total, nil
}

func messageData(m models.Message) models.MessageData {
	return models.MessageData{
		ID:         m.ID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Type:       m.Type,
		Content:    m.Content,
		CreatedAt:  m.CreatedAt.Format(time.RFC3339),
	}
}
