package handler

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-telegram/bot/models"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const secretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

// UpdateProcessor consumes one decoded Telegram update.
type UpdateProcessor interface {
	ProcessUpdate(ctx context.Context, update *models.Update)
}

type WebhookHandler struct {
	ctx       context.Context
	processor UpdateProcessor
	secret    string
	logger    *zap.Logger
}

// NewWebhookHandler builds the Telegram webhook endpoint. Every request must
// carry secret in the X-Telegram-Bot-Api-Secret-Token header. Updates are
// handled under ctx rather than the request context, which fiber recycles as
// soon as the response is written.
func NewWebhookHandler(ctx context.Context, processor UpdateProcessor, secret string, logger *zap.Logger) (*WebhookHandler, error) {
	if processor == nil {
		return nil, fmt.Errorf("update processor is required")
	}
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("webhook secret is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &WebhookHandler{ctx: ctx, processor: processor, secret: secret, logger: logger}, nil
}

func RegisterWebhookRoutes(router fiber.Router, path string, h *WebhookHandler) {
	router.Post(path, h.Handle)
}

func (h *WebhookHandler) Handle(c *fiber.Ctx) error {
	got := c.Get(secretTokenHeader)
	if subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) != 1 {
		return fiber.NewError(fiber.StatusUnauthorized, "invalid secret token")
	}

	var update models.Update
	if err := json.Unmarshal(c.Body(), &update); err != nil {
		h.logger.Warn("invalid webhook payload", zap.Error(err))
		return fiber.NewError(fiber.StatusBadRequest, "invalid update payload")
	}

	h.processor.ProcessUpdate(h.ctx, &update)
	return c.SendStatus(fiber.StatusOK)
}
