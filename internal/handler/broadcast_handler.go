package handler

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/Er1one/telegram-bot-template/internal/domain"
	"github.com/Er1one/telegram-bot-template/internal/service"
)

const (
	adminTokenHeader = "X-Admin-Token"
	defaultListLimit = 20
	maxListLimit     = 100
)

type BroadcastService interface {
	Submit(ctx context.Context, cmd service.BroadcastCommand) (*domain.BroadcastRun, error)
	Get(ctx context.Context, id string) (*domain.BroadcastRun, error)
	List(ctx context.Context, limit int) ([]domain.BroadcastRun, error)
}

type BroadcastHandler struct {
	service BroadcastService
}

func NewBroadcastHandler(svc BroadcastService) (*BroadcastHandler, error) {
	if svc == nil {
		return nil, fmt.Errorf("broadcast service is required")
	}
	return &BroadcastHandler{service: svc}, nil
}

// RegisterBroadcastRoutes mounts the admin broadcast API behind X-Admin-Token.
func RegisterBroadcastRoutes(router fiber.Router, svc BroadcastService, adminToken string) error {
	if strings.TrimSpace(adminToken) == "" {
		return fmt.Errorf("admin token is required")
	}
	h, err := NewBroadcastHandler(svc)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1", RequireAdminToken(adminToken))
	v1.Post("/broadcasts", h.CreateBroadcast)
	v1.Get("/broadcasts", h.ListBroadcasts)
	v1.Get("/broadcasts/:id", h.GetBroadcast)

	return nil
}

func RequireAdminToken(token string) fiber.Handler {
	expected := []byte(token)
	return func(c *fiber.Ctx) error {
		if subtle.ConstantTimeCompare([]byte(c.Get(adminTokenHeader)), expected) != 1 {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid admin token")
		}
		return c.Next()
	}
}

type createBroadcastRequest struct {
	RequestedBy   int64    `json:"requestedBy"`
	Text          string   `json:"text"`
	PhotoURLs     []string `json:"photoUrls"`
	DocumentURL   string   `json:"documentUrl"`
	RecipientIDs  []int64  `json:"recipientIds"`
	IncludeBanned bool     `json:"includeBanned"`
}

type broadcastStats struct {
	Expected int64 `json:"expected"`
	Total    int64 `json:"total"`
	Success  int64 `json:"success"`
	Failed   int64 `json:"failed"`
	Blocked  int64 `json:"blocked"`
}

type broadcastResponse struct {
	ID             string         `json:"id"`
	Status         string         `json:"status"`
	RequestedBy    int64          `json:"requestedBy,omitempty"`
	Text           string         `json:"text"`
	PhotoURLs      []string       `json:"photoUrls,omitempty"`
	DocumentURL    string         `json:"documentUrl,omitempty"`
	RecipientCount int            `json:"recipientCount,omitempty"`
	IncludeBanned  bool           `json:"includeBanned"`
	Stats          broadcastStats `json:"stats"`
	Error          *string        `json:"error,omitempty"`
	StartedAt      *time.Time     `json:"startedAt,omitempty"`
	FinishedAt     *time.Time     `json:"finishedAt,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
}

type listBroadcastsResponse struct {
	Data []broadcastResponse `json:"data"`
}

func (h *BroadcastHandler) CreateBroadcast(c *fiber.Ctx) error {
	var req createBroadcastRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	run, err := h.service.Submit(c.UserContext(), service.BroadcastCommand{
		RequestedBy:   req.RequestedBy,
		Text:          req.Text,
		PhotoURLs:     req.PhotoURLs,
		DocumentURL:   req.DocumentURL,
		RecipientIDs:  req.RecipientIDs,
		IncludeBanned: req.IncludeBanned,
	})
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusAccepted).JSON(toBroadcastResponse(run))
}

func (h *BroadcastHandler) GetBroadcast(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	if id == "" {
		return fmt.Errorf("%w: id is required", domain.ErrValidation)
	}

	run, err := h.service.Get(c.UserContext(), id)
	if err != nil {
		return err
	}

	return c.JSON(toBroadcastResponse(run))
}

func (h *BroadcastHandler) ListBroadcasts(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", defaultListLimit)
	if limit < 1 || limit > maxListLimit {
		return fmt.Errorf("%w: limit must be between 1 and %d", domain.ErrValidation, maxListLimit)
	}

	runs, err := h.service.List(c.UserContext(), limit)
	if err != nil {
		return err
	}

	data := make([]broadcastResponse, 0, len(runs))
	for i := range runs {
		data = append(data, toBroadcastResponse(&runs[i]))
	}
	return c.JSON(listBroadcastsResponse{Data: data})
}

func toBroadcastResponse(run *domain.BroadcastRun) broadcastResponse {
	return broadcastResponse{
		ID:             run.ID,
		Status:         run.Status.String(),
		RequestedBy:    run.RequestedBy,
		Text:           run.Text,
		PhotoURLs:      run.PhotoURLs,
		DocumentURL:    run.DocumentURL,
		RecipientCount: len(run.RecipientIDs),
		IncludeBanned:  run.IncludeBanned,
		Stats: broadcastStats{
			Expected: run.Expected,
			Total:    run.Total,
			Success:  run.Success,
			Failed:   run.Failed,
			Blocked:  run.Blocked,
		},
		Error:      run.Error,
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
		CreatedAt:  run.CreatedAt,
	}
}
