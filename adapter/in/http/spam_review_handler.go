package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"spamguard_server/core/domain"
	"spamguard_server/pkg/apperr"
)

// ReviewHandler serves the human review queue.
type ReviewHandler struct {
	reviews domain.ReviewRepository
	log     zerolog.Logger
}

func NewReviewHandler(reviews domain.ReviewRepository, log zerolog.Logger) *ReviewHandler {
	return &ReviewHandler{
		reviews: reviews,
		log:     log.With().Str("component", "review_handler").Logger(),
	}
}

func (h *ReviewHandler) Register(router fiber.Router) {
	reviews := router.Group("/reviews")
	reviews.Get("/", h.List)
	reviews.Post("/:id/resolve", h.Resolve)
}

// List returns review items by status, pending by default.
// GET /api/v1/reviews?status=pending
func (h *ReviewHandler) List(c *fiber.Ctx) error {
	status := c.Query("status", domain.ReviewPending)
	if status != domain.ReviewPending && status != domain.ReviewResolved {
		return AppErrorResponse(c, apperr.InvalidInput("status", "must be 'pending' or 'resolved'"))
	}

	items, err := h.reviews.ListByStatus(c.Context(), status)
	if err != nil {
		return AppErrorResponse(c, err)
	}
	return SuccessResponse(c, fiber.Map{
		"status": status,
		"items":  items,
		"count":  len(items),
	})
}

type ResolveRequest struct {
	Label string `json:"label"`
}

// Resolve closes a pending review item with the reviewer's label.
// POST /api/v1/reviews/:id/resolve
func (h *ReviewHandler) Resolve(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return AppErrorResponse(c, apperr.InvalidInput("id", "must be a positive integer"))
	}

	var req ResolveRequest
	if err := c.BodyParser(&req); err != nil {
		return AppErrorResponse(c, apperr.BadRequest("invalid request body"))
	}
	if req.Label != domain.LabelSpam && req.Label != domain.LabelHam {
		return AppErrorResponse(c, apperr.InvalidInput("label", "must be 'spam' or 'ham'"))
	}

	if err := h.reviews.Resolve(c.Context(), int64(id), req.Label); err != nil {
		return AppErrorResponse(c, err)
	}

	h.log.Info().Int("review_id", id).Str("label", req.Label).Msg("review item resolved")
	return SuccessResponse(c, fiber.Map{
		"id":     id,
		"status": domain.ReviewResolved,
		"label":  req.Label,
	})
}
