package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"spamguard_server/core/service/scoring"
	"spamguard_server/pkg/apperr"
)

// PredictHandler serves inline scoring requests.
type PredictHandler struct {
	scorer *scoring.InlineScorer
	log    zerolog.Logger
}

func NewPredictHandler(scorer *scoring.InlineScorer, log zerolog.Logger) *PredictHandler {
	return &PredictHandler{
		scorer: scorer,
		log:    log.With().Str("component", "predict_handler").Logger(),
	}
}

func (h *PredictHandler) Register(router fiber.Router) {
	router.Post("/predict", h.Predict)
}

type PredictRequest struct {
	Text string `json:"text"`
}

// Predict scores one message with the active model.
// POST /api/v1/predict
func (h *PredictHandler) Predict(c *fiber.Ctx) error {
	var req PredictRequest
	if err := c.BodyParser(&req); err != nil {
		return AppErrorResponse(c, apperr.BadRequest("invalid request body"))
	}

	verdict, err := h.scorer.Predict(c.Context(), req.Text)
	if err != nil {
		h.log.Error().Err(err).Msg("inline scoring failed")
		return AppErrorResponse(c, err)
	}
	return SuccessResponse(c, verdict)
}
