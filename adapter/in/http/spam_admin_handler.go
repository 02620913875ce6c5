package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"spamguard_server/internal/stream"
	"spamguard_server/pkg/apperr"
)

// AdminHandler serves operational endpoints. Retraining is asynchronous: the
// request only queues the job and returns its id.
type AdminHandler struct {
	producer *stream.Producer
	log      zerolog.Logger
}

func NewAdminHandler(producer *stream.Producer, log zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		producer: producer,
		log:      log.With().Str("component", "admin_handler").Logger(),
	}
}

func (h *AdminHandler) Register(router fiber.Router) {
	admin := router.Group("/admin")
	admin.Post("/retrain", h.Retrain)
}

type RetrainRequest struct {
	DatasetPath string `json:"dataset_path"`
	Classifier  string `json:"classifier"`
	Augment     bool   `json:"augment"`
}

// Retrain queues a full retraining run on the worker side.
// POST /api/v1/admin/retrain
func (h *AdminHandler) Retrain(c *fiber.Ctx) error {
	var req RetrainRequest
	if err := c.BodyParser(&req); err != nil {
		return AppErrorResponse(c, apperr.BadRequest("invalid request body"))
	}
	if req.DatasetPath == "" {
		return AppErrorResponse(c, apperr.InvalidInput("dataset_path", "must not be empty"))
	}

	jobID, err := h.producer.EnqueueRetrain(c.Context(), req.DatasetPath, req.Classifier, req.Augment)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to enqueue retrain job")
		return AppErrorResponse(c, apperr.Wrap(err, apperr.CodePersistenceFailure, "failed to enqueue retrain job", fiber.StatusInternalServerError))
	}

	h.log.Info().Str("job_id", jobID).Str("dataset", req.DatasetPath).Msg("retrain job queued")
	return c.Status(fiber.StatusAccepted).JSON(APIResponse{
		Success: true,
		Data: fiber.Map{
			"job_id": jobID,
			"status": "queued",
		},
		Timestamp: nowRFC3339(),
	})
}
