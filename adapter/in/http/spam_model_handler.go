package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"spamguard_server/core/domain"
	"spamguard_server/core/service/pipeline"
	"spamguard_server/core/service/registry"
	"spamguard_server/pkg/apperr"
)

// ModelHandler serves model lifecycle requests: listing, activation and upload
// of externally trained artifacts. Activation updates the registry first, then
// mirrors the active flag into the database.
type ModelHandler struct {
	registry *registry.ModelRegistry
	versions domain.ModelVersionRepository
	log      zerolog.Logger
}

func NewModelHandler(reg *registry.ModelRegistry, versions domain.ModelVersionRepository, log zerolog.Logger) *ModelHandler {
	return &ModelHandler{
		registry: reg,
		versions: versions,
		log:      log.With().Str("component", "model_handler").Logger(),
	}
}

func (h *ModelHandler) Register(router fiber.Router) {
	models := router.Group("/models")
	models.Get("/", h.List)
	models.Post("/activate", h.Activate)
	models.Post("/upload", h.Upload)
}

// List returns every version on disk plus the currently resident model.
// GET /api/v1/models
func (h *ModelHandler) List(c *fiber.Ctx) error {
	versions, err := h.registry.ListVersions()
	if err != nil {
		return AppErrorResponse(c, err)
	}

	activeVersion := ""
	active, source := h.registry.GetActive()
	if active != nil {
		activeVersion = active.Version
	}

	return SuccessResponse(c, fiber.Map{
		"versions":       versions,
		"active_version": activeVersion,
		"active_source":  source.String(),
	})
}

type ActivateRequest struct {
	Version string `json:"version"`
}

// Activate loads the named version and promotes it to serving. The database
// mirror is updated best effort; the registry is the source of truth.
// POST /api/v1/models/activate
func (h *ModelHandler) Activate(c *fiber.Ctx) error {
	var req ActivateRequest
	if err := c.BodyParser(&req); err != nil {
		return AppErrorResponse(c, apperr.BadRequest("invalid request body"))
	}
	if req.Version == "" {
		return AppErrorResponse(c, apperr.InvalidInput("version", "must not be empty"))
	}

	if err := h.registry.Activate(req.Version); err != nil {
		return AppErrorResponse(c, err)
	}

	if err := h.versions.DeactivateAll(c.Context()); err != nil {
		h.log.Error().Err(err).Str("version", req.Version).Msg("deactivate-all failed, db mirror out of sync")
	} else if err := h.versions.SetActive(c.Context(), req.Version); err != nil {
		h.log.Error().Err(err).Str("version", req.Version).Msg("set-active failed, db mirror out of sync")
	}

	return SuccessResponse(c, fiber.Map{"active_version": req.Version})
}

// Upload registers an externally trained artifact. The body is the raw encoded
// pipeline; version and threshold come from query parameters. The upload is
// decoded before saving so a corrupt artifact is rejected here rather than at
// activation time.
// POST /api/v1/models/upload?version=v1&threshold=0.5&overwrite=false
func (h *ModelHandler) Upload(c *fiber.Ctx) error {
	version := c.Query("version")
	if version == "" {
		return AppErrorResponse(c, apperr.InvalidInput("version", "must not be empty"))
	}
	threshold := c.QueryFloat("threshold", 0.5)
	overwrite := c.QueryBool("overwrite", false)

	body := c.Body()
	if len(body) == 0 {
		return AppErrorResponse(c, apperr.BadRequest("empty artifact body"))
	}

	p, err := pipeline.Decode(body)
	if err != nil {
		return AppErrorResponse(c, apperr.Wrap(err, apperr.CodeInvalidInput, "artifact does not decode", fiber.StatusBadRequest))
	}

	meta := registry.Metadata{
		Version:    version,
		CreatedAt:  time.Now().UTC(),
		Classifier: p.Cfg.Classifier.String(),
		Threshold:  threshold,
	}
	path, err := h.registry.SaveArtifact(p, meta, overwrite)
	if err != nil {
		return AppErrorResponse(c, err)
	}

	if err := h.versions.Upsert(c.Context(), &domain.ModelVersion{
		Version:   version,
		Path:      path,
		CreatedAt: meta.CreatedAt,
		Threshold: threshold,
	}); err != nil {
		h.log.Error().Err(err).Str("version", version).Msg("model version upsert failed")
	}

	h.log.Info().Str("version", version).Msg("artifact uploaded")
	return SuccessResponse(c, fiber.Map{
		"version": version,
		"path":    path,
	})
}
