package bootstrap

import (
	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	httpin "spamguard_server/adapter/in/http"
	"spamguard_server/pkg/apperr"
)

// NewAPI builds the fiber app over an existing dependency graph.
func NewAPI(deps *Dependencies) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: deps.Config.IsProduction(),
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		BodyLimit:             10 * 1024 * 1024,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if fe, ok := err.(*fiber.Error); ok {
				return httpin.ErrorResponse(c, fe.Code, apperr.CodeInternalError, fe.Message)
			}
			return httpin.AppErrorResponse(c, err)
		},
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(compress.New(compress.Config{Level: compress.LevelBestSpeed}))

	httpin.NewHealthHandler(deps.PgPool, deps.Redis).Register(app)

	api := app.Group("/api/v1")
	httpin.NewPredictHandler(deps.Scorer, deps.Log).Register(api)
	httpin.NewModelHandler(deps.Registry, deps.Versions, deps.Log).Register(api)
	httpin.NewReviewHandler(deps.Store.Reviews(), deps.Log).Register(api)
	httpin.NewAdminHandler(deps.Producer, deps.Log).Register(api)

	return app
}
