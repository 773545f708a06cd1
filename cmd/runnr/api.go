package main

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/dukex/runnr/pkg/editor"
	"github.com/dukex/runnr/pkg/persistence"
	"github.com/dukex/runnr/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	recoverer "github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"go.opentelemetry.io/otel/trace"
)

type API struct {
	logger   *slog.Logger
	engine   *editor.Engine
	slot     persistence.Slot
	changes  *web.ChangePublisher
	saves    web.PendingSaves
	tracer   trace.Tracer
	validate *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	engine *editor.Engine,
	slot persistence.Slot,
	changes *web.ChangePublisher,
	saves web.PendingSaves,
	tracer trace.Tracer,
) *API {
	return &API{
		logger:   logger,
		engine:   engine,
		slot:     slot,
		changes:  changes,
		saves:    saves,
		tracer:   tracer,
		validate: web.NewValidator(),
	}
}

func (a *API) App() *fiber.App {
	var opts []web.HandlerOption
	if a.saves != nil {
		opts = append(opts, web.WithPendingSaves(a.saves))
	}

	handlers := web.NewAPIHandlers(a.engine, a.slot, a.changes, a.validate, a.tracer, opts...)

	app := fiber.New()
	app.Use(recoverer.New())
	app.Use(requestid.New())
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker(healthcheck.Config{
		Probe: handlers.Ready,
	}))

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("runnr API")
	})

	handlers.Register(app)

	return app
}

// Start serves until ctx is cancelled.
func (a *API) Start(ctx context.Context, port int) error {
	app := a.App()

	a.logger.InfoContext(ctx, "Starting API server", "port", port)

	return app.Listen(":"+strconv.Itoa(port), fiber.ListenConfig{
		GracefulContext:       ctx,
		DisableStartupMessage: true,
	})
}
