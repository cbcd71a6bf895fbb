// Package main provides the Canvasflow API server implementation.
package main

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/kchakrav/CRMApp-sub002/pkg/eventbus"
	"github.com/kchakrav/CRMApp-sub002/pkg/persistence"
	"github.com/kchakrav/CRMApp-sub002/pkg/services"
	"github.com/kchakrav/CRMApp-sub002/pkg/web"
	"go.opentelemetry.io/otel/trace"
)

type API struct {
	logger       *slog.Logger
	persistence  persistence.Persistence
	eventBus     eventbus.EventBus
	tracer       trace.Tracer
	tickInterval time.Duration
	validate     *validator.Validate

	simulation *services.Simulation
	cancel     context.CancelFunc
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	eventBus eventbus.EventBus,
	tracer trace.Tracer,
	tickInterval time.Duration,
) *API {
	return &API{
		logger:       logger,
		persistence:  persistence,
		eventBus:     eventBus,
		tracer:       tracer,
		tickInterval: tickInterval,
		validate:     validator.New(validator.WithRequiredStructEnabled()),
	}
}

// App builds the HTTP application and starts consuming the event bus for the activity feed.
func (a *API) App(ctx context.Context) (*fiber.App, error) {
	canvasService := services.NewCanvas(a.persistence, a.eventBus, a.tracer, a.logger)
	a.simulation = services.NewSimulation(canvasService, a.eventBus, a.logger,
		services.WithTickInterval(a.tickInterval),
	)

	ctx, a.cancel = context.WithCancel(ctx)

	activity := services.NewActivity(a.logger, services.DefaultActivityLimit)
	if err := activity.Start(ctx, a.eventBus); err != nil {
		a.cancel()

		return nil, err
	}

	handlers := web.NewAPIHandlers(canvasService, a.simulation, activity, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Canvasflow API")
	})

	handlers.RegisterRoutes(app)

	return app, nil
}

// Close stops every running simulation and the event consumer.
func (a *API) Close() {
	if a.simulation != nil {
		a.simulation.Close()
	}

	if a.cancel != nil {
		a.cancel()
	}
}

func (a *API) Start(ctx context.Context, port int) error {
	app, err := a.App(ctx)
	if err != nil {
		return err
	}

	defer a.Close()

	return app.Listen(":" + strconv.Itoa(port))
}
