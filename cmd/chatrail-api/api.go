// Package main provides the Chatrail API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/chatrail/chatrail/pkg/automation"
	"github.com/chatrail/chatrail/pkg/messaging"
	"github.com/chatrail/chatrail/pkg/persistence"
	"github.com/chatrail/chatrail/pkg/web"
	"github.com/chatrail/chatrail/pkg/webhook"
	"github.com/chatrail/chatrail/pkg/workflow"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	transport   messaging.Transport
	dedup       automation.DedupStore
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	transport messaging.Transport,
	dedup automation.DedupStore,
) *API {
	return &API{
		logger:      logger,
		persistence: persistence,
		transport:   transport,
		dedup:       dedup,
	}
}

func (a *API) App() *fiber.App {
	workflowEngine := workflow.NewEngine(a.logger, a.persistence, a.transport)
	automationEngine := automation.NewEngine(a.logger, a.persistence, a.transport, a.dedup)
	dispatcher := webhook.NewDispatcher(a.logger, a.persistence)

	handlers := web.NewAPIHandlers(a.logger, a.persistence, workflowEngine, automationEngine, dispatcher)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Chatrail API")
	})

	web.RegisterRoutes(app, handlers)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	return app.Listen(":" + strconv.Itoa(port))
}
