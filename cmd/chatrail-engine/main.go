package main

import (
	"context"
	"os"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"

	"github.com/chatrail/chatrail/pkg/cmd"
	"github.com/chatrail/chatrail/pkg/log"
)

func main() {
	command := &cli.Command{
		Name:                  "chatrail-engine",
		Usage:                 "Consume business events and run automations, webhooks and scheduled workflows",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "engine-id",
				Aliases: []string{"id"},
				Usage:   "Custom engine ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("ENGINE_ID"),
			},
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Database connection URL, empty for in-memory storage",
				Sources: cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (kafka, gochannel)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL for shared automation dedup, empty for in-process dedup",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "business-id",
				Usage:   "Business whose scheduled workflows this engine runs",
				Sources: cli.EnvVars("BUSINESS_ID"),
			},
			&cli.StringFlag{
				Name:    "twilio-account-sid",
				Usage:   "Twilio account SID for message delivery",
				Sources: cli.EnvVars("TWILIO_ACCOUNT_SID"),
			},
			&cli.StringFlag{
				Name:    "twilio-auth-token",
				Usage:   "Twilio auth token for message delivery",
				Sources: cli.EnvVars("TWILIO_AUTH_TOKEN"),
			},
			&cli.StringFlag{
				Name:    "twilio-from-number",
				Usage:   "Sender phone number for outbound messages",
				Sources: cli.EnvVars("TWILIO_FROM_NUMBER"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			engineID := command.String("engine-id")
			if engineID == "" {
				engineID = "engine-" + uuid.New().String()[:8]
			}

			logger := log.WithModule("engine").With("engineId", engineID)

			logger.InfoContext(ctx, "Initializing Chatrail Engine")

			persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}

			defer func() {
				err := persistence.Close(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus, err := cmd.NewEventBus(command.String("event-bus"), logger)
			if err != nil {
				return err
			}

			defer func() {
				err := eventBus.Close()
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			dedup, err := cmd.NewDedupStore(logger, command.String("redis-url"))
			if err != nil {
				return err
			}

			transport := cmd.NewTransport(
				logger,
				command.String("twilio-account-sid"),
				command.String("twilio-auth-token"),
				command.String("twilio-from-number"),
			)

			engine := NewEngineService(
				engineID,
				logger,
				persistence,
				eventBus,
				transport,
				dedup,
				command.String("business-id"),
			)

			return engine.Start(ctx)
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
