package main

import (
	"context"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/chatrail/chatrail/pkg/cmd"
	"github.com/chatrail/chatrail/pkg/log"
)

const defaultPort = 9080

func main() {
	logger := log.WithModule("api")

	command := &cli.Command{
		Name:                  "chatrail-api",
		Usage:                 "Serve the workflow and automation REST API",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Database connection URL, empty for in-memory storage",
				Sources: cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL for shared automation dedup, empty for in-process dedup",
				Sources: cli.EnvVars("REDIS_URL"),
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

			logger.InfoContext(ctx, "Initializing Chatrail API")

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

			api := NewAPI(logger, persistence, transport, dedup)

			err = api.Start(command.Int("port"))
			if err != nil {
				logger.ErrorContext(ctx, "Failed to start API server", "error", err)
			}

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
