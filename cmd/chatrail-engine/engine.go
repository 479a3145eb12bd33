// Package main provides the Chatrail event engine: it consumes business
// events from the bus and drives automations, webhook fan-out, and
// scheduled workflows.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chatrail/chatrail/pkg/automation"
	"github.com/chatrail/chatrail/pkg/eventbus"
	"github.com/chatrail/chatrail/pkg/events"
	"github.com/chatrail/chatrail/pkg/messaging"
	"github.com/chatrail/chatrail/pkg/persistence"
	"github.com/chatrail/chatrail/pkg/trigger/schedule"
	"github.com/chatrail/chatrail/pkg/webhook"
	"github.com/chatrail/chatrail/pkg/workflow"
)

const shutdownTimeout = 30 * time.Second

// subscribedEvents is every event type the engine reacts to.
var subscribedEvents = []events.EventType{
	events.NewMessageEvent,
	events.NewCustomerEvent,
	events.OrderPlacedEvent,
	events.OrderStatusChangedEvent,
	events.KeywordDetectedEvent,
}

type EngineService struct {
	id          string
	logger      *slog.Logger
	persistence persistence.Persistence
	eventBus    eventbus.EventBus
	automations *automation.Engine
	router      *webhook.Router
	scheduler   *schedule.Scheduler
	businessID  string
}

func NewEngineService(
	id string,
	logger *slog.Logger,
	persistence persistence.Persistence,
	eventBus eventbus.EventBus,
	transport messaging.Transport,
	dedup automation.DedupStore,
	businessID string,
) *EngineService {
	workflowEngine := workflow.NewEngine(logger, persistence, transport)
	dispatcher := webhook.NewDispatcher(logger, persistence)

	return &EngineService{
		id:          id,
		logger:      logger,
		persistence: persistence,
		eventBus:    eventBus,
		automations: automation.NewEngine(logger, persistence, transport, dedup),
		router:      webhook.NewRouter(logger, dispatcher),
		scheduler:   schedule.NewScheduler(logger, persistence, workflowEngine),
		businessID:  businessID,
	}
}

// Start subscribes to the event bus, loads scheduled workflows, and blocks
// until the context is cancelled or a termination signal arrives.
func (s *EngineService) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	handler := s.handleEvent()
	for _, eventType := range subscribedEvents {
		err := s.eventBus.Handle(eventType, handler)
		if err != nil {
			return err
		}
	}

	err := s.eventBus.Subscribe(ctx)
	if err != nil {
		return err
	}

	if s.businessID != "" {
		err = s.scheduler.LoadBusiness(ctx, s.businessID)
		if err != nil {
			return err
		}
	}

	s.scheduler.Start()

	s.logger.InfoContext(ctx, "Engine started", "businessId", s.businessID)

	s.handleSignals(cancel)

	<-ctx.Done()

	return s.stop()
}

// handleEvent feeds each event to the automation engine and the webhook
// router. Both swallow their own failures, so the bus always gets an ack.
func (s *EngineService) handleEvent() eventbus.EventHandler {
	return func(ctx context.Context, event events.Event) error {
		s.automations.ProcessEvent(ctx, event)
		s.router.Route(ctx, event)

		return nil
	}
}

func (s *EngineService) handleSignals(cancel context.CancelFunc) {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-signals
		s.logger.Info("Received signal, shutting down", "signal", sig)
		cancel()
	}()
}

func (s *EngineService) stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := s.scheduler.Stop(ctx)
	if err != nil {
		s.logger.Warn("Scheduler did not stop cleanly", "error", err)
	}

	s.logger.Info("Engine stopped")

	return nil
}
