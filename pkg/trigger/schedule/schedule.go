// Package schedule starts workflows on cron expressions declared in their
// trigger node config.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/chatrail/chatrail/pkg/models"
	"github.com/chatrail/chatrail/pkg/persistence"
)

// Executor starts a workflow run; implemented by the workflow engine.
type Executor interface {
	Execute(ctx context.Context, workflowID string, triggerContext map[string]any) (*models.WorkflowExecution, error)
}

// Scheduler registers cron entries for active workflows whose trigger node
// declares a schedule, and fires the executor when they come due.
type Scheduler struct {
	cron        *cron.Cron
	executor    Executor
	persistence persistence.Persistence
	logger      *slog.Logger

	mu      sync.Mutex
	entries map[string]cron.EntryID
}

// NewScheduler creates a stopped scheduler; call Start after registering.
func NewScheduler(logger *slog.Logger, persistence persistence.Persistence, executor Executor) *Scheduler {
	return &Scheduler{
		cron:        cron.New(),
		executor:    executor,
		persistence: persistence,
		logger:      logger.With("module", "schedule"),
		entries:     make(map[string]cron.EntryID),
	}
}

// LoadBusiness registers every active workflow of the business that has a
// schedule trigger. Workflows with invalid cron expressions are skipped
// with a warning rather than failing the whole load.
func (s *Scheduler) LoadBusiness(ctx context.Context, businessID string) error {
	workflows, err := s.persistence.Workflows().ListByBusiness(ctx, businessID)
	if err != nil {
		return fmt.Errorf("failed to load workflows: %w", err)
	}

	for _, workflow := range workflows {
		if workflow.Status != models.WorkflowStatusActive {
			continue
		}

		spec, ok := scheduleSpec(workflow)
		if !ok {
			continue
		}

		err := s.Register(workflow, spec)
		if err != nil {
			s.logger.WarnContext(ctx, "Skipping workflow with invalid schedule",
				"workflow_id", workflow.ID, "spec", spec, "error", err)
		}
	}

	return nil
}

// scheduleSpec extracts the cron expression from the workflow's trigger
// node, if it declares one.
func scheduleSpec(workflow *models.WorkflowDefinition) (string, bool) {
	trigger, ok := workflow.TriggerNode()
	if !ok {
		return "", false
	}

	kind, _ := trigger.Config["type"].(string)
	if kind != "schedule" {
		return "", false
	}

	spec, _ := trigger.Config["cron"].(string)

	return spec, spec != ""
}

// Register validates the cron expression and adds the workflow. Replaces
// any previous registration for the same workflow.
func (s *Scheduler) Register(workflow *models.WorkflowDefinition, spec string) error {
	_, err := cron.ParseStandard(spec)
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", spec, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.entries[workflow.ID]; ok {
		s.cron.Remove(existing)
	}

	workflowID := workflow.ID

	entryID, err := s.cron.AddFunc(spec, func() {
		s.fire(workflowID)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule workflow %s: %w", workflowID, err)
	}

	s.entries[workflowID] = entryID

	s.logger.Info("Registered scheduled workflow", "workflow_id", workflowID, "spec", spec)

	return nil
}

// Unregister removes a workflow's cron entry, if present.
func (s *Scheduler) Unregister(workflowID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entryID, ok := s.entries[workflowID]; ok {
		s.cron.Remove(entryID)
		delete(s.entries, workflowID)
	}
}

// fire runs one scheduled execution. Runs in the cron goroutine; failures
// are logged, never propagated to the scheduler.
func (s *Scheduler) fire(workflowID string) {
	ctx := context.Background()

	triggerContext := map[string]any{
		"triggerType": "schedule",
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
	}

	_, err := s.executor.Execute(ctx, workflowID, triggerContext)
	if err != nil {
		s.logger.Warn("Scheduled workflow execution failed",
			"workflow_id", workflowID, "error", err)
	}
}

// Start begins firing registered entries.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()

	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
