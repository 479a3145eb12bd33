package schedule

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatrail/chatrail/pkg/log"
	"github.com/chatrail/chatrail/pkg/models"
	"github.com/chatrail/chatrail/pkg/persistence/memory"
)

type fakeExecutor struct {
	mu       sync.Mutex
	executed []string
}

func (f *fakeExecutor) Execute(_ context.Context, workflowID string, _ map[string]any) (*models.WorkflowExecution, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.executed = append(f.executed, workflowID)

	return &models.WorkflowExecution{WorkflowID: workflowID, Status: models.ExecutionStatusCompleted}, nil
}

func scheduledWorkflow(spec string, status models.WorkflowStatus) *models.WorkflowDefinition {
	return &models.WorkflowDefinition{
		BusinessID: "biz-1",
		Name:       "daily digest",
		Status:     status,
		Nodes: []models.Node{
			{ID: "n1", Type: models.NodeTypeTrigger, Config: map[string]any{
				"type": "schedule",
				"cron": spec,
			}},
			{ID: "n2", Type: models.NodeTypeEnd},
		},
		Edges: []models.Edge{{ID: "e1", Source: "n1", Target: "n2"}},
	}
}

func TestRegisterRejectsInvalidCron(t *testing.T) {
	scheduler := NewScheduler(log.WithModule("test"), memory.NewPersistence(), &fakeExecutor{})

	err := scheduler.Register(&models.WorkflowDefinition{ID: "wf-1"}, "not a cron spec")
	assert.ErrorContains(t, err, "invalid cron expression")
}

func TestLoadBusinessRegistersActiveScheduledWorkflows(t *testing.T) {
	store := memory.NewPersistence()
	ctx := context.Background()

	scheduled := scheduledWorkflow("0 9 * * *", models.WorkflowStatusActive)
	require.NoError(t, store.Workflows().Create(ctx, scheduled))

	draft := scheduledWorkflow("0 9 * * *", models.WorkflowStatusDraft)
	require.NoError(t, store.Workflows().Create(ctx, draft))

	manual := &models.WorkflowDefinition{
		BusinessID: "biz-1",
		Name:       "manual flow",
		Status:     models.WorkflowStatusActive,
		Nodes:      []models.Node{{ID: "n1", Type: models.NodeTypeTrigger}},
	}
	require.NoError(t, store.Workflows().Create(ctx, manual))

	scheduler := NewScheduler(log.WithModule("test"), store, &fakeExecutor{})
	require.NoError(t, scheduler.LoadBusiness(ctx, "biz-1"))

	scheduler.mu.Lock()
	defer scheduler.mu.Unlock()

	assert.Len(t, scheduler.entries, 1)
	assert.Contains(t, scheduler.entries, scheduled.ID)
}

func TestLoadBusinessSkipsInvalidSpecs(t *testing.T) {
	store := memory.NewPersistence()
	ctx := context.Background()

	broken := scheduledWorkflow("every tuesday", models.WorkflowStatusActive)
	require.NoError(t, store.Workflows().Create(ctx, broken))

	scheduler := NewScheduler(log.WithModule("test"), store, &fakeExecutor{})
	require.NoError(t, scheduler.LoadBusiness(ctx, "biz-1"))

	scheduler.mu.Lock()
	defer scheduler.mu.Unlock()
	assert.Empty(t, scheduler.entries)
}

func TestUnregisterRemovesEntry(t *testing.T) {
	scheduler := NewScheduler(log.WithModule("test"), memory.NewPersistence(), &fakeExecutor{})

	workflow := &models.WorkflowDefinition{ID: "wf-1"}
	require.NoError(t, scheduler.Register(workflow, "@hourly"))

	scheduler.Unregister("wf-1")

	scheduler.mu.Lock()
	defer scheduler.mu.Unlock()
	assert.Empty(t, scheduler.entries)
}

func TestFireExecutesWorkflow(t *testing.T) {
	executor := &fakeExecutor{}
	scheduler := NewScheduler(log.WithModule("test"), memory.NewPersistence(), executor)

	scheduler.fire("wf-1")

	executor.mu.Lock()
	defer executor.mu.Unlock()
	assert.Equal(t, []string{"wf-1"}, executor.executed)
}
