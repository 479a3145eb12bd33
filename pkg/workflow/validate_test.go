package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatrail/chatrail/pkg/models"
)

func validWorkflow() *models.WorkflowDefinition {
	return &models.WorkflowDefinition{
		BusinessID: "biz-1",
		Name:       "welcome flow",
		Status:     models.WorkflowStatusDraft,
		Nodes: []models.Node{
			{ID: "n1", Type: models.NodeTypeTrigger},
			{ID: "n2", Type: models.NodeTypeCondition, Config: map[string]any{
				"field": "vip", "operator": "equals", "value": true,
			}},
			{ID: "n3", Type: models.NodeTypeSendMessage, Config: map[string]any{"template": "hi"}},
			{ID: "n4", Type: models.NodeTypeEnd},
		},
		Edges: []models.Edge{
			{ID: "e1", Source: "n1", Target: "n2"},
			{ID: "e2", Source: "n2", Target: "n3", Label: "true"},
			{ID: "e3", Source: "n2", Target: "n4", Label: "false"},
		},
	}
}

func TestValidateAcceptsWellFormedGraph(t *testing.T) {
	assert.NoError(t, Validate(validWorkflow()))
}

func TestValidateRequiresSingleTrigger(t *testing.T) {
	workflow := validWorkflow()
	workflow.Nodes[0].Type = models.NodeTypeEnd

	err := Validate(workflow)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exactly one trigger node")

	workflow = validWorkflow()
	workflow.Nodes = append(workflow.Nodes, models.Node{ID: "n5", Type: models.NodeTypeTrigger})

	err = Validate(workflow)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exactly one trigger node")
}

func TestValidateRejectsDanglingEdges(t *testing.T) {
	workflow := validWorkflow()
	workflow.Edges = append(workflow.Edges, models.Edge{ID: "e9", Source: "n4", Target: "ghost"})

	err := Validate(workflow)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing target node")
}

func TestValidateRejectsDuplicateNodeIDs(t *testing.T) {
	workflow := validWorkflow()
	workflow.Nodes = append(workflow.Nodes, models.Node{ID: "n4", Type: models.NodeTypeEnd})

	err := Validate(workflow)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate node id")
}

func TestValidateChecksNodeConfigs(t *testing.T) {
	tests := []struct {
		name string
		node models.Node
		want string
	}{
		{
			name: "condition without field",
			node: models.Node{ID: "bad", Type: models.NodeTypeCondition, Config: map[string]any{"operator": "equals"}},
			want: "field",
		},
		{
			name: "condition with unknown operator",
			node: models.Node{ID: "bad", Type: models.NodeTypeCondition, Config: map[string]any{
				"field": "x", "operator": "resembles",
			}},
			want: "operator",
		},
		{
			name: "send_message without template",
			node: models.Node{ID: "bad", Type: models.NodeTypeSendMessage},
			want: "template",
		},
		{
			name: "webhook without url",
			node: models.Node{ID: "bad", Type: models.NodeTypeWebhook, Config: map[string]any{"method": "POST"}},
			want: "url",
		},
		{
			name: "segment_check without segmentId",
			node: models.Node{ID: "bad", Type: models.NodeTypeSegmentCheck},
			want: "segmentId",
		},
		{
			name: "unknown node type",
			node: models.Node{ID: "bad", Type: "teleport"},
			want: "unknown type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			workflow := validWorkflow()
			workflow.Nodes = append(workflow.Nodes, tt.node)

			err := Validate(workflow)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
