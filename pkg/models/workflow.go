package models

import "time"

// WorkflowStatus represents the lifecycle state of a workflow definition.
type WorkflowStatus string

const (
	WorkflowStatusDraft    WorkflowStatus = "draft"    // Editable, not executable
	WorkflowStatusActive   WorkflowStatus = "active"   // Executable
	WorkflowStatusInactive WorkflowStatus = "inactive" // Historical, not executable
)

// NodeType enumerates the built-in workflow node types.
type NodeType string

const (
	NodeTypeTrigger      NodeType = "trigger"
	NodeTypeDelay        NodeType = "delay"
	NodeTypeCondition    NodeType = "condition"
	NodeTypeSendMessage  NodeType = "send_message"
	NodeTypeWebhook      NodeType = "webhook"
	NodeTypeSegmentCheck NodeType = "segment_check"
	NodeTypeEnd          NodeType = "end"
)

// Node is a typed step in a workflow graph. Config is free-form and
// interpreted per node type.
type Node struct {
	ID     string         `json:"id"   validate:"required"`
	Type   NodeType       `json:"type" validate:"required"`
	Config map[string]any `json:"config,omitempty"`
}

// Edge is a directed transition between two nodes. Label marks conditional
// branches: "true"/"yes" for the positive path, "false"/"no" for the
// negative one.
type Edge struct {
	ID     string `json:"id"`
	Source string `json:"source" validate:"required"`
	Target string `json:"target" validate:"required"`
	Label  string `json:"label,omitempty"`
}

// IsTrueBranch reports whether the edge carries the positive condition label.
func (e *Edge) IsTrueBranch() bool {
	return e.Label == "true" || e.Label == "yes"
}

// IsFalseBranch reports whether the edge carries the negative condition label.
func (e *Edge) IsFalseBranch() bool {
	return e.Label == "false" || e.Label == "no"
}

// WorkflowDefinition is a user-authored directed graph of nodes executed
// step by step from its trigger node. The trigger descriptor is advisory
// only; it is derived from the graph's trigger node.
type WorkflowDefinition struct {
	ID          string         `json:"id"`
	BusinessID  string         `json:"business_id" validate:"required"`
	Name        string         `json:"name"        validate:"required,min=3"`
	Description string         `json:"description,omitempty"`
	Status      WorkflowStatus `json:"status"      validate:"required"`
	Trigger     map[string]any `json:"trigger,omitempty"`
	Nodes       []Node         `json:"nodes"`
	Edges       []Edge         `json:"edges"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// NodeByID looks up a node in the graph.
func (w *WorkflowDefinition) NodeByID(id string) (Node, bool) {
	for _, node := range w.Nodes {
		if node.ID == id {
			return node, true
		}
	}

	return Node{}, false
}

// TriggerNode returns the graph's entry node.
func (w *WorkflowDefinition) TriggerNode() (Node, bool) {
	for _, node := range w.Nodes {
		if node.Type == NodeTypeTrigger {
			return node, true
		}
	}

	return Node{}, false
}

// OutgoingEdges returns the edges leaving the given node, in definition order.
func (w *WorkflowDefinition) OutgoingEdges(nodeID string) []Edge {
	edges := make([]Edge, 0, 2)

	for _, edge := range w.Edges {
		if edge.Source == nodeID {
			edges = append(edges, edge)
		}
	}

	return edges
}

// ExecutionStatus represents the state of a single workflow run.
type ExecutionStatus string

const (
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
	ExecutionStatusCancelled ExecutionStatus = "cancelled"
)

// WorkflowExecution records one run over a workflow graph. CurrentNodeID is
// updated before each step for observability; the run itself is held in
// process memory and is lost on crash.
type WorkflowExecution struct {
	ID            string          `json:"id"`
	WorkflowID    string          `json:"workflow_id" validate:"required"`
	BusinessID    string          `json:"business_id" validate:"required"`
	Status        ExecutionStatus `json:"status"      validate:"required"`
	Context       map[string]any  `json:"context,omitempty"`
	CurrentNodeID string          `json:"current_node_id,omitempty"`
	Error         string          `json:"error,omitempty"`
	StartedAt     time.Time       `json:"started_at"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
}
