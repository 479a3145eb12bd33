package workflow

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/chatrail/chatrail/pkg/models"
)

var nodeConfigSchemas = map[models.NodeType]*gojsonschema.Schema{}

func init() {
	raw := map[models.NodeType]map[string]any{
		models.NodeTypeDelay: {
			"type": "object",
			"properties": map[string]any{
				"delayMs": map[string]any{"type": "number", "minimum": 0},
			},
		},
		models.NodeTypeCondition: {
			"type":     "object",
			"required": []any{"field", "operator"},
			"properties": map[string]any{
				"field": map[string]any{"type": "string", "minLength": 1},
				"operator": map[string]any{
					"type": "string",
					"enum": []any{"equals", "not_equals", "contains", "greater_than", "less_than"},
				},
			},
		},
		models.NodeTypeSendMessage: {
			"type":     "object",
			"required": []any{"template"},
			"properties": map[string]any{
				"template":       map[string]any{"type": "string", "minLength": 1},
				"channel":        map[string]any{"type": "string"},
				"customerId":     map[string]any{"type": "string"},
				"conversationId": map[string]any{"type": "string"},
			},
		},
		models.NodeTypeWebhook: {
			"type":     "object",
			"required": []any{"url"},
			"properties": map[string]any{
				"url":     map[string]any{"type": "string", "minLength": 1},
				"method":  map[string]any{"type": "string"},
				"headers": map[string]any{"type": "object"},
			},
		},
		models.NodeTypeSegmentCheck: {
			"type":     "object",
			"required": []any{"segmentId"},
			"properties": map[string]any{
				"segmentId":  map[string]any{"type": "string", "minLength": 1},
				"customerId": map[string]any{"type": "string"},
			},
		},
	}

	for nodeType, schema := range raw {
		compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(schema))
		if err != nil {
			panic(fmt.Sprintf("invalid node config schema for %s: %v", nodeType, err))
		}

		nodeConfigSchemas[nodeType] = compiled
	}
}

// Validate checks a workflow definition's graph integrity and per-node
// configuration before it can be activated.
func Validate(workflow *models.WorkflowDefinition) error {
	var problems []string

	triggers := 0
	ids := make(map[string]bool, len(workflow.Nodes))

	for _, node := range workflow.Nodes {
		if ids[node.ID] {
			problems = append(problems, fmt.Sprintf("duplicate node id %q", node.ID))
		}

		ids[node.ID] = true

		if node.Type == models.NodeTypeTrigger {
			triggers++
		}

		problems = append(problems, validateNodeConfig(node)...)
	}

	if triggers != 1 {
		problems = append(problems, fmt.Sprintf("workflow must have exactly one trigger node, found %d", triggers))
	}

	for _, edge := range workflow.Edges {
		if !ids[edge.Source] {
			problems = append(problems, fmt.Sprintf("edge %q references missing source node %q", edge.ID, edge.Source))
		}

		if !ids[edge.Target] {
			problems = append(problems, fmt.Sprintf("edge %q references missing target node %q", edge.ID, edge.Target))
		}
	}

	if len(problems) > 0 {
		return errors.New("invalid workflow: " + strings.Join(problems, "; "))
	}

	return nil
}

func validateNodeConfig(node models.Node) []string {
	schema, ok := nodeConfigSchemas[node.Type]
	if !ok {
		switch node.Type {
		case models.NodeTypeTrigger, models.NodeTypeEnd:
			return nil
		default:
			return []string{fmt.Sprintf("node %q has unknown type %q", node.ID, node.Type)}
		}
	}

	config := node.Config
	if config == nil {
		config = map[string]any{}
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(config))
	if err != nil {
		return []string{fmt.Sprintf("node %q config: %v", node.ID, err)}
	}

	problems := make([]string, 0, len(result.Errors()))

	for _, schemaErr := range result.Errors() {
		problems = append(problems, fmt.Sprintf("node %q config: %s", node.ID, schemaErr.String()))
	}

	return problems
}
