package condition

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvaluate(t *testing.T) {
	testCases := []struct {
		name     string
		ctx      map[string]any
		field    string
		op       Operator
		expected any
		result   bool
	}{
		{
			name:     "equals string",
			ctx:      map[string]any{"status": "open"},
			field:    "status",
			op:       OperatorEquals,
			expected: "open",
			result:   true,
		},
		{
			name:     "equals across numeric types",
			ctx:      map[string]any{"total": float64(100)},
			field:    "total",
			op:       OperatorEquals,
			expected: 100,
			result:   true,
		},
		{
			name:     "equals bool",
			ctx:      map[string]any{"vip": true},
			field:    "vip",
			op:       OperatorEquals,
			expected: true,
			result:   true,
		},
		{
			name:     "not_equals",
			ctx:      map[string]any{"status": "open"},
			field:    "status",
			op:       OperatorNotEquals,
			expected: "closed",
			result:   true,
		},
		{
			name:     "contains substring",
			ctx:      map[string]any{"content": "I want a refund please"},
			field:    "content",
			op:       OperatorContains,
			expected: "refund",
			result:   true,
		},
		{
			name:     "contains coerces numbers",
			ctx:      map[string]any{"code": float64(40401)},
			field:    "code",
			op:       OperatorContains,
			expected: 404,
			result:   true,
		},
		{
			name:     "greater_than true branch",
			ctx:      map[string]any{"amount": float64(150)},
			field:    "amount",
			op:       OperatorGreaterThan,
			expected: 100,
			result:   true,
		},
		{
			name:     "greater_than false branch",
			ctx:      map[string]any{"amount": float64(150)},
			field:    "amount",
			op:       OperatorGreaterThan,
			expected: 200,
			result:   false,
		},
		{
			name:     "less_than with string number",
			ctx:      map[string]any{"amount": "50"},
			field:    "amount",
			op:       OperatorLessThan,
			expected: 100,
			result:   true,
		},
		{
			name:     "non numeric comparison fails closed",
			ctx:      map[string]any{"amount": "a lot"},
			field:    "amount",
			op:       OperatorGreaterThan,
			expected: 100,
			result:   false,
		},
		{
			name:     "missing field equals nil only",
			ctx:      map[string]any{},
			field:    "missing",
			op:       OperatorEquals,
			expected: "anything",
			result:   false,
		},
		{
			name:     "nested field path",
			ctx:      map[string]any{"order": map[string]any{"total": float64(500)}},
			field:    "order.total",
			op:       OperatorGreaterThan,
			expected: 100,
			result:   true,
		},
		{
			name:     "unknown operator fails closed",
			ctx:      map[string]any{"amount": float64(150)},
			field:    "amount",
			op:       Operator("matches"),
			expected: 150,
			result:   false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.result, Evaluate(tc.ctx, tc.field, tc.op, tc.expected))
		})
	}
}

func TestKnown(t *testing.T) {
	assert.True(t, Known(OperatorEquals))
	assert.True(t, Known(OperatorLessThan))
	assert.False(t, Known(Operator("regex")))
}
