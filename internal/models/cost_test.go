package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCost(t *testing.T) {
	tests := []struct {
		name     string
		usage    *Usage
		model    ModelConfig
		expected *float64
	}{
		{
			name:     "gpt-4o scenario",
			usage:    &Usage{PromptTokens: 1000, CompletionTokens: 500, TotalTokens: 1500},
			model:    ModelConfig{Code: "gpt-4o", PromptPrice: 5, CompletionPrice: 15},
			expected: floatPtr(0.0125),
		},
		{
			name:     "zero usage reported is a free request",
			usage:    &Usage{},
			model:    ModelConfig{PromptPrice: 5, CompletionPrice: 15},
			expected: floatPtr(0),
		},
		{
			name:     "absent usage yields nil, not zero",
			usage:    nil,
			model:    ModelConfig{PromptPrice: 5, CompletionPrice: 15},
			expected: nil,
		},
		{
			name:     "free model",
			usage:    &Usage{PromptTokens: 100000, CompletionTokens: 100000},
			model:    ModelConfig{},
			expected: floatPtr(0),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Cost(tt.usage, &tt.model)
			if tt.expected == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.InDelta(t, *tt.expected, *got, 1e-12)
		})
	}
}

func floatPtr(v float64) *float64 { return &v }
