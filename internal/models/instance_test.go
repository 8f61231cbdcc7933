package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstanceConfigValidate(t *testing.T) {
	valid := InstanceConfig{
		BaseURL: "https://api.example.com",
		Secret:  "sk-upstream",
		Models:  []ModelConfig{{Code: "gpt-4o"}},
	}

	tests := []struct {
		name    string
		mutate  func(*InstanceConfig)
		svcType ServiceType
		wantErr string
	}{
		{
			name:    "valid chat config",
			mutate:  func(*InstanceConfig) {},
			svcType: ServiceTypeOpenAIChat,
		},
		{
			name:    "unknown type rejected",
			mutate:  func(*InstanceConfig) {},
			svcType: ServiceType("mystery"),
			wantErr: "unknown service type",
		},
		{
			name:    "missing base url",
			mutate:  func(c *InstanceConfig) { c.BaseURL = " " },
			svcType: ServiceTypeOpenAIChat,
			wantErr: "base_url",
		},
		{
			name:    "missing secret",
			mutate:  func(c *InstanceConfig) { c.Secret = "" },
			svcType: ServiceTypeOpenAIChat,
			wantErr: "secret",
		},
		{
			name:    "chat instance needs catalog",
			mutate:  func(c *InstanceConfig) { c.Models = nil },
			svcType: ServiceTypeAzureOpenAIChat,
			wantErr: "model catalog",
		},
		{
			name:    "text instance allows empty catalog",
			mutate:  func(c *InstanceConfig) { c.Models = nil },
			svcType: ServiceTypeOpenAIText,
		},
		{
			name: "duplicate model code",
			mutate: func(c *InstanceConfig) {
				c.Models = append(c.Models, ModelConfig{Code: "gpt-4o"})
			},
			svcType: ServiceTypeOpenAIChat,
			wantErr: "duplicate model code",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			cfg.Models = append([]ModelConfig(nil), valid.Models...)
			tt.mutate(&cfg)

			err := cfg.Validate(tt.svcType)
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestDecodeInstanceConfig(t *testing.T) {
	cfg := InstanceConfig{
		BaseURL: "https://api.example.com",
		Secret:  "sk-upstream",
		Models:  []ModelConfig{{Code: "gpt-4o", PromptPrice: 5}},
	}
	payload, err := EncodeJSONB(cfg)
	require.NoError(t, err)

	inst := &ServiceInstance{
		ID:     uuid.New(),
		Type:   ServiceTypeOpenAIChat,
		Name:   "main",
		Config: payload,
	}

	decoded, err := DecodeInstanceConfig(inst)
	require.NoError(t, err)
	assert.Equal(t, cfg.BaseURL, decoded.BaseURL)
	require.Len(t, decoded.Models, 1)
	assert.Equal(t, 5.0, decoded.Models[0].PromptPrice)

	inst.Config = nil
	_, err = DecodeInstanceConfig(inst)
	assert.Error(t, err)
}

func TestAbilityDecodeData(t *testing.T) {
	ability := &UserInstanceAbility{}
	data, err := ability.DecodeData()
	require.NoError(t, err)
	assert.Empty(t, data.AllowedModelTags)

	ability.Data = JSONB(`{"allowed_model_tags":["premium"]}`)
	data, err = ability.DecodeData()
	require.NoError(t, err)
	assert.Equal(t, []string{"premium"}, data.AllowedModelTags)
}
