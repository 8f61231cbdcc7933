package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ServiceType identifies the upstream integration kind of a ServiceInstance.
// The config payload shape is fixed per type.
type ServiceType string

const (
	// ServiceTypeOpenAIChat is an OpenAI-compatible chat completions endpoint.
	ServiceTypeOpenAIChat ServiceType = "openai_chat"

	// ServiceTypeAzureOpenAIChat is an Azure-hosted OpenAI chat deployment.
	// Wire format is identical to openai_chat; kept as a separate tag so
	// admin tooling can render type-specific forms.
	ServiceTypeAzureOpenAIChat ServiceType = "azure_openai_chat"

	// ServiceTypeOpenAIText is the legacy text completion integration.
	// Usage for this type is accounted by raw text length, not tokens.
	ServiceTypeOpenAIText ServiceType = "openai_text"
)

// knownServiceTypes is the closed set of integration kinds.
var knownServiceTypes = map[ServiceType]bool{
	ServiceTypeOpenAIChat:      true,
	ServiceTypeAzureOpenAIChat: true,
	ServiceTypeOpenAIText:      true,
}

// IsChat reports whether the type uses the chat completions wire format.
func (t ServiceType) IsChat() bool {
	return t == ServiceTypeOpenAIChat || t == ServiceTypeAzureOpenAIChat
}

// Valid reports whether t is a known service type.
func (t ServiceType) Valid() bool {
	return knownServiceTypes[t]
}

// ServiceInstance is one configured upstream provider endpoint. Instances
// are created and edited by administrators; the proxy reads them only.
type ServiceInstance struct {
	ID        uuid.UUID   `db:"id" json:"id"`
	Type      ServiceType `db:"type" json:"type"`
	Name      string      `db:"name" json:"name"`
	Config    JSONB       `db:"config" json:"config"`
	CreatedAt time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt time.Time   `db:"updated_at" json:"updated_at"`
}

// InstanceConfig is the decoded, type-specific configuration payload of a
// ServiceInstance.
type InstanceConfig struct {
	// BaseURL is the upstream endpoint root, e.g. "https://api.openai.com".
	BaseURL string `json:"base_url"`

	// Secret is the upstream bearer credential.
	Secret string `json:"secret"`

	// Models is the catalog exposed by this instance.
	Models []ModelConfig `json:"models"`

	// DefaultModelTags is the instance-level tag whitelist. Empty means
	// every catalog model is allowed by default.
	DefaultModelTags []string `json:"default_model_tags,omitempty"`

	// LogPrompt and LogCompletion control whether message text is
	// persisted in usage logs.
	LogPrompt     bool `json:"log_prompt"`
	LogCompletion bool `json:"log_completion"`
}

// Validate checks the payload shape against the instance's type tag.
func (c *InstanceConfig) Validate(t ServiceType) error {
	if !t.Valid() {
		return fmt.Errorf("unknown service type %q", t)
	}
	if strings.TrimSpace(c.BaseURL) == "" {
		return fmt.Errorf("instance config: base_url is required")
	}
	if strings.TrimSpace(c.Secret) == "" {
		return fmt.Errorf("instance config: secret is required")
	}
	if t.IsChat() && len(c.Models) == 0 {
		return fmt.Errorf("instance config: chat instance requires a model catalog")
	}
	seen := make(map[string]bool, len(c.Models))
	for i := range c.Models {
		code := c.Models[i].Code
		if strings.TrimSpace(code) == "" {
			return fmt.Errorf("instance config: model %d has empty code", i)
		}
		if seen[code] {
			return fmt.Errorf("instance config: duplicate model code %q", code)
		}
		seen[code] = true
	}
	return nil
}

// DecodeInstanceConfig unpacks the JSONB payload of an instance and
// validates it against the instance type.
func DecodeInstanceConfig(inst *ServiceInstance) (*InstanceConfig, error) {
	if len(inst.Config) == 0 {
		return nil, fmt.Errorf("instance %s has no configuration", inst.ID)
	}
	var cfg InstanceConfig
	if err := inst.Config.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode instance config: %w", err)
	}
	if err := cfg.Validate(inst.Type); err != nil {
		return nil, err
	}
	return &cfg, nil
}
