package models

import "slices"

// ModelConfig is one entry of an instance's model catalog.
type ModelConfig struct {
	// Code is the public model name callers request. Unique per catalog.
	Code string `json:"code"`

	// CodeAliases are additional public names resolving to this entry.
	CodeAliases []string `json:"code_aliases,omitempty"`

	// UpstreamModel overrides the model name sent upstream. Empty means
	// the public code is forwarded as-is.
	UpstreamModel string `json:"upstream_model,omitempty"`

	// Tags classify the model for whitelist filtering.
	Tags []string `json:"tags,omitempty"`

	Description string `json:"description,omitempty"`

	// Prices are denominated per one million tokens.
	PromptPrice     float64 `json:"prompt_price"`
	CompletionPrice float64 `json:"completion_price"`
}

// Matches reports whether the requested public name resolves to this entry,
// checking the code before any aliases.
func (m *ModelConfig) Matches(requested string) bool {
	if m.Code == requested {
		return true
	}
	return slices.Contains(m.CodeAliases, requested)
}

// ResolvedUpstreamModel returns the model name to send upstream.
func (m *ModelConfig) ResolvedUpstreamModel() string {
	if m.UpstreamModel != "" {
		return m.UpstreamModel
	}
	return m.Code
}

// HasAnyTag reports whether the entry carries at least one of the given
// tags. An empty tags argument never matches.
func (m *ModelConfig) HasAnyTag(tags []string) bool {
	for _, t := range tags {
		if slices.Contains(m.Tags, t) {
			return true
		}
	}
	return false
}
