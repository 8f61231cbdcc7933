package models

import "fmt"

// ModelNotPermittedError is returned when the requested model is not in
// the caller's effective permitted set. It carries the requested name for
// the client-facing message.
type ModelNotPermittedError struct {
	Requested string
}

func (e *ModelNotPermittedError) Error() string {
	return fmt.Sprintf("model %q is not permitted for this token", e.Requested)
}

// allowedForCaller reports whether the caller may use the catalog entry.
//
// The instance's default tag whitelist is a baseline permission: when it
// is empty every catalog model is allowed; otherwise a model must share a
// tag with it. The per-user whitelist only ever adds permissions on top
// of that baseline, it never restricts further.
func allowedForCaller(m *ModelConfig, cfg *InstanceConfig, data *AbilityData) bool {
	if len(cfg.DefaultModelTags) == 0 {
		return true
	}
	if m.HasAnyTag(cfg.DefaultModelTags) {
		return true
	}
	if data != nil && m.HasAnyTag(data.AllowedModelTags) {
		return true
	}
	return false
}

// PermittedModels returns the subset of the catalog the caller may use,
// in catalog order.
func PermittedModels(cfg *InstanceConfig, data *AbilityData) []ModelConfig {
	permitted := make([]ModelConfig, 0, len(cfg.Models))
	for i := range cfg.Models {
		if allowedForCaller(&cfg.Models[i], cfg, data) {
			permitted = append(permitted, cfg.Models[i])
		}
	}
	return permitted
}

// SelectModel resolves a requested public model name against the caller's
// permitted subset of the instance catalog. The public code is matched
// before aliases. Resolution is deterministic: the same inputs always
// yield the same catalog entry.
func SelectModel(requested string, cfg *InstanceConfig, data *AbilityData) (*ModelConfig, error) {
	// Code matches take priority over alias matches across the whole
	// catalog, so an alias can never shadow another entry's code.
	for i := range cfg.Models {
		m := &cfg.Models[i]
		if m.Code == requested && allowedForCaller(m, cfg, data) {
			return m, nil
		}
	}
	for i := range cfg.Models {
		m := &cfg.Models[i]
		if m.Matches(requested) && allowedForCaller(m, cfg, data) {
			return m, nil
		}
	}
	return nil, &ModelNotPermittedError{Requested: requested}
}
