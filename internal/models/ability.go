package models

import (
	"time"

	"github.com/google/uuid"
)

// UserInstanceAbility binds one user to one service instance through an
// opaque bearer token. Created and revoked by administrators; the proxy
// performs read-only lookups.
type UserInstanceAbility struct {
	// TokenHash is the SHA-256 hex digest of the caller-presented bearer
	// token. Unique together with InstanceID.
	TokenHash  string    `db:"token_hash" json:"-"`
	UserID     uuid.UUID `db:"user_id" json:"user_id"`
	InstanceID uuid.UUID `db:"instance_id" json:"instance_id"`
	CanUse     bool      `db:"can_use" json:"can_use"`

	// Data is an instance-type-specific payload, e.g. a per-user model
	// tag whitelist for chat instances.
	Data JSONB `db:"data" json:"data,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// AbilityData is the decoded per-user payload for chat instances.
type AbilityData struct {
	// AllowedModelTags grants access to models carrying any of these
	// tags, in addition to whatever the instance default whitelist
	// already allows.
	AllowedModelTags []string `json:"allowed_model_tags,omitempty"`
}

// DecodeData unpacks the per-user payload. A missing payload decodes to
// the zero value, which grants nothing beyond the instance defaults.
func (a *UserInstanceAbility) DecodeData() (*AbilityData, error) {
	var data AbilityData
	if len(a.Data) == 0 {
		return &data, nil
	}
	if err := a.Data.Decode(&data); err != nil {
		return nil, err
	}
	return &data, nil
}
