package models

import (
	"time"

	"github.com/google/uuid"
)

// Message is one chat message, request or response side.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Usage is the token accounting block reported by the upstream.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// UsageDetails is the type-specific payload of a chat usage log entry.
type UsageDetails struct {
	Model              string    `json:"model"`
	PromptMessages     []Message `json:"prompt_messages,omitempty"`
	CompletionMessages []Message `json:"completion_messages,omitempty"`
	Stream             bool      `json:"stream"`
	FinishReason       string    `json:"finish_reason,omitempty"`

	// Usage is nil when the upstream never reported token counts.
	Usage *Usage `json:"usage,omitempty"`

	// Cost is nil when usage was never observed; a zero cost would
	// falsely assert a free request.
	Cost *float64 `json:"cost,omitempty"`

	ElapsedSeconds float64 `json:"elapsed_seconds"`
}

// ResourceUsageLog is one persisted record per completed proxied request.
// Written exactly once, never updated.
type ResourceUsageLog struct {
	ID          uuid.UUID   `db:"id" json:"id"`
	UserID      uuid.UUID   `db:"user_id" json:"user_id"`
	InstanceID  uuid.UUID   `db:"instance_id" json:"instance_id"`
	ServiceType ServiceType `db:"service_type" json:"service_type"`
	Details     JSONB       `db:"details" json:"details,omitempty"`

	// RawText and ByteLength serve the legacy accounting path of
	// non-chat service types.
	RawText    string `db:"raw_text" json:"raw_text,omitempty"`
	ByteLength int    `db:"byte_length" json:"byte_length"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// NewChatUsageLog builds a chat usage log entry with an encoded details
// payload.
func NewChatUsageLog(userID, instanceID uuid.UUID, serviceType ServiceType, details *UsageDetails) (*ResourceUsageLog, error) {
	payload, err := EncodeJSONB(details)
	if err != nil {
		return nil, err
	}
	return &ResourceUsageLog{
		ID:          uuid.New(),
		UserID:      userID,
		InstanceID:  instanceID,
		ServiceType: serviceType,
		Details:     payload,
		CreatedAt:   time.Now(),
	}, nil
}

// DecodeDetails unpacks the chat details payload.
func (l *ResourceUsageLog) DecodeDetails() (*UsageDetails, error) {
	var details UsageDetails
	if err := l.Details.Decode(&details); err != nil {
		return nil, err
	}
	return &details, nil
}
