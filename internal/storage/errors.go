package storage

import "errors"

var (
	// ErrAbilityNotFound is returned when no (token, instance) binding exists
	ErrAbilityNotFound = errors.New("ability not found")

	// ErrInstanceNotFound is returned when a service instance is not found
	ErrInstanceNotFound = errors.New("service instance not found")

	// ErrUsageLogNotFound is returned when a usage log record is not found
	ErrUsageLogNotFound = errors.New("usage log not found")
)
