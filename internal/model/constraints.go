package model

import "time"

// Domain constants shared across handler, service, and storage packages.
const (
	MaxLogEntries     = 50
	DefaultPresignTTL = 5 * time.Minute
	FormFieldFile     = "file"
	IdempotencyHeader = "Idempotency-Key"
)
