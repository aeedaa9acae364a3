package utils

import (
	"time"
)

// Token constants
const (
	// AccessTokenTTL is the time-to-live for tenant access tokens (24 hours)
	AccessTokenTTL = 24 * time.Hour
)

// CORS and security constants
const (
	// CORSMaxAge is the maximum age for CORS preflight requests (24 hours)
	CORSMaxAge = 86400
)

// Distribution constants
const (
	// DefaultMaxRotationSlots caps the length of an expanded weighted rotation sequence
	DefaultMaxRotationSlots = 100

	// MaxQueuePreview is the largest number of upcoming vendors a queue preview returns
	MaxQueuePreview = 50

	// TenantLockKeyPrefix prefixes the Redis keys guarding a tenant's cursor
	TenantLockKeyPrefix = "tenant-lock:"

	// LeadsAssignedEventType is the event type published after each assignment
	LeadsAssignedEventType = "leads.assigned.v1"
)

// RoleAdmin is the token role allowed to change rotation settings
const RoleAdmin = "admin"
