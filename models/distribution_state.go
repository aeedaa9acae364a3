package models

import (
	"time"

	"github.com/google/uuid"
)

// DistributionState is the per-tenant rotation cursor.
// Table: distribution_states
// Created lazily on the first assignment and only ever written by the assignment engine.
// LastSlot is the position of the last pick in the expanded rotation sequence; it is a
// hint and is ignored when it no longer points at LastVendorID.
type DistributionState struct {
	TenantID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"tenant_id"`
	LastVendorID    *uuid.UUID `gorm:"type:uuid" json:"last_vendor_id,omitempty"`
	LastSlot        *int       `json:"last_slot,omitempty"`
	AssignmentCount int64      `gorm:"not null;default:0" json:"assignment_count"`
	CreatedAt       time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (DistributionState) TableName() string {
	return "distribution_states"
}

// HasCursor reports whether a vendor was ever assigned for the tenant
func (s *DistributionState) HasCursor() bool {
	return s != nil && s.LastVendorID != nil
}
