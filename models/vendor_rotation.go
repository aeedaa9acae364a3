// Package models contains domain entities and business models for lead distribution
package models

import (
	"bytes"
	"sort"
	"time"

	"github.com/google/uuid"
)

// VendorRotation holds a vendor's participation in a tenant's lead rotation.
// Table: vendor_rotations
// Unique by (tenant_id, vendor_id)
// RotationOrder nil means "after every ordered vendor"
// Weight 0 keeps the row but excludes the vendor from distribution
// RoutingPipelineID restricts the vendor to leads targeting that pipeline
type VendorRotation struct {
	ID       uint      `gorm:"primaryKey" json:"id"`
	TenantID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_vendor_rotations_tenant_vendor;index:idx_vendor_rotations_tenant_id" json:"tenant_id"`
	VendorID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_vendor_rotations_tenant_vendor" json:"vendor_id"`

	FullName string `gorm:"size:255;not null" json:"full_name"`
	Email    string `gorm:"size:255" json:"email"`

	Participates      bool       `gorm:"not null;default:false;index:idx_vendor_rotations_participates" json:"participates"`
	RotationOrder     *int       `json:"rotation_order,omitempty"`
	Weight            float64    `gorm:"type:numeric(10,4);not null" json:"weight"`
	RoutingPipelineID *uuid.UUID `gorm:"type:uuid;index:idx_vendor_rotations_routing_pipeline" json:"routing_pipeline_id,omitempty"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (VendorRotation) TableName() string {
	return "vendor_rotations"
}

// IsEligibleFor reports whether the vendor may receive a lead targeting pipelineID.
// A nil pipelineID means the caller did not request a pipeline.
func (v *VendorRotation) IsEligibleFor(pipelineID *uuid.UUID) bool {
	if v == nil || !v.Participates || !(v.Weight > 0) {
		return false
	}
	if pipelineID == nil || v.RoutingPipelineID == nil {
		return true
	}
	return *v.RoutingPipelineID == *pipelineID
}

// VendorRotationFilter represents filter criteria for vendor rotation queries
type VendorRotationFilter struct {
	ID                *uint
	TenantID          *uuid.UUID
	VendorID          *uuid.UUID
	Participates      *bool
	RoutingPipelineID *uuid.UUID
	CreatedAfter      *time.Time
	CreatedBefore     *time.Time
}

// VendorRotationPatch is a partial update; nil fields are left unchanged.
// The Clear flags set the nullable columns back to NULL.
type VendorRotationPatch struct {
	Participates         *bool
	RotationOrder        *int
	ClearRotationOrder   bool
	Weight               *float64
	RoutingPipelineID    *uuid.UUID
	ClearRoutingPipeline bool
	FullName             *string
	Email                *string
}

// IsEmpty reports whether the patch changes nothing
func (p VendorRotationPatch) IsEmpty() bool {
	return p.Participates == nil && p.RotationOrder == nil && !p.ClearRotationOrder &&
		p.Weight == nil && p.RoutingPipelineID == nil && !p.ClearRoutingPipeline &&
		p.FullName == nil && p.Email == nil
}

// CompareVendorRotations orders by rotation_order ascending with nulls last,
// then by vendor_id bytes (the same order PostgreSQL uses for uuid).
func CompareVendorRotations(a, b *VendorRotation) int {
	switch {
	case a.RotationOrder != nil && b.RotationOrder == nil:
		return -1
	case a.RotationOrder == nil && b.RotationOrder != nil:
		return 1
	case a.RotationOrder != nil && b.RotationOrder != nil && *a.RotationOrder != *b.RotationOrder:
		if *a.RotationOrder < *b.RotationOrder {
			return -1
		}
		return 1
	}
	return bytes.Compare(a.VendorID[:], b.VendorID[:])
}

// SortVendorRotations sorts vendors into the canonical rotation order in place
func SortVendorRotations(vendors []*VendorRotation) {
	sort.SliceStable(vendors, func(i, j int) bool {
		return CompareVendorRotations(vendors[i], vendors[j]) < 0
	})
}
