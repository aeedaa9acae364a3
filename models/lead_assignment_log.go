package models

import (
	"time"

	"github.com/google/uuid"
)

// LeadAssignmentLog is the append-only audit record of one successful assignment.
// Table: lead_assignment_logs
// Rows are never updated; the assignment engine never reads them.
type LeadAssignmentLog struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UUID       uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_lead_assignment_logs_uuid" json:"uuid"`
	TenantID   uuid.UUID `gorm:"type:uuid;not null;index:idx_lead_assignment_logs_tenant_created,priority:1" json:"tenant_id"`
	LeadID     uuid.UUID `gorm:"type:uuid;not null;index:idx_lead_assignment_logs_lead_id" json:"lead_id"`
	VendorID   uuid.UUID `gorm:"type:uuid;not null;index:idx_lead_assignment_logs_vendor_id" json:"vendor_id"`
	PipelineID uuid.UUID `gorm:"type:uuid;not null;index:idx_lead_assignment_logs_pipeline_id" json:"pipeline_id"`
	StageID    uuid.UUID `gorm:"type:uuid;not null" json:"stage_id"`
	Origin     *string   `gorm:"size:100;index:idx_lead_assignment_logs_origin" json:"origin,omitempty"`
	CreatedAt  time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_lead_assignment_logs_tenant_created,priority:2" json:"created_at"`
}

func (LeadAssignmentLog) TableName() string {
	return "lead_assignment_logs"
}

// LeadAssignmentLogFilter represents filter criteria for assignment log queries
type LeadAssignmentLogFilter struct {
	ID            *uint
	TenantID      *uuid.UUID
	LeadID        *uuid.UUID
	VendorID      *uuid.UUID
	PipelineID    *uuid.UUID
	Origin        *string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}
