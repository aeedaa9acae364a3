package models

import (
	"time"

	"github.com/google/uuid"
)

// Pipeline is a tenant's sales pipeline. It is owned by the CRM; lead distribution
// only reads it to resolve where an assigned lead lands.
// Table: pipelines
// At most one pipeline per tenant has IsDefault set
type Pipeline struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID  uuid.UUID `gorm:"type:uuid;not null;index:idx_pipelines_tenant_id" json:"tenant_id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	IsDefault bool      `gorm:"not null;default:false" json:"is_default"`
	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
}

func (Pipeline) TableName() string {
	return "pipelines"
}

// PipelineStage is one column of a pipeline; the initial stage has the lowest position.
// Table: pipeline_stages
type PipelineStage struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	PipelineID uuid.UUID `gorm:"type:uuid;not null;index:idx_pipeline_stages_pipeline_position,priority:1" json:"pipeline_id"`
	Name       string    `gorm:"size:255;not null" json:"name"`
	Position   int       `gorm:"not null;default:0;index:idx_pipeline_stages_pipeline_position,priority:2" json:"position"`
	CreatedAt  time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
}

func (PipelineStage) TableName() string {
	return "pipeline_stages"
}
