// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"

	"github.com/amirphl/lead-distributor/models"
	"github.com/google/uuid"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// VendorRotationRepository is the rotation registry: vendors' participation, order,
// weight and pipeline restriction per tenant
type VendorRotationRepository interface {
	Repository[models.VendorRotation, models.VendorRotationFilter]
	ByVendor(ctx context.Context, tenantID, vendorID uuid.UUID) (*models.VendorRotation, error)
	// ListEligible returns the vendors eligible for pipelineID in canonical rotation
	// order. An empty result is not an error.
	ListEligible(ctx context.Context, tenantID uuid.UUID, pipelineID *uuid.UUID) ([]*models.VendorRotation, error)
	ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]*models.VendorRotation, error)
	Update(ctx context.Context, tenantID, vendorID uuid.UUID, patch models.VendorRotationPatch) (*models.VendorRotation, error)
}

// DistributionStateRepository stores the per-tenant rotation cursor
type DistributionStateRepository interface {
	// ByTenant is a point-in-time read; it returns nil when the tenant has no cursor yet
	ByTenant(ctx context.Context, tenantID uuid.UUID) (*models.DistributionState, error)
	// WithCursorLock runs fn in a transaction that holds the tenant's cursor exclusively.
	// The row is created on first use. Returning an error from fn rolls everything back.
	WithCursorLock(ctx context.Context, tenantID uuid.UUID, fn func(ctx context.Context, state *models.DistributionState) error) error
	// SaveCursor persists the cursor; inside WithCursorLock it joins the same transaction
	SaveCursor(ctx context.Context, state *models.DistributionState) error
}

// LeadAssignmentLogRepository defines operations for the append-only assignment log
type LeadAssignmentLogRepository interface {
	Repository[models.LeadAssignmentLog, models.LeadAssignmentLogFilter]
}

// PipelineRepository reads the CRM pipelines needed to place an assigned lead
type PipelineRepository interface {
	ByTenantAndID(ctx context.Context, tenantID, pipelineID uuid.UUID) (*models.Pipeline, error)
	DefaultForTenant(ctx context.Context, tenantID uuid.UUID) (*models.Pipeline, error)
	InitialStage(ctx context.Context, pipelineID uuid.UUID) (*models.PipelineStage, error)
}
