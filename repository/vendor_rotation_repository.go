// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirphl/lead-distributor/models"
	"github.com/amirphl/lead-distributor/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// canonicalRotationOrder is the registry's rotation order; models.CompareVendorRotations mirrors it
const canonicalRotationOrder = "rotation_order ASC NULLS LAST, vendor_id ASC"

// VendorRotationRepositoryImpl implements VendorRotationRepository interface
type VendorRotationRepositoryImpl struct {
	*BaseRepository[models.VendorRotation, models.VendorRotationFilter]
}

// NewVendorRotationRepository creates a new vendor rotation repository
func NewVendorRotationRepository(db *gorm.DB) VendorRotationRepository {
	return &VendorRotationRepositoryImpl{
		BaseRepository: NewBaseRepository[models.VendorRotation, models.VendorRotationFilter](db),
	}
}

// ByVendor retrieves the rotation row of a vendor within a tenant
func (r *VendorRotationRepositoryImpl) ByVendor(ctx context.Context, tenantID, vendorID uuid.UUID) (*models.VendorRotation, error) {
	db := r.getDB(ctx)

	var vendor models.VendorRotation
	err := db.Where("tenant_id = ? AND vendor_id = ?", tenantID, vendorID).First(&vendor).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find vendor rotation: %w", err)
	}

	return &vendor, nil
}

// ListEligible returns participating vendors with a positive weight that either have no
// routing pipeline or are routed to pipelineID, in canonical rotation order
func (r *VendorRotationRepositoryImpl) ListEligible(ctx context.Context, tenantID uuid.UUID, pipelineID *uuid.UUID) ([]*models.VendorRotation, error) {
	db := r.getDB(ctx)

	query := db.Model(&models.VendorRotation{}).
		Where("tenant_id = ?", tenantID).
		Where("participates = ?", true).
		Where("weight > 0")
	if pipelineID != nil {
		query = query.Where("routing_pipeline_id = ? OR routing_pipeline_id IS NULL", *pipelineID)
	}

	var vendors []*models.VendorRotation
	if err := query.Order(canonicalRotationOrder).Find(&vendors).Error; err != nil {
		return nil, fmt.Errorf("failed to list eligible vendors: %w", err)
	}

	return vendors, nil
}

// ListByTenant returns every rotation row of a tenant in canonical rotation order
func (r *VendorRotationRepositoryImpl) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]*models.VendorRotation, error) {
	return r.ByFilter(ctx, models.VendorRotationFilter{TenantID: &tenantID}, canonicalRotationOrder, 0, 0)
}

// applyFilter applies filter criteria to a GORM query
func (r *VendorRotationRepositoryImpl) applyFilter(query *gorm.DB, filter models.VendorRotationFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.TenantID != nil {
		query = query.Where("tenant_id = ?", *filter.TenantID)
	}
	if filter.VendorID != nil {
		query = query.Where("vendor_id = ?", *filter.VendorID)
	}
	if filter.Participates != nil {
		query = query.Where("participates = ?", *filter.Participates)
	}
	if filter.RoutingPipelineID != nil {
		query = query.Where("routing_pipeline_id = ?", *filter.RoutingPipelineID)
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at > ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at < ?", *filter.CreatedBefore)
	}
	return query
}

// ByFilter retrieves vendor rotations based on filter criteria
func (r *VendorRotationRepositoryImpl) ByFilter(ctx context.Context, filter models.VendorRotationFilter, orderBy string, limit, offset int) ([]*models.VendorRotation, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.VendorRotation{}), filter)

	if orderBy == "" {
		orderBy = "id DESC"
	}
	query = query.Order(orderBy)

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var vendors []*models.VendorRotation
	if err := query.Find(&vendors).Error; err != nil {
		return nil, fmt.Errorf("failed to find vendor rotations by filter: %w", err)
	}
	return vendors, nil
}

// Count returns the number of vendor rotations matching the filter
func (r *VendorRotationRepositoryImpl) Count(ctx context.Context, filter models.VendorRotationFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.VendorRotation{}), filter)

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count vendor rotations: %w", err)
	}
	return count, nil
}

// Exists checks if any vendor rotation matching the filter exists
func (r *VendorRotationRepositoryImpl) Exists(ctx context.Context, filter models.VendorRotationFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Update applies a partial update to a vendor's rotation row and returns the new row.
// It returns nil, nil when the vendor has no rotation row in the tenant.
func (r *VendorRotationRepositoryImpl) Update(ctx context.Context, tenantID, vendorID uuid.UUID, patch models.VendorRotationPatch) (updated *models.VendorRotation, err error) {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { err = finishWrite(db, shouldCommit, err) }()

	updates := map[string]any{
		"updated_at": utils.UTCNow(),
	}
	if patch.Participates != nil {
		updates["participates"] = *patch.Participates
	}
	if patch.ClearRotationOrder {
		updates["rotation_order"] = nil
	} else if patch.RotationOrder != nil {
		updates["rotation_order"] = *patch.RotationOrder
	}
	if patch.Weight != nil {
		updates["weight"] = *patch.Weight
	}
	if patch.ClearRoutingPipeline {
		updates["routing_pipeline_id"] = nil
	} else if patch.RoutingPipelineID != nil {
		updates["routing_pipeline_id"] = *patch.RoutingPipelineID
	}
	if patch.FullName != nil {
		updates["full_name"] = *patch.FullName
	}
	if patch.Email != nil {
		updates["email"] = *patch.Email
	}

	result := db.Model(&models.VendorRotation{}).
		Where("tenant_id = ? AND vendor_id = ?", tenantID, vendorID).
		Updates(updates)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to update vendor rotation: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}

	var vendor models.VendorRotation
	if err = db.Where("tenant_id = ? AND vendor_id = ?", tenantID, vendorID).First(&vendor).Error; err != nil {
		return nil, fmt.Errorf("failed to reload vendor rotation: %w", err)
	}
	return &vendor, nil
}
