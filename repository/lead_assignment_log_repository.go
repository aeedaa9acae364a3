// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"fmt"

	"github.com/amirphl/lead-distributor/models"
	"gorm.io/gorm"
)

// LeadAssignmentLogRepositoryImpl implements LeadAssignmentLogRepository interface
type LeadAssignmentLogRepositoryImpl struct {
	*BaseRepository[models.LeadAssignmentLog, models.LeadAssignmentLogFilter]
}

// NewLeadAssignmentLogRepository creates a new lead assignment log repository
func NewLeadAssignmentLogRepository(db *gorm.DB) LeadAssignmentLogRepository {
	return &LeadAssignmentLogRepositoryImpl{
		BaseRepository: NewBaseRepository[models.LeadAssignmentLog, models.LeadAssignmentLogFilter](db),
	}
}

// applyFilter applies filter criteria to a GORM query
func (r *LeadAssignmentLogRepositoryImpl) applyFilter(query *gorm.DB, filter models.LeadAssignmentLogFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.TenantID != nil {
		query = query.Where("tenant_id = ?", *filter.TenantID)
	}
	if filter.LeadID != nil {
		query = query.Where("lead_id = ?", *filter.LeadID)
	}
	if filter.VendorID != nil {
		query = query.Where("vendor_id = ?", *filter.VendorID)
	}
	if filter.PipelineID != nil {
		query = query.Where("pipeline_id = ?", *filter.PipelineID)
	}
	if filter.Origin != nil {
		query = query.Where("origin = ?", *filter.Origin)
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at <= ?", *filter.CreatedBefore)
	}
	return query
}

// ByFilter retrieves assignment log entries based on filter criteria, newest first by default
func (r *LeadAssignmentLogRepositoryImpl) ByFilter(ctx context.Context, filter models.LeadAssignmentLogFilter, orderBy string, limit, offset int) ([]*models.LeadAssignmentLog, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.LeadAssignmentLog{}), filter)

	if orderBy == "" {
		orderBy = "created_at DESC, id DESC"
	}
	query = query.Order(orderBy)

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var entries []*models.LeadAssignmentLog
	if err := query.Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to list lead assignment logs: %w", err)
	}
	return entries, nil
}

// Count returns the number of assignment log entries matching the filter
func (r *LeadAssignmentLogRepositoryImpl) Count(ctx context.Context, filter models.LeadAssignmentLogFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.LeadAssignmentLog{}), filter)

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count lead assignment logs: %w", err)
	}
	return count, nil
}

// Exists checks if any assignment log entry matching the filter exists
func (r *LeadAssignmentLogRepositoryImpl) Exists(ctx context.Context, filter models.LeadAssignmentLogFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
