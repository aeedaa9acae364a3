// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirphl/lead-distributor/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PipelineRepositoryImpl implements PipelineRepository interface
type PipelineRepositoryImpl struct {
	db *gorm.DB
}

// NewPipelineRepository creates a new pipeline repository
func NewPipelineRepository(db *gorm.DB) PipelineRepository {
	return &PipelineRepositoryImpl{db: db}
}

func (r *PipelineRepositoryImpl) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(TxContextKey).(*gorm.DB); ok && tx != nil {
		return tx.WithContext(ctx)
	}
	return r.db.WithContext(ctx)
}

// ByTenantAndID retrieves a pipeline only if it belongs to the tenant
func (r *PipelineRepositoryImpl) ByTenantAndID(ctx context.Context, tenantID, pipelineID uuid.UUID) (*models.Pipeline, error) {
	var pipeline models.Pipeline
	err := r.getDB(ctx).Where("id = ? AND tenant_id = ?", pipelineID, tenantID).First(&pipeline).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find pipeline: %w", err)
	}
	return &pipeline, nil
}

// DefaultForTenant retrieves the tenant's default pipeline, if any
func (r *PipelineRepositoryImpl) DefaultForTenant(ctx context.Context, tenantID uuid.UUID) (*models.Pipeline, error) {
	var pipeline models.Pipeline
	err := r.getDB(ctx).
		Where("tenant_id = ? AND is_default = ?", tenantID, true).
		Order("created_at ASC").
		First(&pipeline).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find default pipeline: %w", err)
	}
	return &pipeline, nil
}

// InitialStage retrieves the stage with the lowest position of a pipeline
func (r *PipelineRepositoryImpl) InitialStage(ctx context.Context, pipelineID uuid.UUID) (*models.PipelineStage, error) {
	var stage models.PipelineStage
	err := r.getDB(ctx).
		Where("pipeline_id = ?", pipelineID).
		Order("position ASC, id ASC").
		First(&stage).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find initial stage: %w", err)
	}
	return &stage, nil
}
