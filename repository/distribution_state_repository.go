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
	"gorm.io/gorm/clause"
)

// DistributionStateRepositoryImpl implements DistributionStateRepository on PostgreSQL.
// The cursor row is held with SELECT ... FOR UPDATE for the duration of WithCursorLock,
// which serializes assignments of a tenant across processes.
type DistributionStateRepositoryImpl struct {
	db *gorm.DB
}

// NewDistributionStateRepository creates a new distribution state repository
func NewDistributionStateRepository(db *gorm.DB) DistributionStateRepository {
	return &DistributionStateRepositoryImpl{db: db}
}

func (r *DistributionStateRepositoryImpl) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(TxContextKey).(*gorm.DB); ok && tx != nil {
		return tx.WithContext(ctx)
	}
	return r.db.WithContext(ctx)
}

// ByTenant reads the tenant's cursor without locking it
func (r *DistributionStateRepositoryImpl) ByTenant(ctx context.Context, tenantID uuid.UUID) (*models.DistributionState, error) {
	var state models.DistributionState
	err := r.getDB(ctx).Where("tenant_id = ?", tenantID).First(&state).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read distribution state: %w", err)
	}
	return &state, nil
}

// WithCursorLock creates the tenant's row if missing, locks it and runs fn in the same transaction
func (r *DistributionStateRepositoryImpl) WithCursorLock(ctx context.Context, tenantID uuid.UUID, fn func(ctx context.Context, state *models.DistributionState) error) error {
	return WithTransaction(ctx, r.db, func(txCtx context.Context) error {
		db := r.getDB(txCtx)

		now := utils.UTCNow()
		seed := models.DistributionState{TenantID: tenantID, CreatedAt: now, UpdatedAt: now}
		if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
			return fmt.Errorf("failed to initialize distribution state: %w", err)
		}

		var state models.DistributionState
		err := db.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("tenant_id = ?", tenantID).
			First(&state).Error
		if err != nil {
			return fmt.Errorf("failed to lock distribution state: %w", err)
		}

		return fn(txCtx, &state)
	})
}

// SaveCursor writes the cursor fields of the tenant's state row
func (r *DistributionStateRepositoryImpl) SaveCursor(ctx context.Context, state *models.DistributionState) error {
	if state == nil {
		return errors.New("distribution state is nil")
	}
	state.UpdatedAt = utils.UTCNow()

	result := r.getDB(ctx).Model(&models.DistributionState{}).
		Where("tenant_id = ?", state.TenantID).
		Updates(map[string]any{
			"last_vendor_id":   state.LastVendorID,
			"last_slot":        state.LastSlot,
			"assignment_count": state.AssignmentCount,
			"updated_at":       state.UpdatedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to save distribution state: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		// Written outside WithCursorLock before the row exists
		if err := r.getDB(ctx).Create(state).Error; err != nil {
			return fmt.Errorf("failed to create distribution state: %w", err)
		}
	}
	return nil
}
