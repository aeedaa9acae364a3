package testing

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/amirphl/lead-distributor/models"
	"github.com/amirphl/lead-distributor/utils"
	"github.com/google/uuid"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// CreateTestPipeline creates a pipeline with one stage per name; stage positions follow the argument order
func (tf *TestFixtures) CreateTestPipeline(tenantID uuid.UUID, name string, isDefault bool, stageNames ...string) (*models.Pipeline, []*models.PipelineStage, error) {
	pipeline := &models.Pipeline{
		ID:        uuid.New(),
		TenantID:  tenantID,
		Name:      name,
		IsDefault: isDefault,
		CreatedAt: utils.UTCNow(),
	}
	if err := tf.DB.DB.Create(pipeline).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to create test pipeline: %w", err)
	}

	stages := make([]*models.PipelineStage, 0, len(stageNames))
	for i, stageName := range stageNames {
		stage := &models.PipelineStage{
			ID:         uuid.New(),
			PipelineID: pipeline.ID,
			Name:       stageName,
			Position:   i + 1,
			CreatedAt:  utils.UTCNow(),
		}
		if err := tf.DB.DB.Create(stage).Error; err != nil {
			return nil, nil, fmt.Errorf("failed to create test stage %s: %w", stageName, err)
		}
		stages = append(stages, stage)
	}

	return pipeline, stages, nil
}

// CreateTestVendor registers a participating vendor with the given order and weight
func (tf *TestFixtures) CreateTestVendor(tenantID uuid.UUID, order *int, weight float64) (*models.VendorRotation, error) {
	vendor := &models.VendorRotation{
		TenantID:      tenantID,
		VendorID:      uuid.New(),
		FullName:      fmt.Sprintf("Vendor %d", rand.Intn(1000000)),
		Email:         fmt.Sprintf("vendor.%d@example.com", rand.Intn(1000000000)),
		Participates:  true,
		RotationOrder: order,
		Weight:        weight,
	}

	if err := tf.DB.DB.Create(vendor).Error; err != nil {
		return nil, fmt.Errorf("failed to create test vendor: %w", err)
	}

	return vendor, nil
}

// CreateMultipleTestVendors creates count participating vendors with orders 1..count and weight 1
func (tf *TestFixtures) CreateMultipleTestVendors(tenantID uuid.UUID, count int) ([]*models.VendorRotation, error) {
	vendors := make([]*models.VendorRotation, 0, count)
	for i := 1; i <= count; i++ {
		vendor, err := tf.CreateTestVendor(tenantID, utils.ToPtr(i), 1)
		if err != nil {
			return nil, fmt.Errorf("failed to create vendor %d: %w", i, err)
		}
		vendors = append(vendors, vendor)
	}
	return vendors, nil
}

// CreateTestAssignmentLog inserts an audit entry created at the given time
func (tf *TestFixtures) CreateTestAssignmentLog(tenantID, vendorID, pipelineID, stageID uuid.UUID, origin *string, createdAt time.Time) (*models.LeadAssignmentLog, error) {
	entry := &models.LeadAssignmentLog{
		UUID:       uuid.New(),
		TenantID:   tenantID,
		LeadID:     uuid.New(),
		VendorID:   vendorID,
		PipelineID: pipelineID,
		StageID:    stageID,
		Origin:     origin,
		CreatedAt:  createdAt.UTC(),
	}

	if err := tf.DB.DB.Create(entry).Error; err != nil {
		return nil, fmt.Errorf("failed to create test assignment log: %w", err)
	}

	return entry, nil
}
