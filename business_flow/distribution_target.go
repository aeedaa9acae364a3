package businessflow

import (
	"context"

	"github.com/amirphl/lead-distributor/models"
	"github.com/amirphl/lead-distributor/repository"
	"github.com/google/uuid"
)

// assignmentTarget is where an assigned lead lands
type assignmentTarget struct {
	PipelineID uuid.UUID
	StageID    uuid.UUID
}

// targetResolver picks the pipeline and initial stage of an assignment.
// Precedence: the caller's pipeline, then the vendor's routing pipeline, then the
// tenant's default pipeline.
type targetResolver struct {
	pipelineRepo repository.PipelineRepository
}

// requestedTarget resolves a pipeline the caller asked for
func (r targetResolver) requestedTarget(ctx context.Context, tenantID, pipelineID uuid.UUID) (*assignmentTarget, error) {
	pipeline, err := r.pipelineRepo.ByTenantAndID(ctx, tenantID, pipelineID)
	if err != nil {
		return nil, persistenceError(err)
	}
	if pipeline == nil {
		return nil, ErrPipelineNotFound
	}
	return r.initialStage(ctx, pipeline)
}

// vendorTarget resolves the target of a lead that came without a pipeline
func (r targetResolver) vendorTarget(ctx context.Context, tenantID uuid.UUID, vendor *models.VendorRotation) (*assignmentTarget, error) {
	var pipeline *models.Pipeline
	var err error

	if vendor.RoutingPipelineID != nil {
		pipeline, err = r.pipelineRepo.ByTenantAndID(ctx, tenantID, *vendor.RoutingPipelineID)
		if err != nil {
			return nil, persistenceError(err)
		}
	}
	if pipeline == nil {
		pipeline, err = r.pipelineRepo.DefaultForTenant(ctx, tenantID)
		if err != nil {
			return nil, persistenceError(err)
		}
	}
	if pipeline == nil {
		return nil, ErrNoTargetPipeline
	}
	return r.initialStage(ctx, pipeline)
}

func (r targetResolver) initialStage(ctx context.Context, pipeline *models.Pipeline) (*assignmentTarget, error) {
	stage, err := r.pipelineRepo.InitialStage(ctx, pipeline.ID)
	if err != nil {
		return nil, persistenceError(err)
	}
	if stage == nil {
		return nil, ErrPipelineHasNoStages
	}
	return &assignmentTarget{PipelineID: pipeline.ID, StageID: stage.ID}, nil
}
