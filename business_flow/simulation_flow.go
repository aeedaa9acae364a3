package businessflow

import (
	"context"
	"time"

	"github.com/amirphl/lead-distributor/app/dto"
	"github.com/amirphl/lead-distributor/models"
	"github.com/amirphl/lead-distributor/repository"
	"github.com/amirphl/lead-distributor/utils"
	"github.com/google/uuid"
)

// SimulationFlow previews the rotation without touching it. Results are advisory:
// a concurrent assignment may move the cursor before the preview is acted upon.
type SimulationFlow interface {
	Simulate(ctx context.Context, tenantID uuid.UUID, req *dto.SimulateAssignmentRequest) (*dto.SimulationResultDTO, error)
	QueueState(ctx context.Context, tenantID uuid.UUID, req *dto.QueueStateRequest) (*dto.QueueStateDTO, error)
}

type SimulationFlowImpl struct {
	vendorRepo     repository.VendorRotationRepository
	stateRepo      repository.DistributionStateRepository
	targets        targetResolver
	maxSlots       int
	defaultPreview int
}

func NewSimulationFlow(
	vendorRepo repository.VendorRotationRepository,
	stateRepo repository.DistributionStateRepository,
	pipelineRepo repository.PipelineRepository,
	maxSlots, defaultPreview int,
) SimulationFlow {
	if maxSlots < 1 {
		maxSlots = utils.DefaultMaxRotationSlots
	}
	return &SimulationFlowImpl{
		vendorRepo:     vendorRepo,
		stateRepo:      stateRepo,
		targets:        targetResolver{pipelineRepo: pipelineRepo},
		maxSlots:       maxSlots,
		defaultPreview: clampPreview(defaultPreview),
	}
}

// loadSequence reads the eligible vendors and the cursor without locking either
func (f *SimulationFlowImpl) loadSequence(ctx context.Context, tenantID uuid.UUID, pipelineID *uuid.UUID) (*RotationSequence, *models.DistributionState, error) {
	vendors, err := f.vendorRepo.ListEligible(ctx, tenantID, pipelineID)
	if err != nil {
		return nil, nil, NewBusinessError("ROTATION_READ_FAILED", "Failed to read rotation", err)
	}
	state, err := f.stateRepo.ByTenant(ctx, tenantID)
	if err != nil {
		return nil, nil, NewBusinessError("ROTATION_READ_FAILED", "Failed to read distribution state", err)
	}
	return BuildRotationSequence(vendors, f.maxSlots), state, nil
}

// Simulate reports the vendor and target the next assignment would produce
func (f *SimulationFlowImpl) Simulate(ctx context.Context, tenantID uuid.UUID, req *dto.SimulateAssignmentRequest) (*dto.SimulationResultDTO, error) {
	if tenantID == uuid.Nil {
		return nil, NewBusinessError("TENANT_ID_REQUIRED", "Tenant ID is required", ErrTenantIDRequired)
	}
	var rawPipeline *string
	if req != nil {
		rawPipeline = req.PipelineID
	}
	pipelineID, err := parseOptionalUUID(rawPipeline, ErrInvalidPipelineID)
	if err != nil {
		return nil, NewBusinessError("INVALID_PIPELINE_ID", "Pipeline ID must be a valid UUID", err)
	}

	var target *assignmentTarget
	if pipelineID != nil {
		target, err = f.targets.requestedTarget(ctx, tenantID, *pipelineID)
		if err != nil {
			return nil, simulationError(err)
		}
	}

	seq, state, err := f.loadSequence(ctx, tenantID, pipelineID)
	if err != nil {
		return nil, err
	}
	if seq.IsEmpty() {
		return nil, NewBusinessError("NO_ELIGIBLE_VENDOR", "No eligible vendor in rotation", ErrNoEligibleVendor)
	}

	slot := seq.NextForState(state)
	vendor := seq.VendorAt(slot)
	if target == nil {
		target, err = f.targets.vendorTarget(ctx, tenantID, vendor)
		if err != nil {
			return nil, simulationError(err)
		}
	}

	return &dto.SimulationResultDTO{
		VendorID:             vendor.VendorID.String(),
		VendorName:           vendor.FullName,
		PipelineID:           target.PipelineID.String(),
		StageID:              target.StageID.String(),
		PositionInQueue:      seq.Position(vendor.VendorID),
		TotalEligibleVendors: len(seq.Vendors()),
		Slot:                 slot,
		SequenceLength:       seq.Len(),
	}, nil
}

// QueueState describes the tenant's cursor and the vendors that come next
func (f *SimulationFlowImpl) QueueState(ctx context.Context, tenantID uuid.UUID, req *dto.QueueStateRequest) (*dto.QueueStateDTO, error) {
	if tenantID == uuid.Nil {
		return nil, NewBusinessError("TENANT_ID_REQUIRED", "Tenant ID is required", ErrTenantIDRequired)
	}

	preview := f.defaultPreview
	var rawPipeline *string
	if req != nil {
		rawPipeline = req.PipelineID
		if req.Preview != nil {
			preview = clampPreview(*req.Preview)
		}
	}
	pipelineID, err := parseOptionalUUID(rawPipeline, ErrInvalidPipelineID)
	if err != nil {
		return nil, NewBusinessError("INVALID_PIPELINE_ID", "Pipeline ID must be a valid UUID", err)
	}

	seq, state, err := f.loadSequence(ctx, tenantID, pipelineID)
	if err != nil {
		return nil, err
	}

	result := &dto.QueueStateDTO{
		ActiveVendorCount: len(seq.Vendors()),
		SequenceLength:    seq.Len(),
		Upcoming:          []dto.QueueVendorDTO{},
	}
	if state != nil {
		result.LastAssignedVendorID = uuidPtrToString(state.LastVendorID)
		result.AssignmentCount = state.AssignmentCount
		updatedAt := state.UpdatedAt.Format(time.RFC3339)
		result.UpdatedAt = &updatedAt
	}
	if seq.IsEmpty() {
		return result, nil
	}

	next := seq.NextForState(state)
	result.NextVendorID = utils.ToPtr(seq.VendorAt(next).VendorID.String())
	for _, s := range seq.Walk(next, preview) {
		v := seq.VendorAt(s)
		result.Upcoming = append(result.Upcoming, dto.QueueVendorDTO{
			VendorID: v.VendorID.String(),
			FullName: v.FullName,
			Slot:     s,
		})
	}
	return result, nil
}

func simulationError(err error) error {
	switch {
	case IsPipelineNotFound(err):
		return NewBusinessError("PIPELINE_NOT_FOUND", "Pipeline not found", err)
	case IsNoTargetPipeline(err):
		return NewBusinessError("NO_TARGET_PIPELINE", "No pipeline to place the lead in", err)
	case IsConfiguration(err):
		return NewBusinessError("ROTATION_CONFIGURATION_ERROR", "Rotation configuration is invalid", err)
	default:
		return NewBusinessError("ROTATION_READ_FAILED", "Failed to read rotation", err)
	}
}

func clampPreview(n int) int {
	if n < 0 {
		return 0
	}
	if n > utils.MaxQueuePreview {
		return utils.MaxQueuePreview
	}
	return n
}
