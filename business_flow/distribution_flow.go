package businessflow

import (
	"context"
	"log"
	"time"

	"github.com/amirphl/lead-distributor/app/dto"
	"github.com/amirphl/lead-distributor/models"
	"github.com/amirphl/lead-distributor/repository"
	"github.com/amirphl/lead-distributor/utils"
	"github.com/google/uuid"
)

// DistributionFlow assigns incoming leads to vendors in weighted round-robin order
type DistributionFlow interface {
	Assign(ctx context.Context, tenantID uuid.UUID, req *dto.AssignLeadRequest, metadata *ClientMetadata) (*dto.AssignLeadResponse, error)
}

type DistributionFlowImpl struct {
	vendorRepo repository.VendorRotationRepository
	stateRepo  repository.DistributionStateRepository
	targets    targetResolver
	locker     TenantLocker
	recorder   AssignmentRecorder
	maxSlots   int
	logger     *log.Logger
}

func NewDistributionFlow(
	vendorRepo repository.VendorRotationRepository,
	stateRepo repository.DistributionStateRepository,
	pipelineRepo repository.PipelineRepository,
	locker TenantLocker,
	recorder AssignmentRecorder,
	maxSlots int,
	logger *log.Logger,
) DistributionFlow {
	if maxSlots < 1 {
		maxSlots = utils.DefaultMaxRotationSlots
	}
	if logger == nil {
		logger = log.Default()
	}
	return &DistributionFlowImpl{
		vendorRepo: vendorRepo,
		stateRepo:  stateRepo,
		targets:    targetResolver{pipelineRepo: pipelineRepo},
		locker:     locker,
		recorder:   recorder,
		maxSlots:   maxSlots,
		logger:     logger,
	}
}

// Assign picks the next vendor for a lead and advances the tenant's cursor.
//
// The eligible list, the cursor read and the cursor write happen while the tenant is
// locked, so concurrent calls for one tenant observe each other's writes. Nothing is
// selected unless the new cursor commits. The audit entry is recorded after commit.
func (f *DistributionFlowImpl) Assign(ctx context.Context, tenantID uuid.UUID, req *dto.AssignLeadRequest, metadata *ClientMetadata) (resp *dto.AssignLeadResponse, err error) {
	start := time.Now()
	defer func() {
		leadAssignmentsTotal.WithLabelValues(assignmentResult(err)).Inc()
		leadAssignmentDuration.Observe(time.Since(start).Seconds())
	}()

	if tenantID == uuid.Nil {
		return nil, NewBusinessError("TENANT_ID_REQUIRED", "Tenant ID is required", ErrTenantIDRequired)
	}
	if req == nil {
		return nil, NewBusinessError("INVALID_LEAD_ID", "Lead ID is required", ErrInvalidLeadID)
	}
	leadID, err := uuid.Parse(req.LeadID)
	if err != nil {
		return nil, NewBusinessError("INVALID_LEAD_ID", "Lead ID must be a valid UUID", ErrInvalidLeadID)
	}
	pipelineID, err := parseOptionalUUID(req.PipelineID, ErrInvalidPipelineID)
	if err != nil {
		return nil, NewBusinessError("INVALID_PIPELINE_ID", "Pipeline ID must be a valid UUID", err)
	}

	var requested *assignmentTarget
	if pipelineID != nil {
		requested, err = f.targets.requestedTarget(ctx, tenantID, *pipelineID)
		if err != nil {
			return nil, f.wrapError(err, tenantID)
		}
	}

	var entry models.LeadAssignmentLog
	var slot int

	err = f.locker.WithTenantLock(ctx, tenantID, func(lockCtx context.Context) error {
		return f.stateRepo.WithCursorLock(lockCtx, tenantID, func(txCtx context.Context, state *models.DistributionState) error {
			vendors, err := f.vendorRepo.ListEligible(txCtx, tenantID, pipelineID)
			if err != nil {
				return persistenceError(err)
			}

			seq := BuildRotationSequence(vendors, f.maxSlots)
			if seq.IsEmpty() {
				return ErrNoEligibleVendor
			}

			slot = seq.NextForState(state)
			vendor := seq.VendorAt(slot)

			target := requested
			if target == nil {
				target, err = f.targets.vendorTarget(txCtx, tenantID, vendor)
				if err != nil {
					return err
				}
			}

			state.LastVendorID = utils.ToPtr(vendor.VendorID)
			state.LastSlot = utils.ToPtr(slot)
			state.AssignmentCount++
			if err := f.stateRepo.SaveCursor(txCtx, state); err != nil {
				return persistenceError(err)
			}

			entry = models.LeadAssignmentLog{
				UUID:       uuid.New(),
				TenantID:   tenantID,
				LeadID:     leadID,
				VendorID:   vendor.VendorID,
				PipelineID: target.PipelineID,
				StageID:    target.StageID,
				Origin:     trimmedOrNil(req.Origin),
				CreatedAt:  utils.UTCNow(),
			}
			return nil
		})
	})
	if err != nil {
		return nil, f.wrapError(err, tenantID)
	}

	if f.recorder != nil {
		f.recorder.Record(entry, requestIDFrom(ctx, metadata))
	}

	return &dto.AssignLeadResponse{
		LeadID:     entry.LeadID.String(),
		VendorID:   entry.VendorID.String(),
		PipelineID: entry.PipelineID.String(),
		StageID:    entry.StageID.String(),
		Slot:       slot,
	}, nil
}

// wrapError maps an assignment failure to a BusinessError
func (f *DistributionFlowImpl) wrapError(err error, tenantID uuid.UUID) error {
	switch {
	case IsNoEligibleVendor(err):
		return NewBusinessError("NO_ELIGIBLE_VENDOR", "No eligible vendor in rotation", err)
	case IsLockTimeout(err):
		return NewBusinessError("LOCK_TIMEOUT", "Timed out waiting for the tenant's rotation", err)
	case IsPipelineNotFound(err):
		return NewBusinessError("PIPELINE_NOT_FOUND", "Pipeline not found", err)
	case IsNoTargetPipeline(err):
		return NewBusinessError("NO_TARGET_PIPELINE", "No pipeline to place the lead in", err)
	case IsConfiguration(err):
		return NewBusinessError("ROTATION_CONFIGURATION_ERROR", "Rotation configuration is invalid", err)
	case IsPersistence(err):
		f.logger.Printf("Distribution persistence failure for tenant %s: %v", tenantID, err)
		return NewBusinessError("DISTRIBUTION_PERSISTENCE_FAILED", "Failed to persist distribution state", err)
	case ctxError(err):
		return err
	default:
		f.logger.Printf("Distribution failure for tenant %s: %v", tenantID, err)
		return NewBusinessError("DISTRIBUTION_PERSISTENCE_FAILED", "Failed to persist distribution state", persistenceError(err))
	}
}

func assignmentResult(err error) string {
	switch {
	case err == nil:
		return assignmentResultAssigned
	case IsNoEligibleVendor(err):
		return assignmentResultNoVendor
	case IsLockTimeout(err):
		return assignmentResultLockTimeout
	case IsConfiguration(err):
		return assignmentResultConfiguration
	case IsInvalidIdentifier(err), IsTenantIDRequired(err):
		return assignmentResultInvalid
	case ctxError(err):
		return assignmentResultCanceled
	default:
		return assignmentResultPersistence
	}
}
