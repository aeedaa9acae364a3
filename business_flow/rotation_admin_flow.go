package businessflow

import (
	"context"
	"math"
	"strings"

	"github.com/amirphl/lead-distributor/app/dto"
	"github.com/amirphl/lead-distributor/models"
	"github.com/amirphl/lead-distributor/repository"
	"github.com/amirphl/lead-distributor/utils"
	"github.com/google/uuid"
)

// RotationFlow manages a tenant's rotation registry
type RotationFlow interface {
	RegisterVendor(ctx context.Context, tenantID uuid.UUID, req *dto.RegisterVendorRequest) (*dto.VendorRotationDTO, error)
	SetVendorRotation(ctx context.Context, tenantID uuid.UUID, vendorID string, req *dto.UpdateVendorRotationRequest) (*dto.VendorRotationDTO, error)
	ListEligible(ctx context.Context, tenantID uuid.UUID, req *dto.ListEligibleVendorsRequest) (*dto.ListVendorRotationsResponse, error)
	ListVendors(ctx context.Context, tenantID uuid.UUID) (*dto.ListVendorRotationsResponse, error)
}

type RotationFlowImpl struct {
	vendorRepo   repository.VendorRotationRepository
	pipelineRepo repository.PipelineRepository
}

func NewRotationFlow(vendorRepo repository.VendorRotationRepository, pipelineRepo repository.PipelineRepository) RotationFlow {
	return &RotationFlowImpl{
		vendorRepo:   vendorRepo,
		pipelineRepo: pipelineRepo,
	}
}

// Weight bounds of the numeric(10,4) column
const (
	maxVendorWeight         = 999999.9999
	minPositiveVendorWeight = 0.0001
)

func validateWeight(w float64) error {
	if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
		return NewBusinessError("INVALID_WEIGHT", "Weight must be a finite number greater than or equal to zero", ErrInvalidWeight)
	}
	if w > maxVendorWeight {
		return NewBusinessError("INVALID_WEIGHT", "Weight must not exceed 999999.9999", ErrInvalidWeight)
	}
	if w > 0 && w < minPositiveVendorWeight {
		return NewBusinessError("INVALID_WEIGHT", "A positive weight must be at least 0.0001", ErrInvalidWeight)
	}
	return nil
}

// validateRoutingPipeline ensures a routing pipeline belongs to the tenant
func (f *RotationFlowImpl) validateRoutingPipeline(ctx context.Context, tenantID uuid.UUID, pipelineID *uuid.UUID) error {
	if pipelineID == nil {
		return nil
	}
	pipeline, err := f.pipelineRepo.ByTenantAndID(ctx, tenantID, *pipelineID)
	if err != nil {
		return NewBusinessError("PIPELINE_LOOKUP_FAILED", "Failed to look up pipeline", err)
	}
	if pipeline == nil {
		return NewBusinessError("PIPELINE_NOT_FOUND", "Routing pipeline not found", ErrPipelineNotFound)
	}
	return nil
}

func (f *RotationFlowImpl) RegisterVendor(ctx context.Context, tenantID uuid.UUID, req *dto.RegisterVendorRequest) (*dto.VendorRotationDTO, error) {
	if tenantID == uuid.Nil {
		return nil, NewBusinessError("TENANT_ID_REQUIRED", "Tenant ID is required", ErrTenantIDRequired)
	}
	if req == nil {
		return nil, NewBusinessError("ROTATION_VALIDATION_FAILED", "Register vendor validation failed", ErrInvalidRotationRequest)
	}
	vendorID, err := uuid.Parse(strings.TrimSpace(req.VendorID))
	if err != nil {
		return nil, NewBusinessError("INVALID_VENDOR_ID", "Vendor ID must be a valid UUID", ErrInvalidVendorID)
	}
	fullName := strings.TrimSpace(req.FullName)
	if fullName == "" {
		return nil, NewBusinessError("ROTATION_VALIDATION_FAILED", "Full name is required", ErrInvalidRotationRequest)
	}

	weight := 1.0
	if req.Weight != nil {
		weight = *req.Weight
	}
	if err := validateWeight(weight); err != nil {
		return nil, err
	}

	routingPipelineID, err := parseOptionalUUID(req.RoutingPipelineID, ErrInvalidPipelineID)
	if err != nil {
		return nil, NewBusinessError("INVALID_PIPELINE_ID", "Pipeline ID must be a valid UUID", err)
	}
	if err := f.validateRoutingPipeline(ctx, tenantID, routingPipelineID); err != nil {
		return nil, err
	}

	existing, err := f.vendorRepo.ByVendor(ctx, tenantID, vendorID)
	if err != nil {
		return nil, NewBusinessError("ROTATION_LOOKUP_FAILED", "Failed to look up vendor rotation", err)
	}
	if existing != nil {
		return nil, NewBusinessError("VENDOR_ROTATION_EXISTS", "Vendor is already registered", ErrVendorRotationAlreadyExists)
	}

	participates := true
	if req.Participates != nil {
		participates = *req.Participates
	}

	now := utils.UTCNow()
	vendor := models.VendorRotation{
		TenantID:          tenantID,
		VendorID:          vendorID,
		FullName:          fullName,
		Email:             strings.TrimSpace(req.Email),
		Participates:      participates,
		RotationOrder:     req.RotationOrder,
		Weight:            weight,
		RoutingPipelineID: routingPipelineID,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := f.vendorRepo.Save(ctx, &vendor); err != nil {
		return nil, NewBusinessError("ROTATION_SAVE_FAILED", "Failed to register vendor", err)
	}

	resp := ToVendorRotationDTO(vendor)
	return &resp, nil
}

// SetVendorRotation applies a partial update to a vendor's rotation settings.
// Changes take effect on the next assignment; the cursor is never touched.
func (f *RotationFlowImpl) SetVendorRotation(ctx context.Context, tenantID uuid.UUID, vendorID string, req *dto.UpdateVendorRotationRequest) (*dto.VendorRotationDTO, error) {
	if tenantID == uuid.Nil {
		return nil, NewBusinessError("TENANT_ID_REQUIRED", "Tenant ID is required", ErrTenantIDRequired)
	}
	vid, err := uuid.Parse(strings.TrimSpace(vendorID))
	if err != nil {
		return nil, NewBusinessError("INVALID_VENDOR_ID", "Vendor ID must be a valid UUID", ErrInvalidVendorID)
	}
	if req == nil {
		return nil, NewBusinessError("ROTATION_UPDATE_REQUIRED", "At least one field must be provided", ErrRotationUpdateRequired)
	}

	if req.ClearRotationOrder && req.RotationOrder != nil {
		return nil, NewBusinessError("ROTATION_VALIDATION_FAILED", "rotation_order and clear_rotation_order are mutually exclusive", ErrInvalidRotationRequest)
	}
	if req.ClearRoutingPipeline && req.RoutingPipelineID != nil {
		return nil, NewBusinessError("ROTATION_VALIDATION_FAILED", "routing_pipeline_id and clear_routing_pipeline are mutually exclusive", ErrInvalidRotationRequest)
	}
	if req.Weight != nil {
		if err := validateWeight(*req.Weight); err != nil {
			return nil, err
		}
	}

	routingPipelineID, err := parseOptionalUUID(req.RoutingPipelineID, ErrInvalidPipelineID)
	if err != nil {
		return nil, NewBusinessError("INVALID_PIPELINE_ID", "Pipeline ID must be a valid UUID", err)
	}
	if err := f.validateRoutingPipeline(ctx, tenantID, routingPipelineID); err != nil {
		return nil, err
	}

	patch := models.VendorRotationPatch{
		Participates:         req.Participates,
		RotationOrder:        req.RotationOrder,
		ClearRotationOrder:   req.ClearRotationOrder,
		Weight:               req.Weight,
		RoutingPipelineID:    routingPipelineID,
		ClearRoutingPipeline: req.ClearRoutingPipeline,
		Email:                req.Email,
	}
	if req.FullName != nil {
		name := strings.TrimSpace(*req.FullName)
		if name == "" {
			return nil, NewBusinessError("ROTATION_VALIDATION_FAILED", "Full name cannot be empty", ErrInvalidRotationRequest)
		}
		patch.FullName = &name
	}
	if patch.IsEmpty() {
		return nil, NewBusinessError("ROTATION_UPDATE_REQUIRED", "At least one field must be provided", ErrRotationUpdateRequired)
	}

	updated, err := f.vendorRepo.Update(ctx, tenantID, vid, patch)
	if err != nil {
		return nil, NewBusinessError("ROTATION_UPDATE_FAILED", "Failed to update vendor rotation", err)
	}
	if updated == nil {
		return nil, NewBusinessError("VENDOR_ROTATION_NOT_FOUND", "Vendor rotation not found", ErrVendorRotationNotFound)
	}

	resp := ToVendorRotationDTO(*updated)
	return &resp, nil
}

// ListEligible returns the vendors currently in rotation, in rotation order
func (f *RotationFlowImpl) ListEligible(ctx context.Context, tenantID uuid.UUID, req *dto.ListEligibleVendorsRequest) (*dto.ListVendorRotationsResponse, error) {
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

	vendors, err := f.vendorRepo.ListEligible(ctx, tenantID, pipelineID)
	if err != nil {
		return nil, NewBusinessError("ROTATION_LIST_FAILED", "Failed to list eligible vendors", err)
	}

	eligible := make([]*models.VendorRotation, 0, len(vendors))
	for _, v := range vendors {
		if v.IsEligibleFor(pipelineID) && isUsableWeight(v.Weight) {
			eligible = append(eligible, v)
		}
	}
	models.SortVendorRotations(eligible)
	return toVendorRotationList(eligible), nil
}

// ListVendors returns every registered vendor, participating or not
func (f *RotationFlowImpl) ListVendors(ctx context.Context, tenantID uuid.UUID) (*dto.ListVendorRotationsResponse, error) {
	if tenantID == uuid.Nil {
		return nil, NewBusinessError("TENANT_ID_REQUIRED", "Tenant ID is required", ErrTenantIDRequired)
	}
	vendors, err := f.vendorRepo.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, NewBusinessError("ROTATION_LIST_FAILED", "Failed to list vendors", err)
	}
	models.SortVendorRotations(vendors)
	return toVendorRotationList(vendors), nil
}

func toVendorRotationList(vendors []*models.VendorRotation) *dto.ListVendorRotationsResponse {
	items := make([]dto.VendorRotationDTO, 0, len(vendors))
	for _, v := range vendors {
		items = append(items, ToVendorRotationDTO(*v))
	}
	return &dto.ListVendorRotationsResponse{Items: items, Total: len(items)}
}
