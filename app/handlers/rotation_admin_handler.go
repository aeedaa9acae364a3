package handlers

import (
	"github.com/amirphl/lead-distributor/app/dto"
	businessflow "github.com/amirphl/lead-distributor/business_flow"
	"github.com/gofiber/fiber/v3"
)

// RotationHandlerInterface defines the rotation registry endpoints
type RotationHandlerInterface interface {
	RegisterVendor(c fiber.Ctx) error
	UpdateVendor(c fiber.Ctx) error
	ListVendors(c fiber.Ctx) error
	ListEligible(c fiber.Ctx) error
}

type RotationHandler struct {
	baseHandler
	rotationFlow businessflow.RotationFlow
}

func NewRotationHandler(rotationFlow businessflow.RotationFlow) RotationHandlerInterface {
	return &RotationHandler{
		baseHandler:  newBaseHandler(),
		rotationFlow: rotationFlow,
	}
}

// RegisterVendor adds a vendor to the rotation
// @Summary Register Vendor
// @Tags Rotation
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.RegisterVendorRequest true "Vendor settings"
// @Success 201 {object} dto.APIResponse{data=dto.VendorRotationDTO}
// @Failure 400 {object} dto.APIResponse
// @Failure 409 {object} dto.APIResponse
// @Router /api/v1/rotation/vendors [post]
func (h *RotationHandler) RegisterVendor(c fiber.Ctx) error {
	tenantID, ok, resp := h.tenantID(c)
	if !ok {
		return resp
	}

	var req dto.RegisterVendorRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if ok, resp := h.validate(c, &req); !ok {
		return resp
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/rotation/vendors")
	defer cancel()

	result, err := h.rotationFlow.RegisterVendor(ctx, tenantID, &req)
	if err != nil {
		return h.handleFlowError(c, "Register vendor", err)
	}
	return h.SuccessResponse(c, fiber.StatusCreated, "Vendor registered successfully", result)
}

// UpdateVendor changes a vendor's rotation settings; omitted fields are kept
// @Summary Update Vendor Rotation
// @Tags Rotation
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param vendor_id path string true "Vendor ID"
// @Param request body dto.UpdateVendorRotationRequest true "Changed settings"
// @Success 200 {object} dto.APIResponse{data=dto.VendorRotationDTO}
// @Failure 400 {object} dto.APIResponse
// @Failure 404 {object} dto.APIResponse
// @Router /api/v1/rotation/vendors/{vendor_id} [patch]
func (h *RotationHandler) UpdateVendor(c fiber.Ctx) error {
	tenantID, ok, resp := h.tenantID(c)
	if !ok {
		return resp
	}

	var req dto.UpdateVendorRotationRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if ok, resp := h.validate(c, &req); !ok {
		return resp
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/rotation/vendors/:vendor_id")
	defer cancel()

	result, err := h.rotationFlow.SetVendorRotation(ctx, tenantID, c.Params("vendor_id"), &req)
	if err != nil {
		return h.handleFlowError(c, "Update vendor rotation", err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Vendor rotation updated successfully", result)
}

// ListVendors returns every registered vendor in rotation order
// @Summary List Vendors
// @Tags Rotation
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=dto.ListVendorRotationsResponse}
// @Router /api/v1/rotation/vendors [get]
func (h *RotationHandler) ListVendors(c fiber.Ctx) error {
	tenantID, ok, resp := h.tenantID(c)
	if !ok {
		return resp
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/rotation/vendors")
	defer cancel()

	result, err := h.rotationFlow.ListVendors(ctx, tenantID)
	if err != nil {
		return h.handleFlowError(c, "List vendors", err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Vendors retrieved successfully", result)
}

// ListEligible returns the vendors currently taking leads
// @Summary List Eligible Vendors
// @Tags Rotation
// @Produce json
// @Security BearerAuth
// @Param pipeline_id query string false "Pipeline filter"
// @Success 200 {object} dto.APIResponse{data=dto.ListVendorRotationsResponse}
// @Router /api/v1/rotation/eligible [get]
func (h *RotationHandler) ListEligible(c fiber.Ctx) error {
	tenantID, ok, resp := h.tenantID(c)
	if !ok {
		return resp
	}

	var req dto.ListEligibleVendorsRequest
	if err := c.Bind().Query(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid query parameters", "INVALID_REQUEST", err.Error())
	}
	if ok, resp := h.validate(c, &req); !ok {
		return resp
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/rotation/eligible")
	defer cancel()

	result, err := h.rotationFlow.ListEligible(ctx, tenantID, &req)
	if err != nil {
		return h.handleFlowError(c, "List eligible vendors", err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Eligible vendors retrieved successfully", result)
}
