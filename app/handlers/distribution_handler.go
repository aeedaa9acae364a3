package handlers

import (
	"github.com/amirphl/lead-distributor/app/dto"
	businessflow "github.com/amirphl/lead-distributor/business_flow"
	"github.com/gofiber/fiber/v3"
)

// DistributionHandlerInterface defines the lead assignment endpoints
type DistributionHandlerInterface interface {
	Assign(c fiber.Ctx) error
	Simulate(c fiber.Ctx) error
	QueueState(c fiber.Ctx) error
}

// DistributionHandler serves assignment and its read-only previews
type DistributionHandler struct {
	baseHandler
	distributionFlow businessflow.DistributionFlow
	simulationFlow   businessflow.SimulationFlow
}

func NewDistributionHandler(distributionFlow businessflow.DistributionFlow, simulationFlow businessflow.SimulationFlow) DistributionHandlerInterface {
	return &DistributionHandler{
		baseHandler:      newBaseHandler(),
		distributionFlow: distributionFlow,
		simulationFlow:   simulationFlow,
	}
}

// Assign picks the next vendor for a lead
// @Summary Assign Lead
// @Tags Distribution
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.AssignLeadRequest true "Lead to assign"
// @Success 200 {object} dto.APIResponse{data=dto.AssignLeadResponse}
// @Failure 400 {object} dto.APIResponse
// @Failure 404 {object} dto.APIResponse
// @Failure 503 {object} dto.APIResponse
// @Router /api/v1/distribution/assign [post]
func (h *DistributionHandler) Assign(c fiber.Ctx) error {
	tenantID, ok, resp := h.tenantID(c)
	if !ok {
		return resp
	}

	var req dto.AssignLeadRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if ok, resp := h.validate(c, &req); !ok {
		return resp
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/distribution/assign")
	defer cancel()

	result, err := h.distributionFlow.Assign(ctx, tenantID, &req, h.clientMetadata(c))
	if err != nil {
		return h.handleFlowError(c, "Assign lead", err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Lead assigned successfully", result)
}

// Simulate previews the next assignment without changing the rotation
// @Summary Simulate Assignment
// @Tags Distribution
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.SimulateAssignmentRequest false "Optional pipeline"
// @Success 200 {object} dto.APIResponse{data=dto.SimulationResultDTO}
// @Failure 404 {object} dto.APIResponse
// @Router /api/v1/distribution/simulate [post]
func (h *DistributionHandler) Simulate(c fiber.Ctx) error {
	tenantID, ok, resp := h.tenantID(c)
	if !ok {
		return resp
	}

	var req dto.SimulateAssignmentRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
		}
	}
	if ok, resp := h.validate(c, &req); !ok {
		return resp
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/distribution/simulate")
	defer cancel()

	result, err := h.simulationFlow.Simulate(ctx, tenantID, &req)
	if err != nil {
		return h.handleFlowError(c, "Simulate assignment", err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Assignment simulated successfully", result)
}

// QueueState describes the rotation cursor and the upcoming vendors
// @Summary Queue State
// @Tags Distribution
// @Produce json
// @Security BearerAuth
// @Param pipeline_id query string false "Pipeline filter"
// @Param preview query int false "Number of upcoming vendors (0-50)"
// @Success 200 {object} dto.APIResponse{data=dto.QueueStateDTO}
// @Router /api/v1/distribution/queue [get]
func (h *DistributionHandler) QueueState(c fiber.Ctx) error {
	tenantID, ok, resp := h.tenantID(c)
	if !ok {
		return resp
	}

	var req dto.QueueStateRequest
	if err := c.Bind().Query(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid query parameters", "INVALID_REQUEST", err.Error())
	}
	if ok, resp := h.validate(c, &req); !ok {
		return resp
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/distribution/queue")
	defer cancel()

	result, err := h.simulationFlow.QueueState(ctx, tenantID, &req)
	if err != nil {
		return h.handleFlowError(c, "Queue state", err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Queue state retrieved successfully", result)
}
