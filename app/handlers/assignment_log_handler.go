package handlers

import (
	"time"

	"github.com/amirphl/lead-distributor/app/dto"
	businessflow "github.com/amirphl/lead-distributor/business_flow"
	"github.com/gofiber/fiber/v3"
)

// AssignmentLogHandlerInterface defines the audit log endpoints
type AssignmentLogHandlerInterface interface {
	List(c fiber.Ctx) error
	ExportExcel(c fiber.Ctx) error
}

type AssignmentLogHandler struct {
	baseHandler
	logFlow businessflow.AssignmentLogFlow
}

func NewAssignmentLogHandler(logFlow businessflow.AssignmentLogFlow) AssignmentLogHandlerInterface {
	return &AssignmentLogHandler{
		baseHandler: newBaseHandler(),
		logFlow:     logFlow,
	}
}

// List returns a page of the assignment audit log
// @Summary List Assignment Logs
// @Tags Assignment Logs
// @Produce json
// @Security BearerAuth
// @Param vendor_id query string false "Vendor filter"
// @Param pipeline_id query string false "Pipeline filter"
// @Param lead_id query string false "Lead filter"
// @Param origin query string false "Origin filter"
// @Param start_date query string false "RFC3339 or YYYY-MM-DD lower bound"
// @Param end_date query string false "RFC3339 or YYYY-MM-DD upper bound, inclusive"
// @Param page query int false "Page (default 1)"
// @Param page_size query int false "Page size (default 20, max 100)"
// @Success 200 {object} dto.APIResponse{data=dto.ListAssignmentLogsResponse}
// @Router /api/v1/assignments/logs [get]
func (h *AssignmentLogHandler) List(c fiber.Ctx) error {
	tenantID, ok, resp := h.tenantID(c)
	if !ok {
		return resp
	}

	var req dto.ListAssignmentLogsRequest
	if err := c.Bind().Query(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid query parameters", "INVALID_REQUEST", err.Error())
	}
	if ok, resp := h.validate(c, &req); !ok {
		return resp
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/assignments/logs")
	defer cancel()

	result, err := h.logFlow.Query(ctx, tenantID, &req)
	if err != nil {
		return h.handleFlowError(c, "List assignment logs", err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Assignment logs retrieved successfully", result)
}

// ExportExcel downloads the filtered audit log as an XLSX file
// @Summary Export Assignment Logs
// @Tags Assignment Logs
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security BearerAuth
// @Success 200 {file} file "XLSX file"
// @Router /api/v1/assignments/logs/export [get]
func (h *AssignmentLogHandler) ExportExcel(c fiber.Ctx) error {
	tenantID, ok, resp := h.tenantID(c)
	if !ok {
		return resp
	}

	var req dto.ListAssignmentLogsRequest
	if err := c.Bind().Query(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid query parameters", "INVALID_REQUEST", err.Error())
	}
	if ok, resp := h.validate(c, &req); !ok {
		return resp
	}

	ctx, cancel := h.createRequestContextWithTimeout(c, "/api/v1/assignments/logs/export", 2*time.Minute)
	defer cancel()

	filename, data, err := h.logFlow.ExportExcel(ctx, tenantID, &req)
	if err != nil {
		return h.handleFlowError(c, "Export assignment logs", err)
	}
	c.Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set("Content-Disposition", "attachment; filename="+filename)
	return c.Send(data)
}
