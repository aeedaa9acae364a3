// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/amirphl/lead-distributor/app/dto"
	"github.com/amirphl/lead-distributor/app/middleware"
	businessflow "github.com/amirphl/lead-distributor/business_flow"
	"github.com/amirphl/lead-distributor/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
)

const defaultRequestTimeout = 30 * time.Second

// baseHandler carries what every handler needs: validation and the response envelope
type baseHandler struct {
	validator *validator.Validate
}

func newBaseHandler() baseHandler {
	return baseHandler{validator: validator.New()}
}

func (h baseHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, code string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    code,
			Details: details,
		},
	})
}

func (h baseHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// validate runs struct validation and writes the 400 response on failure
func (h baseHandler) validate(c fiber.Ctx, req any) (bool, error) {
	if err := h.validator.Struct(req); err != nil {
		var validationErrors validator.ValidationErrors
		details := map[string]string{}
		if errors.As(err, &validationErrors) {
			for _, fe := range validationErrors {
				details[fe.Field()] = getValidationErrorMessage(fe)
			}
		}
		return false, h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", details)
	}
	return true, nil
}

// tenantID reads the authenticated tenant or writes the 401 response
func (h baseHandler) tenantID(c fiber.Ctx) (uuid.UUID, bool, error) {
	tenantID, ok := middleware.GetTenantIDFromContext(c)
	if !ok {
		return uuid.Nil, false, h.ErrorResponse(c, fiber.StatusUnauthorized, "Authentication required", "AUTHENTICATION_REQUIRED", nil)
	}
	return tenantID, true, nil
}

// createRequestContext builds the flow context for one request; the caller must call cancel
func (h baseHandler) createRequestContext(c fiber.Ctx, endpoint string) (context.Context, context.CancelFunc) {
	return h.createRequestContextWithTimeout(c, endpoint, defaultRequestTimeout)
}

func (h baseHandler) createRequestContextWithTimeout(c fiber.Ctx, endpoint string, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	ctx = context.WithValue(ctx, utils.RequestIDKey, requestID(c))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	if tenantID, ok := middleware.GetTenantIDFromContext(c); ok {
		ctx = context.WithValue(ctx, utils.TenantIDKey, tenantID.String())
	}
	return ctx, cancel
}

func (h baseHandler) clientMetadata(c fiber.Ctx) *businessflow.ClientMetadata {
	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))
	metadata.SetRequestID(requestID(c))
	metadata.SetRole(middleware.GetRoleFromContext(c))
	return metadata
}

func requestID(c fiber.Ctx) string {
	if id := c.Get("X-Request-ID"); id != "" {
		return id
	}
	if id, ok := c.Locals("requestid").(string); ok {
		return id
	}
	return ""
}

// businessErrorStatus maps flow error codes to HTTP statuses
func businessErrorStatus(code string) int {
	switch code {
	case "TENANT_ID_REQUIRED":
		return fiber.StatusUnauthorized
	case "INVALID_LEAD_ID", "INVALID_VENDOR_ID", "INVALID_PIPELINE_ID",
		"INVALID_WEIGHT", "ROTATION_VALIDATION_FAILED", "ROTATION_UPDATE_REQUIRED",
		"INVALID_PAGE", "INVALID_PAGE_SIZE", "INVALID_DATE", "INVALID_DATE_RANGE":
		return fiber.StatusBadRequest
	case "PIPELINE_NOT_FOUND", "VENDOR_ROTATION_NOT_FOUND", "NO_ELIGIBLE_VENDOR":
		return fiber.StatusNotFound
	case "VENDOR_ROTATION_EXISTS":
		return fiber.StatusConflict
	case "NO_TARGET_PIPELINE", "ROTATION_CONFIGURATION_ERROR":
		return fiber.StatusUnprocessableEntity
	case "LOCK_TIMEOUT":
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

// handleFlowError writes the response for an error returned by a business flow
func (h baseHandler) handleFlowError(c fiber.Ctx, operation string, err error) error {
	var bizErr *businessflow.BusinessError
	if errors.As(err, &bizErr) {
		status := businessErrorStatus(bizErr.Code)
		if status >= fiber.StatusInternalServerError {
			log.Printf("%s failed: %v", operation, err)
		}
		return h.ErrorResponse(c, status, bizErr.Message, bizErr.Code, nil)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		log.Printf("%s timed out: %v", operation, err)
		return h.ErrorResponse(c, fiber.StatusGatewayTimeout, "Request timed out", "REQUEST_TIMEOUT", nil)
	}
	if errors.Is(err, context.Canceled) {
		return h.ErrorResponse(c, fiber.StatusRequestTimeout, "Request canceled", "REQUEST_CANCELED", nil)
	}
	log.Printf("%s failed: %v", operation, err)
	return h.ErrorResponse(c, fiber.StatusInternalServerError, "Internal server error", "INTERNAL_ERROR", nil)
}

func getValidationErrorMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return err.Field() + " is required"
	case "email":
		return "Invalid email format"
	case "uuid":
		return err.Field() + " must be a valid UUID"
	case "min":
		return err.Field() + " must be at least " + err.Param()
	case "max":
		return err.Field() + " must be at most " + err.Param()
	case "oneof":
		return err.Field() + " must be one of: " + err.Param()
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", err.Field(), err.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", err.Field(), err.Param())
	default:
		return err.Field() + " is invalid"
	}
}
