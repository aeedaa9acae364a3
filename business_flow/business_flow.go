// Package businessflow contains the business logic for the application.
package businessflow

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/amirphl/lead-distributor/app/dto"
	"github.com/amirphl/lead-distributor/models"
	"github.com/amirphl/lead-distributor/utils"
	"github.com/google/uuid"
)

// ClientMetadata holds caller information for logging
type ClientMetadata struct {
	IPAddress string `json:"ip_address"`
	UserAgent string `json:"user_agent"`
	RequestID string `json:"request_id,omitempty"`
	Role      string `json:"role,omitempty"`
}

// NewClientMetadata creates a new ClientMetadata instance with basic information
func NewClientMetadata(ipAddress, userAgent string) *ClientMetadata {
	return &ClientMetadata{
		IPAddress: ipAddress,
		UserAgent: userAgent,
	}
}

// SetRequestID sets the request ID
func (cm *ClientMetadata) SetRequestID(requestID string) {
	cm.RequestID = requestID
}

// SetRole sets the caller's role
func (cm *ClientMetadata) SetRole(role string) {
	cm.Role = role
}

// ToVendorRotationDTO converts a vendor rotation model for responses
func ToVendorRotationDTO(v models.VendorRotation) dto.VendorRotationDTO {
	return dto.VendorRotationDTO{
		VendorID:          v.VendorID.String(),
		FullName:          v.FullName,
		Email:             v.Email,
		Participates:      v.Participates,
		RotationOrder:     v.RotationOrder,
		Weight:            v.Weight,
		RoutingPipelineID: uuidPtrToString(v.RoutingPipelineID),
		CreatedAt:         v.CreatedAt.Format(time.RFC3339),
		UpdatedAt:         v.UpdatedAt.Format(time.RFC3339),
	}
}

// ToAssignmentLogDTO converts an audit entry for responses
func ToAssignmentLogDTO(entry models.LeadAssignmentLog) dto.AssignmentLogDTO {
	return dto.AssignmentLogDTO{
		UUID:       entry.UUID.String(),
		LeadID:     entry.LeadID.String(),
		VendorID:   entry.VendorID.String(),
		PipelineID: entry.PipelineID.String(),
		StageID:    entry.StageID.String(),
		Origin:     entry.Origin,
		CreatedAt:  entry.CreatedAt.Format(time.RFC3339),
	}
}

func uuidPtrToString(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}

// parseOptionalUUID parses a nullable id; blank strings count as absent
func parseOptionalUUID(raw *string, invalid error) (*uuid.UUID, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	id, err := uuid.Parse(strings.TrimSpace(*raw))
	if err != nil {
		return nil, invalid
	}
	return &id, nil
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}

func ctxError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// requestIDFrom prefers the caller metadata and falls back to the request context
func requestIDFrom(ctx context.Context, metadata *ClientMetadata) string {
	if metadata != nil && metadata.RequestID != "" {
		return metadata.RequestID
	}
	if id, ok := ctx.Value(utils.RequestIDKey).(string); ok {
		return id
	}
	return ""
}
