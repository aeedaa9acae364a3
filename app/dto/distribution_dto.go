// Package dto contains Data Transfer Objects for API request and response structures
package dto

// AssignLeadRequest asks the engine to pick the next vendor for a lead
// PipelineID is optional; when present only vendors routed to it (or unrouted) are eligible
type AssignLeadRequest struct {
	LeadID     string  `json:"lead_id" validate:"required,uuid"`
	PipelineID *string `json:"pipeline_id,omitempty" validate:"omitempty,uuid"`
	Origin     *string `json:"origin,omitempty" validate:"omitempty,max=100"`
}

// AssignLeadResponse is the outcome of a successful assignment
type AssignLeadResponse struct {
	LeadID     string `json:"lead_id"`
	VendorID   string `json:"vendor_id"`
	PipelineID string `json:"pipeline_id"`
	StageID    string `json:"stage_id"`
	Slot       int    `json:"slot"`
}

// SimulateAssignmentRequest previews the next assignment without changing state
type SimulateAssignmentRequest struct {
	PipelineID *string `json:"pipeline_id,omitempty" validate:"omitempty,uuid"`
}

// SimulationResultDTO is the advisory preview of the next assignment
type SimulationResultDTO struct {
	VendorID             string `json:"vendor_id"`
	VendorName           string `json:"vendor_name"`
	PipelineID           string `json:"pipeline_id"`
	StageID              string `json:"stage_id"`
	PositionInQueue      int    `json:"position_in_queue"`
	TotalEligibleVendors int    `json:"total_eligible_vendors"`
	Slot                 int    `json:"slot"`
	SequenceLength       int    `json:"sequence_length"`
}

// QueueStateRequest selects the queue to inspect
type QueueStateRequest struct {
	PipelineID *string `query:"pipeline_id" validate:"omitempty,uuid"`
	Preview    *int    `query:"preview" validate:"omitempty,min=0,max=50"`
}

// QueueVendorDTO is one vendor in a queue preview
type QueueVendorDTO struct {
	VendorID string `json:"vendor_id"`
	FullName string `json:"full_name"`
	Slot     int    `json:"slot"`
}

// QueueStateDTO describes where a tenant's rotation stands
type QueueStateDTO struct {
	LastAssignedVendorID *string          `json:"last_assigned_vendor_id,omitempty"`
	NextVendorID         *string          `json:"next_vendor_id,omitempty"`
	UpdatedAt            *string          `json:"updated_at,omitempty"`
	AssignmentCount      int64            `json:"assignment_count"`
	ActiveVendorCount    int              `json:"active_vendor_count"`
	SequenceLength       int              `json:"sequence_length"`
	Upcoming             []QueueVendorDTO `json:"upcoming"`
}
