package dto

// RegisterVendorRequest adds a vendor to a tenant's rotation registry
type RegisterVendorRequest struct {
	VendorID          string   `json:"vendor_id" validate:"required,uuid"`
	FullName          string   `json:"full_name" validate:"required,max=255"`
	Email             string   `json:"email" validate:"omitempty,email,max=255"`
	Participates      *bool    `json:"participates,omitempty"`
	RotationOrder     *int     `json:"rotation_order,omitempty"`
	Weight            *float64 `json:"weight,omitempty" validate:"omitempty,gte=0"`
	RoutingPipelineID *string  `json:"routing_pipeline_id,omitempty" validate:"omitempty,uuid"`
}

// UpdateVendorRotationRequest changes a vendor's rotation settings
// Omitted fields are left unchanged; clear_* flags reset the field to null
type UpdateVendorRotationRequest struct {
	Participates         *bool    `json:"participates,omitempty"`
	RotationOrder        *int     `json:"rotation_order,omitempty"`
	ClearRotationOrder   bool     `json:"clear_rotation_order,omitempty"`
	Weight               *float64 `json:"weight,omitempty" validate:"omitempty,gte=0"`
	RoutingPipelineID    *string  `json:"routing_pipeline_id,omitempty" validate:"omitempty,uuid"`
	ClearRoutingPipeline bool     `json:"clear_routing_pipeline,omitempty"`
	FullName             *string  `json:"full_name,omitempty" validate:"omitempty,min=1,max=255"`
	Email                *string  `json:"email,omitempty" validate:"omitempty,email,max=255"`
}

// ListEligibleVendorsRequest filters the eligible vendor list by pipeline
type ListEligibleVendorsRequest struct {
	PipelineID *string `query:"pipeline_id" validate:"omitempty,uuid"`
}

// VendorRotationDTO represents a vendor's rotation settings for responses
type VendorRotationDTO struct {
	VendorID          string  `json:"vendor_id"`
	FullName          string  `json:"full_name"`
	Email             string  `json:"email,omitempty"`
	Participates      bool    `json:"participates"`
	RotationOrder     *int    `json:"rotation_order,omitempty"`
	Weight            float64 `json:"weight"`
	RoutingPipelineID *string `json:"routing_pipeline_id,omitempty"`
	CreatedAt         string  `json:"created_at"`
	UpdatedAt         string  `json:"updated_at"`
}

// ListVendorRotationsResponse wraps a vendor list in canonical rotation order
type ListVendorRotationsResponse struct {
	Items []VendorRotationDTO `json:"items"`
	Total int                 `json:"total"`
}
