package dto

// ListAssignmentLogsRequest filters the assignment audit log
type ListAssignmentLogsRequest struct {
	VendorID   *string `query:"vendor_id" validate:"omitempty,uuid"`
	PipelineID *string `query:"pipeline_id" validate:"omitempty,uuid"`
	LeadID     *string `query:"lead_id" validate:"omitempty,uuid"`
	Origin     *string `query:"origin" validate:"omitempty,max=100"`
	StartDate  *string `query:"start_date" validate:"omitempty"` // RFC3339 or YYYY-MM-DD
	EndDate    *string `query:"end_date" validate:"omitempty"`   // RFC3339 or YYYY-MM-DD, inclusive
	Page       int     `query:"page" validate:"omitempty,min=1"`
	PageSize   int     `query:"page_size" validate:"omitempty,min=1,max=100"`
}

// AssignmentLogDTO is one audit entry
type AssignmentLogDTO struct {
	UUID       string  `json:"uuid"`
	LeadID     string  `json:"lead_id"`
	VendorID   string  `json:"vendor_id"`
	PipelineID string  `json:"pipeline_id"`
	StageID    string  `json:"stage_id"`
	Origin     *string `json:"origin,omitempty"`
	CreatedAt  string  `json:"created_at"`
}

// PaginationInfo describes a result page
type PaginationInfo struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
}

// ListAssignmentLogsResponse is one page of audit entries, newest first
type ListAssignmentLogsResponse struct {
	Items      []AssignmentLogDTO `json:"items"`
	Pagination PaginationInfo     `json:"pagination"`
}
