package businessflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/amirphl/lead-distributor/app/dto"
	"github.com/amirphl/lead-distributor/models"
	"github.com/amirphl/lead-distributor/repository"
	"github.com/amirphl/lead-distributor/utils"
	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
)

const (
	defaultAssignmentLogPageSize = 20
	maxAssignmentLogPageSize     = 100
	maxAssignmentLogExportRows   = 50000
)

// AssignmentLogFlow reads the assignment audit log
type AssignmentLogFlow interface {
	Query(ctx context.Context, tenantID uuid.UUID, req *dto.ListAssignmentLogsRequest) (*dto.ListAssignmentLogsResponse, error)
	ExportExcel(ctx context.Context, tenantID uuid.UUID, req *dto.ListAssignmentLogsRequest) (string, []byte, error)
}

type AssignmentLogFlowImpl struct {
	logRepo repository.LeadAssignmentLogRepository
}

func NewAssignmentLogFlow(logRepo repository.LeadAssignmentLogRepository) AssignmentLogFlow {
	return &AssignmentLogFlowImpl{logRepo: logRepo}
}

// buildFilter validates the request and converts it into a repository filter
func buildAssignmentLogFilter(tenantID uuid.UUID, req *dto.ListAssignmentLogsRequest) (models.LeadAssignmentLogFilter, error) {
	filter := models.LeadAssignmentLogFilter{TenantID: &tenantID}
	if req == nil {
		return filter, nil
	}

	var err error
	if filter.VendorID, err = parseOptionalUUID(req.VendorID, ErrInvalidVendorID); err != nil {
		return filter, NewBusinessError("INVALID_VENDOR_ID", "Vendor ID must be a valid UUID", err)
	}
	if filter.PipelineID, err = parseOptionalUUID(req.PipelineID, ErrInvalidPipelineID); err != nil {
		return filter, NewBusinessError("INVALID_PIPELINE_ID", "Pipeline ID must be a valid UUID", err)
	}
	if filter.LeadID, err = parseOptionalUUID(req.LeadID, ErrInvalidLeadID); err != nil {
		return filter, NewBusinessError("INVALID_LEAD_ID", "Lead ID must be a valid UUID", err)
	}
	filter.Origin = trimmedOrNil(req.Origin)

	if filter.CreatedAfter, err = parseOptionalTime(req.StartDate, false); err != nil {
		return filter, NewBusinessError("INVALID_DATE", "start_date must be RFC3339 or YYYY-MM-DD", err)
	}
	if filter.CreatedBefore, err = parseOptionalTime(req.EndDate, true); err != nil {
		return filter, NewBusinessError("INVALID_DATE", "end_date must be RFC3339 or YYYY-MM-DD", err)
	}
	if filter.CreatedAfter != nil && filter.CreatedBefore != nil && filter.CreatedAfter.After(*filter.CreatedBefore) {
		return filter, NewBusinessError("INVALID_DATE_RANGE", "Start date cannot be after end date", ErrStartDateAfterEndDate)
	}
	return filter, nil
}

// parseOptionalTime accepts RFC3339 or a UTC date. A date used as an upper bound
// covers the whole day, down to the microsecond precision of the store.
func parseOptionalTime(raw *string, endOfDay bool) (*time.Time, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	value := strings.TrimSpace(*raw)
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return utils.TimeToUTCPtr(&t), nil
	}
	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return nil, ErrInvalidDate
	}
	if endOfDay {
		t = t.AddDate(0, 0, 1).Add(-time.Microsecond)
	}
	return &t, nil
}

// Query returns one page of the tenant's audit log, newest first
func (f *AssignmentLogFlowImpl) Query(ctx context.Context, tenantID uuid.UUID, req *dto.ListAssignmentLogsRequest) (*dto.ListAssignmentLogsResponse, error) {
	if tenantID == uuid.Nil {
		return nil, NewBusinessError("TENANT_ID_REQUIRED", "Tenant ID is required", ErrTenantIDRequired)
	}

	page, pageSize := 1, defaultAssignmentLogPageSize
	if req != nil {
		if req.Page != 0 {
			page = req.Page
		}
		if req.PageSize != 0 {
			pageSize = req.PageSize
		}
	}
	if page < 1 {
		return nil, NewBusinessError("INVALID_PAGE", "Page must be at least 1", ErrInvalidPage)
	}
	if pageSize < 1 || pageSize > maxAssignmentLogPageSize {
		return nil, NewBusinessError("INVALID_PAGE_SIZE", "Page size must be between 1 and 100", ErrInvalidPageSize)
	}

	filter, err := buildAssignmentLogFilter(tenantID, req)
	if err != nil {
		return nil, err
	}

	total, err := f.logRepo.Count(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("ASSIGNMENT_LOG_QUERY_FAILED", "Failed to count assignment logs", err)
	}
	entries, err := f.logRepo.ByFilter(ctx, filter, "", pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, NewBusinessError("ASSIGNMENT_LOG_QUERY_FAILED", "Failed to list assignment logs", err)
	}

	items := make([]dto.AssignmentLogDTO, 0, len(entries))
	for _, e := range entries {
		items = append(items, ToAssignmentLogDTO(*e))
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return &dto.ListAssignmentLogsResponse{
		Items: items,
		Pagination: dto.PaginationInfo{
			Total:      total,
			Page:       page,
			PageSize:   pageSize,
			TotalPages: totalPages,
		},
	}, nil
}

// ExportExcel renders the filtered audit log as an XLSX workbook, newest first.
// Pagination fields of the request are ignored.
func (f *AssignmentLogFlowImpl) ExportExcel(ctx context.Context, tenantID uuid.UUID, req *dto.ListAssignmentLogsRequest) (string, []byte, error) {
	if tenantID == uuid.Nil {
		return "", nil, NewBusinessError("TENANT_ID_REQUIRED", "Tenant ID is required", ErrTenantIDRequired)
	}
	filter, err := buildAssignmentLogFilter(tenantID, req)
	if err != nil {
		return "", nil, err
	}

	entries, err := f.logRepo.ByFilter(ctx, filter, "", maxAssignmentLogExportRows, 0)
	if err != nil {
		return "", nil, NewBusinessError("ASSIGNMENT_LOG_QUERY_FAILED", "Failed to list assignment logs", err)
	}

	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()

	sheet := "assignments"
	xl.SetSheetName(xl.GetSheetName(0), sheet)

	header := []string{"uuid", "created_at", "lead_id", "vendor_id", "pipeline_id", "stage_id", "origin"}
	_ = xl.SetSheetRow(sheet, "A1", &header)

	for i, e := range entries {
		origin := ""
		if e.Origin != nil {
			origin = *e.Origin
		}
		record := []string{
			e.UUID.String(),
			e.CreatedAt.UTC().Format(time.RFC3339),
			e.LeadID.String(),
			e.VendorID.String(),
			e.PipelineID.String(),
			e.StageID.String(),
			origin,
		}
		cellRef, _ := excelize.CoordinatesToCellName(1, i+2)
		_ = xl.SetSheetRow(sheet, cellRef, &record)
	}

	buf, err := xl.WriteToBuffer()
	if err != nil {
		return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel file", err)
	}
	filename := fmt.Sprintf("lead_assignments_%s.xlsx", utils.UTCNow().Format("20060102T150405Z"))
	return filename, buf.Bytes(), nil
}
