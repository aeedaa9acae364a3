// Package businessflow contains the core business logic and use cases for lead distribution
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Distribution errors
	ErrNoEligibleVendor = errors.New("no eligible vendor in rotation")
	ErrPersistence      = errors.New("distribution state could not be persisted")
	ErrLockTimeout      = errors.New("timed out waiting for tenant distribution lock")

	// Configuration errors; every one of them wraps ErrConfiguration
	ErrConfiguration          = errors.New("rotation configuration error")
	ErrInvalidWeight          = fmt.Errorf("%w: weight must be a finite number >= 0", ErrConfiguration)
	ErrNoTargetPipeline       = fmt.Errorf("%w: no target pipeline for assignment", ErrConfiguration)
	ErrPipelineHasNoStages    = fmt.Errorf("%w: pipeline has no stages", ErrConfiguration)
	ErrPipelineNotFound       = fmt.Errorf("%w: pipeline not found for tenant", ErrConfiguration)
	ErrInvalidRotationRequest = errors.New("invalid rotation request")

	// Registry errors
	ErrVendorRotationNotFound      = errors.New("vendor rotation not found")
	ErrVendorRotationAlreadyExists = errors.New("vendor rotation already exists")
	ErrRotationUpdateRequired      = errors.New("at least one field must be provided for update")

	// Identifier errors
	ErrTenantIDRequired  = errors.New("tenant ID is required")
	ErrInvalidLeadID     = errors.New("lead ID must be a valid UUID")
	ErrInvalidVendorID   = errors.New("vendor ID must be a valid UUID")
	ErrInvalidPipelineID = errors.New("pipeline ID must be a valid UUID")

	// Filter errors
	ErrInvalidPage           = errors.New("page must be at least 1")
	ErrInvalidPageSize       = errors.New("page size must be between 1 and 100")
	ErrInvalidDate           = errors.New("date must be RFC3339 or YYYY-MM-DD")
	ErrStartDateAfterEndDate = errors.New("start date cannot be after end date")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NewBusinessErrorf(code, message string, err error, args ...any) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: fmt.Sprintf(message, args...),
		Err:     err,
	}
}

// persistenceError marks a store failure that aborted an assignment
func persistenceError(err error) error {
	return fmt.Errorf("%w: %w", ErrPersistence, err)
}

func IsNoEligibleVendor(err error) bool {
	return errors.Is(err, ErrNoEligibleVendor)
}

func IsPersistence(err error) bool {
	return errors.Is(err, ErrPersistence)
}

func IsLockTimeout(err error) bool {
	return errors.Is(err, ErrLockTimeout)
}

// IsConfiguration reports whether err stems from invalid rotation or pipeline configuration
func IsConfiguration(err error) bool {
	return errors.Is(err, ErrConfiguration)
}

func IsInvalidWeight(err error) bool {
	return errors.Is(err, ErrInvalidWeight)
}

func IsNoTargetPipeline(err error) bool {
	return errors.Is(err, ErrNoTargetPipeline)
}

func IsPipelineNotFound(err error) bool {
	return errors.Is(err, ErrPipelineNotFound)
}

func IsInvalidRotationRequest(err error) bool {
	return errors.Is(err, ErrInvalidRotationRequest)
}

func IsVendorRotationNotFound(err error) bool {
	return errors.Is(err, ErrVendorRotationNotFound)
}

func IsVendorRotationAlreadyExists(err error) bool {
	return errors.Is(err, ErrVendorRotationAlreadyExists)
}

func IsRotationUpdateRequired(err error) bool {
	return errors.Is(err, ErrRotationUpdateRequired)
}

func IsTenantIDRequired(err error) bool {
	return errors.Is(err, ErrTenantIDRequired)
}

// IsInvalidIdentifier reports whether a request carried a malformed UUID
func IsInvalidIdentifier(err error) bool {
	return errors.Is(err, ErrInvalidLeadID) || errors.Is(err, ErrInvalidVendorID) || errors.Is(err, ErrInvalidPipelineID)
}

func IsInvalidPage(err error) bool {
	return errors.Is(err, ErrInvalidPage)
}

func IsInvalidPageSize(err error) bool {
	return errors.Is(err, ErrInvalidPageSize)
}

func IsInvalidDate(err error) bool {
	return errors.Is(err, ErrInvalidDate)
}

func IsStartDateAfterEndDate(err error) bool {
	return errors.Is(err, ErrStartDateAfterEndDate)
}
