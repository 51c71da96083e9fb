package internal

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

type ErrorType string

const (
	ErrorTypeValidation    ErrorType = "VALIDATION_ERROR"
	ErrorTypeNotFound      ErrorType = "NOT_FOUND"
	ErrorTypeUnauthorized  ErrorType = "UNAUTHORIZED"
	ErrorTypeForbidden     ErrorType = "FORBIDDEN"
	ErrorTypeConflict      ErrorType = "CONFLICT"
	ErrorTypeInternal      ErrorType = "INTERNAL_ERROR"
	ErrorTypePoolExhausted ErrorType = "POOL_EXHAUSTED"
	ErrorTypeExternalSync  ErrorType = "EXTERNAL_SYNC_FAILURE"
)

type ErrorCode string

const (
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodeReasonRequired   ErrorCode = "REASON_REQUIRED"
	ErrCodeInvalidCallsign  ErrorCode = "INVALID_CALLSIGN_INPUT"
	ErrCodeWrongDepartment  ErrorCode = "WRONG_DEPARTMENT"

	ErrCodeDepartmentNotFound ErrorCode = "DEPARTMENT_NOT_FOUND"
	ErrCodeRankNotFound       ErrorCode = "RANK_NOT_FOUND"
	ErrCodeTeamNotFound       ErrorCode = "TEAM_NOT_FOUND"
	ErrCodeMemberNotFound     ErrorCode = "MEMBER_NOT_FOUND"
	ErrCodeSlotNotFound       ErrorCode = "IDENTIFIER_SLOT_NOT_FOUND"

	ErrCodeDuplicateName       ErrorCode = "DUPLICATE_NAME"
	ErrCodeDuplicatePrefix     ErrorCode = "DUPLICATE_CALLSIGN_PREFIX"
	ErrCodeDuplicateDesignator ErrorCode = "DUPLICATE_DESIGNATOR"
	ErrCodeDuplicateRole       ErrorCode = "DUPLICATE_ROLE_REFERENCE"
	ErrCodeDuplicateMember     ErrorCode = "MEMBER_ALREADY_ENROLLED"
	ErrCodeRankLimitExceeded   ErrorCode = "RANK_LIMIT_EXCEEDED"
	ErrCodeInvalidTransition   ErrorCode = "INVALID_STATUS_TRANSITION"
	ErrCodeSlotStateMismatch   ErrorCode = "SLOT_STATE_MISMATCH"
	ErrCodeStaleMember         ErrorCode = "MEMBER_VERSION_CONFLICT"
	ErrCodeTeamHasMembers      ErrorCode = "TEAM_HAS_PRIMARY_MEMBERS"
	ErrCodeRankHeld            ErrorCode = "RANK_STILL_HELD"
	ErrCodeDepartmentActive    ErrorCode = "DEPARTMENT_HAS_ACTIVE_MEMBERS"
	ErrCodeDepartmentInactive  ErrorCode = "DEPARTMENT_DEACTIVATED"
	ErrCodeMemberRemoved       ErrorCode = "MEMBER_REMOVED"
	ErrCodeMemberNotRemoved    ErrorCode = "MEMBER_NOT_REMOVED"

	ErrCodeMissingPermission  ErrorCode = "MISSING_PERMISSION"
	ErrCodeHierarchyViolation ErrorCode = "HIERARCHY_VIOLATION"
	ErrCodeInvalidToken       ErrorCode = "INVALID_TOKEN"
	ErrCodeInvalidCredential  ErrorCode = "INVALID_API_CREDENTIAL"

	ErrCodePoolExhausted ErrorCode = "IDENTIFIER_POOL_EXHAUSTED"

	ErrCodePlatformUnreachable ErrorCode = "PLATFORM_UNREACHABLE"
	ErrCodePlatformRejected    ErrorCode = "PLATFORM_REJECTED"
)

type AppError struct {
	Type       ErrorType   `json:"type"`
	Code       ErrorCode   `json:"code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
	StatusCode int         `json:"-"`
	Cause      error       `json:"-"`
}

func (e *AppError) Error() string {
	if e.Details != nil {
		if validationErrors, ok := e.Details.(ValidationErrors); ok && len(validationErrors.Errors) > 0 {
			return validationErrors.Errors[0].Message
		}
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) GetDetailedMessage() string {
	if e.Details != nil {
		if validationErrors, ok := e.Details.(ValidationErrors); ok {
			if len(validationErrors.Errors) == 1 {
				return validationErrors.Errors[0].Message
			} else if len(validationErrors.Errors) > 1 {
				messages := make([]string, len(validationErrors.Errors))
				for i, err := range validationErrors.Errors {
					messages[i] = err.Message
				}
				return strings.Join(messages, "; ")
			}
		}
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

func (e *AppError) WithDetails(details interface{}) *AppError {
	e.Details = details
	return e
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func NewValidationError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func NewValidationFieldError(field, message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       ErrCodeValidationFailed,
		Message:    "Validation failed",
		StatusCode: http.StatusBadRequest,
		Details: ValidationErrors{
			Errors: []ValidationError{
				{Field: field, Message: message, Code: string(code)},
			},
		},
	}
}

func NewNotFoundError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusNotFound,
	}
}

func NewUnauthorizedError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeUnauthorized,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusUnauthorized,
	}
}

func NewForbiddenError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeForbidden,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusForbidden,
	}
}

func NewInternalError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

func NewConflictError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeConflict,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

// NewPoolExhaustedError marks the hard cap of the identifier namespace.
// It maps to 409 because the request itself was well-formed.
func NewPoolExhaustedError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypePoolExhausted,
		Code:       ErrCodePoolExhausted,
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

// NewExternalSyncError wraps identity-platform failures. The code tells
// callers whether the platform was unreachable or actively rejected the
// call; only rank-role operations treat either as fatal.
func NewExternalSyncError(message string, code ErrorCode, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeExternalSync,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusBadGateway,
		Cause:      cause,
	}
}

var (
	ErrDepartmentNotFound = NewNotFoundError("Department not found", ErrCodeDepartmentNotFound)
	ErrRankNotFound       = NewNotFoundError("Rank not found", ErrCodeRankNotFound)
	ErrTeamNotFound       = NewNotFoundError("Team not found", ErrCodeTeamNotFound)
	ErrMemberNotFound     = NewNotFoundError("Member not found", ErrCodeMemberNotFound)
	ErrSlotNotFound       = NewNotFoundError("Identifier slot not found", ErrCodeSlotNotFound)

	ErrRankLimitExceeded = NewConflictError("rank has no open positions", ErrCodeRankLimitExceeded)
	ErrStaleMember       = NewConflictError("member was modified concurrently", ErrCodeStaleMember)
	ErrSlotStateMismatch = NewConflictError("identifier slot holder and availability disagree", ErrCodeSlotStateMismatch)
	ErrPoolExhausted     = NewPoolExhaustedError("no identifiers left between 100 and 999")

	ErrMissingPermission  = NewForbiddenError("actor lacks the required permission", ErrCodeMissingPermission)
	ErrHierarchyViolation = NewForbiddenError("cannot act on a member at or above your own rank level", ErrCodeHierarchyViolation)
	ErrInvalidToken       = NewUnauthorizedError("Invalid token", ErrCodeInvalidToken)
	ErrInvalidCredential  = NewUnauthorizedError("Invalid API credential", ErrCodeInvalidCredential)
)

func IsAppError(err error) (*AppError, bool) {
	if appErr, ok := err.(*AppError); ok {
		return appErr, true
	}
	return nil, false
}

type Response struct {
	Error *AppError `json:"error"`
}

func (e *AppError) ToHTTPResponse() (int, interface{}) {
	return e.StatusCode, Response{Error: e}
}

func (e *AppError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type    ErrorType   `json:"type"`
		Code    ErrorCode   `json:"code"`
		Message string      `json:"message"`
		Details interface{} `json:"details,omitempty"`
	}{
		Type:    e.Type,
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	})
}
