package booking

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind groups error codes by how they are surfaced to callers.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindAuthorization
	KindNotFound
	KindConflict
	KindTerminalState
	KindPersistence
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthorization:
		return "authorization"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindTerminalState:
		return "terminal_state"
	case KindPersistence:
		return "persistence"
	default:
		return "unknown"
	}
}

type Code string

const (
	CodeInvalidInput                   Code = "INVALID_INPUT"
	CodeInvalidDateTime                Code = "INVALID_DATETIME"
	CodeInvalidVisitReason             Code = "INVALID_VISIT_REASON"
	CodeMissingOrInvalidWorkshopDetail Code = "MISSING_OR_INVALID_WORKSHOP_DETAIL"
	CodeMissingRequiredFile            Code = "MISSING_REQUIRED_FILE"
	CodeInvalidUpload                  Code = "INVALID_UPLOAD"
	CodeInvalidFilter                  Code = "INVALID_FILTER"
	CodeInvalidAction                  Code = "INVALID_ACTION"
	CodeInvalidTransition              Code = "INVALID_TRANSITION"
	CodeTerminalStateViolation         Code = "TERMINAL_STATE_VIOLATION"
	CodeForbidden                      Code = "FORBIDDEN"
	CodeNotFound                       Code = "NOT_FOUND"
	CodeProjectNotFound                Code = "PROJECT_NOT_FOUND"
	CodeUserNotAssigned                Code = "USER_NOT_ASSIGNED"
	CodeConflict                       Code = "CONFLICT"
	CodePersistence                    Code = "PERSISTENCE"
)

// Error is the single error type returned by the booking core.
type Error struct {
	Kind    Kind
	Code    Code
	Field   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on Code, and on Field when the target names one.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if e.Code != t.Code {
		return false
	}
	return t.Field == "" || t.Field == e.Field
}

var (
	ErrInvalidDateTime = &Error{
		Kind:    KindValidation,
		Code:    CodeInvalidDateTime,
		Message: "invalid date or time format, expected dd/mm/yyyy and HH:mm",
	}
	ErrInvalidVisitReason = &Error{
		Kind:    KindValidation,
		Code:    CodeInvalidVisitReason,
		Message: "invalid visit reason provided",
	}
	ErrMissingOrInvalidWorkshopDetail = &Error{
		Kind:    KindValidation,
		Code:    CodeMissingOrInvalidWorkshopDetail,
		Field:   "workshopDetail",
		Message: "a valid workshop detail is required for workshop visits",
	}
	ErrMissingRequiredFile = &Error{
		Kind:    KindValidation,
		Code:    CodeMissingRequiredFile,
		Message: "missing required file",
	}
	ErrInvalidUpload = &Error{
		Kind:    KindValidation,
		Code:    CodeInvalidUpload,
		Message: "invalid file upload",
	}
	ErrInvalidFilter = &Error{
		Kind:    KindValidation,
		Code:    CodeInvalidFilter,
		Field:   "status",
		Message: "invalid status filter",
	}
	ErrInvalidAction = &Error{
		Kind:    KindValidation,
		Code:    CodeInvalidAction,
		Field:   "status",
		Message: "invalid status for this action, use confirmed, rejected or completed",
	}
	ErrInvalidTransition = &Error{
		Kind:    KindConflict,
		Code:    CodeInvalidTransition,
		Message: "transition not allowed from the current status",
	}
	ErrTerminalStateViolation = &Error{
		Kind:    KindTerminalState,
		Code:    CodeTerminalStateViolation,
		Message: "appointment is in a terminal state",
	}
	ErrForbidden = &Error{
		Kind:    KindAuthorization,
		Code:    CodeForbidden,
		Message: "forbidden",
	}
	ErrNotFound = &Error{
		Kind:    KindNotFound,
		Code:    CodeNotFound,
		Message: "not found",
	}
	ErrProjectNotFound = &Error{
		Kind:    KindNotFound,
		Code:    CodeProjectNotFound,
		Field:   "projectId",
		Message: "project not found",
	}
	ErrUserNotAssigned = &Error{
		Kind:    KindAuthorization,
		Code:    CodeUserNotAssigned,
		Field:   "projectId",
		Message: "you are not assigned to this project",
	}
	ErrConflict = &Error{
		Kind:    KindConflict,
		Code:    CodeConflict,
		Message: "conflict",
	}
	ErrPersistence = &Error{
		Kind:    KindPersistence,
		Code:    CodePersistence,
		Message: "internal error",
	}
)

func InvalidInput(field, message string) *Error {
	return &Error{Kind: KindValidation, Code: CodeInvalidInput, Field: field, Message: message}
}

func InvalidDateTime(message string) *Error {
	return &Error{Kind: KindValidation, Code: CodeInvalidDateTime, Message: message}
}

func MissingRequiredFile(field string) *Error {
	return &Error{
		Kind:    KindValidation,
		Code:    CodeMissingRequiredFile,
		Field:   field,
		Message: fmt.Sprintf("missing required file: %s", field),
	}
}

func InvalidUpload(field, message string) *Error {
	return &Error{Kind: KindValidation, Code: CodeInvalidUpload, Field: field, Message: message}
}

func InvalidFilter(value string) *Error {
	return &Error{
		Kind:    KindValidation,
		Code:    CodeInvalidFilter,
		Field:   "status",
		Message: fmt.Sprintf("invalid status filter: %s", value),
	}
}

func Forbidden(message string) *Error {
	return &Error{Kind: KindAuthorization, Code: CodeForbidden, Message: message}
}

func NotFound(resource string) *Error {
	return &Error{Kind: KindNotFound, Code: CodeNotFound, Message: resource + " not found"}
}

func Conflict(message string) *Error {
	return &Error{Kind: KindConflict, Code: CodeConflict, Message: message}
}

// Persistence wraps an unexpected storage failure. The cause is kept for
// logging but never shown to callers.
func Persistence(op string, err error) *Error {
	return &Error{Kind: KindPersistence, Code: CodePersistence, Message: op, Err: err}
}

func IsKind(err error, kind Kind) bool {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind == kind
	}
	return false
}

func IsValidation(err error) bool {
	return IsKind(err, KindValidation)
}

func IsNotFound(err error) bool {
	return IsKind(err, KindNotFound)
}

func IsTerminalState(err error) bool {
	return IsKind(err, KindTerminalState)
}

// HTTPStatus maps an error to the status code the API responds with.
func HTTPStatus(err error) int {
	var be *Error
	if !errors.As(err, &be) {
		return http.StatusInternalServerError
	}
	switch be.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuthorization:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict, KindTerminalState:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the message safe to show to API clients.
func PublicMessage(err error) string {
	var be *Error
	if !errors.As(err, &be) || be.Kind == KindPersistence {
		return ErrPersistence.Message
	}
	return be.Message
}
