package model

// ErrorResponse represents a standardised error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Standard error codes for API responses
const (
	ErrCodeInvalidJSON       = "INVALID_JSON"
	ErrCodeMissingField      = "MISSING_FIELD"
	ErrCodeUnauthorised      = "UNAUTHORIZED"
	ErrCodeForbidden         = "FORBIDDEN"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeIllegalTransition = "ILLEGAL_TRANSITION"
	ErrCodeOpenRequestLimit  = "OPEN_REQUEST_LIMIT"
	ErrCodeVersionConflict   = "VERSION_CONFLICT"
	ErrCodePaymentNotWon     = "PAYMENT_NOT_WON"
	ErrCodeUpstreamFailure   = "UPSTREAM_FAILURE"
	ErrCodeInternalError     = "INTERNAL_ERROR"
)

// DomainError carries a stable code for business rule violations.
type DomainError struct {
	Code    string
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrUnauthorised      = NewDomainError(ErrCodeUnauthorised, "Authentication is required")
	ErrForbidden         = NewDomainError(ErrCodeForbidden, "You are not allowed to act on this bid request")
	ErrNotFound          = NewDomainError(ErrCodeNotFound, "Bid request not found")
	ErrIllegalTransition = NewDomainError(ErrCodeIllegalTransition, "Action is not valid for the current negotiation state")
	ErrOpenRequestLimit  = NewDomainError(ErrCodeOpenRequestLimit, "Customers may hold at most 10 open bid requests")
	ErrVersionConflict   = NewDomainError(ErrCodeVersionConflict, "Bid request was modified concurrently, retry the operation")
	ErrPaymentNotWon     = NewDomainError(ErrCodePaymentNotWon, "Payment can only be recorded once the auction is won")
	ErrUpstreamFailure   = NewDomainError(ErrCodeUpstreamFailure, "Upstream service is unavailable")
)
