package dto

import (
	"net/http"

	"github.com/storefront/backend/internal/domain/shared"
)

// Transport-only error kinds. They never leave the core; the HTTP layer
// produces them for requests rejected before a service is called.
const (
	KindUnauthorized    = "unauthorized"
	KindForbidden       = "forbidden"
	KindBadRequest      = "bad_request"
	KindRequestTooLarge = "request_too_large"
	KindRouteNotFound   = "route_not_found"
)

// KindHTTPStatus maps error kinds to HTTP status codes
var KindHTTPStatus = map[string]int{
	// Input
	string(shared.KindValidation): http.StatusBadRequest,
	KindBadRequest:                http.StatusBadRequest,
	KindRequestTooLarge:           http.StatusRequestEntityTooLarge,

	// Auth
	KindUnauthorized:                http.StatusUnauthorized,
	KindForbidden:                   http.StatusForbidden,
	string(shared.KindAccessDenied): http.StatusInternalServerError,

	// Resources
	string(shared.KindNotFound):       http.StatusNotFound,
	KindRouteNotFound:                 http.StatusNotFound,
	string(shared.KindDuplicateEntry): http.StatusConflict,
	string(shared.KindForeignKey):     http.StatusConflict,

	// Business rules -> 422 Unprocessable Entity
	string(shared.KindOrphanedProduct): http.StatusUnprocessableEntity,
	string(shared.KindTransferFailed):  http.StatusUnprocessableEntity,

	// Retryable storage conditions
	string(shared.KindGenerationFailed):   http.StatusServiceUnavailable,
	string(shared.KindLockTimeout):        http.StatusServiceUnavailable,
	string(shared.KindDeadlock):           http.StatusServiceUnavailable,
	string(shared.KindConnectionLost):     http.StatusServiceUnavailable,
	string(shared.KindTooManyConnections): http.StatusServiceUnavailable,

	// Schema and unclassified failures
	string(shared.KindTableNotFound):     http.StatusInternalServerError,
	string(shared.KindColumnNotFound):    http.StatusInternalServerError,
	string(shared.KindDatabaseError):     http.StatusInternalServerError,
	string(shared.KindDatabaseException): http.StatusInternalServerError,
}

// GetHTTPStatus returns the HTTP status code for an error kind
func GetHTTPStatus(kind string) int {
	if status, ok := KindHTTPStatus[kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// internalKinds never expose their message to clients: it may carry
// driver text with table names or credentials.
var internalKinds = map[shared.Kind]bool{
	shared.KindTableNotFound:     true,
	shared.KindColumnNotFound:    true,
	shared.KindAccessDenied:      true,
	shared.KindDatabaseError:     true,
	shared.KindDatabaseException: true,
}

// ErrorFromDomain converts any error into an error body and its HTTP status.
// Errors outside the taxonomy are reported as database_exception.
func ErrorFromDomain(err error) (*ErrorInfo, int) {
	kind := shared.KindOf(err)
	info := &ErrorInfo{Kind: string(kind), Message: "internal server error"}

	if de := shared.AsDomainError(err); de != nil {
		if !internalKinds[kind] {
			info.Message = de.Message
		}
		info.Errors = de.Errors
		info.Count = de.Count
	}
	return info, GetHTTPStatus(info.Kind)
}
