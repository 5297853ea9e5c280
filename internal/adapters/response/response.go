// Package response writes JSON bodies and maps domain error kinds onto HTTP
// statuses and stable error codes.
package response

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/prescrimed/tenant-access-service/internal/core/domain"
)

const (
	CodeUnauthenticated       = "unauthenticated"
	CodeTokenExpired          = "token_expired"
	CodePrincipalRevoked      = "principal_revoked"
	CodeTenantNotFound        = "tenant_not_found"
	CodeTenantBlocked         = "tenant_blocked"
	CodeAccessDenied          = "access_denied"
	CodeHistoryImmutable      = "history_immutable"
	CodeInvalidTransition     = "invalid_lifecycle_transition"
	CodeTenantContextRequired = "empresa_context_required"
	CodeNotFound              = "not_found"
	CodeBadRequest            = "bad_request"
	CodeRateLimited           = "rate_limited"
	CodeInternal              = "internal_error"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type mapping struct {
	kind    error
	status  int
	code    string
	message string
}

// Order matters only for wrapped chains carrying more than one kind.
var mappings = []mapping{
	{domain.ErrExpired, http.StatusUnauthorized, CodeTokenExpired, "session expired"},
	{domain.ErrPrincipalRevoked, http.StatusUnauthorized, CodePrincipalRevoked, "account disabled"},
	{domain.ErrUnauthenticated, http.StatusUnauthorized, CodeUnauthenticated, "authentication required"},
	{domain.ErrTenantBlocked, http.StatusForbidden, CodeTenantBlocked, "company access blocked"},
	{domain.ErrAccessDenied, http.StatusForbidden, CodeAccessDenied, "access denied"},
	{domain.ErrTenantNotFound, http.StatusNotFound, CodeTenantNotFound, "company not found"},
	{domain.ErrTenantMismatch, http.StatusNotFound, CodeNotFound, "not found"},
	{domain.ErrNotFound, http.StatusNotFound, CodeNotFound, "not found"},
	{domain.ErrHistoryImmutable, http.StatusMethodNotAllowed, CodeHistoryImmutable, "evolution records cannot be modified"},
	{domain.ErrInvalidLifecycleTransition, http.StatusConflict, CodeInvalidTransition, "invalid lifecycle transition"},
	{domain.ErrTenantContextRequired, http.StatusBadRequest, CodeTenantContextRequired, "select a company with X-Empresa-Id"},
	{domain.ErrInvalidInput, http.StatusBadRequest, CodeBadRequest, "invalid request"},
}

// Classify returns the status and code for err. Unknown errors are 500.
func Classify(err error) (int, string, string) {
	for _, m := range mappings {
		if errors.Is(err, m.kind) {
			return m.status, m.code, m.message
		}
	}
	return http.StatusInternalServerError, CodeInternal, "internal server error"
}

// Error writes the mapped error. Internal error text is logged, never returned.
// Lifecycle and validation messages are safe to echo since they name no internals.
func Error(w http.ResponseWriter, err error) {
	status, code, msg := Classify(err)
	switch {
	case status == http.StatusInternalServerError:
		log.Printf("http: internal error: %v", err)
	case errors.Is(err, domain.ErrInvalidLifecycleTransition), errors.Is(err, domain.ErrInvalidInput):
		msg = err.Error()
	}
	JSON(w, status, ErrorBody{Error: msg, Code: code})
}

// ErrorCode writes an error response with an explicit status and code.
func ErrorCode(w http.ResponseWriter, status int, code, msg string) {
	JSON(w, status, ErrorBody{Error: msg, Code: code})
}

func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("http: failed to write response: %v", err)
	}
}
