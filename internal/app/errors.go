package app

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"appcompat/api/internal/threadsync"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

// syncErrorKinds maps synchronizer error kinds to response codes. Upstream
// failures are all reported as 502; slow and down are not told apart.
var syncErrorKinds = []struct {
	kind   error
	status int
	code   string
}{
	{threadsync.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
	{threadsync.ErrInvalidResourceKind, http.StatusBadGateway, "INVALID_RESOURCE_KIND"},
	{threadsync.ErrProvisioningFailed, http.StatusBadGateway, "PROVISIONING_FAILED"},
	{threadsync.ErrReconciliationFailed, http.StatusBadGateway, "RECONCILIATION_FAILED"},
	{threadsync.ErrRetrievalFailed, http.StatusBadGateway, "RETRIEVAL_FAILED"},
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	for _, kind := range syncErrorKinds {
		if errors.Is(err, kind.kind) {
			return kind.status, kind.code, err.Error(), nil
		}
	}
	if errors.Is(err, sql.ErrNoRows) {
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
