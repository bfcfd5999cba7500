package upstream

import (
	"errors"
	"fmt"

	dErrors "renewals/pkg/domain-errors"
	"renewals/pkg/platform/sentinel"
)

// Category is the normalized failure taxonomy for calls to other services.
type Category string

const (
	CategoryTimeout          Category = "timeout"
	CategoryBadData          Category = "bad_data"
	CategoryOutage           Category = "outage"
	CategoryContractMismatch Category = "contract_mismatch"
	CategoryNotFound         Category = "not_found"
	CategoryRateLimited      Category = "rate_limited"
	CategoryInternal         Category = "internal"
)

// UpstreamError wraps a failed call with its normalized category.
type UpstreamError struct {
	Category   Category
	Service    string
	Operation  string
	StatusCode int
	Message    string
	Underlying error
	Retryable  bool
}

func (e *UpstreamError) Error() string {
	prefix := fmt.Sprintf("upstream %s %s [%s]", e.Service, e.Operation, e.Category)
	if e.StatusCode != 0 {
		prefix = fmt.Sprintf("%s status %d", prefix, e.StatusCode)
	}
	if e.Underlying != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.Message, e.Underlying)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

func (e *UpstreamError) Unwrap() error {
	return e.Underlying
}

func NewError(category Category, service, operation, message string, underlying error) *UpstreamError {
	return &UpstreamError{
		Category:   category,
		Service:    service,
		Operation:  operation,
		Message:    message,
		Underlying: underlying,
		Retryable: category == CategoryTimeout ||
			category == CategoryOutage ||
			category == CategoryRateLimited,
	}
}

func IsRetryable(err error) bool {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.Retryable
	}
	return false
}

// CategoryOf returns CategoryInternal for errors that are not upstream errors.
func CategoryOf(err error) Category {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.Category
	}
	return CategoryInternal
}

func IsNotFound(err error) bool {
	return CategoryOf(err) == CategoryNotFound
}

// ToDomain translates an upstream failure into a domain error without leaking
// transport detail. notFoundMsg is used when the remote record is missing.
func ToDomain(err error, notFoundMsg string) error {
	if err == nil {
		return nil
	}
	if _, ok := dErrors.As(err); ok {
		return err
	}
	if errors.Is(err, sentinel.ErrUnavailable) {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "dependent service is unavailable")
	}
	switch CategoryOf(err) {
	case CategoryNotFound:
		return dErrors.Wrap(err, dErrors.CodeNotFound, notFoundMsg)
	case CategoryOutage, CategoryTimeout, CategoryRateLimited:
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "dependent service is unavailable")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "dependent service call failed")
	}
}

func categoryForStatus(status int) Category {
	switch {
	case status == 404:
		return CategoryNotFound
	case status == 408 || status == 504:
		return CategoryTimeout
	case status == 429:
		return CategoryRateLimited
	case status >= 500:
		return CategoryOutage
	default:
		return CategoryBadData
	}
}
