// Package errors defines the error taxonomy shared by the resolver, the scrap processor and
// the repositories.
package errors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
)

// NotFoundError means a referenced scrap, object or link does not exist.
type NotFoundError struct {
	Resource string
	Key      string
}

func NewNotFoundError(resource string, key any) *NotFoundError {
	return &NotFoundError{Resource: resource, Key: fmt.Sprint(key)}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.Key)
}

func (e *NotFoundError) ToHTTPError() *httperror.HTTPError {
	return httperror.NewHTTPError(http.StatusNotFound, e.Error()).AddMetaValue("resource", e.Resource)
}

// ConflictError is a concurrent uniqueness violation, or a claim on a scrap owned by
// another worker.
type ConflictError struct {
	Resource string
	Key      string
	Err      error
}

func NewConflictError(resource string, key any, err error) *ConflictError {
	return &ConflictError{Resource: resource, Key: fmt.Sprint(key), Err: err}
}

func (e *ConflictError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("conflict on %s %s: %v", e.Resource, e.Key, e.Err)
	}
	return fmt.Sprintf("conflict on %s %s", e.Resource, e.Key)
}

func (e *ConflictError) Unwrap() error {
	return e.Err
}

func (e *ConflictError) ToHTTPError() *httperror.HTTPError {
	return httperror.NewHTTPError(http.StatusConflict, e.Error()).AddMetaValue("resource", e.Resource)
}

// ComparatorError is malformed attribute data met while scoring.
type ComparatorError struct {
	Attribute string
	Value     string
	Err       error
}

func NewComparatorError(attribute, value string, err error) *ComparatorError {
	return &ComparatorError{Attribute: attribute, Value: value, Err: err}
}

func (e *ComparatorError) Error() string {
	return fmt.Sprintf("cannot compare attribute %s (%q): %v", e.Attribute, e.Value, e.Err)
}

func (e *ComparatorError) Unwrap() error {
	return e.Err
}

func (e *ComparatorError) ToHTTPError() *httperror.HTTPError {
	return httperror.NewHTTPError(http.StatusUnprocessableEntity, e.Error()).AddMetaValue("attribute", e.Attribute)
}

// StoreTimeoutError means the backing store did not answer in time.
type StoreTimeoutError struct {
	Op  string
	Err error
}

func NewStoreTimeoutError(op string, err error) *StoreTimeoutError {
	return &StoreTimeoutError{Op: op, Err: err}
}

func (e *StoreTimeoutError) Error() string {
	return fmt.Sprintf("store timeout during %s: %v", e.Op, e.Err)
}

func (e *StoreTimeoutError) Unwrap() error {
	return e.Err
}

func (e *StoreTimeoutError) ToHTTPError() *httperror.HTTPError {
	return httperror.NewHTTPError(http.StatusGatewayTimeout, e.Error()).AddMetaValue("op", e.Op)
}

// InvariantViolation is an internal assertion failure. It is never recovered from.
type InvariantViolation struct {
	Message string
}

func NewInvariantViolation(format string, args ...any) *InvariantViolation {
	return &InvariantViolation{Message: fmt.Sprintf(format, args...)}
}

func (e *InvariantViolation) Error() string {
	return "invariant violation: " + e.Message
}

func (e *InvariantViolation) ToHTTPError() *httperror.HTTPError {
	return httperror.NewHTTPError(http.StatusInternalServerError, e.Error())
}

func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

func IsConflict(err error) bool {
	var target *ConflictError
	return errors.As(err, &target)
}

func IsComparatorError(err error) bool {
	var target *ComparatorError
	return errors.As(err, &target)
}

func IsStoreTimeout(err error) bool {
	var target *StoreTimeoutError
	return errors.As(err, &target)
}

func IsInvariantViolation(err error) bool {
	var target *InvariantViolation
	return errors.As(err, &target)
}

// Kind names the taxonomy entry of err, for failure records and metrics.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case IsInvariantViolation(err):
		return "invariant_violation"
	case IsStoreTimeout(err):
		return "store_timeout"
	case IsNotFound(err):
		return "not_found"
	case IsConflict(err):
		return "conflict"
	case IsComparatorError(err):
		return "comparator"
	default:
		return "internal"
	}
}

// ToHTTPError converts any error into an httperror, defaulting to 500.
func ToHTTPError(err error) *httperror.HTTPError {
	var notFound *NotFoundError
	var conflict *ConflictError
	var comparator *ComparatorError
	var timeout *StoreTimeoutError
	var invariant *InvariantViolation
	switch {
	case errors.As(err, &invariant):
		return invariant.ToHTTPError()
	case errors.As(err, &timeout):
		return timeout.ToHTTPError()
	case errors.As(err, &notFound):
		return notFound.ToHTTPError()
	case errors.As(err, &conflict):
		return conflict.ToHTTPError()
	case errors.As(err, &comparator):
		return comparator.ToHTTPError()
	}
	if httperror.IsHTTPError(err) {
		return httperror.NewHTTPError(httperror.GetStatusCode(err), err.Error())
	}
	return httperror.NewHTTPError(http.StatusInternalServerError, err.Error())
}

// StatusCode returns the HTTP status an error maps to.
func StatusCode(err error) int {
	if err == nil {
		return http.StatusOK
	}
	return httperror.GetStatusCode(ToHTTPError(err))
}

// IsRetryable reports whether re-running the failed operation may succeed.
func IsRetryable(err error) bool {
	if err == nil || IsInvariantViolation(err) {
		return false
	}
	return StatusCode(err) >= http.StatusInternalServerError
}
