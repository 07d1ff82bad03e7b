package apperr

import (
	"errors"
	"fmt"
)

// Error classes. Services wrap one of these so handlers can map them to a status
// code with errors.Is.
var (
	ErrValidation   = errors.New("validation failed")
	ErrNotFound     = errors.New("not found")
	ErrUpstream     = errors.New("upstream service failed")
	ErrBusinessRule = errors.New("request rejected")
	ErrForbidden    = errors.New("forbidden")
	ErrConflict     = errors.New("conflict")
)

// Business-rule rejections surfaced to users as-is.
var (
	ErrQuotaReached         = fmt.Errorf("%w: daily pickup quota reached", ErrBusinessRule)
	ErrDuplicateImage       = fmt.Errorf("%w: this image has already been submitted", ErrBusinessRule)
	ErrVerificationFailed   = fmt.Errorf("%w: image does not show e-waste", ErrBusinessRule)
	ErrRatingRequired       = fmt.Errorf("%w: submit a rating before confirming", ErrBusinessRule)
	ErrNoVolunteerAvailable = fmt.Errorf("%w: no volunteer is available right now", ErrBusinessRule)
	ErrInvalidOTP           = fmt.Errorf("%w: invalid OTP", ErrBusinessRule)
	ErrTooManyOTPAttempts   = fmt.Errorf("%w: too many invalid OTPs, order cancelled", ErrBusinessRule)
	ErrInsufficientPoints   = fmt.Errorf("%w: not enough points", ErrBusinessRule)
	ErrOutOfStock           = fmt.Errorf("%w: reward out of stock", ErrBusinessRule)
)

// Validation wraps a message as a validation error.
func Validation(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// NotFound wraps a missing entity.
func NotFound(entity, id string) error {
	return fmt.Errorf("%w: %s %s", ErrNotFound, entity, id)
}

// InvalidState reports a transition that the current state does not allow.
func InvalidState(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

// Forbidden reports an actor acting on something it does not own.
func Forbidden(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrForbidden, fmt.Sprintf(format, args...))
}

// Upstream wraps a failure of an external collaborator (geocoder, classifier, storage).
func Upstream(service string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrUpstream, service, err)
}
