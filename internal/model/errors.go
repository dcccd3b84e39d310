package model

import (
	"errors"
	"fmt"
)

// Validation failures. They never reach the network.
var (
	ErrNoRoleSelected  = errors.New("no role selected")
	ErrMissingRequired = errors.New("required field missing")
	ErrInvalidContact  = errors.New("contact number must have 10 digits")
	ErrMissingEmail    = errors.New("email is required")
	ErrUnknownRole     = errors.New("unknown role")
	ErrRoleSoldOut     = errors.New("role is sold out")
)

var (
	// ErrAlreadyRegistered is returned when the email is already registered
	// for the event.
	ErrAlreadyRegistered = errors.New("email already registered for this event")

	// ErrFormClosed is returned when registration for the event is closed.
	ErrFormClosed = errors.New("registration is closed")

	// ErrSubmissionInFlight is returned when the same form instance submits
	// while a previous submission is still running.
	ErrSubmissionInFlight = errors.New("submission already in progress")

	// ErrPaymentRedirectMissing is returned when payment initiation
	// succeeded but gave no redirect URL.
	ErrPaymentRedirectMissing = errors.New("payment initiation returned no redirect url")

	// ErrNoHandoff is returned when no hand-off state exists for a session.
	ErrNoHandoff = errors.New("no registration hand-off found")

	// ErrMissingTransaction is returned when the completion route is hit
	// without a transaction id.
	ErrMissingTransaction = errors.New("missing transaction id")

	// ErrPaymentUnconfirmed is returned when the backend has not recorded the
	// payment by the time the completion step runs.
	ErrPaymentUnconfirmed = errors.New("payment not confirmed")
)

// ValidationError names the field that blocked a submission.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	switch {
	case errors.Is(e.Err, ErrMissingRequired):
		return fmt.Sprintf("Please fill in the required field: %s", e.Field)
	case errors.Is(e.Err, ErrNoRoleSelected):
		return "Please select a role before proceeding."
	case errors.Is(e.Err, ErrInvalidContact):
		return "Please enter a valid 10-digit contact number."
	case errors.Is(e.Err, ErrRoleSoldOut):
		return fmt.Sprintf("%s is sold out.", e.Field)
	case e.Field != "":
		return fmt.Sprintf("%s: %v", e.Field, e.Err)
	default:
		return e.Err.Error()
	}
}

func (e *ValidationError) Unwrap() error { return e.Err }

// BackendError is a non-2xx answer from the remote API.
type BackendError struct {
	Op      string
	Status  int
	Message string
}

func (e *BackendError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s (status %d)", e.Op, e.Message, e.Status)
	}
	return fmt.Sprintf("%s: status %d", e.Op, e.Status)
}

// UserMessage returns the text to show to the registrant: the backend's
// message when it sent one, else fallback.
func UserMessage(err error, fallback string) string {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.Error()
	}
	var berr *BackendError
	if errors.As(err, &berr) && berr.Message != "" {
		return berr.Message
	}
	switch {
	case errors.Is(err, ErrAlreadyRegistered):
		return "You have already registered for this event with this email."
	case errors.Is(err, ErrPaymentRedirectMissing):
		return "Failed to get payment URL."
	case errors.Is(err, ErrSubmissionInFlight):
		return "Your registration is already being processed."
	case errors.Is(err, ErrFormClosed):
		return "Registration for this event is currently closed."
	case errors.Is(err, ErrPaymentUnconfirmed):
		return "Please complete the payment before registration."
	case errors.Is(err, ErrNoHandoff), errors.Is(err, ErrMissingTransaction):
		return "Missing payment or registration data."
	}
	return fallback
}
