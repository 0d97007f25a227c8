package upstream

import (
	"errors"
	"fmt"
	"net/http"
)

// Validation reasons. They are wrapped by *ValidationError and never reach the upstream API.
var (
	ErrNoStatesSelected   = errors.New("at least one campaign state must be selected")
	ErrUnknownState       = errors.New("unknown campaign state")
	ErrMissingFields      = errors.New("missing required fields")
	ErrInvalidInput       = errors.New("invalid input")
	ErrDateRangeRequired  = errors.New("from and to dates are required")
	ErrInvalidDateRange   = errors.New("from date cannot be after to date")
	ErrKeywordAmount      = errors.New("keyword amount out of range")
	ErrTooManyKeywords    = errors.New("more keywords than keyword amount")
	ErrUnknownChannel     = errors.New("unknown channel")
	ErrMalformedBody      = errors.New("malformed request body")
	ErrInvalidLimit       = errors.New("limit is not one of the allowed page sizes")
	ErrInvalidOffset      = errors.New("offset must be a non-negative integer not beyond total")
	ErrMissingCredentials = errors.New("upstream credentials are not configured")
	ErrMalformedToken     = errors.New("upstream authentication response carried no token")
	ErrPixelInvokeFailed  = errors.New("pixel invocation failed")
	ErrNoCampaignID       = errors.New("upstream response carried no campaign id")
)

// ValidationError is a caller-correctable failure detected before any network call.
type ValidationError struct {
	Err    error
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%v: %s", e.Err, e.Detail)
	}
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(err error, detail string) error { return &ValidationError{Err: err, Detail: detail} }

// AuthError is a failure of the credential exchange.
type AuthError struct {
	Channel Channel
	Status  int
	Body    string
	Err     error
}

func (e *AuthError) Error() string {
	switch {
	case e.Status != 0 && e.Err != nil:
		return fmt.Sprintf("upstream authentication (%s) failed with status %d: %v: %s", e.Channel, e.Status, e.Err, e.Body)
	case e.Status != 0:
		return fmt.Sprintf("upstream authentication (%s) rejected with status %d: %s", e.Channel, e.Status, e.Body)
	default:
		return fmt.Sprintf("upstream authentication (%s) failed: %v", e.Channel, e.Err)
	}
}

func (e *AuthError) Unwrap() error { return e.Err }

// UpstreamError means the upstream API was reachable but rejected the call or sent
// a body that could not be parsed.
type UpstreamError struct {
	Resource string
	Status   int
	Body     string
	Err      error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upstream %s (status %d): %v: %s", e.Resource, e.Status, e.Err, e.Body)
	}
	return fmt.Sprintf("upstream %s returned status %d: %s", e.Resource, e.Status, e.Body)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// TransportError is a network-level failure.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("upstream %s: transport: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// LogicalError is a 2xx upstream response whose body reports a business failure.
type LogicalError struct {
	Message string
}

func (e *LogicalError) Error() string {
	if e.Message == "" {
		return ErrPixelInvokeFailed.Error()
	}
	return fmt.Sprintf("%v: %s", ErrPixelInvokeFailed, e.Message)
}

func (e *LogicalError) Unwrap() error { return ErrPixelInvokeFailed }

// PersistenceError is returned by CreateCampaign when the upstream campaign exists
// but the local ownership record could not be written. The upstream campaign is not
// rolled back.
type PersistenceError struct {
	CampaignID ID
	Err        error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("campaign %s created upstream but local record failed: %v", e.CampaignID, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// HTTPStatus maps an operation error to the gateway status code: 400 for
// caller-correctable and logical failures, 500 for everything else.
func HTTPStatus(err error) int {
	var verr *ValidationError
	var lerr *LogicalError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &verr), errors.As(err, &lerr):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
