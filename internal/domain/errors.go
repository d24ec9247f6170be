package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation           = errors.New("validation error")
	ErrGatewayUnavailable   = errors.New("payment gateway unavailable")
	ErrGatewayRejected      = errors.New("payment gateway rejected the request")
	ErrConfigurationMissing = errors.New("payment method unavailable")
	ErrMalformedCallback    = errors.New("malformed callback")
	ErrInvalidTransition    = errors.New("invalid order transition")
	ErrOrderNotFound        = errors.New("order not found")
	ErrForbidden            = errors.New("forbidden")
	ErrDuplicateSession     = errors.New("gateway session already claimed")
	ErrAttemptInProgress    = errors.New("payment attempt already in progress")
)

func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// GatewayError is a business-level rejection carrying the gateway's own payload.
type GatewayError struct {
	Provider    string
	StatusCode  int
	Code        string
	Description string
}

func (e *GatewayError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s rejected request (%d %s): %s", e.Provider, e.StatusCode, e.Code, e.Description)
	}
	return fmt.Sprintf("%s rejected request (%d): %s", e.Provider, e.StatusCode, e.Description)
}

func (e *GatewayError) Unwrap() error { return ErrGatewayRejected }

// UnavailableError explains to the buyer why a payment method cannot be used.
type UnavailableError struct {
	Provider string
	Message  string
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

func (e *UnavailableError) Unwrap() error { return ErrConfigurationMissing }

// TransitionError records a refused move so it can be logged with context.
type TransitionError struct {
	OrderID string
	From    OrderStatus
	To      OrderStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("order %s: cannot move from %s to %s", e.OrderID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }
