// Package gateway defines the capability set every payment adapter offers.
// Adapters only ask for transitions; the order service owns the state machine.
package gateway

import (
	"context"
	"errors"
	"net/http"

	"payment-service/internal/domain"
)

// ErrInvalidSignature marks a notification whose authenticity could not be proven.
var ErrInvalidSignature = errors.New("invalid notification signature")

type Line struct {
	Name       string
	UnitAmount int64
	Quantity   int
}

type InitiateRequest struct {
	OrderID     string
	Amount      int64
	PhoneNumber string
	Lines       []Line
}

// Session is the gateway's reference for one payment attempt.
type Session struct {
	ID              string
	RedirectURL     string
	CustomerMessage string
}

// Notification is a parsed gateway callback. A nil Notification with a nil
// error means the gateway sent something that carries no outcome.
type Notification struct {
	SessionID string
	Outcome   domain.Outcome
	Amount    int64
	Phone     string
}

type Adapter interface {
	Method() domain.PaymentMethod
	// Ready reports ErrConfigurationMissing when credentials are absent.
	Ready() error
	// Validate checks a request the way Initiate would, without calling out.
	Validate(req InitiateRequest) error
	Initiate(ctx context.Context, req InitiateRequest) (*Session, error)
	Reconcile(header http.Header, body []byte) (*Notification, error)
	// Acknowledge builds the response for the gateway given the handling error.
	Acknowledge(err error) (int, any)
}
