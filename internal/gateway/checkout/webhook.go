package checkout

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"payment-service/internal/domain"
	"payment-service/internal/gateway"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
)

const (
	SignatureHeader    = "Stripe-Signature"
	signatureTolerance = 5 * time.Minute
	timestampLayout    = "20060102150405"

	eventCompleted    = "checkout.session.completed"
	eventAsyncSuccess = "checkout.session.async_payment_succeeded"
	eventAsyncFailed  = "checkout.session.async_payment_failed"
	eventExpired      = "checkout.session.expired"
)

func isSignatureError(err error) bool {
	return errors.Is(err, webhook.ErrNotSigned) ||
		errors.Is(err, webhook.ErrNoValidSignature) ||
		errors.Is(err, webhook.ErrTooOld) ||
		errors.Is(err, webhook.ErrInvalidHeader)
}

func (c *Client) Reconcile(header http.Header, body []byte) (*gateway.Notification, error) {
	evt, err := webhook.ConstructEventWithOptions(body, header.Get(SignatureHeader), c.cfg.WebhookSecret, webhook.ConstructEventOptions{
		Tolerance:                signatureTolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		if isSignatureError(err) {
			return nil, fmt.Errorf("%w: %v", gateway.ErrInvalidSignature, err)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedCallback, err)
	}
	if evt.Type == "" || evt.Data == nil {
		return nil, fmt.Errorf("%w: event without type or data", domain.ErrMalformedCallback)
	}

	var outcome domain.Outcome
	switch string(evt.Type) {
	case eventCompleted, eventAsyncSuccess, eventAsyncFailed, eventExpired:
	default:
		return nil, nil
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(evt.Data.Raw, &sess); err != nil {
		return nil, fmt.Errorf("%w: %s object: %v", domain.ErrMalformedCallback, evt.Type, err)
	}

	switch string(evt.Type) {
	case eventCompleted, eventAsyncSuccess:
		if string(evt.Type) == eventCompleted && sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
			// async methods settle later with their own event
			return nil, nil
		}
		receipt := sess.ID
		if sess.PaymentIntent != nil && sess.PaymentIntent.ID != "" {
			receipt = sess.PaymentIntent.ID
		}
		outcome = domain.Success(receipt, time.Unix(evt.Created, 0).UTC().Format(timestampLayout))
	case eventAsyncFailed:
		outcome = domain.Failure("Payment failed")
	case eventExpired:
		outcome = domain.Failure("Checkout session expired")
	}

	if sess.ID == "" {
		return nil, fmt.Errorf("%w: %s without session id", domain.ErrMalformedCallback, evt.Type)
	}
	return &gateway.Notification{SessionID: sess.ID, Outcome: outcome}, nil
}

func (c *Client) Acknowledge(err error) (int, any) {
	if errors.Is(err, gateway.ErrInvalidSignature) {
		return http.StatusBadRequest, map[string]any{"received": false, "error": "invalid signature"}
	}
	return http.StatusOK, map[string]any{"received": true}
}
