// Package checkout is the redirect-based adapter: the buyer is sent to a
// hosted checkout page and the result arrives as a signed webhook.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"payment-service/internal/config"
	"payment-service/internal/domain"
	"payment-service/internal/gateway"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

const providerName = "Checkout"

type Client struct {
	cfg    config.CheckoutConfig
	api    *client.API
	logger *slog.Logger
}

var _ gateway.Adapter = (*Client)(nil)

func NewClient(cfg config.CheckoutConfig, logger *slog.Logger) *Client {
	backends := stripe.NewBackendsWithConfig(&stripe.BackendConfig{
		URL:               stripe.String(strings.TrimRight(cfg.BaseURL, "/")),
		HTTPClient:        &http.Client{Timeout: cfg.Timeout},
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     slogLogger{logger},
	})
	return &Client{
		cfg:    cfg,
		api:    client.New(cfg.SecretKey, backends),
		logger: logger,
	}
}

func (c *Client) Method() domain.PaymentMethod { return domain.MethodRedirectCheckout }

func (c *Client) Ready() error {
	if c.cfg.SecretKey == "" || c.cfg.WebhookSecret == "" {
		return &domain.UnavailableError{
			Provider: providerName,
			Message:  "Card checkout is not configured. Please use an alternative payment method.",
		}
	}
	if c.cfg.SuccessURL == "" || c.cfg.CancelURL == "" {
		return &domain.UnavailableError{
			Provider: providerName,
			Message:  "Card checkout configuration is incomplete. Please use an alternative payment method.",
		}
	}
	return nil
}

func (c *Client) Validate(req gateway.InitiateRequest) error {
	if len(req.Lines) == 0 {
		return domain.Validationf("checkout needs at least one priced line")
	}
	for _, l := range req.Lines {
		if l.UnitAmount <= 0 || l.Quantity <= 0 {
			return domain.Validationf("checkout line %q needs a positive price and quantity", l.Name)
		}
	}
	return nil
}

func withQuery(base string, params map[string]string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	q := u.Query()
	for k, v := range params {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func (c *Client) sessionParams(ctx context.Context, req gateway.InitiateRequest) *stripe.CheckoutSessionParams {
	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		ClientReferenceID:  stripe.String(req.OrderID),
		SuccessURL:         stripe.String(withQuery(c.cfg.SuccessURL, map[string]string{"orderId": req.OrderID, "method": string(domain.MethodRedirectCheckout)})),
		CancelURL:          stripe.String(withQuery(c.cfg.CancelURL, map[string]string{"orderId": req.OrderID, "message": "Payment was cancelled"})),
	}
	for _, line := range req.Lines {
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(c.cfg.Currency),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{Name: stripe.String(line.Name)},
				UnitAmount:  stripe.Int64(line.UnitAmount),
			},
			Quantity: stripe.Int64(int64(line.Quantity)),
		})
	}
	params.AddMetadata("orderId", req.OrderID)
	params.Context = ctx
	return params
}

func (c *Client) Initiate(ctx context.Context, req gateway.InitiateRequest) (*gateway.Session, error) {
	if err := c.Ready(); err != nil {
		return nil, err
	}
	if err := c.Validate(req); err != nil {
		return nil, err
	}

	sess, err := c.api.CheckoutSessions.New(c.sessionParams(ctx, req))
	if err != nil {
		var se *stripe.Error
		if errors.As(err, &se) && se.HTTPStatusCode > 0 {
			desc := se.Msg
			if desc == "" {
				desc = http.StatusText(se.HTTPStatusCode)
			}
			return nil, &domain.GatewayError{Provider: providerName, StatusCode: se.HTTPStatusCode, Code: string(se.Code), Description: desc}
		}
		return nil, fmt.Errorf("%w: create checkout session: %v", domain.ErrGatewayUnavailable, err)
	}
	if sess.ID == "" || sess.URL == "" {
		return nil, &domain.GatewayError{Provider: providerName, StatusCode: http.StatusOK, Description: "checkout session without id or url"}
	}

	c.logger.Info("checkout session created", "order_id", req.OrderID, "session_id", sess.ID)
	return &gateway.Session{ID: sess.ID, RedirectURL: sess.URL}, nil
}

// slogLogger routes the SDK's own logging into the service logger.
type slogLogger struct{ l *slog.Logger }

func (s slogLogger) Debugf(format string, v ...interface{}) { s.l.Debug(fmt.Sprintf(format, v...)) }
func (s slogLogger) Infof(format string, v ...interface{})  { s.l.Debug(fmt.Sprintf(format, v...)) }
func (s slogLogger) Warnf(format string, v ...interface{})  { s.l.Warn(fmt.Sprintf(format, v...)) }
func (s slogLogger) Errorf(format string, v ...interface{}) { s.l.Error(fmt.Sprintf(format, v...)) }
