package poller

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"payment-service/internal/domain"

	"github.com/go-resty/resty/v2"
)

type statusEnvelope struct {
	Success bool              `json:"success"`
	Order   domain.StatusView `json:"order"`
}

type verifyEnvelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Order   struct {
		ID     string             `json:"_id"`
		IsPaid bool               `json:"isPaid"`
		Status domain.OrderStatus `json:"status"`
	} `json:"order"`
}

type errorEnvelope struct {
	Message string `json:"message"`
}

// Client talks to the order API on behalf of one signed-in buyer.
type Client struct {
	http *resty.Client
}

var _ StatusFetcher = (*Client)(nil)

func NewClient(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		http: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetAuthToken(token).
			SetTimeout(timeout),
	}
}

func classify(resp *resty.Response, fail *errorEnvelope) error {
	msg := fail.Message
	if msg == "" {
		msg = http.StatusText(resp.StatusCode())
	}
	switch resp.StatusCode() {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrOrderNotFound, msg)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrForbidden, msg)
	case http.StatusConflict:
		return fmt.Errorf("%w: %s", domain.ErrInvalidTransition, msg)
	}
	return fmt.Errorf("order api returned %d: %s", resp.StatusCode(), msg)
}

func (c *Client) FetchStatus(ctx context.Context, orderID string) (domain.StatusView, error) {
	var ok statusEnvelope
	var fail errorEnvelope
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&ok).
		SetError(&fail).
		Get("/api/order/status/" + url.PathEscape(orderID))
	if err != nil {
		return domain.StatusView{}, fmt.Errorf("fetch status: %w", err)
	}
	if resp.IsError() {
		return domain.StatusView{}, classify(resp, &fail)
	}
	return ok.Order, nil
}

// ManualVerify asks the server to force the order into ManuallyVerified.
func (c *Client) ManualVerify(ctx context.Context, orderID string) (domain.OrderStatus, error) {
	var ok verifyEnvelope
	var fail errorEnvelope
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"orderId": orderID}).
		SetResult(&ok).
		SetError(&fail).
		Post("/api/order/mpesa/manual-verify")
	if err != nil {
		return "", fmt.Errorf("manual verify: %w", err)
	}
	if resp.IsError() {
		return "", classify(resp, &fail)
	}
	return ok.Order.Status, nil
}
