package mpesa

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"payment-service/internal/config"
	"payment-service/internal/domain"
	"payment-service/internal/gateway"

	"github.com/go-resty/resty/v2"
)

const (
	providerName     = "M-Pesa"
	tokenPath        = "/oauth/v1/generate"
	stkPushPath      = "/mpesa/stkpush/v1/processrequest"
	timestampLayout  = "20060102150405"
	transactionType  = "CustomerPayBillOnline"
	accountRefLength = 12
	minorPerShilling = 100
)

var eat = time.FixedZone("EAT", 3*60*60)

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   string `json:"expires_in"`
}

type stkPushRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int64  `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

type stkPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
}

// errorResponse covers both the API error shape and the OAuth error shape.
type errorResponse struct {
	RequestID        string `json:"requestId"`
	ErrorCode        string `json:"errorCode"`
	ErrorMessage     string `json:"errorMessage"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func (e *errorResponse) gatewayError(status int) *domain.GatewayError {
	ge := &domain.GatewayError{Provider: providerName, StatusCode: status, Code: e.ErrorCode, Description: e.ErrorMessage}
	if ge.Description == "" {
		ge.Code = e.Error
		ge.Description = e.ErrorDescription
	}
	if ge.Description == "" {
		ge.Description = http.StatusText(status)
	}
	return ge
}

type Client struct {
	cfg    config.MpesaConfig
	http   *resty.Client
	now    func() time.Time
	logger *slog.Logger
}

var _ gateway.Adapter = (*Client)(nil)

func NewClient(cfg config.MpesaConfig, logger *slog.Logger) *Client {
	return &Client{
		cfg:    cfg,
		http:   resty.New().SetBaseURL(cfg.ResolvedBaseURL()).SetTimeout(cfg.Timeout),
		now:    time.Now,
		logger: logger,
	}
}

func (c *Client) Method() domain.PaymentMethod { return domain.MethodPushMoney }

func (c *Client) Ready() error {
	if c.cfg.ConsumerKey == "" || c.cfg.ConsumerSecret == "" {
		return &domain.UnavailableError{
			Provider: providerName,
			Message:  "M-Pesa is not configured. Please contact administrator or use alternative payment methods.",
		}
	}
	if c.cfg.Shortcode == "" || c.cfg.Passkey == "" || c.cfg.CallbackURL == "" {
		return &domain.UnavailableError{
			Provider: providerName,
			Message:  "M-Pesa configuration is incomplete. Please use alternative payment methods.",
		}
	}
	return nil
}

// Password signs a push request for the given timestamp.
func Password(shortcode, passkey, timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(shortcode + passkey + timestamp))
}

// AccountReference derives the gateway-side reference from an order id.
func AccountReference(orderID string) string {
	ref := strings.ToUpper(strings.ReplaceAll(orderID, "-", ""))
	if len(ref) > accountRefLength {
		ref = ref[len(ref)-accountRefLength:]
	}
	return ref
}

func (c *Client) accessToken(ctx context.Context) (string, error) {
	var ok tokenResponse
	var fail errorResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBasicAuth(c.cfg.ConsumerKey, c.cfg.ConsumerSecret).
		SetQueryParam("grant_type", "client_credentials").
		SetResult(&ok).
		SetError(&fail).
		Get(tokenPath)
	if err != nil {
		return "", fmt.Errorf("%w: token request: %v", domain.ErrGatewayUnavailable, err)
	}
	if resp.IsError() {
		return "", fail.gatewayError(resp.StatusCode())
	}
	if ok.AccessToken == "" {
		return "", &domain.GatewayError{Provider: providerName, StatusCode: resp.StatusCode(), Description: "empty access token"}
	}
	return ok.AccessToken, nil
}

// Validate rejects numbers the gateway cannot prompt and amounts that are not
// whole shillings. Order amounts are in cents; the gateway takes shillings.
func (c *Client) Validate(req gateway.InitiateRequest) error {
	if req.Amount <= 0 || req.Amount%minorPerShilling != 0 {
		return domain.Validationf("M-Pesa amounts must be a whole number of shillings, got %d cents", req.Amount)
	}
	_, err := NormalizePhone(req.PhoneNumber, c.cfg.CountryCode)
	return err
}

// Initiate sends an STK push. The access token lives only for this call.
func (c *Client) Initiate(ctx context.Context, req gateway.InitiateRequest) (*gateway.Session, error) {
	if err := c.Ready(); err != nil {
		return nil, err
	}
	if err := c.Validate(req); err != nil {
		return nil, err
	}
	phone, _ := NormalizePhone(req.PhoneNumber, c.cfg.CountryCode)

	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	timestamp := c.now().In(eat).Format(timestampLayout)
	shortID := req.OrderID
	if len(shortID) > 8 {
		shortID = shortID[len(shortID)-8:]
	}
	body := stkPushRequest{
		BusinessShortCode: c.cfg.Shortcode,
		Password:          Password(c.cfg.Shortcode, c.cfg.Passkey, timestamp),
		Timestamp:         timestamp,
		TransactionType:   transactionType,
		Amount:            req.Amount / minorPerShilling,
		PartyA:            phone,
		PartyB:            c.cfg.Shortcode,
		PhoneNumber:       phone,
		CallBackURL:       c.cfg.CallbackURL,
		AccountReference:  AccountReference(req.OrderID),
		TransactionDesc:   "Payment for order " + shortID,
	}

	var ok stkPushResponse
	var fail errorResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetBody(body).
		SetResult(&ok).
		SetError(&fail).
		Post(stkPushPath)
	if err != nil {
		return nil, fmt.Errorf("%w: stk push: %v", domain.ErrGatewayUnavailable, err)
	}
	if resp.IsError() {
		return nil, fail.gatewayError(resp.StatusCode())
	}
	if ok.ResponseCode != "0" || ok.CheckoutRequestID == "" {
		return nil, &domain.GatewayError{
			Provider:    providerName,
			StatusCode:  resp.StatusCode(),
			Code:        ok.ResponseCode,
			Description: ok.ResponseDescription,
		}
	}

	c.logger.Info("stk push accepted",
		"order_id", req.OrderID,
		"session_id", ok.CheckoutRequestID,
		"merchant_request_id", ok.MerchantRequestID)

	return &gateway.Session{ID: ok.CheckoutRequestID, CustomerMessage: ok.CustomerMessage}, nil
}

// Acknowledge always answers with a success envelope so the gateway never retries.
func (c *Client) Acknowledge(err error) (int, any) {
	desc := "Callback received successfully"
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrOrderNotFound):
		desc = "Order not found but callback acknowledged"
	default:
		desc = "Callback received"
	}
	return http.StatusOK, ackResponse{ResultCode: 0, ResultDesc: desc}
}

type ackResponse struct {
	ResultCode int    `json:"ResultCode"`
	ResultDesc string `json:"ResultDesc"`
}
