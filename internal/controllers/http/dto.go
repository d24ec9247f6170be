package http

import "payment-service/internal/domain"

type ItemRequest struct {
	Product  string `json:"product" binding:"required"`
	Quantity int    `json:"quantity" binding:"required,gt=0"`
}

type PushPaymentRequest struct {
	Address        string        `json:"address" binding:"required"`
	Items          []ItemRequest `json:"items" binding:"required,min=1,dive"`
	PhoneNumber    string        `json:"phoneNumber" binding:"required"`
	Amount         int64         `json:"amount" binding:"required,gt=0"`
	TurnstileToken string        `json:"turnstileToken,omitempty"`
}

type RetryPushRequest struct {
	PhoneNumber string `json:"phoneNumber"`
}

type CheckoutRequest struct {
	Address        string        `json:"address" binding:"required"`
	Items          []ItemRequest `json:"items" binding:"required,min=1,dive"`
	TurnstileToken string        `json:"turnstileToken,omitempty"`
}

type ManualVerifyRequest struct {
	OrderID string `json:"orderId" binding:"required"`
}

type PushPaymentResponse struct {
	Success          bool   `json:"success"`
	Message          string `json:"message"`
	OrderID          string `json:"orderId"`
	GatewaySessionID string `json:"gatewaySessionId"`
}

type CheckoutResponse struct {
	Success          bool   `json:"success"`
	OrderID          string `json:"orderId"`
	GatewaySessionID string `json:"gatewaySessionId"`
	URL              string `json:"url"`
}

type StatusResponse struct {
	Success bool              `json:"success"`
	Order   domain.StatusView `json:"order"`
}

type VerifiedOrder struct {
	OrderID string             `json:"_id"`
	IsPaid  bool               `json:"isPaid"`
	Status  domain.OrderStatus `json:"status"`
}

type ManualVerifyResponse struct {
	Success bool          `json:"success"`
	Message string        `json:"message"`
	Order   VerifiedOrder `json:"order"`
}

type ListResponse struct {
	Success bool           `json:"success"`
	Orders  []domain.Order `json:"orders"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	OrderID string `json:"orderId,omitempty"`
}

type RateLimitResponse struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retryAfter"`
}

func toLineItems(items []ItemRequest) []domain.LineItem {
	out := make([]domain.LineItem, 0, len(items))
	for _, it := range items {
		out = append(out, domain.LineItem{ProductID: it.Product, Quantity: it.Quantity})
	}
	return out
}
