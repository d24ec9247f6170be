package http

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"payment-service/internal/admission"
	"payment-service/internal/domain"
	"payment-service/internal/gateway"
	"payment-service/internal/services"

	"github.com/gin-gonic/gin"
)

const (
	routeInitiate     = "initiate"
	routeManualVerify = "manual-verify"
	routeRead         = "read"
)

type Options struct {
	JWTSecret []byte
	// InitiateLimiter guards every route that costs a gateway attempt.
	InitiateLimiter admission.Limiter
	// ReadLimiter guards the side-effect-free status and list routes.
	ReadLimiter admission.Limiter
	// Turnstile is optional; nil or unconfigured skips the challenge check.
	Turnstile *admission.TurnstileVerifier
}

type Handler struct {
	service  *services.OrderService
	adapters map[domain.PaymentMethod]gateway.Adapter
	opts     Options
	logger   *slog.Logger
}

func NewHandler(s *services.OrderService, adapters []gateway.Adapter, opts Options, logger *slog.Logger) *Handler {
	h := &Handler{
		service:  s,
		adapters: make(map[domain.PaymentMethod]gateway.Adapter, len(adapters)),
		opts:     opts,
		logger:   logger,
	}
	for _, a := range adapters {
		h.adapters[a.Method()] = a
	}
	return h
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.Use(SecurityHeaders())
	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	auth := Authenticate(h.opts.JWTSecret, h.logger)
	initiate := []gin.HandlerFunc{auth, RateLimit(h.opts.InitiateLimiter, routeInitiate, h.logger), RejectSuspicious(h.logger), VerifyHuman(h.opts.Turnstile, h.logger)}
	read := []gin.HandlerFunc{auth, RateLimit(h.opts.ReadLimiter, routeRead, h.logger)}

	api := r.Group("/api/order")
	api.POST("/mpesa", append(initiate, h.InitiatePush)...)
	api.POST("/mpesa/:orderId/retry", append(initiate, h.RetryPush)...)
	api.POST("/checkout", append(initiate, h.InitiateCheckout)...)
	api.POST("/mpesa/manual-verify", auth, RateLimit(h.opts.InitiateLimiter, routeManualVerify, h.logger), h.ManualVerify)
	api.GET("/status/:orderId", append(read, h.GetStatus)...)
	api.GET("/list", append(read, h.ListOrders)...)
	api.GET("/seller-orders", append(read, h.ListAllOrders)...)

	if a, ok := h.adapters[domain.MethodPushMoney]; ok {
		api.POST("/mpesa/callback", h.Callback(a))
	}
	if a, ok := h.adapters[domain.MethodRedirectCheckout]; ok {
		api.POST("/checkout/webhook", h.Callback(a))
	}
}

func (h *Handler) InitiatePush(c *gin.Context) {
	caller, _ := identityFrom(c)

	var req PushPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Address, items, phone number, and amount are required"})
		return
	}

	res, err := h.service.InitiatePush(c.Request.Context(), caller, services.PushRequest{
		AddressID:   req.Address,
		Items:       toLineItems(req.Items),
		PhoneNumber: req.PhoneNumber,
		Amount:      req.Amount,
	})
	if err != nil {
		h.writeError(c, err, pushOrderID(res))
		return
	}
	c.JSON(http.StatusOK, PushPaymentResponse{
		Success:          true,
		Message:          res.Message,
		OrderID:          res.OrderID,
		GatewaySessionID: res.SessionID,
	})
}

func (h *Handler) RetryPush(c *gin.Context) {
	caller, _ := identityFrom(c)

	var req RetryPushRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Invalid request body"})
			return
		}
	}

	res, err := h.service.RetryPush(c.Request.Context(), caller, c.Param("orderId"), req.PhoneNumber)
	if err != nil {
		h.writeError(c, err, pushOrderID(res))
		return
	}
	c.JSON(http.StatusOK, PushPaymentResponse{
		Success:          true,
		Message:          res.Message,
		OrderID:          res.OrderID,
		GatewaySessionID: res.SessionID,
	})
}

func (h *Handler) InitiateCheckout(c *gin.Context) {
	caller, _ := identityFrom(c)

	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Address and items are required"})
		return
	}

	res, err := h.service.InitiateCheckout(c.Request.Context(), caller, services.CheckoutRequest{
		AddressID: req.Address,
		Items:     toLineItems(req.Items),
	})
	if err != nil {
		orderID := ""
		if res != nil {
			orderID = res.OrderID
		}
		h.writeError(c, err, orderID)
		return
	}
	c.JSON(http.StatusOK, CheckoutResponse{
		Success:          true,
		OrderID:          res.OrderID,
		GatewaySessionID: res.SessionID,
		URL:              res.RedirectURL,
	})
}

func (h *Handler) GetStatus(c *gin.Context) {
	caller, _ := identityFrom(c)

	view, err := h.service.GetStatus(c.Request.Context(), caller, c.Param("orderId"))
	if err != nil {
		h.writeError(c, err, "")
		return
	}
	c.JSON(http.StatusOK, StatusResponse{Success: true, Order: view})
}

func (h *Handler) ManualVerify(c *gin.Context) {
	caller, _ := identityFrom(c)

	var req ManualVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "orderId is required"})
		return
	}

	order, err := h.service.ManualVerify(c.Request.Context(), caller, req.OrderID)
	if err != nil {
		h.writeError(c, err, "")
		return
	}
	c.JSON(http.StatusOK, ManualVerifyResponse{
		Success: true,
		Message: "Order manually marked as paid",
		Order:   VerifiedOrder{OrderID: order.ID, IsPaid: order.IsPaid, Status: order.Status},
	})
}

func (h *Handler) ListOrders(c *gin.Context) {
	caller, _ := identityFrom(c)

	orders, err := h.service.ListOrders(c.Request.Context(), caller)
	if err != nil {
		h.writeError(c, err, "")
		return
	}
	c.JSON(http.StatusOK, ListResponse{Success: true, Orders: orders})
}

func (h *Handler) ListAllOrders(c *gin.Context) {
	caller, _ := identityFrom(c)

	orders, err := h.service.ListAllOrders(c.Request.Context(), caller, domain.OrderStatus(c.Query("status")))
	if err != nil {
		h.writeError(c, err, "")
		return
	}
	c.JSON(http.StatusOK, ListResponse{Success: true, Orders: orders})
}

// Callback reconciles a gateway notification. The response status and body
// are always the adapter's decision.
func (h *Handler) Callback(a gateway.Adapter) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes))
		if err == nil {
			var n *gateway.Notification
			n, err = a.Reconcile(c.Request.Header, body)
			if err == nil && n != nil {
				_, err = h.service.ApplyOutcome(c.Request.Context(), n.SessionID, n.Outcome)
			}
		}

		switch {
		case err == nil:
		case errors.Is(err, domain.ErrMalformedCallback):
			h.logger.Warn("malformed callback", "method", a.Method(), "error", err, "body", string(body))
		case errors.Is(err, gateway.ErrInvalidSignature):
			h.logger.Warn("callback signature rejected", "method", a.Method(), "client_ip", c.ClientIP(), "error", err)
		case errors.Is(err, domain.ErrOrderNotFound):
			h.logger.Warn("callback for unknown order acknowledged", "method", a.Method())
		default:
			h.logger.Error("callback handling failed", "method", a.Method(), "error", err)
		}

		status, resp := a.Acknowledge(err)
		c.JSON(status, resp)
	}
}

func pushOrderID(res *services.PushResult) string {
	if res == nil {
		return ""
	}
	return res.OrderID
}

// writeError maps the error taxonomy onto status codes and buyer-safe text.
func (h *Handler) writeError(c *gin.Context, err error, orderID string) {
	status := http.StatusInternalServerError
	msg := "Something went wrong. Please try again."

	var unavailable *domain.UnavailableError
	var rejected *domain.GatewayError
	switch {
	case errors.As(err, &unavailable):
		status, msg = http.StatusServiceUnavailable, unavailable.Message
	case errors.Is(err, domain.ErrConfigurationMissing):
		status, msg = http.StatusServiceUnavailable, "Payment method unavailable. Please use an alternative payment method."
	case errors.Is(err, domain.ErrValidation):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrForbidden):
		status, msg = http.StatusForbidden, "Forbidden"
	case errors.Is(err, domain.ErrOrderNotFound):
		status, msg = http.StatusNotFound, "Order not found"
	case errors.Is(err, domain.ErrAttemptInProgress):
		status, msg = http.StatusConflict, "A payment prompt is already in progress for this order"
	case errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, domain.ErrDuplicateSession):
		status, msg = http.StatusConflict, "Order cannot be changed in its current state"
	case errors.As(err, &rejected):
		msg = rejected.Description
	case errors.Is(err, domain.ErrGatewayUnavailable):
		msg = "Payment failed. Please try again or use an alternative payment method."
	default:
		h.logger.Error("request failed", "path", c.FullPath(), "error", err)
	}

	c.JSON(status, ErrorResponse{Message: msg, OrderID: orderID})
}
