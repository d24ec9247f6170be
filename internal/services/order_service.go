package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"payment-service/internal/domain"
	"payment-service/internal/gateway"
	"payment-service/internal/infra"
	rabbit "payment-service/internal/infra/rabbitmq"
	"payment-service/internal/repository"

	"github.com/google/uuid"
)

const (
	manualReceiptPrefix = "MANUAL_"
	// pushAttemptLease bounds how long an unanswered push blocks a retry.
	pushAttemptLease = 2 * time.Minute
)

type OrderService struct {
	repo       repository.OrderRepository
	prodClient infra.ProductClientInterface
	publisher  rabbit.PublisherInterface
	adapters   map[domain.PaymentMethod]gateway.Adapter
	logger     *slog.Logger

	now        func() time.Time
	newID      func() string
	verifyRole string
	adminRole  string

	inflight sync.WaitGroup
}

type Option func(*OrderService)

func WithClock(now func() time.Time) Option {
	return func(s *OrderService) { s.now = now }
}

func WithIDGenerator(gen func() string) Option {
	return func(s *OrderService) { s.newID = gen }
}

// WithManualVerifyRole restricts manual verification to callers holding
// role. Holders may verify any order; owners without it may not.
func WithManualVerifyRole(role string) Option {
	return func(s *OrderService) { s.verifyRole = role }
}

// WithAdminRole lets holders of role read any order's status.
func WithAdminRole(role string) Option {
	return func(s *OrderService) { s.adminRole = role }
}

func NewOrderService(
	r repository.OrderRepository,
	p infra.ProductClientInterface,
	pub rabbit.PublisherInterface,
	logger *slog.Logger,
	adapters []gateway.Adapter,
	opts ...Option,
) *OrderService {
	s := &OrderService{
		repo:       r,
		prodClient: p,
		publisher:  pub,
		adapters:   make(map[domain.PaymentMethod]gateway.Adapter, len(adapters)),
		logger:     logger,
		now:        time.Now,
		newID:      uuid.NewString,
	}
	for _, a := range adapters {
		s.adapters[a.Method()] = a
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type PushRequest struct {
	AddressID   string
	Items       []domain.LineItem
	PhoneNumber string
	Amount      int64
}

type PushResult struct {
	OrderID   string
	SessionID string
	Message   string
}

type CheckoutRequest struct {
	AddressID string
	Items     []domain.LineItem
}

type CheckoutResult struct {
	OrderID     string
	SessionID   string
	RedirectURL string
}

// adapter returns the ready adapter for m, or the reason it cannot be used.
func (s *OrderService) adapter(m domain.PaymentMethod) (gateway.Adapter, error) {
	a, ok := s.adapters[m]
	if !ok {
		return nil, &domain.UnavailableError{Provider: string(m), Message: "This payment method is not available. Please use an alternative payment method."}
	}
	if err := a.Ready(); err != nil {
		s.logger.Error("payment method not configured", "method", m, "error", err)
		return nil, err
	}
	return a, nil
}

// InitiatePush creates the order and sends the push prompt to the payer. A
// gateway failure still returns the result with the order id so the push
// can be retried without resubmitting the cart.
func (s *OrderService) InitiatePush(ctx context.Context, caller domain.Identity, req PushRequest) (*PushResult, error) {
	a, err := s.adapter(domain.MethodPushMoney)
	if err != nil {
		return nil, err
	}
	if req.PhoneNumber == "" {
		return nil, domain.Validationf("phone number is required")
	}

	order, err := domain.NewOrder(s.newID(), caller.UserID, req.AddressID, req.Items, req.Amount, domain.MethodPushMoney, s.now())
	if err != nil {
		return nil, err
	}
	if err := a.Validate(gateway.InitiateRequest{OrderID: order.ID, Amount: order.Amount, PhoneNumber: req.PhoneNumber}); err != nil {
		return nil, err
	}
	order.PayerPhone = req.PhoneNumber
	claimedAt := order.CreatedAt
	order.PushAttemptAt = &claimedAt
	order.PushAttempts = 1

	if err := s.repo.Save(ctx, order); err != nil {
		return nil, err
	}
	s.publish(order)

	return s.startPush(ctx, a, order, req.PhoneNumber)
}

// RetryPush re-sends the push prompt for an order whose earlier attempt
// never reached the gateway.
func (s *OrderService) RetryPush(ctx context.Context, caller domain.Identity, orderID, phone string) (*PushResult, error) {
	a, err := s.adapter(domain.MethodPushMoney)
	if err != nil {
		return nil, err
	}
	order, err := s.ownedOrder(ctx, caller, orderID)
	if err != nil {
		return nil, err
	}
	if order.PaymentMethod != domain.MethodPushMoney {
		return nil, domain.Validationf("order %s was not placed for push payment", orderID)
	}
	if order.Status != domain.StatusPendingPayment {
		return nil, s.rejectTransition(order.ID, order.Status, domain.StatusAwaitingCallback)
	}
	if phone == "" {
		phone = order.PayerPhone
	}
	if err := a.Validate(gateway.InitiateRequest{OrderID: order.ID, Amount: order.Amount, PhoneNumber: phone}); err != nil {
		return nil, err
	}

	now := s.now()
	claimed, err := s.repo.ClaimAttempt(ctx, order.ID, now, now.Add(-pushAttemptLease))
	if err != nil {
		return nil, err
	}
	if !claimed {
		s.logger.Warn("push retry refused, attempt in flight", "order_id", order.ID)
		return &PushResult{OrderID: order.ID}, fmt.Errorf("%w: order %s", domain.ErrAttemptInProgress, order.ID)
	}
	return s.startPush(ctx, a, order, phone)
}

func (s *OrderService) startPush(ctx context.Context, a gateway.Adapter, order *domain.Order, phone string) (*PushResult, error) {
	res := &PushResult{OrderID: order.ID}

	sess, err := a.Initiate(ctx, gateway.InitiateRequest{
		OrderID:     order.ID,
		Amount:      order.Amount,
		PhoneNumber: phone,
	})
	if err != nil {
		s.logger.Warn("push initiation failed", "order_id", order.ID, "error", err)
		// a transport failure may still have reached the payer, so its claim
		// is left to expire
		if !errors.Is(err, domain.ErrGatewayUnavailable) {
			if rerr := s.repo.ReleaseAttempt(ctx, order.ID); rerr != nil {
				s.logger.Error("failed to release push attempt", "order_id", order.ID, "error", rerr)
			}
		}
		return res, err
	}
	if err := s.AttachSession(ctx, order.ID, sess.ID); err != nil {
		return res, err
	}

	res.SessionID = sess.ID
	res.Message = fmt.Sprintf("STK Push sent successfully to %s. Please check your phone and enter your PIN.", phone)
	if sess.CustomerMessage != "" {
		s.logger.Debug("gateway customer message", "order_id", order.ID, "message", sess.CustomerMessage)
	}
	return res, nil
}

// InitiateCheckout prices the cart from the catalog, creates the order and
// opens a hosted checkout session for it.
func (s *OrderService) InitiateCheckout(ctx context.Context, caller domain.Identity, req CheckoutRequest) (*CheckoutResult, error) {
	a, err := s.adapter(domain.MethodRedirectCheckout)
	if err != nil {
		return nil, err
	}
	lines, amount, err := s.priceItems(ctx, req.Items)
	if err != nil {
		return nil, err
	}

	order, err := domain.NewOrder(s.newID(), caller.UserID, req.AddressID, req.Items, amount, domain.MethodRedirectCheckout, s.now())
	if err != nil {
		return nil, err
	}
	if err := a.Validate(gateway.InitiateRequest{OrderID: order.ID, Amount: amount, Lines: lines}); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, order); err != nil {
		return nil, err
	}
	s.publish(order)

	res := &CheckoutResult{OrderID: order.ID}
	sess, err := a.Initiate(ctx, gateway.InitiateRequest{OrderID: order.ID, Amount: amount, Lines: lines})
	if err != nil {
		s.logger.Warn("checkout initiation failed", "order_id", order.ID, "error", err)
		return res, err
	}
	if err := s.AttachSession(ctx, order.ID, sess.ID); err != nil {
		return res, err
	}
	res.SessionID = sess.ID
	res.RedirectURL = sess.RedirectURL
	return res, nil
}

func (s *OrderService) priceItems(ctx context.Context, items []domain.LineItem) ([]gateway.Line, int64, error) {
	if len(items) == 0 {
		return nil, 0, domain.Validationf("at least one line item is required")
	}
	lines := make([]gateway.Line, 0, len(items))
	var amount int64
	for _, it := range items {
		if it.ProductID == "" || it.Quantity <= 0 {
			return nil, 0, domain.Validationf("line items need a product and a positive quantity")
		}
		prod, err := s.prodClient.GetProductById(ctx, it.ProductID)
		if err != nil {
			return nil, 0, fmt.Errorf("look up product %s: %w", it.ProductID, err)
		}
		if prod == nil {
			return nil, 0, domain.Validationf("product %s not found", it.ProductID)
		}
		lines = append(lines, gateway.Line{Name: prod.Name, UnitAmount: prod.Price, Quantity: it.Quantity})
		amount += prod.Price * int64(it.Quantity)
	}
	return lines, amount, nil
}

// AttachSession records the gateway session on a PendingPayment order and
// moves it to AwaitingCallback. A second call for the same order fails.
func (s *OrderService) AttachSession(ctx context.Context, orderID, sessionID string) error {
	if sessionID == "" {
		return domain.Validationf("gateway returned an empty session id")
	}
	ok, err := s.repo.AttachSession(ctx, orderID, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateSession) {
			s.logger.Error("gateway session already claimed", "order_id", orderID, "session_id", sessionID)
		}
		return err
	}
	if ok {
		s.logger.Info("gateway session attached", "order_id", orderID, "session_id", sessionID, "status", domain.StatusAwaitingCallback)
		return nil
	}

	cur, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return err
	}
	if cur == nil {
		return domain.ErrOrderNotFound
	}
	return s.rejectTransition(orderID, cur.Status, domain.StatusAwaitingCallback)
}

// ApplyOutcome settles the order correlated with sessionID. Redelivered
// outcomes for an already settled order are reported as ResultAlreadyTerminal
// and change nothing.
func (s *OrderService) ApplyOutcome(ctx context.Context, sessionID string, outcome domain.Outcome) (domain.ApplyResult, error) {
	order, err := s.repo.FindBySessionID(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if order == nil {
		s.logger.Warn("outcome for unknown session", "session_id", sessionID)
		return "", domain.ErrOrderNotFound
	}
	if order.Status.IsTerminal() {
		s.logger.Info("outcome for settled order ignored", "order_id", order.ID, "session_id", sessionID, "status", order.Status)
		return domain.ResultAlreadyTerminal, nil
	}

	to := outcome.TargetStatus()
	if !domain.CanTransition(order.Status, to) {
		return "", s.rejectTransition(order.ID, order.Status, to)
	}

	t := repository.Transition{From: []domain.OrderStatus{domain.StatusAwaitingCallback}, To: to}
	if outcome.Kind == domain.OutcomeSuccess {
		t.ReceiptID = &outcome.ReceiptID
		if outcome.Timestamp != "" {
			t.TransactionTimestamp = &outcome.Timestamp
		}
	} else {
		t.FailureReason = &outcome.Reason
	}

	won, err := s.repo.Apply(ctx, order.ID, t)
	if err != nil {
		return "", err
	}
	if !won {
		// lost the race with another writer
		cur, err := s.repo.FindByID(ctx, order.ID)
		if err != nil {
			return "", err
		}
		if cur != nil && cur.Status.IsTerminal() {
			s.logger.Info("outcome lost race to settled order", "order_id", order.ID, "session_id", sessionID, "status", cur.Status)
			return domain.ResultAlreadyTerminal, nil
		}
		from := order.Status
		if cur != nil {
			from = cur.Status
		}
		return "", s.rejectTransition(order.ID, from, to)
	}

	order.Status = to
	order.IsPaid = to.IsPaidState()
	order.ReceiptID = t.ReceiptID
	order.FailureReason = t.FailureReason
	order.TransactionTimestamp = t.TransactionTimestamp
	s.logger.Info("payment settled", "order_id", order.ID, "session_id", sessionID, "status", to)
	s.publish(order)
	return domain.ResultApplied, nil
}

// ManualVerify forces an unsettled order into ManuallyVerified with a
// synthesized receipt. It never touches an order that is already settled.
func (s *OrderService) ManualVerify(ctx context.Context, actor domain.Identity, orderID string) (*domain.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.ErrOrderNotFound
	}
	if s.verifyRole != "" {
		if !actor.HasRole(s.verifyRole) {
			s.logger.Warn("manual verify denied", "order_id", orderID, "actor_id", actor.UserID, "role", actor.Role)
			return nil, domain.ErrForbidden
		}
	} else if order.OwnerID != actor.UserID {
		return nil, domain.ErrOrderNotFound
	}

	to := domain.StatusManuallyVerified
	if !domain.CanTransition(order.Status, to) {
		return nil, s.rejectTransition(order.ID, order.Status, to)
	}

	now := s.now()
	receipt := manualReceiptPrefix + strconv.FormatInt(now.UnixMilli(), 10)
	t := repository.Transition{
		From:       domain.SourcesOf(to),
		To:         to,
		ReceiptID:  &receipt,
		VerifiedBy: &actor.UserID,
	}
	won, err := s.repo.Apply(ctx, order.ID, t)
	if err != nil {
		return nil, err
	}
	if !won {
		from := order.Status
		if cur, err := s.repo.FindByID(ctx, order.ID); err == nil && cur != nil {
			from = cur.Status
		}
		return nil, s.rejectTransition(order.ID, from, to)
	}

	s.logger.Warn("order manually verified",
		"order_id", order.ID,
		"actor_id", actor.UserID,
		"previous_status", order.Status,
		"session_id", order.SessionID(),
		"receipt_id", receipt,
	)

	order.Status = to
	order.IsPaid = true
	order.ReceiptID = &receipt
	order.VerifiedBy = &actor.UserID
	order.UpdatedAt = now
	s.publish(order)
	return order, nil
}

// GetStatus is a side-effect-free read of an order the caller owns.
func (s *OrderService) GetStatus(ctx context.Context, caller domain.Identity, orderID string) (domain.StatusView, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return domain.StatusView{}, err
	}
	if order == nil || (order.OwnerID != caller.UserID && !caller.HasRole(s.adminRole)) {
		return domain.StatusView{}, domain.ErrOrderNotFound
	}
	return order.View(), nil
}

func (s *OrderService) ListOrders(ctx context.Context, caller domain.Identity) ([]domain.Order, error) {
	orders, err := s.repo.FindByOwner(ctx, caller.UserID)
	if err != nil {
		return nil, err
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	return orders, nil
}

// ListAllOrders is the operator view across every buyer, newest first. Only
// holders of the admin role may use it; status narrows the listing, for
// instance to ManuallyVerified orders awaiting reconciliation.
func (s *OrderService) ListAllOrders(ctx context.Context, caller domain.Identity, status domain.OrderStatus) ([]domain.Order, error) {
	if !caller.HasRole(s.adminRole) {
		s.logger.Warn("order listing refused", "actor_id", caller.UserID)
		return nil, domain.ErrForbidden
	}
	if status != "" && !status.Valid() {
		return nil, domain.Validationf("unknown order status %q", status)
	}
	orders, err := s.repo.FindAll(ctx, repository.OrderFilter{Status: status})
	if err != nil {
		return nil, err
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	return orders, nil
}

func (s *OrderService) ownedOrder(ctx context.Context, caller domain.Identity, orderID string) (*domain.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil || order.OwnerID != caller.UserID {
		return nil, domain.ErrOrderNotFound
	}
	return order, nil
}

func (s *OrderService) rejectTransition(orderID string, from, to domain.OrderStatus) error {
	err := &domain.TransitionError{OrderID: orderID, From: from, To: to}
	s.logger.Error("invalid order transition", "order_id", orderID, "from", from, "to", to)
	return err
}

func (s *OrderService) publish(order *domain.Order) {
	pattern, evt := domain.EventFor(order, s.now())
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		s.publishEvent(context.Background(), pattern, evt)
	}()
}

func (s *OrderService) publishEvent(ctx context.Context, pattern string, evt domain.PaymentEvent) {
	s.logger.Debug("publishing event", "pattern", pattern, "order_id", evt.OrderID)
	if err := s.publisher.Publish(ctx, pattern, evt); err != nil {
		s.logger.Error("failed to publish event", "pattern", pattern, "order_id", evt.OrderID, "error", err)
	}
}

// Wait blocks until every queued event has been handed to the publisher.
func (s *OrderService) Wait() {
	s.inflight.Wait()
}
