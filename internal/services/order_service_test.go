package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"payment-service/internal/domain"
	"payment-service/internal/gateway"
	"payment-service/internal/logging"
	"payment-service/internal/mocks"
	"payment-service/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type fixture struct {
	repo     *mocks.MockOrderRepository
	products *mocks.MockProductClient
	pub      *mocks.MockPublisher
	push     *mocks.MockAdapter
	checkout *mocks.MockAdapter
}

func newFixture() *fixture {
	return &fixture{
		repo:     new(mocks.MockOrderRepository),
		products: new(mocks.MockProductClient),
		pub:      new(mocks.MockPublisher),
		push:     &mocks.MockAdapter{PaymentMethod: domain.MethodPushMoney},
		checkout: &mocks.MockAdapter{PaymentMethod: domain.MethodRedirectCheckout},
	}
}

func (f *fixture) service(opts ...Option) *OrderService {
	opts = append([]Option{
		WithClock(func() time.Time { return testNow }),
		WithIDGenerator(func() string { return testOrderID }),
	}, opts...)
	return NewOrderService(f.repo, f.products, f.pub, logging.Discard(), []gateway.Adapter{f.push, f.checkout}, opts...)
}

func (f *fixture) assertExpectations(t *testing.T, s *OrderService) {
	s.Wait()
	f.repo.AssertExpectations(t)
	f.products.AssertExpectations(t)
	f.pub.AssertExpectations(t)
	f.push.AssertExpectations(t)
	f.checkout.AssertExpectations(t)
}

func TestOrderService_InitiatePush(t *testing.T) {
	validReq := PushRequest{AddressID: "addr-1", Items: testItems(), PhoneNumber: testPhone, Amount: 500}

	tests := []struct {
		name          string
		req           PushRequest
		setupMocks    func(*fixture)
		expectedIs    error
		expectOrderID bool
		expectSession string
	}{
		{
			name: "push accepted",
			req:  validReq,
			setupMocks: func(f *fixture) {
				f.push.On("Ready").Return(nil)
				f.push.On("Validate", gateway.InitiateRequest{OrderID: testOrderID, Amount: 500, PhoneNumber: testPhone}).Return(nil)
				f.repo.On("Save", mock.Anything, mock.AnythingOfType("*domain.Order")).Return(nil).Run(func(args mock.Arguments) {
					o := args.Get(1).(*domain.Order)
					assert.Equal(t, domain.StatusPendingPayment, o.Status)
					assert.Equal(t, int64(500), o.Amount)
					assert.Equal(t, testOwner, o.OwnerID)
					assert.Equal(t, 1, o.PushAttempts)
					if assert.NotNil(t, o.PushAttemptAt) {
						assert.Equal(t, testNow, *o.PushAttemptAt)
					}
				})
				f.pub.On("Publish", mock.Anything, domain.EventOrderCreated, mock.Anything).Return(nil)
				f.push.On("Initiate", mock.Anything, gateway.InitiateRequest{OrderID: testOrderID, Amount: 500, PhoneNumber: testPhone}).
					Return(&gateway.Session{ID: "ws_CO_1"}, nil)
				f.repo.On("AttachSession", mock.Anything, testOrderID, "ws_CO_1").Return(true, nil)
			},
			expectOrderID: true,
			expectSession: "ws_CO_1",
		},
		{
			name: "gateway not configured creates nothing",
			req:  validReq,
			setupMocks: func(f *fixture) {
				f.push.On("Ready").Return(&domain.UnavailableError{Provider: "M-Pesa", Message: "not configured"})
			},
			expectedIs: domain.ErrConfigurationMissing,
		},
		{
			name: "missing phone",
			req:  PushRequest{AddressID: "addr-1", Items: testItems(), Amount: 500},
			setupMocks: func(f *fixture) {
				f.push.On("Ready").Return(nil)
			},
			expectedIs: domain.ErrValidation,
		},
		{
			name: "non-positive amount",
			req:  PushRequest{AddressID: "addr-1", Items: testItems(), PhoneNumber: testPhone},
			setupMocks: func(f *fixture) {
				f.push.On("Ready").Return(nil)
			},
			expectedIs: domain.ErrValidation,
		},
		{
			name: "invalid phone creates no order",
			req:  PushRequest{AddressID: "addr-1", Items: testItems(), PhoneNumber: "0712-34", Amount: 500},
			setupMocks: func(f *fixture) {
				f.push.On("Ready").Return(nil)
				f.push.On("Validate", mock.Anything).Return(domain.Validationf("phone number is not valid"))
			},
			expectedIs: domain.ErrValidation,
		},
		{
			name: "gateway rejection leaves order pending and releases the attempt",
			req:  validReq,
			setupMocks: func(f *fixture) {
				f.push.On("Ready").Return(nil)
				f.push.On("Validate", mock.Anything).Return(nil)
				f.repo.On("Save", mock.Anything, mock.AnythingOfType("*domain.Order")).Return(nil)
				f.pub.On("Publish", mock.Anything, domain.EventOrderCreated, mock.Anything).Return(nil)
				f.push.On("Initiate", mock.Anything, mock.Anything).
					Return(nil, &domain.GatewayError{Provider: "M-Pesa", StatusCode: 400, Description: "Invalid BusinessShortCode"})
				f.repo.On("ReleaseAttempt", mock.Anything, testOrderID).Return(nil)
			},
			expectedIs:    domain.ErrGatewayRejected,
			expectOrderID: true,
		},
		{
			name: "unreachable gateway keeps the attempt claimed",
			req:  validReq,
			setupMocks: func(f *fixture) {
				f.push.On("Ready").Return(nil)
				f.push.On("Validate", mock.Anything).Return(nil)
				f.repo.On("Save", mock.Anything, mock.AnythingOfType("*domain.Order")).Return(nil)
				f.pub.On("Publish", mock.Anything, domain.EventOrderCreated, mock.Anything).Return(nil)
				f.push.On("Initiate", mock.Anything, mock.Anything).
					Return(nil, fmt.Errorf("%w: stk push: timeout", domain.ErrGatewayUnavailable))
			},
			expectedIs:    domain.ErrGatewayUnavailable,
			expectOrderID: true,
		},
		{
			name: "save failure",
			req:  validReq,
			setupMocks: func(f *fixture) {
				f.push.On("Ready").Return(nil)
				f.push.On("Validate", mock.Anything).Return(nil)
				f.repo.On("Save", mock.Anything, mock.AnythingOfType("*domain.Order")).Return(errors.New("database error"))
			},
			expectedIs: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			tt.setupMocks(f)
			s := f.service()

			res, err := s.InitiatePush(context.Background(), owner, tt.req)

			switch {
			case tt.name == "save failure":
				assert.EqualError(t, err, "database error")
				assert.Nil(t, res)
			case tt.expectedIs != nil:
				assert.ErrorIs(t, err, tt.expectedIs)
				if tt.expectOrderID {
					if assert.NotNil(t, res) {
						assert.Equal(t, testOrderID, res.OrderID)
						assert.Empty(t, res.SessionID)
					}
				} else {
					assert.Nil(t, res)
				}
			default:
				assert.NoError(t, err)
				assert.Equal(t, testOrderID, res.OrderID)
				assert.Equal(t, tt.expectSession, res.SessionID)
				assert.Contains(t, res.Message, testPhone)
			}

			f.assertExpectations(t, s)
		})
	}
}

func TestOrderService_InitiatePush_NoAdapter(t *testing.T) {
	f := newFixture()
	s := NewOrderService(f.repo, f.products, f.pub, logging.Discard(), nil)

	_, err := s.InitiatePush(context.Background(), owner, PushRequest{})
	assert.ErrorIs(t, err, domain.ErrConfigurationMissing)
}

func TestOrderService_RetryPush(t *testing.T) {
	tests := []struct {
		name       string
		caller     domain.Identity
		stored     *domain.Order
		setupMocks func(*fixture)
		expectedIs error
	}{
		{
			name:   "pending order is pushed again with stored phone",
			caller: owner,
			stored: createMockOrder(domain.StatusPendingPayment, ""),
			setupMocks: func(f *fixture) {
				f.push.On("Validate", gateway.InitiateRequest{OrderID: testOrderID, Amount: 500, PhoneNumber: testPhone}).Return(nil)
				f.repo.On("ClaimAttempt", mock.Anything, testOrderID, testNow, testNow.Add(-pushAttemptLease)).Return(true, nil)
				f.push.On("Initiate", mock.Anything, gateway.InitiateRequest{OrderID: testOrderID, Amount: 500, PhoneNumber: testPhone}).
					Return(&gateway.Session{ID: "ws_CO_2"}, nil)
				f.repo.On("AttachSession", mock.Anything, testOrderID, "ws_CO_2").Return(true, nil)
			},
		},
		{
			name:   "attempt already in flight is refused",
			caller: owner,
			stored: createMockOrder(domain.StatusPendingPayment, ""),
			setupMocks: func(f *fixture) {
				f.push.On("Validate", mock.Anything).Return(nil)
				f.repo.On("ClaimAttempt", mock.Anything, testOrderID, testNow, testNow.Add(-pushAttemptLease)).Return(false, nil)
			},
			expectedIs: domain.ErrAttemptInProgress,
		},
		{
			name:       "awaiting order cannot be pushed again",
			caller:     owner,
			stored:     createMockOrder(domain.StatusAwaitingCallback, "ws_CO_1"),
			setupMocks: func(f *fixture) {},
			expectedIs: domain.ErrInvalidTransition,
		},
		{
			name:       "someone else's order is not found",
			caller:     stranger,
			stored:     createMockOrder(domain.StatusPendingPayment, ""),
			setupMocks: func(f *fixture) {},
			expectedIs: domain.ErrOrderNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.push.On("Ready").Return(nil)
			f.repo.On("FindByID", mock.Anything, testOrderID).Return(tt.stored, nil)
			tt.setupMocks(f)
			s := f.service()

			res, err := s.RetryPush(context.Background(), tt.caller, testOrderID, "")
			if tt.expectedIs != nil {
				assert.ErrorIs(t, err, tt.expectedIs)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, "ws_CO_2", res.SessionID)
			}
			f.assertExpectations(t, s)
		})
	}
}

func TestOrderService_InitiateCheckout(t *testing.T) {
	f := newFixture()
	f.checkout.On("Ready").Return(nil)
	f.products.On("GetProductById", mock.Anything, "p1").Return(createMockProduct("p1", "Kettle", 2500), nil)
	f.products.On("GetProductById", mock.Anything, "p2").Return(createMockProduct("p2", "Mug", 300), nil)
	f.repo.On("Save", mock.Anything, mock.AnythingOfType("*domain.Order")).Return(nil).Run(func(args mock.Arguments) {
		o := args.Get(1).(*domain.Order)
		assert.Equal(t, int64(2*2500+3*300), o.Amount)
		assert.Equal(t, domain.MethodRedirectCheckout, o.PaymentMethod)
	})
	f.pub.On("Publish", mock.Anything, domain.EventOrderCreated, mock.Anything).Return(nil)
	checkoutReq := gateway.InitiateRequest{
		OrderID: testOrderID,
		Amount:  5900,
		Lines: []gateway.Line{
			{Name: "Kettle", UnitAmount: 2500, Quantity: 2},
			{Name: "Mug", UnitAmount: 300, Quantity: 3},
		},
	}
	f.checkout.On("Validate", checkoutReq).Return(nil)
	f.checkout.On("Initiate", mock.Anything, checkoutReq).Return(&gateway.Session{ID: "cs_1", RedirectURL: "https://checkout.example/cs_1"}, nil)
	f.repo.On("AttachSession", mock.Anything, testOrderID, "cs_1").Return(true, nil)

	s := f.service()
	res, err := s.InitiateCheckout(context.Background(), owner, CheckoutRequest{
		AddressID: "addr-1",
		Items:     []domain.LineItem{{ProductID: "p1", Quantity: 2}, {ProductID: "p2", Quantity: 3}},
	})
	assert.NoError(t, err)
	assert.Equal(t, "cs_1", res.SessionID)
	assert.Equal(t, "https://checkout.example/cs_1", res.RedirectURL)
	f.assertExpectations(t, s)
}

func TestOrderService_InitiateCheckout_UnknownProduct(t *testing.T) {
	f := newFixture()
	f.checkout.On("Ready").Return(nil)
	f.products.On("GetProductById", mock.Anything, "ghost").Return(nil, nil)

	s := f.service()
	_, err := s.InitiateCheckout(context.Background(), owner, CheckoutRequest{
		AddressID: "addr-1",
		Items:     []domain.LineItem{{ProductID: "ghost", Quantity: 1}},
	})
	assert.ErrorIs(t, err, domain.ErrValidation)
	f.assertExpectations(t, s)
}

func TestOrderService_AttachSession_Twice(t *testing.T) {
	f := newFixture()
	f.repo.On("AttachSession", mock.Anything, testOrderID, "sess-2").Return(false, nil)
	f.repo.On("FindByID", mock.Anything, testOrderID).Return(createMockOrder(domain.StatusAwaitingCallback, "sess-1"), nil)

	s := f.service()
	err := s.AttachSession(context.Background(), testOrderID, "sess-2")

	var te *domain.TransitionError
	assert.True(t, errors.As(err, &te))
	assert.Equal(t, domain.StatusAwaitingCallback, te.From)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	f.assertExpectations(t, s)
}

func TestOrderService_ApplyOutcome(t *testing.T) {
	success := domain.Success("R1", "20240101120000")

	tests := []struct {
		name       string
		outcome    domain.Outcome
		setupMocks func(*fixture)
		expected   domain.ApplyResult
		expectedIs error
	}{
		{
			name:    "success settles awaiting order",
			outcome: success,
			setupMocks: func(f *fixture) {
				f.repo.On("FindBySessionID", mock.Anything, "sess-1").Return(createMockOrder(domain.StatusAwaitingCallback, "sess-1"), nil)
				f.repo.On("Apply", mock.Anything, testOrderID, mock.MatchedBy(func(tr repository.Transition) bool {
					return tr.To == domain.StatusPaid &&
						len(tr.From) == 1 && tr.From[0] == domain.StatusAwaitingCallback &&
						tr.ReceiptID != nil && *tr.ReceiptID == "R1" &&
						tr.TransactionTimestamp != nil && *tr.TransactionTimestamp == "20240101120000" &&
						tr.FailureReason == nil
				})).Return(true, nil)
				f.pub.On("Publish", mock.Anything, domain.EventOrderPaid, mock.MatchedBy(func(e domain.PaymentEvent) bool {
					return e.ReceiptID == "R1" && e.Status == domain.StatusPaid
				})).Return(nil)
			},
			expected: domain.ResultApplied,
		},
		{
			name:    "failure records reason",
			outcome: domain.Failure("Insufficient funds"),
			setupMocks: func(f *fixture) {
				f.repo.On("FindBySessionID", mock.Anything, "sess-1").Return(createMockOrder(domain.StatusAwaitingCallback, "sess-1"), nil)
				f.repo.On("Apply", mock.Anything, testOrderID, mock.MatchedBy(func(tr repository.Transition) bool {
					return tr.To == domain.StatusPaymentFailed && tr.FailureReason != nil && *tr.FailureReason == "Insufficient funds" && tr.ReceiptID == nil
				})).Return(true, nil)
				f.pub.On("Publish", mock.Anything, domain.EventOrderPaymentFailed, mock.Anything).Return(nil)
			},
			expected: domain.ResultApplied,
		},
		{
			name:    "redelivery to settled order is a no-op",
			outcome: success,
			setupMocks: func(f *fixture) {
				f.repo.On("FindBySessionID", mock.Anything, "sess-1").Return(createMockOrder(domain.StatusPaid, "sess-1"), nil)
			},
			expected: domain.ResultAlreadyTerminal,
		},
		{
			name:    "lost race observes settled order",
			outcome: success,
			setupMocks: func(f *fixture) {
				f.repo.On("FindBySessionID", mock.Anything, "sess-1").Return(createMockOrder(domain.StatusAwaitingCallback, "sess-1"), nil)
				f.repo.On("Apply", mock.Anything, testOrderID, mock.Anything).Return(false, nil)
				f.repo.On("FindByID", mock.Anything, testOrderID).Return(createMockOrder(domain.StatusManuallyVerified, "sess-1"), nil)
			},
			expected: domain.ResultAlreadyTerminal,
		},
		{
			name:    "unknown session",
			outcome: success,
			setupMocks: func(f *fixture) {
				f.repo.On("FindBySessionID", mock.Anything, "sess-1").Return(nil, nil)
			},
			expectedIs: domain.ErrOrderNotFound,
		},
		{
			name:    "repository error",
			outcome: success,
			setupMocks: func(f *fixture) {
				f.repo.On("FindBySessionID", mock.Anything, "sess-1").Return(nil, errors.New("database connection error"))
			},
			expectedIs: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			tt.setupMocks(f)
			s := f.service()

			res, err := s.ApplyOutcome(context.Background(), "sess-1", tt.outcome)
			switch {
			case tt.name == "repository error":
				assert.EqualError(t, err, "database connection error")
			case tt.expectedIs != nil:
				assert.ErrorIs(t, err, tt.expectedIs)
			default:
				assert.NoError(t, err)
				assert.Equal(t, tt.expected, res)
			}
			f.assertExpectations(t, s)
		})
	}
}

func TestOrderService_ManualVerify(t *testing.T) {
	admin := domain.Identity{UserID: "ops_1", Role: "support"}

	tests := []struct {
		name       string
		caller     domain.Identity
		role       string
		stored     *domain.Order
		won        bool
		expectedIs error
	}{
		{name: "owner verifies awaiting order", caller: owner, stored: createMockOrder(domain.StatusAwaitingCallback, "sess-1"), won: true},
		{name: "owner verifies pending order", caller: owner, stored: createMockOrder(domain.StatusPendingPayment, ""), won: true},
		{name: "stranger cannot see the order", caller: stranger, stored: createMockOrder(domain.StatusAwaitingCallback, "sess-1"), expectedIs: domain.ErrOrderNotFound},
		{name: "paid order is refused", caller: owner, stored: createMockOrder(domain.StatusPaid, "sess-1"), expectedIs: domain.ErrInvalidTransition},
		{name: "failed order is refused", caller: owner, stored: createMockOrder(domain.StatusPaymentFailed, "sess-1"), expectedIs: domain.ErrInvalidTransition},
		{name: "role required and missing", caller: owner, role: "support", stored: createMockOrder(domain.StatusAwaitingCallback, "sess-1"), expectedIs: domain.ErrForbidden},
		{name: "role holder verifies any order", caller: admin, role: "support", stored: createMockOrder(domain.StatusAwaitingCallback, "sess-1"), won: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.repo.On("FindByID", mock.Anything, testOrderID).Return(tt.stored, nil)
			if tt.won {
				f.repo.On("Apply", mock.Anything, testOrderID, mock.MatchedBy(func(tr repository.Transition) bool {
					return tr.To == domain.StatusManuallyVerified &&
						len(tr.From) == 2 &&
						*tr.ReceiptID == "MANUAL_1704099600000" &&
						*tr.VerifiedBy == tt.caller.UserID
				})).Return(true, nil)
				f.pub.On("Publish", mock.Anything, domain.EventOrderManuallyVerified, mock.Anything).Return(nil)
			}
			s := f.service(WithManualVerifyRole(tt.role))

			got, err := s.ManualVerify(context.Background(), tt.caller, testOrderID)
			if tt.expectedIs != nil {
				assert.ErrorIs(t, err, tt.expectedIs)
				assert.Nil(t, got)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, domain.StatusManuallyVerified, got.Status)
				assert.True(t, got.IsPaid)
				assert.Equal(t, "MANUAL_1704099600000", *got.ReceiptID)
			}
			f.assertExpectations(t, s)
		})
	}
}

func TestOrderService_GetStatus(t *testing.T) {
	tests := []struct {
		name       string
		caller     domain.Identity
		stored     *domain.Order
		expectedIs error
	}{
		{name: "owner reads status", caller: owner, stored: createMockOrder(domain.StatusAwaitingCallback, "sess-1")},
		{name: "admin reads any status", caller: domain.Identity{UserID: "ops", Role: "admin"}, stored: createMockOrder(domain.StatusAwaitingCallback, "sess-1")},
		{name: "stranger gets not found", caller: stranger, stored: createMockOrder(domain.StatusAwaitingCallback, "sess-1"), expectedIs: domain.ErrOrderNotFound},
		{name: "missing order", caller: owner, expectedIs: domain.ErrOrderNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			if tt.stored != nil {
				f.repo.On("FindByID", mock.Anything, testOrderID).Return(tt.stored, nil)
			} else {
				f.repo.On("FindByID", mock.Anything, testOrderID).Return(nil, nil)
			}
			s := f.service(WithAdminRole("admin"))

			view, err := s.GetStatus(context.Background(), tt.caller, testOrderID)
			if tt.expectedIs != nil {
				assert.ErrorIs(t, err, tt.expectedIs)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, testOrderID, view.OrderID)
			assert.Equal(t, domain.StatusAwaitingCallback, view.Status)
			assert.False(t, view.IsPaid)
			f.assertExpectations(t, s)
		})
	}
}

func TestOrderService_ListOrders(t *testing.T) {
	f := newFixture()
	f.repo.On("FindByOwner", mock.Anything, testOwner).Return(nil, nil)

	s := f.service()
	orders, err := s.ListOrders(context.Background(), owner)
	assert.NoError(t, err)
	assert.NotNil(t, orders)
	assert.Empty(t, orders)
	f.assertExpectations(t, s)
}

func TestOrderService_PublishFailureDoesNotFailTransition(t *testing.T) {
	f := newFixture()
	f.repo.On("FindBySessionID", mock.Anything, "sess-1").Return(createMockOrder(domain.StatusAwaitingCallback, "sess-1"), nil)
	f.repo.On("Apply", mock.Anything, testOrderID, mock.Anything).Return(true, nil)
	f.pub.On("Publish", mock.Anything, domain.EventOrderPaid, mock.Anything).Return(errors.New("broker down"))

	s := f.service()
	res, err := s.ApplyOutcome(context.Background(), "sess-1", domain.Success("R1", ""))
	assert.NoError(t, err)
	assert.Equal(t, domain.ResultApplied, res)
	f.assertExpectations(t, s)
}

func TestOrderService_ListAllOrders(t *testing.T) {
	operator := domain.Identity{UserID: "ops_1", Role: "admin"}

	tests := []struct {
		name       string
		caller     domain.Identity
		status     domain.OrderStatus
		setupMocks func(*fixture)
		expectedIs error
		expectLen  int
	}{
		{
			name:   "operator lists every order",
			caller: operator,
			setupMocks: func(f *fixture) {
				f.repo.On("FindAll", mock.Anything, repository.OrderFilter{}).
					Return([]domain.Order{*createMockOrder(domain.StatusPaid, "sess-1"), *createMockOrder(domain.StatusPendingPayment, "")}, nil)
			},
			expectLen: 2,
		},
		{
			name:   "operator narrows to manually verified orders",
			caller: operator,
			status: domain.StatusManuallyVerified,
			setupMocks: func(f *fixture) {
				f.repo.On("FindAll", mock.Anything, repository.OrderFilter{Status: domain.StatusManuallyVerified}).Return(nil, nil)
			},
			expectLen: 0,
		},
		{
			name:       "buyer is refused",
			caller:     owner,
			setupMocks: func(f *fixture) {},
			expectedIs: domain.ErrForbidden,
		},
		{
			name:       "unknown status filter",
			caller:     operator,
			status:     "Refunded",
			setupMocks: func(f *fixture) {},
			expectedIs: domain.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			tt.setupMocks(f)
			s := f.service(WithAdminRole("admin"))

			orders, err := s.ListAllOrders(context.Background(), tt.caller, tt.status)
			if tt.expectedIs != nil {
				assert.ErrorIs(t, err, tt.expectedIs)
				assert.Nil(t, orders)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, orders)
				assert.Len(t, orders, tt.expectLen)
			}
			f.assertExpectations(t, s)
		})
	}
}

func TestOrderService_ListAllOrders_NoAdminRoleConfigured(t *testing.T) {
	f := newFixture()
	s := f.service(WithAdminRole(""))

	_, err := s.ListAllOrders(context.Background(), domain.Identity{UserID: "ops_1"}, "")
	assert.ErrorIs(t, err, domain.ErrForbidden)
	f.assertExpectations(t, s)
}
