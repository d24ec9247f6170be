package mocks

import (
	"context"
	"net/http"
	"time"

	"payment-service/internal/domain"
	"payment-service/internal/gateway"
	"payment-service/internal/infra"
	"payment-service/internal/repository"

	"github.com/stretchr/testify/mock"
)

type MockOrderRepository struct {
	mock.Mock
}

type MockProductClient struct {
	mock.Mock
}

type MockPublisher struct {
	mock.Mock
}

type MockAdapter struct {
	mock.Mock
	PaymentMethod domain.PaymentMethod
}

var _ repository.OrderRepository = (*MockOrderRepository)(nil)
var _ infra.ProductClientInterface = (*MockProductClient)(nil)
var _ gateway.Adapter = (*MockAdapter)(nil)

func (m *MockPublisher) Publish(ctx context.Context, topic string, message any) error {
	args := m.Called(ctx, topic, message)
	return args.Error(0)
}

func (m *MockProductClient) GetProductById(ctx context.Context, productId string) (*infra.ProductInfo, error) {
	args := m.Called(ctx, productId)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*infra.ProductInfo), args.Error(1)
}

func (m *MockOrderRepository) Save(ctx context.Context, order *domain.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *MockOrderRepository) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *MockOrderRepository) FindBySessionID(ctx context.Context, sessionID string) (*domain.Order, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *MockOrderRepository) FindByOwner(ctx context.Context, ownerID string) ([]domain.Order, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Order), args.Error(1)
}

func (m *MockOrderRepository) FindAll(ctx context.Context, f repository.OrderFilter) ([]domain.Order, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Order), args.Error(1)
}

func (m *MockOrderRepository) ClaimAttempt(ctx context.Context, orderID string, now, staleBefore time.Time) (bool, error) {
	args := m.Called(ctx, orderID, now, staleBefore)
	return args.Bool(0), args.Error(1)
}

func (m *MockOrderRepository) ReleaseAttempt(ctx context.Context, orderID string) error {
	args := m.Called(ctx, orderID)
	return args.Error(0)
}

func (m *MockOrderRepository) AttachSession(ctx context.Context, orderID, sessionID string) (bool, error) {
	args := m.Called(ctx, orderID, sessionID)
	return args.Bool(0), args.Error(1)
}

func (m *MockOrderRepository) Apply(ctx context.Context, orderID string, t repository.Transition) (bool, error) {
	args := m.Called(ctx, orderID, t)
	return args.Bool(0), args.Error(1)
}

func (m *MockAdapter) Method() domain.PaymentMethod {
	return m.PaymentMethod
}

func (m *MockAdapter) Ready() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockAdapter) Validate(req gateway.InitiateRequest) error {
	args := m.Called(req)
	return args.Error(0)
}

func (m *MockAdapter) Initiate(ctx context.Context, req gateway.InitiateRequest) (*gateway.Session, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.Session), args.Error(1)
}

func (m *MockAdapter) Reconcile(header http.Header, body []byte) (*gateway.Notification, error) {
	args := m.Called(header, body)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.Notification), args.Error(1)
}

func (m *MockAdapter) Acknowledge(err error) (int, any) {
	args := m.Called(err)
	return args.Int(0), args.Get(1)
}
