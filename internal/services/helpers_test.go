package services

import (
	"time"

	"payment-service/internal/domain"
	"payment-service/internal/infra"
)

var testNow = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

const (
	testOwner   = "user_1"
	testOrderID = "order-1"
	testPhone   = "0712345678"
)

var (
	owner    = domain.Identity{UserID: testOwner}
	stranger = domain.Identity{UserID: "user_2"}
)

func testItems() []domain.LineItem {
	return []domain.LineItem{{ProductID: "p1", Quantity: 2}}
}

func createMockOrder(status domain.OrderStatus, sessionID string) *domain.Order {
	o := &domain.Order{
		ID:            testOrderID,
		OwnerID:       testOwner,
		Items:         testItems(),
		Amount:        500,
		AddressID:     "addr-1",
		PayerPhone:    testPhone,
		PaymentMethod: domain.MethodPushMoney,
		Status:        status,
		IsPaid:        status.IsPaidState(),
		CreatedAt:     testNow,
	}
	if sessionID != "" {
		o.GatewaySessionID = &sessionID
	}
	return o
}

func createMockProduct(id, name string, price int64) *infra.ProductInfo {
	return &infra.ProductInfo{ID: id, Name: name, Price: price, Qty: 10}
}
