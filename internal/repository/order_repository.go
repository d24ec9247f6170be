package repository

import (
	"context"
	"payment-service/internal/domain"
	"time"
)

// Transition describes a guarded status change. It is applied only while the
// stored status is one of From.
type Transition struct {
	From                 []domain.OrderStatus
	To                   domain.OrderStatus
	ReceiptID            *string
	FailureReason        *string
	TransactionTimestamp *string
	VerifiedBy           *string
}

// OrderFilter narrows an operator listing. Zero values match everything.
type OrderFilter struct {
	Status domain.OrderStatus
}

type OrderRepository interface {
	Save(ctx context.Context, order *domain.Order) error
	FindByID(ctx context.Context, id string) (*domain.Order, error)
	FindBySessionID(ctx context.Context, sessionID string) (*domain.Order, error)
	FindByOwner(ctx context.Context, ownerID string) ([]domain.Order, error)
	FindAll(ctx context.Context, f OrderFilter) ([]domain.Order, error)

	// ClaimAttempt marks a PendingPayment order as having a push attempt in
	// flight. A claim made before staleBefore may be taken over. It reports
	// false when another attempt holds the order.
	ClaimAttempt(ctx context.Context, orderID string, now, staleBefore time.Time) (bool, error)
	ReleaseAttempt(ctx context.Context, orderID string) error

	// AttachSession sets the gateway session and moves PendingPayment to
	// AwaitingCallback. It reports false when the guard did not match.
	AttachSession(ctx context.Context, orderID, sessionID string) (bool, error)

	// Apply performs a compare-and-set on status and reports whether this
	// caller won.
	Apply(ctx context.Context, orderID string, t Transition) (bool, error)
}
