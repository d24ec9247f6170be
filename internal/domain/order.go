package domain

import "time"

type PaymentMethod string

const (
	MethodCashOnDelivery   PaymentMethod = "CashOnDelivery"
	MethodPushMoney        PaymentMethod = "PushMoney"
	MethodRedirectCheckout PaymentMethod = "RedirectCheckout"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCashOnDelivery, MethodPushMoney, MethodRedirectCheckout:
		return true
	}
	return false
}

type OrderStatus string

const (
	StatusPendingPayment   OrderStatus = "PendingPayment"
	StatusAwaitingCallback OrderStatus = "AwaitingCallback"
	StatusPaid             OrderStatus = "Paid"
	StatusPaymentFailed    OrderStatus = "PaymentFailed"
	StatusManuallyVerified OrderStatus = "ManuallyVerified"
)

// transitions lists every allowed forward move. Anything absent is rejected.
var transitions = map[OrderStatus][]OrderStatus{
	StatusPendingPayment:   {StatusAwaitingCallback, StatusManuallyVerified},
	StatusAwaitingCallback: {StatusPaid, StatusPaymentFailed, StatusManuallyVerified},
}

func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPendingPayment, StatusAwaitingCallback, StatusPaid, StatusPaymentFailed, StatusManuallyVerified:
		return true
	}
	return false
}

func (s OrderStatus) IsTerminal() bool {
	switch s {
	case StatusPaid, StatusPaymentFailed, StatusManuallyVerified:
		return true
	}
	return false
}

// IsPaidState reports whether an order in s counts as paid.
func (s OrderStatus) IsPaidState() bool {
	return s == StatusPaid || s == StatusManuallyVerified
}

func CanTransition(from, to OrderStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// SourcesOf returns the states from which to is reachable.
func SourcesOf(to OrderStatus) []OrderStatus {
	var out []OrderStatus
	for _, from := range []OrderStatus{StatusPendingPayment, StatusAwaitingCallback} {
		if CanTransition(from, to) {
			out = append(out, from)
		}
	}
	return out
}

type LineItem struct {
	ProductID string `json:"product"`
	Quantity  int    `json:"quantity"`
}

type LineItems []LineItem

type Order struct {
	ID                   string        `json:"id" gorm:"primaryKey;size:36"`
	OwnerID              string        `json:"ownerId" gorm:"size:64;not null;index"`
	Items                LineItems     `json:"items" gorm:"type:text;serializer:json;not null"`
	Amount               int64         `json:"amount" gorm:"not null"`
	AddressID            string        `json:"address" gorm:"size:64;not null"`
	PayerPhone           string        `json:"payerPhone,omitempty" gorm:"size:20"`
	PaymentMethod        PaymentMethod `json:"paymentType" gorm:"size:32;not null"`
	Status               OrderStatus   `json:"status" gorm:"size:32;not null;index;default:'PendingPayment'"`
	IsPaid               bool          `json:"isPaid" gorm:"not null;default:false;index"`
	GatewaySessionID     *string       `json:"gatewaySessionId,omitempty" gorm:"size:128;uniqueIndex"`
	ReceiptID            *string       `json:"receiptId,omitempty" gorm:"size:64"`
	FailureReason        *string       `json:"failureReason,omitempty" gorm:"size:255"`
	TransactionTimestamp *string       `json:"transactionTimestamp,omitempty" gorm:"size:32"`
	VerifiedBy           *string       `json:"verifiedBy,omitempty" gorm:"size:64"`
	PushAttempts         int           `json:"pushAttempts" gorm:"not null;default:0"`
	PushAttemptAt        *time.Time    `json:"-" gorm:"index"`
	CreatedAt            time.Time     `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt            time.Time     `json:"updatedAt" gorm:"autoUpdateTime"`
}

// NewOrder validates the submission and returns an order in PendingPayment.
// The amount is fixed here and never recomputed.
func NewOrder(id, ownerID, addressID string, items []LineItem, amount int64, method PaymentMethod, now time.Time) (*Order, error) {
	if ownerID == "" {
		return nil, Validationf("owner is required")
	}
	if len(items) == 0 {
		return nil, Validationf("at least one line item is required")
	}
	for _, it := range items {
		if it.ProductID == "" || it.Quantity <= 0 {
			return nil, Validationf("line items need a product and a positive quantity")
		}
	}
	if addressID == "" {
		return nil, Validationf("address is required")
	}
	if amount <= 0 {
		return nil, Validationf("amount must be positive")
	}
	if !method.Valid() {
		return nil, Validationf("unknown payment method %q", method)
	}

	cp := make(LineItems, len(items))
	copy(cp, items)
	return &Order{
		ID:            id,
		OwnerID:       ownerID,
		Items:         cp,
		Amount:        amount,
		AddressID:     addressID,
		PaymentMethod: method,
		Status:        StatusPendingPayment,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

func (o *Order) SessionID() string {
	if o.GatewaySessionID == nil {
		return ""
	}
	return *o.GatewaySessionID
}

// StatusView is the read-only projection returned to polling clients.
type StatusView struct {
	OrderID       string        `json:"_id"`
	Status        OrderStatus   `json:"status"`
	IsPaid        bool          `json:"isPaid"`
	Amount        int64         `json:"amount"`
	PaymentType   PaymentMethod `json:"paymentType"`
	ReceiptID     *string       `json:"receiptId,omitempty"`
	FailureReason *string       `json:"failureReason,omitempty"`
}

func (o *Order) View() StatusView {
	return StatusView{
		OrderID:       o.ID,
		Status:        o.Status,
		IsPaid:        o.IsPaid,
		Amount:        o.Amount,
		PaymentType:   o.PaymentMethod,
		ReceiptID:     o.ReceiptID,
		FailureReason: o.FailureReason,
	}
}
