package domain

import "time"

const (
	EventOrderCreated          = "order.created"
	EventOrderPaid             = "order.paid"
	EventOrderPaymentFailed    = "order.payment_failed"
	EventOrderManuallyVerified = "order.manually_verified"
)

type PaymentEvent struct {
	OrderID       string        `json:"orderId"`
	OwnerID       string        `json:"ownerId"`
	Amount        int64         `json:"amount"`
	PaymentMethod PaymentMethod `json:"paymentType"`
	Status        OrderStatus   `json:"status"`
	ReceiptID     string        `json:"receiptId,omitempty"`
	FailureReason string        `json:"failureReason,omitempty"`
	ActorID       string        `json:"actorId,omitempty"`
	OccurredAt    time.Time     `json:"occurredAt"`
}

func EventFor(o *Order, at time.Time) (string, PaymentEvent) {
	evt := PaymentEvent{
		OrderID:       o.ID,
		OwnerID:       o.OwnerID,
		Amount:        o.Amount,
		PaymentMethod: o.PaymentMethod,
		Status:        o.Status,
		OccurredAt:    at,
	}
	if o.ReceiptID != nil {
		evt.ReceiptID = *o.ReceiptID
	}
	if o.FailureReason != nil {
		evt.FailureReason = *o.FailureReason
	}
	if o.VerifiedBy != nil {
		evt.ActorID = *o.VerifiedBy
	}

	switch o.Status {
	case StatusPaid:
		return EventOrderPaid, evt
	case StatusPaymentFailed:
		return EventOrderPaymentFailed, evt
	case StatusManuallyVerified:
		return EventOrderManuallyVerified, evt
	}
	return EventOrderCreated, evt
}
