package domain

type OutcomeKind string

const (
	OutcomeSuccess OutcomeKind = "success"
	OutcomeFailure OutcomeKind = "failure"
)

// Outcome is a terminal payment result reported by a gateway.
type Outcome struct {
	Kind      OutcomeKind
	ReceiptID string
	Timestamp string
	Reason    string
}

func Success(receiptID, timestamp string) Outcome {
	return Outcome{Kind: OutcomeSuccess, ReceiptID: receiptID, Timestamp: timestamp}
}

func Failure(reason string) Outcome {
	return Outcome{Kind: OutcomeFailure, Reason: reason}
}

func (o Outcome) TargetStatus() OrderStatus {
	if o.Kind == OutcomeSuccess {
		return StatusPaid
	}
	return StatusPaymentFailed
}

// ApplyResult tells the caller whether an outcome changed the order.
type ApplyResult string

const (
	ResultApplied         ApplyResult = "applied"
	ResultAlreadyTerminal ApplyResult = "already_terminal"
)
