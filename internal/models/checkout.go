package models

// CheckoutAttempt is the ephemeral record of one processPayment event,
// created on receipt and discarded when the gateway resolves it.
type CheckoutAttempt struct {
	PaymentAttemptID string
	OrderID          *string
	// Amount in integer minor units.
	Amount    int64
	Note      string
	Reference string
}

// CheckoutOutcome is the terminal state of a gateway checkout.
type CheckoutOutcome int

const (
	CheckoutCancelled CheckoutOutcome = iota
	CheckoutSucceeded
	CheckoutFailed
)

func (o CheckoutOutcome) String() string {
	switch o {
	case CheckoutCancelled:
		return "cancelled"
	case CheckoutSucceeded:
		return "succeeded"
	case CheckoutFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// CheckoutResult is one item of a gateway checkout stream. PaymentID and
// ReferenceID are set only on success; Err only on failure.
type CheckoutResult struct {
	Outcome     CheckoutOutcome
	PaymentID   string
	ReferenceID string
	Err         error
}

// CompletedTransaction is reported to the backend for confirmation before the
// sale is considered final.
type CompletedTransaction struct {
	Reference string `json:"reference"`
	PaymentID string `json:"paymentId"`
}

// FrontendNotification is published to the frontend display topic on payment
// lifecycle edges, best effort.
type FrontendNotification string

const (
	NotifyPaymentOpened    FrontendNotification = "payment_opened"
	NotifyPaymentCancelled FrontendNotification = "payment_cancelled"
	NotifyPaymentFailed    FrontendNotification = "payment_failed"
	NotifyPaymentCompleted FrontendNotification = "payment_completed"
)
