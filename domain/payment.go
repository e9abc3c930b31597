package domain

// PaymentStatus is the state of a payment attempt.
type PaymentStatus string

const (
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentPending   PaymentStatus = "pending"
)

// Payment is one entry of the citizen's payment history.
type Payment struct {
	ID            ID            `json:"id"`
	ViolationID   ID            `json:"violation_id"`
	Amount        float64       `json:"amount"`
	Method        string        `json:"payment_method"`
	Status        PaymentStatus `json:"status"`
	TransactionID string        `json:"transaction_id,omitempty"`
	PaymentDate   string        `json:"payment_date"`
	ViolationType string        `json:"violation_type,omitempty"`
	PlateNumber   string        `json:"plate_number,omitempty"`
}

// PendingFines lists the unpaid violations together with the balance that
// auto-deduction and manual payments draw from.
type PendingFines struct {
	Violations     []Violation `json:"violations"`
	TotalAmount    float64     `json:"total_amount"`
	AccountBalance float64     `json:"account_balance"`
}

// PaymentReceipt is returned by single payment and retry operations.
type PaymentReceipt struct {
	Message       string  `json:"message,omitempty"`
	PaymentID     ID      `json:"payment_id"`
	TransactionID string  `json:"transaction_id,omitempty"`
	AmountPaid    float64 `json:"amount_paid"`
	NewBalance    float64 `json:"new_balance"`
}

// BulkPaymentReceipt is returned by the bulk payment operation.
type BulkPaymentReceipt struct {
	Message    string  `json:"message,omitempty"`
	PaidCount  int     `json:"paid_count"`
	TotalPaid  float64 `json:"total_paid"`
	NewBalance float64 `json:"new_balance"`
	Failed     []ID    `json:"failed,omitempty"`
}
