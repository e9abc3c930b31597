package domain

// ViolationStatus is the server-assigned state of a violation.
type ViolationStatus string

const (
	ViolationPending   ViolationStatus = "pending"
	ViolationPaid      ViolationStatus = "paid"
	ViolationDisputed  ViolationStatus = "disputed"
	ViolationCancelled ViolationStatus = "cancelled"
	ViolationOverdue   ViolationStatus = "overdue"
)

// Violation is a recorded traffic violation.
type Violation struct {
	ID                  ID              `json:"id"`
	Type                string          `json:"violation_type"`
	Location            string          `json:"location"`
	PlateNumber         string          `json:"plate_number"`
	VehicleModel        string          `json:"vehicle_model,omitempty"`
	FineAmount          float64         `json:"fine_amount"`
	PenaltyAmount       float64         `json:"penalty_amount"`
	TotalAmount         float64         `json:"total_amount"`
	Status              ViolationStatus `json:"status"`
	ViolationDate       string          `json:"violation_date"`
	DueDate             string          `json:"due_date,omitempty"`
	AutoDeductionStatus string          `json:"auto_deduction_status,omitempty"`
}

// Payable reports whether the violation can still be paid.
func (v Violation) Payable() bool {
	return v.Status == ViolationPending || v.Status == ViolationOverdue
}

// ViolationSummary aggregates the citizen's violations by status.
type ViolationSummary struct {
	Total              int     `json:"total"`
	Pending            int     `json:"pending"`
	Paid               int     `json:"paid"`
	Disputed           int     `json:"disputed"`
	TotalPendingAmount float64 `json:"total_pending_amount"`
}
