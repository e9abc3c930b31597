package domain

// Stats is the dashboard summary computed server-side.
type Stats struct {
	TotalViolations   int     `json:"total_violations"`
	PendingViolations int     `json:"pending_violations"`
	PaidViolations    int     `json:"paid_violations"`
	TotalFines        float64 `json:"total_fines"`
	PendingFines      float64 `json:"pending_fines"`
	PaidFines         float64 `json:"paid_fines"`
	TotalVehicles     int     `json:"total_vehicles"`
	ActiveDisputes    int     `json:"active_disputes"`
	AccountBalance    float64 `json:"account_balance"`
}
