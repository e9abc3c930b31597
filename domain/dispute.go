package domain

// DisputeStatus is the adjudication state of a dispute.
type DisputeStatus string

const (
	DisputePending     DisputeStatus = "pending"
	DisputeUnderReview DisputeStatus = "under_review"
	DisputeApproved    DisputeStatus = "approved"
	DisputeRejected    DisputeStatus = "rejected"
)

// Dispute is a citizen-initiated challenge to a violation.
type Dispute struct {
	ID            ID            `json:"id"`
	ViolationID   ID            `json:"violation_id"`
	Reason        string        `json:"reason"`
	Description   string        `json:"description"`
	Status        DisputeStatus `json:"status"`
	SubmittedAt   string        `json:"submitted_at"`
	ResolvedAt    string        `json:"resolved_at,omitempty"`
	AdminNotes    string        `json:"admin_notes,omitempty"`
	ViolationType string        `json:"violation_type,omitempty"`
	PlateNumber   string        `json:"plate_number,omitempty"`
	Location      string        `json:"location,omitempty"`
}

// DisputeRequest is the payload of a new dispute. Evidence is an optional
// base64-encoded attachment.
type DisputeRequest struct {
	ViolationID ID     `json:"violation_id"`
	Reason      string `json:"reason"`
	Description string `json:"description"`
	Evidence    string `json:"evidence,omitempty"`
}
