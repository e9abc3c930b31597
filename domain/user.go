package domain

// Profile is the citizen snapshot returned by the login endpoints and the
// dashboard profile resource. It may go stale once cached in a Session.
type Profile struct {
	UserID            ID      `json:"user_id"`
	Name              string  `json:"name"`
	MobileNumber      string  `json:"mobile_number"`
	Email             string  `json:"email,omitempty"`
	DLNumber          string  `json:"dl_number,omitempty"`
	AccountBalance    float64 `json:"account_balance"`
	BankAccountNumber string  `json:"bank_account_number,omitempty"`
	HasFaceData       bool    `json:"has_face_data"`
	CreatedAt         string  `json:"created_at,omitempty"`
}

// RegistrationForm holds the fields a new citizen fills in after OTP
// verification. Email and DLNumber are optional.
type RegistrationForm struct {
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
	DLNumber string `json:"dl_number,omitempty"`
}
