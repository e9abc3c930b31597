package apiclient

import "go.pilab.hu/citizenportal/domain"

// SendOTPResponse is returned by the OTP request step. OTP is only
// populated by development servers.
type SendOTPResponse struct {
	UserExists bool   `json:"user_exists"`
	OTP        string `json:"otp,omitempty"`
	Expiry     string `json:"expiry,omitempty"`
}

// VerifyOTPResponse is returned by the OTP verification step. UserExists is
// nil when the server omits it.
type VerifyOTPResponse struct {
	UserExists *bool           `json:"user_exists,omitempty"`
	UserData   *domain.Profile `json:"user_data,omitempty"`
}

// RegisterRequest creates a citizen account after OTP verification.
type RegisterRequest struct {
	MobileNumber string `json:"mobile_number"`
	Name         string `json:"name"`
	Email        string `json:"email,omitempty"`
	DLNumber     string `json:"dl_number,omitempty"`
	FaceImage    string `json:"face_image,omitempty"`
}

// UserResponse wraps the profile returned by register and face login.
type UserResponse struct {
	UserData domain.Profile `json:"user_data"`
}

// DisputeResponse is returned when a dispute is filed.
type DisputeResponse struct {
	DisputeID domain.ID `json:"dispute_id"`
	Message   string    `json:"message,omitempty"`
}

type sendOTPRequest struct {
	MobileNumber string `json:"mobile_number"`
}

type verifyOTPRequest struct {
	MobileNumber string `json:"mobile_number"`
	OTP          string `json:"otp"`
}

type faceLoginRequest struct {
	FaceImage string `json:"face_image"`
}

type updateFaceRequest struct {
	UserID    domain.ID `json:"user_id"`
	FaceImage string    `json:"face_image"`
}

type payRequest struct {
	ViolationID domain.ID `json:"violation_id"`
}

type bulkPayRequest struct {
	ViolationIDs []domain.ID `json:"violation_ids"`
}

type retryRequest struct {
	PaymentID domain.ID `json:"payment_id"`
}

type statsEnvelope struct {
	Data domain.Stats `json:"data"`
}

type profileEnvelope struct {
	Data domain.Profile `json:"data"`
}

type summaryEnvelope struct {
	Data domain.ViolationSummary `json:"data"`
}

type pendingEnvelope struct {
	Data domain.PendingFines `json:"data"`
}

type violationsEnvelope struct {
	Violations []domain.Violation `json:"violations"`
}

type vehiclesEnvelope struct {
	Vehicles []domain.Vehicle `json:"vehicles"`
}

type documentsEnvelope struct {
	Documents []domain.Document `json:"documents"`
}

type paymentsEnvelope struct {
	Payments []domain.Payment `json:"payments"`
}

type disputesEnvelope struct {
	Disputes []domain.Dispute `json:"disputes"`
}
