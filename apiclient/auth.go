package apiclient

import (
	"context"
	"net/http"

	"go.pilab.hu/citizenportal/domain"
)

// RequestOTP asks the server to send a one-time code to mobile.
func (c *Client) RequestOTP(ctx context.Context, mobile string) (*SendOTPResponse, error) {
	var out SendOTPResponse
	err := c.do(ctx, "send_otp", http.MethodPost, "/userlogin/send-otp", nil,
		sendOTPRequest{MobileNumber: mobile}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyOTP checks the code for mobile. For existing citizens the response
// carries their profile.
func (c *Client) VerifyOTP(ctx context.Context, mobile, otp string) (*VerifyOTPResponse, error) {
	var out VerifyOTPResponse
	err := c.do(ctx, "verify_otp", http.MethodPost, "/userlogin/verify-otp", nil,
		verifyOTPRequest{MobileNumber: mobile, OTP: otp}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Register creates a citizen account.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*domain.Profile, error) {
	var out UserResponse
	if err := c.do(ctx, "register", http.MethodPost, "/userlogin/register", nil, req, &out); err != nil {
		return nil, err
	}
	return &out.UserData, nil
}

// FaceLogin authenticates with a captured face image.
func (c *Client) FaceLogin(ctx context.Context, image string) (*domain.Profile, error) {
	var out UserResponse
	err := c.do(ctx, "face_login", http.MethodPost, "/userlogin/face-login", nil,
		faceLoginRequest{FaceImage: image}, &out)
	if err != nil {
		return nil, err
	}
	return &out.UserData, nil
}

// UpdateFaceData enrolls a face image for an existing citizen.
func (c *Client) UpdateFaceData(ctx context.Context, userID domain.ID, image string) error {
	return c.do(ctx, "update_face", http.MethodPost, "/userlogin/update-face", nil,
		updateFaceRequest{UserID: userID, FaceImage: image}, nil)
}
