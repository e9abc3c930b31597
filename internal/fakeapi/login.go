package fakeapi

import (
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"go.pilab.hu/citizenportal/domain"
)

var mobilePattern = regexp.MustCompile(`^\d{10}$`)

type mobileRequest struct {
	MobileNumber string `json:"mobile_number"`
	OTP          string `json:"otp"`
}

type registerRequest struct {
	MobileNumber string `json:"mobile_number"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	DLNumber     string `json:"dl_number"`
	FaceImage    string `json:"face_image"`
}

type faceRequest struct {
	UserID    domain.ID `json:"user_id"`
	FaceImage string    `json:"face_image"`
}

// SendOTP issues a code for a mobile number.
func (s *Server) SendOTP(c echo.Context) error {
	var req mobileRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c)
	}
	if !mobilePattern.MatchString(req.MobileNumber) {
		return fail(c, http.StatusBadRequest, "Please enter a valid 10-digit mobile number")
	}

	now := s.now()
	iss, code, err := generateOTP(req.MobileNumber, now)
	if err != nil {
		s.logger.Error(c.Request().Context(), "failed to issue OTP", err)
		return fail(c, http.StatusInternalServerError, "Failed to send OTP")
	}

	s.data.mu.Lock()
	s.data.otps[req.MobileNumber] = iss
	_, exists := s.data.byMobile[req.MobileNumber]
	s.data.mu.Unlock()

	res := body{"user_exists": exists, "message": "OTP sent successfully"}
	if s.devOTP {
		res["otp"] = code
		res["expiry"] = now.Add(OTPPeriod).Format(time.RFC3339)
	}
	return success(c, res)
}

// VerifyOTP checks a code. Existing citizens get their profile back.
func (s *Server) VerifyOTP(c echo.Context) error {
	var req mobileRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c)
	}

	now := s.now()

	s.data.mu.Lock()
	defer s.data.mu.Unlock()

	iss, issued := s.data.otps[req.MobileNumber]
	if !issued || !iss.validate(req.OTP, now) {
		return fail(c, http.StatusBadRequest, "Invalid or expired OTP")
	}
	delete(s.data.otps, req.MobileNumber)
	s.data.verified[req.MobileNumber] = now

	id, exists := s.data.byMobile[req.MobileNumber]
	if !exists {
		return success(c, body{"user_exists": false})
	}
	return success(c, body{"user_exists": true, "user_data": s.data.users[id].profile})
}

// Register creates a citizen for a verified mobile number.
func (s *Server) Register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c)
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || !mobilePattern.MatchString(req.MobileNumber) {
		return fail(c, http.StatusBadRequest, "Name and mobile number are required")
	}

	var template string
	if req.FaceImage != "" {
		var err error
		if template, err = s.faces.Hash(req.FaceImage); err != nil {
			s.logger.Error(c.Request().Context(), "failed to store face data", err)
			return fail(c, http.StatusInternalServerError, "Failed to store face data")
		}
	}

	now := s.now()

	s.data.mu.Lock()
	defer s.data.mu.Unlock()

	verifiedAt, verified := s.data.verified[req.MobileNumber]
	if !verified || now.Sub(verifiedAt) > OTPPeriod {
		return fail(c, http.StatusForbidden, "Mobile number not verified")
	}
	if _, exists := s.data.byMobile[req.MobileNumber]; exists {
		return fail(c, http.StatusConflict, "User already exists")
	}

	profile := domain.Profile{
		UserID:       newID("U"),
		Name:         req.Name,
		MobileNumber: req.MobileNumber,
		Email:        strings.TrimSpace(req.Email),
		DLNumber:     strings.TrimSpace(req.DLNumber),
		HasFaceData:  template != "",
		CreatedAt:    now.Format(time.RFC3339),
	}
	s.data.users[profile.UserID] = &citizen{profile: profile, faceTemplate: template}
	s.data.byMobile[req.MobileNumber] = profile.UserID
	delete(s.data.verified, req.MobileNumber)

	return success(c, body{"user_data": profile, "message": "Registration successful"})
}

// FaceLogin finds the citizen whose template matches the image.
func (s *Server) FaceLogin(c echo.Context) error {
	var req faceRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c)
	}
	if req.FaceImage == "" {
		return fail(c, http.StatusBadRequest, "Face image is required")
	}

	s.data.mu.Lock()
	defer s.data.mu.Unlock()

	for _, u := range s.data.users {
		if u.faceTemplate != "" && s.faces.Match(u.faceTemplate, req.FaceImage) {
			return success(c, body{"user_data": u.profile})
		}
	}
	return fail(c, http.StatusUnauthorized, "Face not recognized. Please try again or use mobile login")
}

// UpdateFace enrolls a face image for an existing citizen.
func (s *Server) UpdateFace(c echo.Context) error {
	var req faceRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c)
	}
	if req.UserID.IsZero() || req.FaceImage == "" {
		return fail(c, http.StatusBadRequest, "User ID and face image are required")
	}

	template, err := s.faces.Hash(req.FaceImage)
	if err != nil {
		s.logger.Error(c.Request().Context(), "failed to store face data", err)
		return fail(c, http.StatusInternalServerError, "Failed to store face data")
	}

	s.data.mu.Lock()
	defer s.data.mu.Unlock()

	u, exists := s.data.users[req.UserID]
	if !exists {
		return fail(c, http.StatusNotFound, "User not found")
	}
	u.faceTemplate = template
	u.profile.HasFaceData = true

	return success(c, body{"message": "Face data updated successfully"})
}
