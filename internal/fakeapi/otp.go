package fakeapi

import (
	"fmt"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	// OTPPeriod is how long an issued code stays valid.
	OTPPeriod = 300 * time.Second
	otpIssuer = "Citizen Portal"
)

var otpOpts = totp.ValidateOpts{
	Period:    uint(OTPPeriod / time.Second),
	Skew:      1,
	Digits:    otp.DigitsSix,
	Algorithm: otp.AlgorithmSHA1,
}

// otpIssuance is the secret behind the code last sent to a mobile number.
type otpIssuance struct {
	secret   string
	issuedAt time.Time
}

// generateOTP creates a fresh TOTP secret for mobile and the code valid at now.
func generateOTP(mobile string, now time.Time) (otpIssuance, string, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      otpIssuer,
		AccountName: mobile,
		Period:      otpOpts.Period,
		SecretSize:  20,
		Digits:      otpOpts.Digits,
		Algorithm:   otpOpts.Algorithm,
	})
	if err != nil {
		return otpIssuance{}, "", fmt.Errorf("failed to generate OTP key: %w", err)
	}

	code, err := totpCode(key.Secret(), now)
	if err != nil {
		return otpIssuance{}, "", fmt.Errorf("failed to generate OTP code: %w", err)
	}

	return otpIssuance{secret: key.Secret(), issuedAt: now}, code, nil
}

// validate checks code at now. Codes older than OTPPeriod are rejected even
// when the TOTP window still accepts them.
func (i otpIssuance) validate(code string, now time.Time) bool {
	if now.Sub(i.issuedAt) > OTPPeriod {
		return false
	}
	ok, err := totp.ValidateCustom(strings.TrimSpace(code), i.secret, now, otpOpts)
	return err == nil && ok
}

func totpCode(secret string, now time.Time) (string, error) {
	return totp.GenerateCodeCustom(secret, now, otpOpts)
}
