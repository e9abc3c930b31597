package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindNone},
		{"transport", NewTransportError("stats", stderrors.New("connection refused")), KindTransport},
		{"status", NewStatusError("stats", 502), KindTransport},
		{"application", NewApplicationError("verify", 400, "Invalid OTP"), KindApplication},
		{"wrapped application", fmt.Errorf("verify otp: %w", NewApplicationError("verify", 400, "Invalid OTP")), KindApplication},
		{"validation", NewValidation("mobile", "Enter a 10-digit mobile number"), KindValidation},
		{"device", NewDeviceError("acquire", stderrors.New("no device")), KindDevice},
		{"state", fmt.Errorf("capture: %w", ErrInvalidTransition), KindState},
		{"unknown", stderrors.New("boom"), KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "", Message(nil))
	assert.Equal(t, "Invalid OTP", Message(fmt.Errorf("wrapped: %w", NewApplicationError("verify", 400, "Invalid OTP"))))
	assert.Equal(t, "request failed with status 502", Message(NewStatusError("stats", 502)))
	assert.Equal(t, "network error: dial tcp: refused", Message(NewTransportError("stats", stderrors.New("dial tcp: refused"))))
	assert.Equal(t, "malformed response: unexpected EOF", Message(NewMalformedResponse("stats", 200, stderrors.New("unexpected EOF"))))
	assert.Equal(t, "camera unavailable: permission denied", Message(NewDeviceError("acquire", stderrors.New("permission denied"))))
	assert.Equal(t, ErrBusy.Error(), Message(ErrBusy))
}

func TestTransportErrorUnwrap(t *testing.T) {
	cause := stderrors.New("reset by peer")
	err := NewTransportError("stats", cause)
	assert.ErrorIs(t, err, cause)
}
