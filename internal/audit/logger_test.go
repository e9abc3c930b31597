package audit

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrail_Log(t *testing.T) {
	var buf bytes.Buffer
	trail := NewTrail(&buf)
	trail.now = func() time.Time { return time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC) }

	trail.Log(ActionLogin, "U1", "otp", "", nil)
	trail.Log(ActionMutation, "U1", "pay_violation", "violation=V9", errors.New("Insufficient balance"))

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)

	var first struct {
		Event Event `json:"audit_event"`
	}
	require.NoError(t, json.Unmarshal(lines[0], &first))
	assert.Equal(t, "login", first.Event.Action)
	assert.Equal(t, "U1", first.Event.User)
	assert.True(t, first.Event.Success)
	assert.Equal(t, "citizenportal", first.Event.Service)
	assert.Equal(t, 2025, first.Event.Timestamp.Year())

	var second struct {
		Event Event `json:"audit_event"`
	}
	require.NoError(t, json.Unmarshal(lines[1], &second))
	assert.False(t, second.Event.Success)
	assert.Equal(t, "Insufficient balance", second.Event.Error)
	assert.Equal(t, "violation=V9", second.Event.Details)
}

func TestTrail_Nil(t *testing.T) {
	var trail *Trail
	assert.NotPanics(t, func() { trail.Log(ActionLogout, "U1", "", "", nil) })
}

func TestMaskMobile(t *testing.T) {
	assert.Equal(t, "******3210", MaskMobile("9876543210"))
	assert.Equal(t, "123", MaskMobile("123"))
}
