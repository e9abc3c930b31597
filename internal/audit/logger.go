package audit

import (
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

const service = "citizenportal"

// Audited actions.
const (
	ActionLogin          = "login"
	ActionRegister       = "register"
	ActionFaceEnrollment = "face_enrollment"
	ActionLogout         = "logout"
	ActionMutation       = "mutation"
)

// Event is one audit record.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Service   string    `json:"service"`
	Action    string    `json:"action"`
	User      string    `json:"user,omitempty"`    // citizen id or masked mobile number
	Target    string    `json:"target,omitempty"`  // login method or mutation name
	Details   string    `json:"details,omitempty"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
}

// Trail writes audit events as JSON lines. A nil *Trail discards events.
type Trail struct {
	logger zerolog.Logger
	now    func() time.Time
}

// NewTrail creates a Trail writing to w, or stdout when w is nil.
func NewTrail(w io.Writer) *Trail {
	if w == nil {
		w = os.Stdout
	}
	return &Trail{logger: zerolog.New(w), now: time.Now}
}

// Log records an audit event.
func (t *Trail) Log(action, user, target, details string, err error) {
	if t == nil {
		return
	}

	event := Event{
		Timestamp: t.now().UTC(),
		Service:   service,
		Action:    action,
		User:      user,
		Target:    target,
		Details:   details,
		Success:   err == nil,
	}
	if err != nil {
		event.Error = err.Error()
	}

	entry, marshalErr := json.Marshal(event)
	if marshalErr != nil {
		t.logger.Error().
			Str("action", action).
			Str("user", user).
			Str("target", target).
			Bool("success", err == nil).
			Err(marshalErr).
			Msg("audit event (fallback)")
		return
	}

	t.logger.Log().RawJSON("audit_event", entry).Msg("")
}

// MaskMobile hides all but the last four digits of a mobile number.
func MaskMobile(mobile string) string {
	if len(mobile) <= 4 {
		return mobile
	}
	masked := make([]byte, len(mobile))
	for i := range masked {
		if i < len(mobile)-4 {
			masked[i] = '*'
		} else {
			masked[i] = mobile[i]
		}
	}
	return string(masked)
}
