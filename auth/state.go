package auth

import (
	"go.pilab.hu/citizenportal/domain"
	perrors "go.pilab.hu/citizenportal/errors"
)

// Mode selects the login method.
type Mode string

const (
	ModeMobile Mode = "mobile"
	ModeFace   Mode = "face"
)

// Phase is the step of the login flow.
type Phase string

const (
	PhaseEnteringMobile Phase = "enteringMobile"
	PhaseAwaitingOTP    Phase = "awaitingOtp"
	PhaseRegistering    Phase = "registering"
	PhaseCapturingFace  Phase = "capturingFace"
	PhaseIdle           Phase = "idle"
	PhaseAuthenticated  Phase = "authenticated"
)

// Capture is the purpose of an open camera capture.
type Capture string

const (
	CaptureNone       Capture = ""
	CaptureLogin      Capture = "login"
	CaptureEnrollment Capture = "enrollment"
)

// Notice is the last error shown inline on the login screen.
type Notice struct {
	Kind    perrors.Kind `json:"kind,omitempty" yaml:"kind,omitempty"`
	Message string       `json:"message,omitempty" yaml:"message,omitempty"`
}

// Empty reports whether there is nothing to show.
func (n Notice) Empty() bool { return n.Message == "" }

// State is a snapshot of the login flow.
type State struct {
	Mode              Mode      `json:"mode" yaml:"mode"`
	Phase             Phase     `json:"phase" yaml:"phase"`
	Capture           Capture   `json:"capture,omitempty" yaml:"capture,omitempty"`
	EnrollmentOffered bool      `json:"enrollment_offered,omitempty" yaml:"enrollment_offered,omitempty"`
	PendingMobile     string    `json:"pending_mobile,omitempty" yaml:"pending_mobile,omitempty"`
	UserExists        bool      `json:"user_exists,omitempty" yaml:"user_exists,omitempty"`
	CapturedFace      string    `json:"-" yaml:"-"`
	Notice            Notice    `json:"notice,omitempty" yaml:"notice,omitempty"`
	Success           string    `json:"success,omitempty" yaml:"success,omitempty"`
	Busy              bool      `json:"busy,omitempty" yaml:"busy,omitempty"`
	Redirect          string    `json:"redirect,omitempty" yaml:"redirect,omitempty"`
	DevOTP            string    `json:"dev_otp,omitempty" yaml:"dev_otp,omitempty"`
	UserID            domain.ID `json:"user_id,omitempty" yaml:"user_id,omitempty"`
}

// HasCapturedFace reports whether a face image is held for registration.
func (s State) HasCapturedFace() bool { return s.CapturedFace != "" }

// initialPhase is the entry phase of mode.
func initialPhase(m Mode) Phase {
	if m == ModeFace {
		return PhaseIdle
	}
	return PhaseEnteringMobile
}

func freshState(m Mode) State {
	return State{Mode: m, Phase: initialPhase(m)}
}

// DashboardPath is where a citizen lands after logging in.
func DashboardPath(id domain.ID) string {
	return "/userdashboard/" + id.String()
}
