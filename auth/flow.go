// Package auth implements the citizen login flow: OTP login, first-time
// registration, optional face enrollment and face login.
package auth

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"go.pilab.hu/citizenportal/apiclient"
	"go.pilab.hu/citizenportal/device"
	"go.pilab.hu/citizenportal/domain"
	perrors "go.pilab.hu/citizenportal/errors"
	"go.pilab.hu/citizenportal/internal/audit"
	"go.pilab.hu/citizenportal/internal/metrics"
	"go.pilab.hu/citizenportal/log"
	"go.pilab.hu/citizenportal/session"
)

// Login methods used for metrics and audit.
const (
	MethodOTP      = "otp"
	MethodFace     = "face"
	MethodRegister = "register"
)

var (
	mobilePattern = regexp.MustCompile(`^\d{10}$`)
	otpPattern    = regexp.MustCompile(`^\d{6}$`)
	emailPattern  = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

// Gateway is the part of the portal API the login flow uses.
type Gateway interface {
	RequestOTP(ctx context.Context, mobile string) (*apiclient.SendOTPResponse, error)
	VerifyOTP(ctx context.Context, mobile, otp string) (*apiclient.VerifyOTPResponse, error)
	Register(ctx context.Context, req apiclient.RegisterRequest) (*domain.Profile, error)
	FaceLogin(ctx context.Context, image string) (*domain.Profile, error)
	UpdateFaceData(ctx context.Context, userID domain.ID, image string) error
}

var _ Gateway = (*apiclient.Client)(nil)

// Flow is the login state machine of one visit to the login screen. All
// methods are safe for concurrent use; only one external call runs at a time.
type Flow struct {
	gw       Gateway
	sessions *session.Manager
	cam      device.Camera

	logger   log.Logger
	metrics  *metrics.Recorder
	audit    *audit.Trail
	maxWidth int

	mu     sync.Mutex
	state  State
	lease  *device.Lease
	closed bool
}

// Option configures a Flow.
type Option func(*Flow)

// WithLogger sets the Flow's logger.
func WithLogger(l log.Logger) Option {
	return func(f *Flow) {
		if l != nil {
			f.logger = l
		}
	}
}

// WithMetrics records login attempts on r.
func WithMetrics(r *metrics.Recorder) Option {
	return func(f *Flow) { f.metrics = r }
}

// WithAudit writes login events to t.
func WithAudit(t *audit.Trail) Option {
	return func(f *Flow) { f.audit = t }
}

// WithMaxFrameWidth scales captured frames down to w pixels.
func WithMaxFrameWidth(w int) Option {
	return func(f *Flow) { f.maxWidth = w }
}

// WithMode starts the flow in mode m instead of ModeMobile.
func WithMode(m Mode) Option {
	return func(f *Flow) { f.state = freshState(m) }
}

// NewFlow creates a login flow in the mobile entry step.
func NewFlow(gw Gateway, sessions *session.Manager, cam device.Camera, opts ...Option) *Flow {
	f := &Flow{
		gw:       gw,
		sessions: sessions,
		cam:      cam,
		logger:   log.NewNop(),
		state:    freshState(ModeMobile),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// State returns a snapshot of the flow.
func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// guard checks the preconditions shared by every operation. Callers hold mu.
func (f *Flow) guard(ok bool) error {
	switch {
	case f.closed:
		return perrors.ErrInvalidTransition
	case f.state.Busy:
		return perrors.ErrBusy
	case !ok:
		return perrors.ErrInvalidTransition
	}
	return nil
}

// guardCamera is guard for operations that open the camera. A held lease
// wins over the phase check. Callers hold mu.
func (f *Flow) guardCamera(ok bool) error {
	if !f.closed && !f.state.Busy && f.lease != nil {
		return perrors.ErrCameraBusy
	}
	return f.guard(ok)
}

// begin runs guard and marks the flow busy.
func (f *Flow) begin(ok func(State) bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.guard(ok(f.state)); err != nil {
		return err
	}
	f.state.Busy = true
	return nil
}

// finish clears Busy and applies fn under the lock. A closed flow keeps its
// last state.
func (f *Flow) finish(fn func(s *State)) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.state.Busy = false
	if f.closed {
		return
	}
	fn(&f.state)
}

// abortIfClosed ends an in-flight call once Close has run, before it leaves
// any session behind.
func (f *Flow) abortIfClosed() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.closed {
		return nil
	}
	f.state.Busy = false
	return perrors.ErrInvalidTransition
}

// fail records err as the visible notice and returns it.
func (f *Flow) fail(ctx context.Context, op string, err error) error {
	f.finish(func(s *State) {
		s.Notice = Notice{Kind: perrors.KindOf(err), Message: perrors.Message(err)}
		s.Success = ""
	})
	f.logger.Warn(ctx, "login step failed", log.Fields{"op": op, "error": err.Error()})
	return err
}

// reject records a validation error without touching the phase.
func (f *Flow) reject(err *perrors.ValidationError) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.state.Notice = Notice{Kind: perrors.KindValidation, Message: err.Message}
	f.state.Success = ""
	return err
}

func (f *Flow) authenticate(s *State, id domain.ID, success string) {
	s.Phase = PhaseAuthenticated
	s.Capture = CaptureNone
	s.EnrollmentOffered = false
	s.CapturedFace = ""
	s.Notice = Notice{}
	s.Success = success
	s.UserID = id
	s.Redirect = DashboardPath(id)
}

// RequestOTP sends a one-time code to mobile.
func (f *Flow) RequestOTP(ctx context.Context, mobile string) error {
	mobile = strings.Join(strings.Fields(mobile), "")

	f.mu.Lock()
	err := f.guard(f.state.Mode == ModeMobile && f.state.Phase == PhaseEnteringMobile)
	f.mu.Unlock()
	if err != nil {
		return err
	}

	if !mobilePattern.MatchString(mobile) {
		return f.reject(perrors.NewValidation("mobile", "Please enter a valid 10-digit mobile number"))
	}

	if err := f.begin(func(s State) bool { return s.Phase == PhaseEnteringMobile }); err != nil {
		return err
	}

	resp, err := f.gw.RequestOTP(ctx, mobile)
	if err != nil {
		return f.fail(ctx, "request_otp", err)
	}

	f.finish(func(s *State) {
		s.Phase = PhaseAwaitingOTP
		s.PendingMobile = mobile
		s.UserExists = resp.UserExists
		s.DevOTP = resp.OTP
		s.Notice = Notice{}
		s.Success = "OTP sent successfully"
	})
	f.logger.Info(ctx, "otp requested", log.Fields{"mobile": audit.MaskMobile(mobile), "user_exists": resp.UserExists})
	return nil
}

// VerifyOTP checks code. Existing citizens are logged in; new ones move on
// to registration.
func (f *Flow) VerifyOTP(ctx context.Context, code string) error {
	code = strings.TrimSpace(code)

	f.mu.Lock()
	err := f.guard(f.state.Phase == PhaseAwaitingOTP)
	f.mu.Unlock()
	if err != nil {
		return err
	}

	if !otpPattern.MatchString(code) {
		return f.reject(perrors.NewValidation("otp", "Please enter a valid 6-digit OTP"))
	}

	if err := f.begin(func(s State) bool { return s.Phase == PhaseAwaitingOTP }); err != nil {
		return err
	}

	snapshot := f.State()
	masked := audit.MaskMobile(snapshot.PendingMobile)

	resp, err := f.gw.VerifyOTP(ctx, snapshot.PendingMobile, code)
	if err != nil {
		f.metrics.ObserveLogin(MethodOTP, err)
		f.audit.Log(audit.ActionLogin, masked, MethodOTP, "", err)
		return f.fail(ctx, "verify_otp", err)
	}

	exists := snapshot.UserExists
	if resp.UserExists != nil {
		exists = *resp.UserExists
	}

	if !exists {
		f.finish(func(s *State) {
			s.Phase = PhaseRegistering
			s.UserExists = false
			s.Notice = Notice{}
			s.Success = "OTP verified. Please complete your registration"
		})
		return nil
	}

	if resp.UserData == nil || resp.UserData.UserID.IsZero() {
		err := perrors.NewMalformedResponse("verify_otp", 200, fmt.Errorf("missing user_data"))
		f.metrics.ObserveLogin(MethodOTP, err)
		return f.fail(ctx, "verify_otp", err)
	}

	profile := *resp.UserData
	if profile.MobileNumber == "" {
		profile.MobileNumber = snapshot.PendingMobile
	}
	if err := f.abortIfClosed(); err != nil {
		return err
	}
	if _, err := f.sessions.Establish(ctx, profile); err != nil {
		f.metrics.ObserveLogin(MethodOTP, err)
		return f.fail(ctx, "verify_otp", err)
	}

	f.metrics.ObserveLogin(MethodOTP, nil)
	f.audit.Log(audit.ActionLogin, profile.UserID.String(), MethodOTP, "", nil)
	f.finish(func(s *State) {
		s.UserExists = true
		f.authenticate(s, profile.UserID, "Login successful")
	})
	f.logger.Info(ctx, "citizen logged in", log.Fields{"user_id": profile.UserID.String(), "method": MethodOTP})
	return nil
}

func registrationOpen(s State) bool {
	return s.Phase == PhaseRegistering && !s.EnrollmentOffered
}

// AttachFace captures a face image to send along with the registration.
// The camera is released before AttachFace returns.
func (f *Flow) AttachFace(ctx context.Context) error {
	f.mu.Lock()
	err := f.guardCamera(registrationOpen(f.state))
	if err == nil {
		f.state.Busy = true
	}
	f.mu.Unlock()
	if err != nil {
		return err
	}

	lease, err := device.Acquire(ctx, f.cam, f.maxWidth)
	if err != nil {
		return f.fail(ctx, "attach_face", perrors.NewDeviceError("acquire", err))
	}
	defer lease.Release()

	image, err := lease.Capture(ctx)
	if err != nil {
		return f.fail(ctx, "attach_face", perrors.NewDeviceError("capture", err))
	}

	f.finish(func(s *State) {
		s.CapturedFace = image
		s.Notice = Notice{}
		s.Success = "Face captured"
	})
	return nil
}

// Register creates the citizen account and logs them in. Without a face
// image the citizen is then offered face enrollment.
func (f *Flow) Register(ctx context.Context, form domain.RegistrationForm) error {
	form.Name = strings.TrimSpace(form.Name)
	form.Email = strings.TrimSpace(form.Email)
	form.DLNumber = strings.TrimSpace(form.DLNumber)

	f.mu.Lock()
	err := f.guard(registrationOpen(f.state))
	f.mu.Unlock()
	if err != nil {
		return err
	}

	if form.Name == "" {
		return f.reject(perrors.NewValidation("name", "Name is required"))
	}
	if form.Email != "" && !emailPattern.MatchString(form.Email) {
		return f.reject(perrors.NewValidation("email", "Please enter a valid email address"))
	}

	if err := f.begin(registrationOpen); err != nil {
		return err
	}

	snapshot := f.State()
	profile, err := f.gw.Register(ctx, apiclient.RegisterRequest{
		MobileNumber: snapshot.PendingMobile,
		Name:         form.Name,
		Email:        form.Email,
		DLNumber:     form.DLNumber,
		FaceImage:    snapshot.CapturedFace,
	})
	if err == nil && (profile == nil || profile.UserID.IsZero()) {
		err = perrors.NewMalformedResponse("register", 200, fmt.Errorf("missing user_data"))
	}
	if err != nil {
		f.metrics.ObserveLogin(MethodRegister, err)
		f.audit.Log(audit.ActionRegister, audit.MaskMobile(snapshot.PendingMobile), MethodRegister, "", err)
		return f.fail(ctx, "register", err)
	}

	p := *profile
	if p.MobileNumber == "" {
		p.MobileNumber = snapshot.PendingMobile
	}
	if p.Name == "" {
		p.Name = form.Name
	}
	if err := f.abortIfClosed(); err != nil {
		return err
	}
	if _, err := f.sessions.Establish(ctx, p); err != nil {
		f.metrics.ObserveLogin(MethodRegister, err)
		return f.fail(ctx, "register", err)
	}

	f.metrics.ObserveLogin(MethodRegister, nil)
	f.audit.Log(audit.ActionRegister, p.UserID.String(), MethodRegister, "", nil)

	withFace := snapshot.HasCapturedFace()
	f.finish(func(s *State) {
		if withFace {
			f.authenticate(s, p.UserID, "Registration successful")
			return
		}
		s.UserID = p.UserID
		s.EnrollmentOffered = true
		s.Notice = Notice{}
		s.Success = "Registration successful. Would you like to enable face login?"
	})
	f.logger.Info(ctx, "citizen registered", log.Fields{"user_id": p.UserID.String(), "with_face": withFace})
	return nil
}

func enrollmentOffered(s State) bool {
	return s.Phase == PhaseRegistering && s.EnrollmentOffered
}

// AcceptEnrollment opens the camera to enroll the new citizen's face. If no
// camera is available the citizen is logged in without enrollment.
func (f *Flow) AcceptEnrollment(ctx context.Context) error {
	f.mu.Lock()
	err := f.guardCamera(enrollmentOffered(f.state))
	if err == nil {
		f.state.Busy = true
	}
	f.mu.Unlock()
	if err != nil {
		return err
	}

	lease, err := device.Acquire(ctx, f.cam, f.maxWidth)
	if err != nil {
		derr := perrors.NewDeviceError("acquire", err)
		f.finish(func(s *State) {
			f.authenticate(s, s.UserID, "")
			s.Notice = Notice{Kind: perrors.KindDevice, Message: derr.Error()}
		})
		f.audit.Log(audit.ActionFaceEnrollment, f.State().UserID.String(), MethodFace, "camera unavailable", derr)
		f.logger.Warn(ctx, "face enrollment skipped", log.Fields{"error": err.Error()})
		return derr
	}

	if !f.hold(lease) {
		return perrors.ErrInvalidTransition
	}
	f.finish(func(s *State) {
		s.Phase = PhaseCapturingFace
		s.Capture = CaptureEnrollment
		s.EnrollmentOffered = false
		s.Notice = Notice{}
		s.Success = ""
	})
	return nil
}

// DeclineEnrollment skips face enrollment and completes the login.
func (f *Flow) DeclineEnrollment() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.guard(enrollmentOffered(f.state)); err != nil {
		return err
	}
	f.authenticate(&f.state, f.state.UserID, "Registration successful")
	return nil
}

// hold stores lease, or releases it when the flow was closed meanwhile.
func (f *Flow) hold(lease *device.Lease) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		lease.Release()
		f.state.Busy = false
		return false
	}
	f.lease = lease
	return true
}

// releaseLocked stops the camera. Callers hold mu.
func (f *Flow) releaseLocked() {
	if f.lease != nil {
		f.lease.Release()
		f.lease = nil
	}
}

// StartFaceLogin opens the camera for face login.
func (f *Flow) StartFaceLogin(ctx context.Context) error {
	f.mu.Lock()
	err := f.guardCamera(f.state.Phase == PhaseIdle)
	if err == nil {
		f.state.Busy = true
	}
	f.mu.Unlock()
	if err != nil {
		return err
	}

	lease, err := device.Acquire(ctx, f.cam, f.maxWidth)
	if err != nil {
		return f.fail(ctx, "start_face_login", perrors.NewDeviceError("acquire", err))
	}

	if !f.hold(lease) {
		return perrors.ErrInvalidTransition
	}
	f.finish(func(s *State) {
		s.Phase = PhaseCapturingFace
		s.Capture = CaptureLogin
		s.Notice = Notice{}
		s.Success = ""
	})
	return nil
}

// CaptureFace grabs a frame and submits it for login or enrollment. On
// failure the camera stays open for another attempt.
func (f *Flow) CaptureFace(ctx context.Context) error {
	f.mu.Lock()
	err := f.guard(f.state.Phase == PhaseCapturingFace && f.lease != nil)
	if err == nil {
		f.state.Busy = true
	}
	lease := f.lease
	snapshot := f.state
	f.mu.Unlock()
	if err != nil {
		return err
	}

	image, err := lease.Capture(ctx)
	if err != nil {
		return f.fail(ctx, "capture_face", perrors.NewDeviceError("capture", err))
	}

	if snapshot.Capture == CaptureEnrollment {
		return f.enroll(ctx, snapshot.UserID, image)
	}
	return f.faceLogin(ctx, image)
}

func (f *Flow) faceLogin(ctx context.Context, image string) error {
	profile, err := f.gw.FaceLogin(ctx, image)
	if err == nil && (profile == nil || profile.UserID.IsZero()) {
		err = perrors.NewMalformedResponse("face_login", 200, fmt.Errorf("missing user_data"))
	}
	if err == nil {
		if cerr := f.abortIfClosed(); cerr != nil {
			return cerr
		}
		_, err = f.sessions.Establish(ctx, *profile)
	}
	f.metrics.ObserveLogin(MethodFace, err)
	if err != nil {
		f.audit.Log(audit.ActionLogin, "", MethodFace, "", err)
		return f.fail(ctx, "face_login", err)
	}

	f.audit.Log(audit.ActionLogin, profile.UserID.String(), MethodFace, "", nil)
	f.finish(func(s *State) {
		f.releaseLocked()
		f.authenticate(s, profile.UserID, "Face login successful")
	})
	f.logger.Info(ctx, "citizen logged in", log.Fields{"user_id": profile.UserID.String(), "method": MethodFace})
	return nil
}

func (f *Flow) enroll(ctx context.Context, userID domain.ID, image string) error {
	if err := f.gw.UpdateFaceData(ctx, userID, image); err != nil {
		f.audit.Log(audit.ActionFaceEnrollment, userID.String(), MethodFace, "", err)
		return f.fail(ctx, "enroll_face", err)
	}

	f.audit.Log(audit.ActionFaceEnrollment, userID.String(), MethodFace, "", nil)
	f.finish(func(s *State) {
		f.releaseLocked()
		f.authenticate(s, userID, "Face registered successfully")
	})
	return nil
}

// CancelCapture closes the camera. A cancelled login returns to the face
// entry step; a cancelled enrollment completes the login without it.
func (f *Flow) CancelCapture() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.guard(f.state.Phase == PhaseCapturingFace); err != nil {
		return err
	}

	f.releaseLocked()
	if f.state.Capture == CaptureEnrollment {
		f.authenticate(&f.state, f.state.UserID, "Registration successful")
		return nil
	}

	f.state.Phase = PhaseIdle
	f.state.Capture = CaptureNone
	f.state.Notice = Notice{}
	f.state.Success = ""
	return nil
}

// SwitchMode resets the flow to the entry step of m. It is refused once
// logged in and while a committed registration is finishing enrollment.
func (f *Flow) SwitchMode(m Mode) error {
	if m != ModeMobile && m != ModeFace {
		return fmt.Errorf("auth: unknown mode %q", m)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return perrors.ErrInvalidTransition
	}
	if f.state.Busy {
		return perrors.ErrBusy
	}
	if f.state.Phase == PhaseAuthenticated {
		return perrors.ErrAlreadyAuthenticated
	}
	if f.state.Capture == CaptureEnrollment || f.state.EnrollmentOffered {
		return perrors.ErrInvalidTransition
	}

	f.releaseLocked()
	f.state = freshState(m)
	return nil
}

// Close tears the flow down and releases the camera. It is idempotent.
func (f *Flow) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.closed = true
	f.releaseLocked()
}

// Logout clears the persisted session.
func Logout(ctx context.Context, sessions *session.Manager, trail *audit.Trail) error {
	user := ""
	if sess, err := sessions.Current(ctx); err == nil {
		user = sess.UserID.String()
	}

	err := sessions.Clear(ctx)
	trail.Log(audit.ActionLogout, user, "", "", err)
	return err
}
