package auth

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"sync"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"go.pilab.hu/citizenportal/apiclient"
	"go.pilab.hu/citizenportal/device"
	"go.pilab.hu/citizenportal/domain"
	perrors "go.pilab.hu/citizenportal/errors"
	"go.pilab.hu/citizenportal/internal/audit"
	"go.pilab.hu/citizenportal/internal/metrics"
	"go.pilab.hu/citizenportal/session"
	"go.pilab.hu/citizenportal/storage"
)

// --- Mock Implementations ---

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) RequestOTP(ctx context.Context, mobile string) (*apiclient.SendOTPResponse, error) {
	args := m.Called(ctx, mobile)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*apiclient.SendOTPResponse), args.Error(1)
}

func (m *MockGateway) VerifyOTP(ctx context.Context, mobile, otp string) (*apiclient.VerifyOTPResponse, error) {
	args := m.Called(ctx, mobile, otp)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*apiclient.VerifyOTPResponse), args.Error(1)
}

func (m *MockGateway) Register(ctx context.Context, req apiclient.RegisterRequest) (*domain.Profile, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Profile), args.Error(1)
}

func (m *MockGateway) FaceLogin(ctx context.Context, image string) (*domain.Profile, error) {
	args := m.Called(ctx, image)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Profile), args.Error(1)
}

func (m *MockGateway) UpdateFaceData(ctx context.Context, userID domain.ID, image string) error {
	args := m.Called(ctx, userID, image)
	return args.Error(0)
}

// brokenCamera never yields a stream.
type brokenCamera struct{}

func (brokenCamera) Acquire(context.Context) (device.Stream, error) {
	return nil, errors.New("permission denied")
}

type fixture struct {
	gw       *MockGateway
	cam      *device.FileCamera
	sessions *session.Manager
	store    *storage.MemoryStore
	flow     *Flow
}

func frame() image.Image {
	return imaging.New(32, 24, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	store := storage.NewMemoryStore()
	t.Cleanup(func() { _ = store.Close() })

	fx := &fixture{
		gw:       new(MockGateway),
		cam:      device.NewImageCamera(frame()),
		store:    store,
		sessions: session.NewManager(store),
	}
	fx.flow = NewFlow(fx.gw, fx.sessions, fx.cam, opts...)
	t.Cleanup(fx.flow.Close)
	return fx
}

func boolPtr(b bool) *bool { return &b }

var anyCtx = mock.Anything

// toAwaitingOTP drives the flow through a successful OTP request.
func (fx *fixture) toAwaitingOTP(t *testing.T, exists bool) {
	t.Helper()
	fx.gw.On("RequestOTP", anyCtx, "9876543210").
		Return(&apiclient.SendOTPResponse{UserExists: exists, OTP: "123456"}, nil).Once()
	require.NoError(t, fx.flow.RequestOTP(context.Background(), "98765 43210"))
}

// toRegistering drives the flow to the registration step for a new citizen.
func (fx *fixture) toRegistering(t *testing.T) {
	t.Helper()
	fx.toAwaitingOTP(t, false)
	fx.gw.On("VerifyOTP", anyCtx, "9876543210", "654321").
		Return(&apiclient.VerifyOTPResponse{UserExists: boolPtr(false)}, nil).Once()
	require.NoError(t, fx.flow.VerifyOTP(context.Background(), "654321"))
	require.Equal(t, PhaseRegistering, fx.flow.State().Phase)
}

func TestFlow_RequestOTP(t *testing.T) {
	t.Run("valid mobile moves to awaitingOtp", func(t *testing.T) {
		fx := newFixture(t)
		fx.toAwaitingOTP(t, true)

		st := fx.flow.State()
		assert.Equal(t, PhaseAwaitingOTP, st.Phase)
		assert.Equal(t, "9876543210", st.PendingMobile)
		assert.True(t, st.UserExists)
		assert.Equal(t, "123456", st.DevOTP)
		assert.NotEmpty(t, st.Success)
		assert.False(t, st.Busy)
		fx.gw.AssertExpectations(t)
	})

	t.Run("short mobile is rejected without a call", func(t *testing.T) {
		fx := newFixture(t)

		err := fx.flow.RequestOTP(context.Background(), "12345")
		var verr *perrors.ValidationError
		require.ErrorAs(t, err, &verr)

		st := fx.flow.State()
		assert.Equal(t, PhaseEnteringMobile, st.Phase)
		assert.Equal(t, perrors.KindValidation, st.Notice.Kind)
		fx.gw.AssertNotCalled(t, "RequestOTP", mock.Anything, mock.Anything)
	})

	t.Run("server error keeps phase and shows message", func(t *testing.T) {
		fx := newFixture(t)
		fx.gw.On("RequestOTP", anyCtx, "9876543210").
			Return(nil, perrors.NewApplicationError("send_otp", 429, "Too many requests")).Once()

		err := fx.flow.RequestOTP(context.Background(), "9876543210")
		require.Error(t, err)

		st := fx.flow.State()
		assert.Equal(t, PhaseEnteringMobile, st.Phase)
		assert.Equal(t, "Too many requests", st.Notice.Message)
		assert.Equal(t, perrors.KindApplication, st.Notice.Kind)
		assert.False(t, st.Busy)
	})

	t.Run("wrong phase", func(t *testing.T) {
		fx := newFixture(t)
		fx.toAwaitingOTP(t, true)
		before := fx.flow.State()

		err := fx.flow.RequestOTP(context.Background(), "9876543210")
		assert.ErrorIs(t, err, perrors.ErrInvalidTransition)
		assert.Equal(t, before, fx.flow.State())
	})
}

func TestFlow_VerifyOTP_ExistingUser(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := metrics.NewRecorder(reg, nil)
	var auditBuf bytes.Buffer

	fx := newFixture(t, WithMetrics(rec), WithAudit(audit.NewTrail(&auditBuf)))
	fx.toAwaitingOTP(t, true)

	fx.gw.On("VerifyOTP", anyCtx, "9876543210", "123456").Return(&apiclient.VerifyOTPResponse{
		UserExists: boolPtr(true),
		UserData:   &domain.Profile{UserID: "U1", Name: "Asha Rao", AccountBalance: 5000},
	}, nil).Once()

	require.NoError(t, fx.flow.VerifyOTP(context.Background(), "123456"))

	st := fx.flow.State()
	assert.Equal(t, PhaseAuthenticated, st.Phase)
	assert.Equal(t, "/userdashboard/U1", st.Redirect)
	assert.Equal(t, domain.ID("U1"), st.UserID)

	sess, err := fx.sessions.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.ID("U1"), sess.UserID)
	assert.Equal(t, "9876543210", sess.Profile.MobileNumber)

	assert.Equal(t, 1.0, testutil.ToFloat64(rec.LoginAttempts.WithLabelValues(MethodOTP, metrics.OutcomeSuccess)))
	assert.Contains(t, auditBuf.String(), `"action":"login"`)
	fx.gw.AssertExpectations(t)
}

func TestFlow_VerifyOTP_NewUser(t *testing.T) {
	fx := newFixture(t)
	fx.toRegistering(t)

	st := fx.flow.State()
	assert.False(t, st.UserExists)
	assert.Empty(t, st.Redirect)

	_, err := fx.sessions.Current(context.Background())
	assert.ErrorIs(t, err, perrors.ErrNoSession)
}

func TestFlow_VerifyOTP_FallsBackToRequestStep(t *testing.T) {
	fx := newFixture(t)
	fx.toAwaitingOTP(t, true)

	fx.gw.On("VerifyOTP", anyCtx, "9876543210", "123456").Return(&apiclient.VerifyOTPResponse{
		UserData: &domain.Profile{UserID: "U1"},
	}, nil).Once()

	require.NoError(t, fx.flow.VerifyOTP(context.Background(), "123456"))
	assert.Equal(t, PhaseAuthenticated, fx.flow.State().Phase)
}

func TestFlow_VerifyOTP_Failures(t *testing.T) {
	t.Run("invalid code format", func(t *testing.T) {
		fx := newFixture(t)
		fx.toAwaitingOTP(t, true)

		err := fx.flow.VerifyOTP(context.Background(), "12a456")
		assert.Equal(t, perrors.KindValidation, perrors.KindOf(err))
		assert.Equal(t, PhaseAwaitingOTP, fx.flow.State().Phase)
		fx.gw.AssertNotCalled(t, "VerifyOTP", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("wrong code stays awaiting", func(t *testing.T) {
		fx := newFixture(t)
		fx.toAwaitingOTP(t, true)
		fx.gw.On("VerifyOTP", anyCtx, "9876543210", "000000").
			Return(nil, perrors.NewApplicationError("verify_otp", 400, "Invalid OTP")).Once()

		err := fx.flow.VerifyOTP(context.Background(), "000000")
		require.Error(t, err)

		st := fx.flow.State()
		assert.Equal(t, PhaseAwaitingOTP, st.Phase)
		assert.Equal(t, "Invalid OTP", st.Notice.Message)
		assert.Equal(t, "9876543210", st.PendingMobile)

		_, err = fx.sessions.Current(context.Background())
		assert.ErrorIs(t, err, perrors.ErrNoSession)
	})

	t.Run("existing user without profile", func(t *testing.T) {
		fx := newFixture(t)
		fx.toAwaitingOTP(t, true)
		fx.gw.On("VerifyOTP", anyCtx, "9876543210", "123456").
			Return(&apiclient.VerifyOTPResponse{UserExists: boolPtr(true)}, nil).Once()

		err := fx.flow.VerifyOTP(context.Background(), "123456")
		assert.Equal(t, perrors.KindTransport, perrors.KindOf(err))
		assert.Equal(t, PhaseAwaitingOTP, fx.flow.State().Phase)
	})
}

func TestFlow_Register(t *testing.T) {
	t.Run("with face image logs in directly", func(t *testing.T) {
		fx := newFixture(t)
		fx.toRegistering(t)

		require.NoError(t, fx.flow.AttachFace(context.Background()))
		assert.True(t, fx.flow.State().HasCapturedFace())
		assert.False(t, fx.cam.Active(), "camera must be released after attaching a face")

		fx.gw.On("Register", anyCtx, mock.MatchedBy(func(r apiclient.RegisterRequest) bool {
			return r.MobileNumber == "9876543210" && r.Name == "Ravi Kumar" && r.FaceImage != ""
		})).Return(&domain.Profile{UserID: "U7", HasFaceData: true}, nil).Once()

		require.NoError(t, fx.flow.Register(context.Background(), domain.RegistrationForm{Name: " Ravi Kumar "}))

		st := fx.flow.State()
		assert.Equal(t, PhaseAuthenticated, st.Phase)
		assert.Equal(t, "/userdashboard/U7", st.Redirect)
		assert.False(t, st.HasCapturedFace())

		sess, err := fx.sessions.Current(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "Ravi Kumar", sess.Profile.Name)
		fx.gw.AssertExpectations(t)
	})

	t.Run("without face image offers enrollment", func(t *testing.T) {
		fx := newFixture(t)
		fx.toRegistering(t)

		fx.gw.On("Register", anyCtx, mock.MatchedBy(func(r apiclient.RegisterRequest) bool {
			return r.FaceImage == "" && r.Email == "ravi@example.org"
		})).Return(&domain.Profile{UserID: "U7"}, nil).Once()

		require.NoError(t, fx.flow.Register(context.Background(), domain.RegistrationForm{Name: "Ravi", Email: "ravi@example.org"}))

		st := fx.flow.State()
		assert.Equal(t, PhaseRegistering, st.Phase)
		assert.True(t, st.EnrollmentOffered)
		assert.Empty(t, st.Redirect)

		_, err := fx.sessions.Current(context.Background())
		require.NoError(t, err, "session is committed before the enrollment offer")
	})

	t.Run("validation", func(t *testing.T) {
		fx := newFixture(t)
		fx.toRegistering(t)

		err := fx.flow.Register(context.Background(), domain.RegistrationForm{Name: "  "})
		assert.Equal(t, perrors.KindValidation, perrors.KindOf(err))

		err = fx.flow.Register(context.Background(), domain.RegistrationForm{Name: "Ravi", Email: "not-an-email"})
		assert.Equal(t, perrors.KindValidation, perrors.KindOf(err))

		fx.gw.AssertNotCalled(t, "Register", mock.Anything, mock.Anything)
		assert.Equal(t, PhaseRegistering, fx.flow.State().Phase)
	})

	t.Run("server failure stays registering", func(t *testing.T) {
		fx := newFixture(t)
		fx.toRegistering(t)
		fx.gw.On("Register", anyCtx, mock.Anything).
			Return(nil, perrors.NewApplicationError("register", 409, "Mobile number already registered")).Once()

		err := fx.flow.Register(context.Background(), domain.RegistrationForm{Name: "Ravi"})
		require.Error(t, err)
		st := fx.flow.State()
		assert.Equal(t, PhaseRegistering, st.Phase)
		assert.False(t, st.EnrollmentOffered)
		assert.Equal(t, "Mobile number already registered", st.Notice.Message)
	})

	t.Run("attach face with broken camera", func(t *testing.T) {
		store := storage.NewMemoryStore()
		defer store.Close()
		gw := new(MockGateway)
		flow := NewFlow(gw, session.NewManager(store), brokenCamera{})
		defer flow.Close()

		gw.On("RequestOTP", anyCtx, "9876543210").Return(&apiclient.SendOTPResponse{}, nil).Once()
		gw.On("VerifyOTP", anyCtx, "9876543210", "111111").Return(&apiclient.VerifyOTPResponse{}, nil).Once()
		require.NoError(t, flow.RequestOTP(context.Background(), "9876543210"))
		require.NoError(t, flow.VerifyOTP(context.Background(), "111111"))

		err := flow.AttachFace(context.Background())
		assert.Equal(t, perrors.KindDevice, perrors.KindOf(err))
		st := flow.State()
		assert.Equal(t, PhaseRegistering, st.Phase)
		assert.False(t, st.HasCapturedFace())
	})
}

// toEnrollmentOffer registers a new citizen without a face image.
func (fx *fixture) toEnrollmentOffer(t *testing.T) {
	t.Helper()
	fx.toRegistering(t)
	fx.gw.On("Register", anyCtx, mock.Anything).Return(&domain.Profile{UserID: "U7"}, nil).Once()
	require.NoError(t, fx.flow.Register(context.Background(), domain.RegistrationForm{Name: "Ravi"}))
	require.True(t, fx.flow.State().EnrollmentOffered)
}

func TestFlow_Enrollment(t *testing.T) {
	t.Run("accept then capture", func(t *testing.T) {
		fx := newFixture(t)
		fx.toEnrollmentOffer(t)

		require.NoError(t, fx.flow.AcceptEnrollment(context.Background()))
		st := fx.flow.State()
		assert.Equal(t, PhaseCapturingFace, st.Phase)
		assert.Equal(t, CaptureEnrollment, st.Capture)
		assert.True(t, fx.cam.Active())

		fx.gw.On("UpdateFaceData", anyCtx, domain.ID("U7"), mock.AnythingOfType("string")).Return(nil).Once()
		require.NoError(t, fx.flow.CaptureFace(context.Background()))

		st = fx.flow.State()
		assert.Equal(t, PhaseAuthenticated, st.Phase)
		assert.Equal(t, "/userdashboard/U7", st.Redirect)
		assert.False(t, fx.cam.Active())
		fx.gw.AssertExpectations(t)
	})

	t.Run("enrollment failure keeps capturing", func(t *testing.T) {
		fx := newFixture(t)
		fx.toEnrollmentOffer(t)
		require.NoError(t, fx.flow.AcceptEnrollment(context.Background()))

		fx.gw.On("UpdateFaceData", anyCtx, domain.ID("U7"), mock.Anything).
			Return(perrors.NewApplicationError("update_face", 400, "No face detected")).Once()
		require.Error(t, fx.flow.CaptureFace(context.Background()))

		st := fx.flow.State()
		assert.Equal(t, PhaseCapturingFace, st.Phase)
		assert.Equal(t, "No face detected", st.Notice.Message)
		assert.True(t, fx.cam.Active())

		require.NoError(t, fx.flow.CancelCapture())
		st = fx.flow.State()
		assert.Equal(t, PhaseAuthenticated, st.Phase)
		assert.False(t, fx.cam.Active())
	})

	t.Run("decline", func(t *testing.T) {
		fx := newFixture(t)
		fx.toEnrollmentOffer(t)

		require.NoError(t, fx.flow.DeclineEnrollment())
		st := fx.flow.State()
		assert.Equal(t, PhaseAuthenticated, st.Phase)
		assert.Equal(t, "/userdashboard/U7", st.Redirect)
	})

	t.Run("camera unavailable completes login", func(t *testing.T) {
		store := storage.NewMemoryStore()
		defer store.Close()
		gw := new(MockGateway)
		fx := &fixture{gw: gw, store: store, sessions: session.NewManager(store)}
		fx.flow = NewFlow(gw, fx.sessions, brokenCamera{})
		defer fx.flow.Close()
		fx.toEnrollmentOffer(t)

		err := fx.flow.AcceptEnrollment(context.Background())
		assert.Equal(t, perrors.KindDevice, perrors.KindOf(err))

		st := fx.flow.State()
		assert.Equal(t, PhaseAuthenticated, st.Phase)
		assert.Equal(t, perrors.KindDevice, st.Notice.Kind)
		assert.Equal(t, "/userdashboard/U7", st.Redirect)
	})

	t.Run("mode switch refused during enrollment", func(t *testing.T) {
		fx := newFixture(t)
		fx.toEnrollmentOffer(t)
		assert.ErrorIs(t, fx.flow.SwitchMode(ModeFace), perrors.ErrInvalidTransition)

		require.NoError(t, fx.flow.AcceptEnrollment(context.Background()))
		assert.ErrorIs(t, fx.flow.SwitchMode(ModeMobile), perrors.ErrInvalidTransition)
		assert.True(t, fx.cam.Active())
	})

	t.Run("accept without offer", func(t *testing.T) {
		fx := newFixture(t)
		fx.toRegistering(t)
		assert.ErrorIs(t, fx.flow.AcceptEnrollment(context.Background()), perrors.ErrInvalidTransition)
		assert.ErrorIs(t, fx.flow.DeclineEnrollment(), perrors.ErrInvalidTransition)
	})
}

func TestFlow_FaceLogin(t *testing.T) {
	t.Run("success releases camera", func(t *testing.T) {
		fx := newFixture(t)
		require.NoError(t, fx.flow.SwitchMode(ModeFace))
		assert.Equal(t, PhaseIdle, fx.flow.State().Phase)

		require.NoError(t, fx.flow.StartFaceLogin(context.Background()))
		assert.Equal(t, CaptureLogin, fx.flow.State().Capture)
		assert.True(t, fx.cam.Active())

		fx.gw.On("FaceLogin", anyCtx, mock.MatchedBy(func(img string) bool {
			return len(img) > len("data:image/jpeg;base64,")
		})).Return(&domain.Profile{UserID: "U1", HasFaceData: true}, nil).Once()

		require.NoError(t, fx.flow.CaptureFace(context.Background()))

		st := fx.flow.State()
		assert.Equal(t, PhaseAuthenticated, st.Phase)
		assert.Equal(t, "/userdashboard/U1", st.Redirect)
		assert.False(t, fx.cam.Active())

		sess, err := fx.sessions.Current(context.Background())
		require.NoError(t, err)
		assert.Equal(t, domain.ID("U1"), sess.UserID)
	})

	t.Run("failure keeps camera for retry", func(t *testing.T) {
		fx := newFixture(t, WithMode(ModeFace))
		require.NoError(t, fx.flow.StartFaceLogin(context.Background()))

		fx.gw.On("FaceLogin", anyCtx, mock.Anything).
			Return(nil, perrors.NewApplicationError("face_login", 401, "Face not recognized")).Once()
		require.Error(t, fx.flow.CaptureFace(context.Background()))

		st := fx.flow.State()
		assert.Equal(t, PhaseCapturingFace, st.Phase)
		assert.Equal(t, "Face not recognized", st.Notice.Message)
		assert.True(t, fx.cam.Active())

		fx.gw.On("FaceLogin", anyCtx, mock.Anything).Return(&domain.Profile{UserID: "U1"}, nil).Once()
		require.NoError(t, fx.flow.CaptureFace(context.Background()))
		assert.False(t, fx.cam.Active())
	})

	t.Run("cancel returns to idle", func(t *testing.T) {
		fx := newFixture(t, WithMode(ModeFace))
		require.NoError(t, fx.flow.StartFaceLogin(context.Background()))

		require.NoError(t, fx.flow.CancelCapture())
		assert.Equal(t, PhaseIdle, fx.flow.State().Phase)
		assert.False(t, fx.cam.Active())
	})

	t.Run("mode switch releases camera", func(t *testing.T) {
		fx := newFixture(t, WithMode(ModeFace))
		require.NoError(t, fx.flow.StartFaceLogin(context.Background()))

		require.NoError(t, fx.flow.SwitchMode(ModeMobile))
		st := fx.flow.State()
		assert.Equal(t, PhaseEnteringMobile, st.Phase)
		assert.Equal(t, CaptureNone, st.Capture)
		assert.False(t, fx.cam.Active())
	})

	t.Run("teardown releases camera", func(t *testing.T) {
		fx := newFixture(t, WithMode(ModeFace))
		require.NoError(t, fx.flow.StartFaceLogin(context.Background()))

		fx.flow.Close()
		fx.flow.Close()
		assert.False(t, fx.cam.Active())
		assert.ErrorIs(t, fx.flow.CaptureFace(context.Background()), perrors.ErrInvalidTransition)
	})

	t.Run("camera unavailable stays idle", func(t *testing.T) {
		store := storage.NewMemoryStore()
		defer store.Close()
		flow := NewFlow(new(MockGateway), session.NewManager(store), brokenCamera{}, WithMode(ModeFace))
		defer flow.Close()

		err := flow.StartFaceLogin(context.Background())
		assert.Equal(t, perrors.KindDevice, perrors.KindOf(err))
		st := flow.State()
		assert.Equal(t, PhaseIdle, st.Phase)
		assert.Equal(t, perrors.KindDevice, st.Notice.Kind)
	})

	t.Run("camera already leased", func(t *testing.T) {
		fx := newFixture(t, WithMode(ModeFace))
		require.NoError(t, fx.flow.StartFaceLogin(context.Background()))
		before := fx.flow.State()

		assert.ErrorIs(t, fx.flow.StartFaceLogin(context.Background()), perrors.ErrCameraBusy)
		assert.Equal(t, before, fx.flow.State())
		assert.True(t, fx.cam.Active())
	})

	t.Run("enrollment capture holds the camera", func(t *testing.T) {
		fx := newFixture(t)
		fx.toEnrollmentOffer(t)
		require.NoError(t, fx.flow.AcceptEnrollment(context.Background()))

		assert.ErrorIs(t, fx.flow.AcceptEnrollment(context.Background()), perrors.ErrCameraBusy)
		assert.ErrorIs(t, fx.flow.AttachFace(context.Background()), perrors.ErrCameraBusy)
		assert.Equal(t, CaptureEnrollment, fx.flow.State().Capture)
	})
}

func TestFlow_CloseDuringCall(t *testing.T) {
	assertNoSession := func(t *testing.T, fx *fixture) {
		t.Helper()
		_, err := fx.sessions.Current(context.Background())
		assert.ErrorIs(t, err, perrors.ErrNoSession)
	}

	t.Run("verify otp", func(t *testing.T) {
		fx := newFixture(t)
		fx.toAwaitingOTP(t, true)

		fx.gw.On("VerifyOTP", anyCtx, "9876543210", "123456").
			Run(func(mock.Arguments) { fx.flow.Close() }).
			Return(&apiclient.VerifyOTPResponse{
				UserExists: boolPtr(true),
				UserData:   &domain.Profile{UserID: "U1", Name: "Asha Rao"},
			}, nil).Once()

		assert.ErrorIs(t, fx.flow.VerifyOTP(context.Background(), "123456"), perrors.ErrInvalidTransition)

		st := fx.flow.State()
		assert.Equal(t, PhaseAwaitingOTP, st.Phase)
		assert.False(t, st.Busy)
		assert.Empty(t, st.Redirect)
		assertNoSession(t, fx)
	})

	t.Run("register", func(t *testing.T) {
		fx := newFixture(t)
		fx.toRegistering(t)

		fx.gw.On("Register", anyCtx, mock.Anything).
			Run(func(mock.Arguments) { fx.flow.Close() }).
			Return(&domain.Profile{UserID: "U7", Name: "Ravi"}, nil).Once()

		err := fx.flow.Register(context.Background(), domain.RegistrationForm{Name: "Ravi"})
		assert.ErrorIs(t, err, perrors.ErrInvalidTransition)
		assert.Equal(t, PhaseRegistering, fx.flow.State().Phase)
		assertNoSession(t, fx)
	})

	t.Run("face login", func(t *testing.T) {
		fx := newFixture(t, WithMode(ModeFace))
		require.NoError(t, fx.flow.StartFaceLogin(context.Background()))

		fx.gw.On("FaceLogin", anyCtx, mock.Anything).
			Run(func(mock.Arguments) { fx.flow.Close() }).
			Return(&domain.Profile{UserID: "U1"}, nil).Once()

		assert.ErrorIs(t, fx.flow.CaptureFace(context.Background()), perrors.ErrInvalidTransition)

		st := fx.flow.State()
		assert.NotEqual(t, PhaseAuthenticated, st.Phase)
		assert.False(t, fx.cam.Active())
		assertNoSession(t, fx)
	})
}

func TestFlow_SwitchMode(t *testing.T) {
	t.Run("full reset", func(t *testing.T) {
		fx := newFixture(t)
		fx.toAwaitingOTP(t, true)

		require.NoError(t, fx.flow.SwitchMode(ModeFace))
		require.NoError(t, fx.flow.SwitchMode(ModeMobile))

		st := fx.flow.State()
		assert.Equal(t, State{Mode: ModeMobile, Phase: PhaseEnteringMobile}, st)
	})

	t.Run("refused once authenticated", func(t *testing.T) {
		fx := newFixture(t)
		fx.toEnrollmentOffer(t)
		require.NoError(t, fx.flow.DeclineEnrollment())

		assert.ErrorIs(t, fx.flow.SwitchMode(ModeFace), perrors.ErrAlreadyAuthenticated)
	})

	t.Run("unknown mode", func(t *testing.T) {
		fx := newFixture(t)
		assert.Error(t, fx.flow.SwitchMode("fingerprint"))
	})
}

// blockingGateway holds RequestOTP until released.
type blockingGateway struct {
	MockGateway
	entered chan struct{}
	release chan struct{}
}

func (g *blockingGateway) RequestOTP(ctx context.Context, mobile string) (*apiclient.SendOTPResponse, error) {
	close(g.entered)
	<-g.release
	return &apiclient.SendOTPResponse{UserExists: true}, nil
}

func TestFlow_DuplicateSubmission(t *testing.T) {
	store := storage.NewMemoryStore()
	defer store.Close()

	gw := &blockingGateway{entered: make(chan struct{}), release: make(chan struct{})}
	flow := NewFlow(gw, session.NewManager(store), device.NewImageCamera(frame()))
	defer flow.Close()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, flow.RequestOTP(context.Background(), "9876543210"))
	}()

	select {
	case <-gw.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("RequestOTP never reached the gateway")
	}

	assert.True(t, flow.State().Busy)
	assert.ErrorIs(t, flow.RequestOTP(context.Background(), "9876543210"), perrors.ErrBusy)
	assert.ErrorIs(t, flow.SwitchMode(ModeFace), perrors.ErrBusy)

	close(gw.release)
	wg.Wait()

	st := flow.State()
	assert.False(t, st.Busy)
	assert.Equal(t, PhaseAwaitingOTP, st.Phase)
}

func TestLogout(t *testing.T) {
	fx := newFixture(t)
	_, err := fx.sessions.Establish(context.Background(), domain.Profile{UserID: "U1"})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Logout(context.Background(), fx.sessions, audit.NewTrail(&buf)))

	values, err := fx.store.GetMany(context.Background(), session.KeyUser, session.KeyAuthenticated)
	require.NoError(t, err)
	assert.Empty(t, values)
	assert.Contains(t, buf.String(), `"action":"logout"`)
	assert.Contains(t, buf.String(), `"user":"U1"`)
}
