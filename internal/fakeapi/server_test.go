package fakeapi_test

import (
	"context"
	"image"
	"image/color"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.pilab.hu/citizenportal/apiclient"
	"go.pilab.hu/citizenportal/auth"
	"go.pilab.hu/citizenportal/device"
	"go.pilab.hu/citizenportal/domain"
	perrors "go.pilab.hu/citizenportal/errors"
	"go.pilab.hu/citizenportal/internal/fakeapi"
	"go.pilab.hu/citizenportal/pagedata"
	"go.pilab.hu/citizenportal/pages"
	"go.pilab.hu/citizenportal/session"
	"go.pilab.hu/citizenportal/storage"
)

type env struct {
	srv      *fakeapi.Server
	client   *apiclient.Client
	sessions *session.Manager
}

func setup(t *testing.T, opts ...fakeapi.Option) *env {
	t.Helper()

	srv := fakeapi.New(opts...)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	store := storage.NewMemoryStore()
	t.Cleanup(func() { _ = store.Close() })

	return &env{
		srv:      srv,
		client:   apiclient.New(ts.URL + fakeapi.Prefix),
		sessions: session.NewManager(store),
	}
}

func face() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 32, 24))
	for x := 0; x < 32; x++ {
		for y := 0; y < 24; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 8), G: uint8(y * 10), B: 90, A: 255})
		}
	}
	return img
}

func TestOTPLogin_SeededCitizen(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	flow := auth.NewFlow(e.client, e.sessions, device.NewImageCamera(face()))
	defer flow.Close()

	require.NoError(t, flow.RequestOTP(ctx, fakeapi.SeedMobile))
	st := flow.State()
	assert.Equal(t, auth.PhaseAwaitingOTP, st.Phase)
	assert.True(t, st.UserExists)
	require.Len(t, st.DevOTP, 6)

	require.NoError(t, flow.VerifyOTP(ctx, st.DevOTP))
	st = flow.State()
	assert.Equal(t, auth.PhaseAuthenticated, st.Phase)
	assert.Equal(t, "/userdashboard/U1", st.Redirect)

	sess, err := e.sessions.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, fakeapi.SeedUserID, sess.UserID)
	assert.Equal(t, "Rahul Sharma", sess.Profile.Name)
}

func TestOTPLogin_WrongCode(t *testing.T) {
	e := setup(t, fakeapi.WithDevOTP(false))
	ctx := context.Background()

	flow := auth.NewFlow(e.client, e.sessions, nil)
	defer flow.Close()

	require.NoError(t, flow.RequestOTP(ctx, fakeapi.SeedMobile))
	assert.Empty(t, flow.State().DevOTP)

	code, found := e.srv.CurrentOTP(fakeapi.SeedMobile)
	require.True(t, found)
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}

	err := flow.VerifyOTP(ctx, wrong)
	assert.Equal(t, "Invalid or expired OTP", perrors.Message(err))
	assert.Equal(t, auth.PhaseAwaitingOTP, flow.State().Phase)

	require.NoError(t, flow.VerifyOTP(ctx, code))
	assert.Equal(t, auth.PhaseAuthenticated, flow.State().Phase)
}

func TestOTP_ExpiresAfterPeriod(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	var offset atomic.Int64
	e := setup(t, fakeapi.WithClock(func() time.Time { return now.Add(time.Duration(offset.Load())) }))
	ctx := context.Background()

	sent, err := e.client.RequestOTP(ctx, fakeapi.SeedMobile)
	require.NoError(t, err)

	offset.Store(int64(fakeapi.OTPPeriod + time.Minute))

	_, err = e.client.VerifyOTP(ctx, fakeapi.SeedMobile, sent.OTP)
	assert.Equal(t, "Invalid or expired OTP", perrors.Message(err))
}

func TestRegistration_EnrollmentThenFaceLogin(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	cam := device.NewImageCamera(face())
	const mobile = "9123456789"

	flow := auth.NewFlow(e.client, e.sessions, cam)
	defer flow.Close()

	require.NoError(t, flow.RequestOTP(ctx, mobile))
	assert.False(t, flow.State().UserExists)
	require.NoError(t, flow.VerifyOTP(ctx, flow.State().DevOTP))
	assert.Equal(t, auth.PhaseRegistering, flow.State().Phase)

	require.NoError(t, flow.Register(ctx, domain.RegistrationForm{Name: "Priya Nair", Email: "priya@example.in"}))
	st := flow.State()
	require.True(t, st.EnrollmentOffered)
	newID := st.UserID
	require.False(t, newID.IsZero())

	require.NoError(t, flow.AcceptEnrollment(ctx))
	assert.True(t, cam.Active())
	require.NoError(t, flow.CaptureFace(ctx))
	assert.False(t, cam.Active())
	assert.Equal(t, auth.DashboardPath(newID), flow.State().Redirect)

	profile, found := e.srv.Citizen(newID)
	require.True(t, found)
	assert.True(t, profile.HasFaceData)

	require.NoError(t, auth.Logout(ctx, e.sessions, nil))

	faceFlow := auth.NewFlow(e.client, e.sessions, cam, auth.WithMode(auth.ModeFace))
	defer faceFlow.Close()

	require.NoError(t, faceFlow.StartFaceLogin(ctx))
	require.NoError(t, faceFlow.CaptureFace(ctx))
	assert.Equal(t, newID, faceFlow.State().UserID)
	assert.False(t, cam.Active())

	id, err := e.sessions.UserID(ctx)
	require.NoError(t, err)
	assert.Equal(t, newID.String(), id)
}

func TestRegister_RequiresVerifiedMobile(t *testing.T) {
	e := setup(t)

	_, err := e.client.Register(context.Background(), apiclient.RegisterRequest{MobileNumber: "9000000001", Name: "Test"})
	var appErr *perrors.ApplicationError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, http.StatusForbidden, appErr.StatusCode)
}

func TestFaceLogin_Unknown(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	cam := device.NewImageCamera(face())

	flow := auth.NewFlow(e.client, e.sessions, cam, auth.WithMode(auth.ModeFace))
	defer flow.Close()

	require.NoError(t, flow.StartFaceLogin(ctx))
	err := flow.CaptureFace(ctx)
	assert.Equal(t, perrors.KindApplication, perrors.KindOf(err))
	assert.Equal(t, auth.PhaseCapturingFace, flow.State().Phase)
	assert.True(t, cam.Active())

	require.NoError(t, flow.CancelCapture())
	assert.False(t, cam.Active())
}

func TestDashboard_EndToEnd(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	d := pages.NewDashboard(e.client, e.sessions, string(fakeapi.SeedUserID))
	defer d.Close()

	v := d.Load(ctx)
	require.Empty(t, v.Error)
	data := d.Data(v)
	assert.Equal(t, 4, data.Stats.TotalViolations)
	assert.Equal(t, 2, data.Stats.PendingViolations)
	assert.Equal(t, 1, data.Stats.ActiveDisputes)
	assert.Len(t, data.Vehicles, 2)
	assert.Equal(t, fakeapi.SeedMobile, data.Profile.MobileNumber)

	e.srv.InjectFailure(http.MethodGet, "/userdashboard/stats/:id", http.StatusInternalServerError)
	v = d.Reload(ctx)
	assert.Equal(t, "request failed with status 500", v.Error)
	assert.Equal(t, []string{pages.ResStats}, v.Failed())
	assert.Len(t, v.Resources, 5)

	e.srv.InjectFailure(http.MethodGet, "/userdashboard/stats/:id", 0)
	assert.Empty(t, d.Reload(ctx).Error)
}

func TestDashboard_RedirectsWithoutSession(t *testing.T) {
	e := setup(t)

	d := pages.NewDashboard(e.client, e.sessions, "")
	defer d.Close()

	v := d.Load(context.Background())
	assert.Equal(t, pagedata.LoginPath, v.Redirect)
}

func TestViolations_FilterAndPay(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	p := pages.NewViolations(e.client, e.sessions, string(fakeapi.SeedUserID))
	defer p.Close()
	p.Load(ctx)

	v := p.SetFilter(ctx, domain.FilterState{Search: "activa"})
	list, err := pagedata.Data[[]domain.Violation](v, pages.ResViolations)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, domain.ID("V3"), list[0].ID)
	assert.Equal(t, domain.ID("V4"), list[1].ID)

	receipt, err := p.Pay(ctx, "V1")
	require.NoError(t, err)
	assert.Equal(t, 4000.0, receipt.NewBalance)

	summary, err := pagedata.Data[*domain.ViolationSummary](p.View(), pages.ResSummary)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Pending)
	assert.Equal(t, 2, summary.Paid)

	_, err = p.Pay(ctx, "V1")
	assert.Equal(t, "Violation is not payable", perrors.Message(err))
}

func TestPayments_RetryAndBulkPay(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	p := pages.NewPayments(e.client, e.sessions, string(fakeapi.SeedUserID))
	defer p.Close()
	p.Load(ctx)

	receipt, err := p.Retry(ctx, "P2")
	require.NoError(t, err)
	assert.Equal(t, 500.0, receipt.AmountPaid)
	assert.Equal(t, 4500.0, receipt.NewBalance)

	_, err = p.Retry(ctx, "P2")
	assert.Equal(t, "Only failed payments can be retried", perrors.Message(err))

	bulk, err := p.BulkPay(ctx, []domain.ID{"V1", "V3"})
	require.NoError(t, err)
	assert.Equal(t, 1, bulk.PaidCount)
	assert.Equal(t, []domain.ID{"V3"}, bulk.Failed)
	assert.Equal(t, 3500.0, bulk.NewBalance)

	pending, err := pagedata.Data[*domain.PendingFines](p.View(), pages.ResPending)
	require.NoError(t, err)
	assert.Empty(t, pending.Violations)

	v := p.SetFilter(ctx, domain.FilterState{Status: "failed"})
	history, err := pagedata.Data[[]domain.Payment](v, pages.ResHistory)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestDisputes_Submit(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	p := pages.NewDisputes(e.client, e.sessions, string(fakeapi.SeedUserID))
	defer p.Close()
	v := p.Load(ctx)

	eligible, err := pagedata.Data[[]domain.Violation](v, pages.ResEligible)
	require.NoError(t, err)
	require.Len(t, eligible, 2)

	res, err := p.Submit(ctx, domain.DisputeRequest{ViolationID: "V4", Reason: "Not my vehicle", Description: "The vehicle was sold in 2025."})
	require.NoError(t, err)
	assert.False(t, res.DisputeID.IsZero())

	v = p.View()
	disputes, err := pagedata.Data[[]domain.Dispute](v, pages.ResDisputes)
	require.NoError(t, err)
	require.Len(t, disputes, 2)
	assert.Equal(t, res.DisputeID, disputes[0].ID)

	eligible, err = pagedata.Data[[]domain.Violation](v, pages.ResEligible)
	require.NoError(t, err)
	require.Len(t, eligible, 1)
	assert.Equal(t, domain.ID("V1"), eligible[0].ID)
}

func TestVehicles_DocumentsAndUpload(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	p := pages.NewVehicles(e.client, e.sessions, string(fakeapi.SeedUserID))
	defer p.Close()
	v := p.Load(ctx)
	require.Empty(t, v.Error)

	docs, err := pagedata.Data[[]domain.Document](v, pages.ResDocuments)
	require.NoError(t, err)
	statuses := map[domain.ID]domain.DocumentStatus{}
	for _, d := range docs {
		statuses[d.ID] = d.Status
	}
	assert.Equal(t, domain.DocumentValid, statuses["DOC1"])
	assert.Equal(t, domain.DocumentExpiringSoon, statuses["DOC2"])
	assert.Equal(t, domain.DocumentExpired, statuses["DOC3"])

	err = p.UploadDocument(ctx, domain.DocumentUpload{
		VehicleID:      "VH2",
		DocumentType:   domain.DocumentPUC,
		DocumentNumber: "PUC-99001",
		ExpiryDate:     time.Now().AddDate(1, 0, 0).Format("2006-01-02"),
		File:           "cGRm",
	})
	require.NoError(t, err)

	docs, err = pagedata.Data[[]domain.Document](p.View(), pages.ResDocuments)
	require.NoError(t, err)
	require.Len(t, docs, 4)
	assert.Equal(t, "KA05XY9876", docs[3].PlateNumber)
	assert.Equal(t, domain.DocumentValid, docs[3].Status)

	err = p.UploadDocument(ctx, domain.DocumentUpload{VehicleID: "VH9", DocumentType: domain.DocumentRC, DocumentNumber: "X", ExpiryDate: "2030-01-01", File: "eA=="})
	assert.Equal(t, "Vehicle not found", perrors.Message(err))
}

func TestUnknownUser(t *testing.T) {
	e := setup(t)

	_, err := e.client.Profile(context.Background(), "U404")
	var appErr *perrors.ApplicationError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, http.StatusNotFound, appErr.StatusCode)
	assert.Equal(t, "User not found", appErr.Message)
}
