package pages

import (
	"context"

	"github.com/stretchr/testify/mock"

	"go.pilab.hu/citizenportal/apiclient"
	"go.pilab.hu/citizenportal/domain"
	perrors "go.pilab.hu/citizenportal/errors"
)

type MockAPI struct {
	mock.Mock
}

func ret[T any](args mock.Arguments) (T, error) {
	var zero T
	v, ok := args.Get(0).(T)
	if !ok {
		return zero, args.Error(1)
	}
	return v, args.Error(1)
}

func (m *MockAPI) DashboardStats(ctx context.Context, userID string) (*domain.Stats, error) {
	return ret[*domain.Stats](m.Called(ctx, userID))
}

func (m *MockAPI) RecentViolations(ctx context.Context, userID string) ([]domain.Violation, error) {
	return ret[[]domain.Violation](m.Called(ctx, userID))
}

func (m *MockAPI) DashboardVehicles(ctx context.Context, userID string) ([]domain.Vehicle, error) {
	return ret[[]domain.Vehicle](m.Called(ctx, userID))
}

func (m *MockAPI) RecentPayments(ctx context.Context, userID string) ([]domain.Payment, error) {
	return ret[[]domain.Payment](m.Called(ctx, userID))
}

func (m *MockAPI) Profile(ctx context.Context, userID string) (*domain.Profile, error) {
	return ret[*domain.Profile](m.Called(ctx, userID))
}

func (m *MockAPI) Violations(ctx context.Context, userID string, f domain.FilterState) ([]domain.Violation, error) {
	return ret[[]domain.Violation](m.Called(ctx, userID, f))
}

func (m *MockAPI) ViolationSummary(ctx context.Context, userID string) (*domain.ViolationSummary, error) {
	return ret[*domain.ViolationSummary](m.Called(ctx, userID))
}

func (m *MockAPI) PayViolation(ctx context.Context, userID string, violationID domain.ID) (*domain.PaymentReceipt, error) {
	return ret[*domain.PaymentReceipt](m.Called(ctx, userID, violationID))
}

func (m *MockAPI) PaymentHistory(ctx context.Context, userID string, f domain.FilterState) ([]domain.Payment, error) {
	return ret[[]domain.Payment](m.Called(ctx, userID, f))
}

func (m *MockAPI) PendingFines(ctx context.Context, userID string) (*domain.PendingFines, error) {
	return ret[*domain.PendingFines](m.Called(ctx, userID))
}

func (m *MockAPI) BulkPay(ctx context.Context, userID string, violationIDs []domain.ID) (*domain.BulkPaymentReceipt, error) {
	return ret[*domain.BulkPaymentReceipt](m.Called(ctx, userID, violationIDs))
}

func (m *MockAPI) RetryPayment(ctx context.Context, userID string, paymentID domain.ID) (*domain.PaymentReceipt, error) {
	return ret[*domain.PaymentReceipt](m.Called(ctx, userID, paymentID))
}

func (m *MockAPI) Vehicles(ctx context.Context, userID string) ([]domain.Vehicle, error) {
	return ret[[]domain.Vehicle](m.Called(ctx, userID))
}

func (m *MockAPI) Documents(ctx context.Context, userID string) ([]domain.Document, error) {
	return ret[[]domain.Document](m.Called(ctx, userID))
}

func (m *MockAPI) UploadDocument(ctx context.Context, userID string, req domain.DocumentUpload) error {
	return m.Called(ctx, userID, req).Error(0)
}

func (m *MockAPI) Disputes(ctx context.Context, userID string, f domain.FilterState) ([]domain.Dispute, error) {
	return ret[[]domain.Dispute](m.Called(ctx, userID, f))
}

func (m *MockAPI) DisputableViolations(ctx context.Context, userID string) ([]domain.Violation, error) {
	return ret[[]domain.Violation](m.Called(ctx, userID))
}

func (m *MockAPI) SubmitDispute(ctx context.Context, userID string, req domain.DisputeRequest) (*apiclient.DisputeResponse, error) {
	return ret[*apiclient.DisputeResponse](m.Called(ctx, userID, req))
}

var _ API = (*MockAPI)(nil)

type sessionStub string

func (s sessionStub) UserID(context.Context) (string, error) {
	if s == "" {
		return "", perrors.ErrNoSession
	}
	return string(s), nil
}
