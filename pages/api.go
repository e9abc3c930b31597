// Package pages wires the portal screens onto pagedata controllers: the
// resources each screen loads, how failures surface, local filtering and
// the mutations a screen offers.
package pages

import (
	"context"

	"go.pilab.hu/citizenportal/apiclient"
	"go.pilab.hu/citizenportal/domain"
	"go.pilab.hu/citizenportal/pagedata"
)

// API is the part of the portal API the screens read and mutate.
type API interface {
	DashboardStats(ctx context.Context, userID string) (*domain.Stats, error)
	RecentViolations(ctx context.Context, userID string) ([]domain.Violation, error)
	DashboardVehicles(ctx context.Context, userID string) ([]domain.Vehicle, error)
	RecentPayments(ctx context.Context, userID string) ([]domain.Payment, error)
	Profile(ctx context.Context, userID string) (*domain.Profile, error)

	Violations(ctx context.Context, userID string, f domain.FilterState) ([]domain.Violation, error)
	ViolationSummary(ctx context.Context, userID string) (*domain.ViolationSummary, error)
	PayViolation(ctx context.Context, userID string, violationID domain.ID) (*domain.PaymentReceipt, error)

	PaymentHistory(ctx context.Context, userID string, f domain.FilterState) ([]domain.Payment, error)
	PendingFines(ctx context.Context, userID string) (*domain.PendingFines, error)
	BulkPay(ctx context.Context, userID string, violationIDs []domain.ID) (*domain.BulkPaymentReceipt, error)
	RetryPayment(ctx context.Context, userID string, paymentID domain.ID) (*domain.PaymentReceipt, error)

	Vehicles(ctx context.Context, userID string) ([]domain.Vehicle, error)
	Documents(ctx context.Context, userID string) ([]domain.Document, error)
	UploadDocument(ctx context.Context, userID string, req domain.DocumentUpload) error

	Disputes(ctx context.Context, userID string, f domain.FilterState) ([]domain.Dispute, error)
	DisputableViolations(ctx context.Context, userID string) ([]domain.Violation, error)
	SubmitDispute(ctx context.Context, userID string, req domain.DisputeRequest) (*apiclient.DisputeResponse, error)
}

var _ API = (*apiclient.Client)(nil)

// Page names.
const (
	PageDashboard  = "dashboard"
	PageViolations = "violations"
	PagePayments   = "payments"
	PageDisputes   = "disputes"
	PageVehicles   = "vehicles"
)

// Resource names.
const (
	ResStats      = "stats"
	ResViolations = "violations"
	ResVehicles   = "vehicles"
	ResPayments   = "payments"
	ResProfile    = "profile"
	ResSummary    = "summary"
	ResHistory    = "history"
	ResPending    = "pending"
	ResDocuments  = "documents"
	ResDisputes   = "disputes"
	ResEligible   = "eligible"
)

// Mutation actions.
const (
	ActionPayViolation   = "pay_violation"
	ActionBulkPay        = "bulk_pay"
	ActionRetryPayment   = "retry_payment"
	ActionSubmitDispute  = "submit_dispute"
	ActionUploadDocument = "upload_document"
)

// unfiltered adapts a fetch that takes no filter.
func unfiltered[T any](fn func(context.Context, string) (T, error)) pagedata.FetchFunc {
	return func(ctx context.Context, userID string, _ domain.FilterState) (any, error) {
		return fn(ctx, userID)
	}
}

// filtered adapts a filtered list fetch.
func filtered[T any](fn func(context.Context, string, domain.FilterState) (T, error)) pagedata.FetchFunc {
	return func(ctx context.Context, userID string, f domain.FilterState) (any, error) {
		return fn(ctx, userID, f)
	}
}
