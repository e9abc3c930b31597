package apiclient

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"go.pilab.hu/citizenportal/domain"
)

func filterQuery(f domain.FilterState) url.Values {
	q := url.Values{}
	if s := strings.TrimSpace(f.Search); s != "" {
		q.Set("search", s)
	}
	if f.HasStatus() {
		q.Set("status", strings.TrimSpace(f.Status))
	}
	return q
}

// DashboardStats returns the summary counters for the dashboard.
func (c *Client) DashboardStats(ctx context.Context, userID string) (*domain.Stats, error) {
	var out statsEnvelope
	if err := c.do(ctx, "dashboard_stats", http.MethodGet, userPath("userdashboard/stats", userID), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

// RecentViolations returns the dashboard's recent violations.
func (c *Client) RecentViolations(ctx context.Context, userID string) ([]domain.Violation, error) {
	var out violationsEnvelope
	if err := c.do(ctx, "dashboard_violations", http.MethodGet, userPath("userdashboard/violations", userID), nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Violations, nil
}

// DashboardVehicles returns the vehicles shown on the dashboard.
func (c *Client) DashboardVehicles(ctx context.Context, userID string) ([]domain.Vehicle, error) {
	var out vehiclesEnvelope
	if err := c.do(ctx, "dashboard_vehicles", http.MethodGet, userPath("userdashboard/vehicles", userID), nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Vehicles, nil
}

// RecentPayments returns the dashboard's recent payments.
func (c *Client) RecentPayments(ctx context.Context, userID string) ([]domain.Payment, error) {
	var out paymentsEnvelope
	if err := c.do(ctx, "dashboard_payments", http.MethodGet, userPath("userdashboard/payments", userID), nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Payments, nil
}

// Profile returns the citizen's current profile.
func (c *Client) Profile(ctx context.Context, userID string) (*domain.Profile, error) {
	var out profileEnvelope
	if err := c.do(ctx, "profile", http.MethodGet, userPath("userdashboard/profile", userID), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

// Violations lists violations matching f.
func (c *Client) Violations(ctx context.Context, userID string, f domain.FilterState) ([]domain.Violation, error) {
	var out violationsEnvelope
	if err := c.do(ctx, "violations", http.MethodGet, userPath("userviolations", userID), filterQuery(f), nil, &out); err != nil {
		return nil, err
	}
	return out.Violations, nil
}

// ViolationSummary returns violation counts by status.
func (c *Client) ViolationSummary(ctx context.Context, userID string) (*domain.ViolationSummary, error) {
	var out summaryEnvelope
	if err := c.do(ctx, "violation_summary", http.MethodGet, userPath("userviolations", userID, "summary"), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

// PayViolation pays a single violation from the account balance.
func (c *Client) PayViolation(ctx context.Context, userID string, violationID domain.ID) (*domain.PaymentReceipt, error) {
	var out domain.PaymentReceipt
	err := c.do(ctx, "pay_violation", http.MethodPost, userPath("userviolations", userID, "pay"), nil,
		payRequest{ViolationID: violationID}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// PaymentHistory lists payments matching f.
func (c *Client) PaymentHistory(ctx context.Context, userID string, f domain.FilterState) ([]domain.Payment, error) {
	var out paymentsEnvelope
	if err := c.do(ctx, "payment_history", http.MethodGet, userPath("userpayments", userID, "history"), filterQuery(f), nil, &out); err != nil {
		return nil, err
	}
	return out.Payments, nil
}

// PendingFines returns unpaid violations and the account balance.
func (c *Client) PendingFines(ctx context.Context, userID string) (*domain.PendingFines, error) {
	var out pendingEnvelope
	if err := c.do(ctx, "pending_fines", http.MethodGet, userPath("userpayments", userID, "pending"), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

// BulkPay pays several violations in one request.
func (c *Client) BulkPay(ctx context.Context, userID string, violationIDs []domain.ID) (*domain.BulkPaymentReceipt, error) {
	var out domain.BulkPaymentReceipt
	err := c.do(ctx, "bulk_pay", http.MethodPost, userPath("userpayments", userID, "bulk-pay"), nil,
		bulkPayRequest{ViolationIDs: violationIDs}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// RetryPayment re-attempts a failed payment.
func (c *Client) RetryPayment(ctx context.Context, userID string, paymentID domain.ID) (*domain.PaymentReceipt, error) {
	var out domain.PaymentReceipt
	err := c.do(ctx, "retry_payment", http.MethodPost, userPath("userpayments", userID, "retry"), nil,
		retryRequest{PaymentID: paymentID}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Vehicles lists the citizen's registered vehicles.
func (c *Client) Vehicles(ctx context.Context, userID string) ([]domain.Vehicle, error) {
	var out vehiclesEnvelope
	if err := c.do(ctx, "vehicles", http.MethodGet, userPath("uservehicles", userID), nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Vehicles, nil
}

// Documents lists vehicle documents with their expiry classification.
func (c *Client) Documents(ctx context.Context, userID string) ([]domain.Document, error) {
	var out documentsEnvelope
	if err := c.do(ctx, "documents", http.MethodGet, userPath("uservehicles", userID, "documents"), nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Documents, nil
}

// UploadDocument stores a new vehicle document.
func (c *Client) UploadDocument(ctx context.Context, userID string, req domain.DocumentUpload) error {
	return c.do(ctx, "upload_document", http.MethodPost, userPath("uservehicles", userID, "documents"), nil, req, nil)
}

// Disputes lists disputes matching f.
func (c *Client) Disputes(ctx context.Context, userID string, f domain.FilterState) ([]domain.Dispute, error) {
	var out disputesEnvelope
	if err := c.do(ctx, "disputes", http.MethodGet, userPath("userdisputes", userID), filterQuery(f), nil, &out); err != nil {
		return nil, err
	}
	return out.Disputes, nil
}

// DisputableViolations lists violations that can still be disputed.
func (c *Client) DisputableViolations(ctx context.Context, userID string) ([]domain.Violation, error) {
	var out violationsEnvelope
	if err := c.do(ctx, "eligible_violations", http.MethodGet, userPath("userdisputes", userID, "eligible"), nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Violations, nil
}

// SubmitDispute files a dispute against a violation.
func (c *Client) SubmitDispute(ctx context.Context, userID string, req domain.DisputeRequest) (*DisputeResponse, error) {
	var out DisputeResponse
	if err := c.do(ctx, "submit_dispute", http.MethodPost, userPath("userdisputes", userID), nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
