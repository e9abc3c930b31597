package pages

import (
	"context"
	"fmt"

	"go.pilab.hu/citizenportal/domain"
	perrors "go.pilab.hu/citizenportal/errors"
	"go.pilab.hu/citizenportal/pagedata"
)

// Payments shows the payment history and the pending fines.
type Payments struct {
	*pagedata.Controller
	api API
}

// NewPayments creates the payments controller.
func NewPayments(api API, sessions pagedata.SessionReader, routeUserID string, opts ...pagedata.Option) *Payments {
	spec := pagedata.PageSpec{
		Name:   PagePayments,
		Policy: pagedata.IsolateFailures,
		Resources: []pagedata.ResourceSpec{
			{Name: ResHistory, Filtered: true, Fetch: filtered(api.PaymentHistory)},
			{Name: ResPending, Fetch: unfiltered(api.PendingFines)},
		},
		Refilter: refilter,
	}
	return &Payments{Controller: pagedata.New(spec, sessions, routeUserID, opts...), api: api}
}

// Pay pays a single pending fine.
func (p *Payments) Pay(ctx context.Context, violationID domain.ID) (*domain.PaymentReceipt, error) {
	return payViolation(ctx, p.Controller, p.api, violationID, ResHistory, ResPending)
}

// BulkPay pays the selected fines in one call.
func (p *Payments) BulkPay(ctx context.Context, violationIDs []domain.ID) (*domain.BulkPaymentReceipt, error) {
	var ids []domain.ID
	for _, id := range violationIDs {
		if !id.IsZero() {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, perrors.NewValidation("violation_ids", "Select at least one violation to pay")
	}

	res, err := p.Mutate(ctx, ActionBulkPay, func(ctx context.Context, userID string) (any, error) {
		return p.api.BulkPay(ctx, userID, ids)
	}, ResHistory, ResPending)
	if err != nil {
		return nil, err
	}
	return asResult[*domain.BulkPaymentReceipt](ActionBulkPay, res)
}

// Retry re-attempts a failed payment.
func (p *Payments) Retry(ctx context.Context, paymentID domain.ID) (*domain.PaymentReceipt, error) {
	if paymentID.IsZero() {
		return nil, perrors.NewValidation("payment_id", "Payment ID is required")
	}

	res, err := p.Mutate(ctx, ActionRetryPayment, func(ctx context.Context, userID string) (any, error) {
		return p.api.RetryPayment(ctx, userID, paymentID)
	}, ResHistory, ResPending)
	if err != nil {
		return nil, err
	}
	return asResult[*domain.PaymentReceipt](ActionRetryPayment, res)
}

func payViolation(ctx context.Context, c *pagedata.Controller, api API, violationID domain.ID, refetch ...string) (*domain.PaymentReceipt, error) {
	if violationID.IsZero() {
		return nil, perrors.NewValidation("violation_id", "Violation ID is required")
	}

	res, err := c.Mutate(ctx, ActionPayViolation, func(ctx context.Context, userID string) (any, error) {
		return api.PayViolation(ctx, userID, violationID)
	}, refetch...)
	if err != nil {
		return nil, err
	}
	return asResult[*domain.PaymentReceipt](ActionPayViolation, res)
}

func asResult[T any](action string, res any) (T, error) {
	out, ok := res.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("%s: unexpected result %T", action, res)
	}
	return out, nil
}
