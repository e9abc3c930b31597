package pages

import (
	"context"

	"go.pilab.hu/citizenportal/domain"
	"go.pilab.hu/citizenportal/pagedata"
)

// Violations lists the citizen's violations with a summary. The list and the
// summary fail independently.
type Violations struct {
	*pagedata.Controller
	api API
}

// NewViolations creates the violations controller.
func NewViolations(api API, sessions pagedata.SessionReader, routeUserID string, opts ...pagedata.Option) *Violations {
	spec := pagedata.PageSpec{
		Name:   PageViolations,
		Policy: pagedata.IsolateFailures,
		Resources: []pagedata.ResourceSpec{
			{Name: ResViolations, Filtered: true, Fetch: filtered(api.Violations)},
			{Name: ResSummary, Fetch: unfiltered(api.ViolationSummary)},
		},
		Refilter: refilter,
	}
	return &Violations{Controller: pagedata.New(spec, sessions, routeUserID, opts...), api: api}
}

// Pay pays one violation from the account balance and reloads the list and
// the summary.
func (p *Violations) Pay(ctx context.Context, violationID domain.ID) (*domain.PaymentReceipt, error) {
	return payViolation(ctx, p.Controller, p.api, violationID, ResViolations, ResSummary)
}
