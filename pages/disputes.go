package pages

import (
	"context"
	"strings"

	"go.pilab.hu/citizenportal/apiclient"
	"go.pilab.hu/citizenportal/domain"
	perrors "go.pilab.hu/citizenportal/errors"
	"go.pilab.hu/citizenportal/pagedata"
)

// Disputes lists submitted disputes and the violations that can still be
// disputed.
type Disputes struct {
	*pagedata.Controller
	api API
}

// NewDisputes creates the disputes controller.
func NewDisputes(api API, sessions pagedata.SessionReader, routeUserID string, opts ...pagedata.Option) *Disputes {
	spec := pagedata.PageSpec{
		Name:   PageDisputes,
		Policy: pagedata.IsolateFailures,
		Resources: []pagedata.ResourceSpec{
			{Name: ResDisputes, Filtered: true, Fetch: filtered(api.Disputes)},
			{Name: ResEligible, Fetch: unfiltered(api.DisputableViolations)},
		},
		Refilter: refilter,
	}
	return &Disputes{Controller: pagedata.New(spec, sessions, routeUserID, opts...), api: api}
}

// ValidateDispute checks a dispute before it is sent.
func ValidateDispute(req domain.DisputeRequest) error {
	switch {
	case req.ViolationID.IsZero():
		return perrors.NewValidation("violation_id", "Select a violation to dispute")
	case strings.TrimSpace(req.Reason) == "":
		return perrors.NewValidation("reason", "Select a reason for the dispute")
	case strings.TrimSpace(req.Description) == "":
		return perrors.NewValidation("description", "Please describe why you are disputing this violation")
	}
	return nil
}

// Submit files a new dispute and reloads both lists.
func (p *Disputes) Submit(ctx context.Context, req domain.DisputeRequest) (*apiclient.DisputeResponse, error) {
	if err := ValidateDispute(req); err != nil {
		return nil, err
	}
	req.Reason = strings.TrimSpace(req.Reason)
	req.Description = strings.TrimSpace(req.Description)

	res, err := p.Mutate(ctx, ActionSubmitDispute, func(ctx context.Context, userID string) (any, error) {
		return p.api.SubmitDispute(ctx, userID, req)
	}, ResDisputes, ResEligible)
	if err != nil {
		return nil, err
	}
	return asResult[*apiclient.DisputeResponse](ActionSubmitDispute, res)
}
