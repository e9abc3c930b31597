package pages

import (
	"go.pilab.hu/citizenportal/domain"
	"go.pilab.hu/citizenportal/pagedata"
)

// Dashboard is the citizen's landing screen. Any failed resource becomes a
// page error with a single retry affordance.
type Dashboard struct {
	*pagedata.Controller
}

// NewDashboard creates the dashboard controller.
func NewDashboard(api API, sessions pagedata.SessionReader, routeUserID string, opts ...pagedata.Option) *Dashboard {
	spec := pagedata.PageSpec{
		Name:   PageDashboard,
		Policy: pagedata.PromoteFailures,
		Resources: []pagedata.ResourceSpec{
			{Name: ResStats, Fetch: unfiltered(api.DashboardStats)},
			{Name: ResViolations, Fetch: unfiltered(api.RecentViolations)},
			{Name: ResVehicles, Fetch: unfiltered(api.DashboardVehicles)},
			{Name: ResPayments, Fetch: unfiltered(api.RecentPayments)},
			{Name: ResProfile, Fetch: unfiltered(api.Profile)},
		},
	}
	return &Dashboard{Controller: pagedata.New(spec, sessions, routeUserID, opts...)}
}

// DashboardData is the typed content of a loaded dashboard. Fields of
// failed resources are left empty.
type DashboardData struct {
	Stats      *domain.Stats
	Violations []domain.Violation
	Vehicles   []domain.Vehicle
	Payments   []domain.Payment
	Profile    *domain.Profile
}

// Data extracts the typed dashboard content from v.
func (d *Dashboard) Data(v pagedata.View) DashboardData {
	var out DashboardData
	out.Stats, _ = pagedata.Data[*domain.Stats](v, ResStats)
	out.Violations, _ = pagedata.Data[[]domain.Violation](v, ResViolations)
	out.Vehicles, _ = pagedata.Data[[]domain.Vehicle](v, ResVehicles)
	out.Payments, _ = pagedata.Data[[]domain.Payment](v, ResPayments)
	out.Profile, _ = pagedata.Data[*domain.Profile](v, ResProfile)
	return out
}
