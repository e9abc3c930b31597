package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"go.pilab.hu/citizenportal/log"
)

// Outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Recorder holds the portal client counters. A nil *Recorder records
// nothing, so components can take one unconditionally.
type Recorder struct {
	LoginAttempts   *prometheus.CounterVec
	ResourceFetches *prometheus.CounterVec
	Mutations       *prometheus.CounterVec
}

// NewRecorder creates the counters and registers them on reg. A failed
// registration is logged and the counter still works unregistered.
func NewRecorder(reg prometheus.Registerer, logger log.Logger) *Recorder {
	if logger == nil {
		logger = log.NewNop()
	}

	r := &Recorder{
		LoginAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_login_attempts_total",
			Help: "Login attempts by method and outcome.",
		}, []string{"method", "outcome"}),
		ResourceFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_resource_fetch_total",
			Help: "Page resource fetches by page, resource and outcome.",
		}, []string{"page", "resource", "outcome"}),
		Mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_mutations_total",
			Help: "Page mutations by action and outcome.",
		}, []string{"action", "outcome"}),
	}

	ctx := context.Background()
	if reg == nil {
		logger.Warn(ctx, "Prometheus registry is nil, portal metrics are not exported")
		return r
	}

	for name, c := range map[string]prometheus.Collector{
		"portal_login_attempts_total": r.LoginAttempts,
		"portal_resource_fetch_total": r.ResourceFetches,
		"portal_mutations_total":      r.Mutations,
	} {
		if err := reg.Register(c); err != nil {
			logger.Warn(ctx, "Failed to register metric", log.Fields{"metric": name, "error": err.Error()})
		}
	}

	return r
}

func outcome(err error) string {
	if err != nil {
		return OutcomeFailure
	}
	return OutcomeSuccess
}

// ObserveLogin counts a login attempt for method ("otp", "face", "register").
func (r *Recorder) ObserveLogin(method string, err error) {
	if r == nil {
		return
	}
	r.LoginAttempts.WithLabelValues(method, outcome(err)).Inc()
}

// ObserveFetch counts one resource fetch.
func (r *Recorder) ObserveFetch(page, resource string, err error) {
	if r == nil {
		return
	}
	r.ResourceFetches.WithLabelValues(page, resource, outcome(err)).Inc()
}

// ObserveMutation counts one mutation call.
func (r *Recorder) ObserveMutation(action string, err error) {
	if r == nil {
		return
	}
	r.Mutations.WithLabelValues(action, outcome(err)).Inc()
}
