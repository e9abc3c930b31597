package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorder_Counts(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg, nil)

	r.ObserveLogin("otp", nil)
	r.ObserveLogin("otp", errors.New("invalid"))
	r.ObserveLogin("face", nil)
	r.ObserveFetch("dashboard", "stats", nil)
	r.ObserveFetch("dashboard", "stats", errors.New("502"))
	r.ObserveMutation("pay_violation", nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.LoginAttempts.WithLabelValues("otp", OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.LoginAttempts.WithLabelValues("otp", OutcomeFailure)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.ResourceFetches.WithLabelValues("dashboard", "stats", OutcomeFailure)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.Mutations.WithLabelValues("pay_violation", OutcomeSuccess)))

	count, err := testutil.GatherAndCount(reg, "portal_login_attempts_total")
	assert.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestRecorder_DoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewRecorder(reg, nil)

	assert.NotPanics(t, func() {
		r := NewRecorder(reg, nil)
		r.ObserveMutation("bulk_pay", nil)
	})
}

func TestRecorder_Nil(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.ObserveLogin("otp", nil)
		r.ObserveFetch("p", "r", nil)
		r.ObserveMutation("a", nil)
	})
}
