package pagedata

import (
	"fmt"
	"sort"
	"time"

	"go.pilab.hu/citizenportal/domain"
)

// Status of a settled resource fetch.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Resource is the outcome of one fetch.
type Resource struct {
	Name      string
	Status    Status
	Data      any
	Err       error
	FetchedAt time.Time
}

// OK reports whether the fetch succeeded.
func (r Resource) OK() bool { return r.Status == StatusSuccess }

// View is a snapshot of a page controller.
type View struct {
	Page      string
	UserID    string
	Loading   bool
	Error     string
	PageErr   error
	Redirect  string
	Resources map[string]Resource
	Filter    domain.FilterState
	Busy      []string
	LoadedAt  time.Time
}

// Failed lists the names of failed resources in sorted order.
func (v View) Failed() []string {
	var out []string
	for name, r := range v.Resources {
		if r.Status == StatusError {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// IsBusy reports whether action is in flight.
func (v View) IsBusy(action string) bool {
	for _, a := range v.Busy {
		if a == action {
			return true
		}
	}
	return false
}

func (v View) clone() View {
	out := v
	out.Resources = make(map[string]Resource, len(v.Resources))
	for k, r := range v.Resources {
		out.Resources[k] = r
	}
	out.Busy = append([]string(nil), v.Busy...)
	return out
}

// Data returns the typed payload of resource name.
func Data[T any](v View, name string) (T, error) {
	var zero T

	r, ok := v.Resources[name]
	if !ok {
		return zero, fmt.Errorf("pagedata: resource %q not loaded", name)
	}
	if r.Err != nil {
		return zero, r.Err
	}

	data, ok := r.Data.(T)
	if !ok {
		return zero, fmt.Errorf("pagedata: resource %q holds %T, not %T", name, r.Data, zero)
	}
	return data, nil
}
