// Package pagedata loads the independent resources of a portal page
// concurrently and tracks each outcome separately. A failed resource never
// cancels its siblings.
package pagedata

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"go.pilab.hu/citizenportal/domain"
	perrors "go.pilab.hu/citizenportal/errors"
	"go.pilab.hu/citizenportal/internal/audit"
	"go.pilab.hu/citizenportal/internal/metrics"
	"go.pilab.hu/citizenportal/log"
)

// LoginPath is the redirect target when no citizen can be resolved.
const LoginPath = "/login"

// Policy decides how resource failures surface on the page.
type Policy int

const (
	// IsolateFailures keeps failures per resource.
	IsolateFailures Policy = iota
	// PromoteFailures turns any failed resource into a page error.
	PromoteFailures
)

// FetchFunc loads one resource for userID.
type FetchFunc func(ctx context.Context, userID string, f domain.FilterState) (any, error)

// ResourceSpec describes one resource of a page. Filtered resources are
// re-fetched when the filter changes.
type ResourceSpec struct {
	Name     string
	Filtered bool
	Fetch    FetchFunc
}

// PageSpec describes a page.
type PageSpec struct {
	Name      string
	Resources []ResourceSpec
	Policy    Policy
	// Refilter narrows the data of a filtered resource locally after a fetch.
	Refilter func(name string, data any, f domain.FilterState) any
}

// SessionReader resolves the logged-in citizen.
type SessionReader interface {
	UserID(ctx context.Context) (string, error)
}

// MutationFunc performs a single external call for userID.
type MutationFunc func(ctx context.Context, userID string) (any, error)

// Controller owns the resource set of one page instance.
type Controller struct {
	spec        PageSpec
	sessions    SessionReader
	routeUserID string

	logger   log.Logger
	metrics  *metrics.Recorder
	audit    *audit.Trail
	timeout  time.Duration
	refilter bool
	now      func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	view     View
	gen      map[string]uint64
	pending  int
	inflight map[string]struct{}
	closed   bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the controller's logger.
func WithLogger(l log.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics counts fetches and mutations on r.
func WithMetrics(r *metrics.Recorder) Option {
	return func(c *Controller) { c.metrics = r }
}

// WithAudit records mutations on t.
func WithAudit(t *audit.Trail) Option {
	return func(c *Controller) { c.audit = t }
}

// WithTimeout bounds each fetch and mutation. Zero means no timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Controller) { c.timeout = d }
}

// WithRefilter toggles local re-filtering of filtered resources.
func WithRefilter(on bool) Option {
	return func(c *Controller) { c.refilter = on }
}

// New creates a controller for spec. routeUserID takes precedence over the
// session user when set.
func New(spec PageSpec, sessions SessionReader, routeUserID string, opts ...Option) *Controller {
	ctx, cancel := context.WithCancel(context.Background())

	c := &Controller{
		spec:        spec,
		sessions:    sessions,
		routeUserID: routeUserID,
		logger:      log.NewNop(),
		refilter:    true,
		now:         time.Now,
		ctx:         ctx,
		cancel:      cancel,
		view: View{
			Page:      spec.Name,
			Resources: map[string]Resource{},
			Filter:    domain.FilterState{Status: domain.StatusAll},
		},
		gen:      make(map[string]uint64, len(spec.Resources)),
		inflight: map[string]struct{}{},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(log.Fields{"page": spec.Name})
	return c
}

// Name returns the page name.
func (c *Controller) Name() string { return c.spec.Name }

// View returns a snapshot of the page.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() View {
	v := c.view.clone()
	v.Loading = c.pending > 0
	v.Busy = v.Busy[:0]
	for action := range c.inflight {
		v.Busy = append(v.Busy, action)
	}
	sort.Strings(v.Busy)
	return v
}

// resolveUser returns the route user, else the session user.
func (c *Controller) resolveUser(ctx context.Context) (string, error) {
	if c.routeUserID != "" {
		return c.routeUserID, nil
	}
	if c.sessions == nil {
		return "", perrors.ErrNoSession
	}
	id, err := c.sessions.UserID(ctx)
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", perrors.ErrNoSession
	}
	return id, nil
}

// Load fetches every resource concurrently and replaces the resource set.
// Without a resolvable citizen it only sets a redirect to the login page.
func (c *Controller) Load(ctx context.Context) View {
	userID, err := c.resolveUser(ctx)

	c.mu.Lock()
	if c.closed {
		defer c.mu.Unlock()
		return c.snapshotLocked()
	}
	if err != nil {
		if !errors.Is(err, perrors.ErrNoSession) {
			c.logger.Warn(ctx, "session lookup failed", log.Fields{"error": err.Error()})
		}
		c.redirectLocked()
		defer c.mu.Unlock()
		return c.snapshotLocked()
	}

	c.view.UserID = userID
	c.view.Redirect = ""
	c.view.Error = ""
	c.view.PageErr = nil
	filter := c.view.Filter
	gens := c.bumpLocked(c.spec.Resources)
	c.pending++
	c.mu.Unlock()

	results := c.fetchAll(ctx, userID, filter, c.spec.Resources)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.pending--
	if c.closed || c.view.UserID != userID {
		return c.snapshotLocked()
	}

	next := make(map[string]Resource, len(results))
	for _, r := range results {
		if c.gen[r.Name] == gens[r.Name] {
			next[r.Name] = r
		} else if newer, ok := c.view.Resources[r.Name]; ok {
			next[r.Name] = newer
		}
	}
	c.view.Resources = next
	c.view.LoadedAt = c.now()
	c.applyPolicyLocked()

	return c.snapshotLocked()
}

// redirectLocked forgets the citizen and their data and points the page at
// the login page. Fetches still in flight are discarded.
func (c *Controller) redirectLocked() {
	c.view.UserID = ""
	c.view.Resources = map[string]Resource{}
	c.bumpLocked(c.spec.Resources)
	c.view.Redirect = LoginPath
	c.view.Error = perrors.Message(perrors.ErrNoSession)
	c.view.PageErr = perrors.ErrNoSession
}

// Reload is Load under the name of the retry affordance.
func (c *Controller) Reload(ctx context.Context) View { return c.Load(ctx) }

// SetFilter stores f and re-fetches only the filtered resources.
func (c *Controller) SetFilter(ctx context.Context, f domain.FilterState) View {
	c.mu.Lock()
	c.view.Filter = f.Normalized()
	c.mu.Unlock()

	var filtered []string
	for _, rs := range c.spec.Resources {
		if rs.Filtered {
			filtered = append(filtered, rs.Name)
		}
	}
	return c.Refresh(ctx, filtered...)
}

// Refresh re-fetches the named resources and leaves the others untouched.
// The citizen is resolved again first; if it is gone or has changed the
// whole page is loaded instead.
func (c *Controller) Refresh(ctx context.Context, names ...string) View {
	specs := c.specsFor(names)

	userID, err := c.resolveUser(ctx)

	c.mu.Lock()
	loaded := c.view.UserID
	c.mu.Unlock()

	if err != nil || userID != loaded {
		return c.Load(ctx)
	}

	c.mu.Lock()
	if c.closed || len(specs) == 0 {
		defer c.mu.Unlock()
		return c.snapshotLocked()
	}
	filter := c.view.Filter
	gens := c.bumpLocked(specs)
	c.pending++
	c.mu.Unlock()

	results := c.fetchAll(ctx, userID, filter, specs)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.pending--
	if c.closed || c.view.UserID != userID {
		return c.snapshotLocked()
	}

	for _, r := range results {
		if c.gen[r.Name] == gens[r.Name] {
			c.view.Resources[r.Name] = r
		}
	}
	c.applyPolicyLocked()

	return c.snapshotLocked()
}

func (c *Controller) specsFor(names []string) []ResourceSpec {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}

	var out []ResourceSpec
	for _, rs := range c.spec.Resources {
		if want[rs.Name] {
			out = append(out, rs)
		}
	}
	return out
}

// bumpLocked starts a new generation for specs and returns it.
func (c *Controller) bumpLocked(specs []ResourceSpec) map[string]uint64 {
	gens := make(map[string]uint64, len(specs))
	for _, rs := range specs {
		c.gen[rs.Name]++
		gens[rs.Name] = c.gen[rs.Name]
	}
	return gens
}

// applyPolicyLocked derives the page error from the resource set.
func (c *Controller) applyPolicyLocked() {
	c.view.Error = ""
	c.view.PageErr = nil

	if c.spec.Policy != PromoteFailures {
		return
	}
	for _, rs := range c.spec.Resources {
		if r, ok := c.view.Resources[rs.Name]; ok && r.Status == StatusError {
			c.view.PageErr = r.Err
			c.view.Error = perrors.Message(r.Err)
			return
		}
	}
}

// scoped derives a context that also ends when the controller closes.
func (c *Controller) scoped(ctx context.Context) (context.Context, context.CancelFunc) {
	var cancel context.CancelFunc
	if c.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	stop := context.AfterFunc(c.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// fetchAll issues every fetch before waiting for any of them.
func (c *Controller) fetchAll(ctx context.Context, userID string, f domain.FilterState, specs []ResourceSpec) []Resource {
	results := make([]Resource, len(specs))

	// No error propagation: each outcome lands in its own slot and a failure
	// must not cancel its siblings.
	var g errgroup.Group
	for i, rs := range specs {
		i, rs := i, rs
		g.Go(func() error {
			results[i] = c.fetchOne(ctx, userID, f, rs)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (c *Controller) fetchOne(ctx context.Context, userID string, f domain.FilterState, rs ResourceSpec) (res Resource) {
	res = Resource{Name: rs.Name}

	ctx, cancel := c.scoped(ctx)
	defer cancel()

	defer func() {
		if p := recover(); p != nil {
			res.Status = StatusError
			res.Data = nil
			res.Err = fmt.Errorf("%s: unexpected failure: %v", rs.Name, p)
			c.logger.Error(ctx, "resource fetch panicked", res.Err, log.Fields{"resource": rs.Name})
		}
		res.FetchedAt = c.now()
		c.metrics.ObserveFetch(c.spec.Name, rs.Name, res.Err)
	}()

	if rs.Fetch == nil {
		res.Status = StatusError
		res.Err = fmt.Errorf("%s: no fetcher configured", rs.Name)
		return res
	}

	data, err := rs.Fetch(ctx, userID, f)
	if err != nil {
		res.Status = StatusError
		res.Err = err
		c.logger.Warn(ctx, "resource fetch failed", log.Fields{"resource": rs.Name, "error": err.Error()})
		return res
	}

	if rs.Filtered && c.refilter && c.spec.Refilter != nil {
		data = c.spec.Refilter(rs.Name, data, f)
	}

	res.Status = StatusSuccess
	res.Data = data
	return res
}

// Mutate runs call once and, on success, re-fetches the refetch resources
// strictly after the response. Prior data is untouched on failure. Only
// one call per action may be in flight.
func (c *Controller) Mutate(ctx context.Context, action string, call MutationFunc, refetch ...string) (result any, err error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, perrors.ErrInvalidTransition
	}
	if _, busy := c.inflight[action]; busy {
		c.mu.Unlock()
		return nil, perrors.ErrMutationInFlight
	}
	c.inflight[action] = struct{}{}
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.inflight, action)
		c.mu.Unlock()
	}()

	userID, err := c.resolveUser(ctx)
	if err != nil {
		c.mu.Lock()
		if !c.closed {
			c.redirectLocked()
		}
		c.mu.Unlock()
		return nil, err
	}

	result, err = c.invoke(ctx, action, userID, call)
	c.metrics.ObserveMutation(action, err)
	c.audit.Log(audit.ActionMutation, userID, action, c.spec.Name, err)
	if err != nil {
		c.logger.Warn(ctx, "mutation failed", log.Fields{"action": action, "error": err.Error()})
		return nil, err
	}

	c.logger.Info(ctx, "mutation succeeded", log.Fields{"action": action})
	if len(refetch) > 0 {
		c.Refresh(ctx, refetch...)
	}
	return result, nil
}

func (c *Controller) invoke(ctx context.Context, action, userID string, call MutationFunc) (result any, err error) {
	ctx, cancel := c.scoped(ctx)
	defer cancel()

	defer func() {
		if p := recover(); p != nil {
			result = nil
			err = fmt.Errorf("%s: unexpected failure: %v", action, p)
		}
	}()

	return call(ctx, userID)
}

// Close cancels outstanding fetches. Results that settle afterwards are
// discarded.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	for name := range c.gen {
		c.gen[name]++
	}
	c.mu.Unlock()

	c.cancel()
}
