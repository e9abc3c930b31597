// Package fakeapi is an in-memory implementation of the citizen portal API
// served with echo. It backs the end-to-end tests and the development
// server.
package fakeapi

import (
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	"go.pilab.hu/citizenportal/domain"
	"go.pilab.hu/citizenportal/log"
)

// Prefix is the path the API is mounted under.
const Prefix = "/api"

// Server is the fake portal API.
type Server struct {
	data   *store
	faces  *FaceHasher
	logger log.Logger
	now    func() time.Time
	devOTP bool

	faultMu sync.RWMutex
	faults  map[string]int
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(l log.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// WithDevOTP controls whether issued codes are echoed in the send-otp
// response. On by default.
func WithDevOTP(on bool) Option {
	return func(s *Server) { s.devOTP = on }
}

// WithFaceHasher replaces the face template hasher.
func WithFaceHasher(h *FaceHasher) Option {
	return func(s *Server) { s.faces = h }
}

// New creates a server seeded with the demo citizen.
func New(opts ...Option) *Server {
	s := &Server{
		data:   newStore(),
		faces:  NewFaceHasher(0),
		logger: log.NewNop(),
		now:    time.Now,
		devOTP: true,
		faults: map[string]int{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.data.seed(s.now())
	return s
}

// Handler returns an echo instance serving the API under Prefix.
func (s *Server) Handler() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	s.RegisterRoutes(e.Group(Prefix))
	return e
}

// RegisterRoutes registers every API route on g.
func (s *Server) RegisterRoutes(g *echo.Group) {
	g.Use(s.requestLogger, s.faultInjector)

	login := g.Group("/userlogin")
	login.POST("/send-otp", s.SendOTP)
	login.POST("/verify-otp", s.VerifyOTP)
	login.POST("/register", s.Register)
	login.POST("/face-login", s.FaceLogin)
	login.POST("/update-face", s.UpdateFace)

	dash := g.Group("/userdashboard")
	dash.GET("/stats/:id", s.DashboardStats)
	dash.GET("/violations/:id", s.RecentViolations)
	dash.GET("/vehicles/:id", s.DashboardVehicles)
	dash.GET("/payments/:id", s.RecentPayments)
	dash.GET("/profile/:id", s.Profile)

	g.GET("/userviolations/:id", s.Violations)
	g.GET("/userviolations/:id/summary", s.ViolationSummary)
	g.POST("/userviolations/:id/pay", s.PayViolation)

	g.GET("/userpayments/:id/history", s.PaymentHistory)
	g.GET("/userpayments/:id/pending", s.PendingFines)
	g.POST("/userpayments/:id/bulk-pay", s.BulkPay)
	g.POST("/userpayments/:id/retry", s.RetryPayment)

	g.GET("/uservehicles/:id", s.Vehicles)
	g.GET("/uservehicles/:id/documents", s.Documents)
	g.POST("/uservehicles/:id/documents", s.UploadDocument)

	g.GET("/userdisputes/:id", s.Disputes)
	g.GET("/userdisputes/:id/eligible", s.EligibleViolations)
	g.POST("/userdisputes/:id", s.SubmitDispute)
}

// InjectFailure makes the route registered as method and path (relative to
// Prefix, with :id placeholders) answer status with a bare body. Status 0
// removes the fault.
func (s *Server) InjectFailure(method, path string, status int) {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()

	key := method + " " + Prefix + path
	if status == 0 {
		delete(s.faults, key)
		return
	}
	s.faults[key] = status
}

func (s *Server) faultInjector(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		s.faultMu.RLock()
		status, ok := s.faults[c.Request().Method+" "+c.Path()]
		s.faultMu.RUnlock()

		if ok {
			return c.String(status, http.StatusText(status))
		}
		return next(c)
	}
}

func (s *Server) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		started := time.Now()
		err := next(c)

		req := c.Request()
		s.logger.Debug(req.Context(), "fake api request", log.Fields{
			"method":      req.Method,
			"route":       c.Path(),
			"status":      c.Response().Status,
			"request_id":  req.Header.Get("X-Request-ID"),
			"duration_ms": time.Since(started).Milliseconds(),
		})
		return err
	}
}

// Citizen returns the stored profile of id.
func (s *Server) Citizen(id domain.ID) (domain.Profile, bool) {
	s.data.mu.Lock()
	defer s.data.mu.Unlock()

	c, ok := s.data.users[id]
	if !ok {
		return domain.Profile{}, false
	}
	return c.profile, true
}

// CurrentOTP returns the code valid now for the last OTP sent to mobile.
func (s *Server) CurrentOTP(mobile string) (string, bool) {
	s.data.mu.Lock()
	iss, ok := s.data.otps[mobile]
	s.data.mu.Unlock()
	if !ok {
		return "", false
	}

	code, err := totpCode(iss.secret, s.now())
	if err != nil {
		return "", false
	}
	return code, true
}

type body map[string]any

func success(c echo.Context, b body) error {
	if b == nil {
		b = body{}
	}
	b["status"] = "success"
	return c.JSON(http.StatusOK, b)
}

func fail(c echo.Context, status int, message string) error {
	return c.JSON(status, body{"status": "error", "message": message})
}

func badRequest(c echo.Context) error {
	return fail(c, http.StatusBadRequest, "Invalid request body")
}
