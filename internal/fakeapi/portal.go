package fakeapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"go.pilab.hu/citizenportal/domain"
	"go.pilab.hu/citizenportal/pages"
)

const recentLimit = 5

// citizenFor resolves the :id path parameter. Callers hold s.data.mu.
func (s *Server) citizenFor(c echo.Context) (*citizen, bool) {
	u, found := s.data.users[domain.ID(c.Param("id"))]
	return u, found
}

func notFound(c echo.Context) error {
	return fail(c, http.StatusNotFound, "User not found")
}

func filterFrom(c echo.Context) domain.FilterState {
	return domain.FilterState{Search: c.QueryParam("search"), Status: c.QueryParam("status")}.Normalized()
}

func values[T any](ptrs []*T) []T {
	out := make([]T, 0, len(ptrs))
	for _, p := range ptrs {
		out = append(out, *p)
	}
	return out
}

func head[T any](items []T, n int) []T {
	if len(items) > n {
		return items[:n]
	}
	return items
}

// DashboardStats computes the dashboard counters.
func (s *Server) DashboardStats(c echo.Context) error {
	s.data.mu.Lock()
	defer s.data.mu.Unlock()

	u, found := s.citizenFor(c)
	if !found {
		return notFound(c)
	}
	id := u.profile.UserID

	st := domain.Stats{
		TotalVehicles:  len(s.data.vehicles[id]),
		AccountBalance: u.profile.AccountBalance,
	}
	for _, v := range s.data.violations[id] {
		st.TotalViolations++
		st.TotalFines += v.TotalAmount
		switch {
		case v.Status == domain.ViolationPaid:
			st.PaidViolations++
			st.PaidFines += v.TotalAmount
		case v.Payable():
			st.PendingViolations++
			st.PendingFines += v.TotalAmount
		}
	}
	for _, d := range s.data.disputes[id] {
		if d.Status == domain.DisputePending || d.Status == domain.DisputeUnderReview {
			st.ActiveDisputes++
		}
	}

	return success(c, body{"data": st})
}

// RecentViolations returns the latest violations.
func (s *Server) RecentViolations(c echo.Context) error {
	s.data.mu.Lock()
	defer s.data.mu.Unlock()

	u, found := s.citizenFor(c)
	if !found {
		return notFound(c)
	}
	return success(c, body{"violations": head(values(s.data.violations[u.profile.UserID]), recentLimit)})
}

// DashboardVehicles returns the citizen's vehicles.
func (s *Server) DashboardVehicles(c echo.Context) error {
	return s.Vehicles(c)
}

// RecentPayments returns the latest payments.
func (s *Server) RecentPayments(c echo.Context) error {
	s.data.mu.Lock()
	defer s.data.mu.Unlock()

	u, found := s.citizenFor(c)
	if !found {
		return notFound(c)
	}
	return success(c, body{"payments": head(values(s.data.payments[u.profile.UserID]), recentLimit)})
}

// Profile returns the citizen's profile.
func (s *Server) Profile(c echo.Context) error {
	s.data.mu.Lock()
	defer s.data.mu.Unlock()

	u, found := s.citizenFor(c)
	if !found {
		return notFound(c)
	}
	return success(c, body{"data": u.profile})
}

// Violations lists violations matching the search and status query.
func (s *Server) Violations(c echo.Context) error {
	s.data.mu.Lock()
	defer s.data.mu.Unlock()

	u, found := s.citizenFor(c)
	if !found {
		return notFound(c)
	}
	list := pages.FilterViolations(values(s.data.violations[u.profile.UserID]), filterFrom(c))
	return success(c, body{"violations": list})
}

// ViolationSummary aggregates violations by status.
func (s *Server) ViolationSummary(c echo.Context) error {
	s.data.mu.Lock()
	defer s.data.mu.Unlock()

	u, found := s.citizenFor(c)
	if !found {
		return notFound(c)
	}

	var sum domain.ViolationSummary
	for _, v := range s.data.violations[u.profile.UserID] {
		sum.Total++
		switch {
		case v.Status == domain.ViolationPaid:
			sum.Paid++
		case v.Status == domain.ViolationDisputed:
			sum.Disputed++
		case v.Payable():
			sum.Pending++
			sum.TotalPendingAmount += v.TotalAmount
		}
	}
	return success(c, body{"data": sum})
}

type payRequest struct {
	ViolationID  domain.ID   `json:"violation_id"`
	ViolationIDs []domain.ID `json:"violation_ids"`
	PaymentID    domain.ID   `json:"payment_id"`
}

// PayViolation pays one violation from the account balance.
func (s *Server) PayViolation(c echo.Context) error {
	var req payRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c)
	}

	s.data.mu.Lock()
	defer s.data.mu.Unlock()

	u, found := s.citizenFor(c)
	if !found {
		return notFound(c)
	}

	v := s.data.violation(u.profile.UserID, req.ViolationID)
	switch {
	case v == nil:
		return fail(c, http.StatusNotFound, "Violation not found")
	case !v.Payable():
		return fail(c, http.StatusBadRequest, "Violation is not payable")
	case u.profile.AccountBalance < v.TotalAmount:
		return fail(c, http.StatusBadRequest, "Insufficient balance")
	}

	p := s.data.settle(u, v, "wallet", s.now())
	return success(c, body{
		"message":        "Payment successful",
		"payment_id":     p.ID,
		"transaction_id": p.TransactionID,
		"amount_paid":    p.Amount,
		"new_balance":    u.profile.AccountBalance,
	})
}

// PaymentHistory lists payments matching the search and status query.
func (s *Server) PaymentHistory(c echo.Context) error {
	s.data.mu.Lock()
	defer s.data.mu.Unlock()

	u, found := s.citizenFor(c)
	if !found {
		return notFound(c)
	}
	list := pages.FilterPayments(values(s.data.payments[u.profile.UserID]), filterFrom(c))
	return success(c, body{"payments": list})
}

// PendingFines lists unpaid violations with the balance.
func (s *Server) PendingFines(c echo.Context) error {
	s.data.mu.Lock()
	defer s.data.mu.Unlock()

	u, found := s.citizenFor(c)
	if !found {
		return notFound(c)
	}

	pending := domain.PendingFines{
		Violations:     s.data.payable(u.profile.UserID),
		AccountBalance: u.profile.AccountBalance,
	}
	if pending.Violations == nil {
		pending.Violations = []domain.Violation{}
	}
	for _, v := range pending.Violations {
		pending.TotalAmount += v.TotalAmount
	}
	return success(c, body{"data": pending})
}

// BulkPay pays the selected violations in order, skipping the ones the
// balance no longer covers.
func (s *Server) BulkPay(c echo.Context) error {
	var req payRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c)
	}
	if len(req.ViolationIDs) == 0 {
		return fail(c, http.StatusBadRequest, "No violations selected")
	}

	s.data.mu.Lock()
	defer s.data.mu.Unlock()

	u, found := s.citizenFor(c)
	if !found {
		return notFound(c)
	}

	now := s.now()
	var (
		paid   int
		total  float64
		failed = []domain.ID{}
	)
	for _, id := range req.ViolationIDs {
		v := s.data.violation(u.profile.UserID, id)
		if v == nil || !v.Payable() || u.profile.AccountBalance < v.TotalAmount {
			failed = append(failed, id)
			continue
		}
		p := s.data.settle(u, v, "wallet", now)
		paid++
		total += p.Amount
	}

	if paid == 0 {
		return fail(c, http.StatusBadRequest, "Insufficient balance to pay the selected fines")
	}

	return success(c, body{
		"message":     "Bulk payment processed",
		"paid_count":  paid,
		"total_paid":  total,
		"new_balance": u.profile.AccountBalance,
		"failed":      failed,
	})
}

// RetryPayment re-attempts a failed payment.
func (s *Server) RetryPayment(c echo.Context) error {
	var req payRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c)
	}

	s.data.mu.Lock()
	defer s.data.mu.Unlock()

	u, found := s.citizenFor(c)
	if !found {
		return notFound(c)
	}

	var p *domain.Payment
	for _, candidate := range s.data.payments[u.profile.UserID] {
		if candidate.ID == req.PaymentID {
			p = candidate
			break
		}
	}
	if p == nil {
		return fail(c, http.StatusNotFound, "Payment not found")
	}
	if p.Status != domain.PaymentFailed {
		return fail(c, http.StatusBadRequest, "Only failed payments can be retried")
	}

	v := s.data.violation(u.profile.UserID, p.ViolationID)
	if v == nil || !v.Payable() {
		return fail(c, http.StatusBadRequest, "Violation is not payable")
	}
	if u.profile.AccountBalance < v.TotalAmount {
		return fail(c, http.StatusBadRequest, "Insufficient balance")
	}

	u.profile.AccountBalance -= v.TotalAmount
	v.Status = domain.ViolationPaid
	p.Status = domain.PaymentCompleted
	p.Amount = v.TotalAmount
	p.TransactionID = string(newID("TXN"))
	p.PaymentDate = s.now().Format(time.RFC3339)

	return success(c, body{
		"message":        "Payment retried successfully",
		"payment_id":     p.ID,
		"transaction_id": p.TransactionID,
		"amount_paid":    p.Amount,
		"new_balance":    u.profile.AccountBalance,
	})
}

// Vehicles lists the citizen's vehicles.
func (s *Server) Vehicles(c echo.Context) error {
	s.data.mu.Lock()
	defer s.data.mu.Unlock()

	u, found := s.citizenFor(c)
	if !found {
		return notFound(c)
	}
	list := append([]domain.Vehicle{}, s.data.vehicles[u.profile.UserID]...)
	return success(c, body{"vehicles": list})
}

// Documents lists vehicle documents classified against the current date.
func (s *Server) Documents(c echo.Context) error {
	s.data.mu.Lock()
	defer s.data.mu.Unlock()

	u, found := s.citizenFor(c)
	if !found {
		return notFound(c)
	}

	now := s.now()
	list := values(s.data.documents[u.profile.UserID])
	for i := range list {
		classify(&list[i], now)
	}
	return success(c, body{"documents": list})
}

// UploadDocument stores a vehicle document.
func (s *Server) UploadDocument(c echo.Context) error {
	var req domain.DocumentUpload
	if err := c.Bind(&req); err != nil {
		return badRequest(c)
	}
	if !req.DocumentType.Valid() || strings.TrimSpace(req.DocumentNumber) == "" || req.ExpiryDate == "" || req.File == "" {
		return fail(c, http.StatusBadRequest, "Document type, number, expiry date and file are required")
	}
	if _, err := time.Parse("2006-01-02", req.ExpiryDate); err != nil {
		return fail(c, http.StatusBadRequest, "Invalid expiry date")
	}

	s.data.mu.Lock()
	defer s.data.mu.Unlock()

	u, found := s.citizenFor(c)
	if !found {
		return notFound(c)
	}
	id := u.profile.UserID

	var vehicle *domain.Vehicle
	for i := range s.data.vehicles[id] {
		if s.data.vehicles[id][i].ID == req.VehicleID {
			vehicle = &s.data.vehicles[id][i]
			break
		}
	}
	if vehicle == nil {
		return fail(c, http.StatusNotFound, "Vehicle not found")
	}

	doc := &domain.Document{
		ID:             newID("DOC"),
		VehicleID:      vehicle.ID,
		PlateNumber:    vehicle.PlateNumber,
		DocumentType:   req.DocumentType,
		DocumentNumber: strings.TrimSpace(req.DocumentNumber),
		IssueDate:      req.IssueDate,
		ExpiryDate:     req.ExpiryDate,
	}
	s.data.documents[id] = append(s.data.documents[id], doc)

	return success(c, body{"message": "Document uploaded successfully", "document_id": doc.ID})
}

// Disputes lists disputes matching the search and status query.
func (s *Server) Disputes(c echo.Context) error {
	s.data.mu.Lock()
	defer s.data.mu.Unlock()

	u, found := s.citizenFor(c)
	if !found {
		return notFound(c)
	}
	list := pages.FilterDisputes(values(s.data.disputes[u.profile.UserID]), filterFrom(c))
	return success(c, body{"disputes": list})
}

// EligibleViolations lists payable violations without an open dispute.
func (s *Server) EligibleViolations(c echo.Context) error {
	s.data.mu.Lock()
	defer s.data.mu.Unlock()

	u, found := s.citizenFor(c)
	if !found {
		return notFound(c)
	}

	list := []domain.Violation{}
	for _, v := range s.data.payable(u.profile.UserID) {
		if !s.data.openDispute(u.profile.UserID, v.ID) {
			list = append(list, v)
		}
	}
	return success(c, body{"violations": list})
}

// SubmitDispute files a dispute and marks the violation disputed.
func (s *Server) SubmitDispute(c echo.Context) error {
	var req domain.DisputeRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c)
	}
	if req.ViolationID.IsZero() || strings.TrimSpace(req.Reason) == "" || strings.TrimSpace(req.Description) == "" {
		return fail(c, http.StatusBadRequest, "Violation, reason and description are required")
	}

	s.data.mu.Lock()
	defer s.data.mu.Unlock()

	u, found := s.citizenFor(c)
	if !found {
		return notFound(c)
	}
	id := u.profile.UserID

	v := s.data.violation(id, req.ViolationID)
	switch {
	case v == nil:
		return fail(c, http.StatusNotFound, "Violation not found")
	case s.data.openDispute(id, v.ID):
		return fail(c, http.StatusConflict, "A dispute is already open for this violation")
	case !v.Payable():
		return fail(c, http.StatusBadRequest, "This violation cannot be disputed")
	}

	d := &domain.Dispute{
		ID:            newID("D"),
		ViolationID:   v.ID,
		Reason:        strings.TrimSpace(req.Reason),
		Description:   strings.TrimSpace(req.Description),
		Status:        domain.DisputePending,
		SubmittedAt:   s.now().Format(time.RFC3339),
		ViolationType: v.Type,
		PlateNumber:   v.PlateNumber,
		Location:      v.Location,
	}
	s.data.disputes[id] = append([]*domain.Dispute{d}, s.data.disputes[id]...)
	v.Status = domain.ViolationDisputed

	return success(c, body{"dispute_id": d.ID, "message": "Dispute submitted successfully"})
}
