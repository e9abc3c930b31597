package fakeapi

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"go.pilab.hu/citizenportal/domain"
	"go.pilab.hu/citizenportal/internal/display"
)

// Seeded citizen.
const (
	SeedUserID = domain.ID("U1")
	SeedMobile = "9876543210"
)

// expiringWindow is how many days before expiry a document counts as
// expiring soon.
const expiringWindow = 30

type citizen struct {
	profile      domain.Profile
	faceTemplate string
}

// store is the in-memory portal database.
type store struct {
	mu sync.Mutex

	users      map[domain.ID]*citizen
	byMobile   map[string]domain.ID
	otps       map[string]otpIssuance
	verified   map[string]time.Time
	violations map[domain.ID][]*domain.Violation
	vehicles   map[domain.ID][]domain.Vehicle
	documents  map[domain.ID][]*domain.Document
	payments   map[domain.ID][]*domain.Payment
	disputes   map[domain.ID][]*domain.Dispute
}

func newStore() *store {
	return &store{
		users:      map[domain.ID]*citizen{},
		byMobile:   map[string]domain.ID{},
		otps:       map[string]otpIssuance{},
		verified:   map[string]time.Time{},
		violations: map[domain.ID][]*domain.Violation{},
		vehicles:   map[domain.ID][]domain.Vehicle{},
		documents:  map[domain.ID][]*domain.Document{},
		payments:   map[domain.ID][]*domain.Payment{},
		disputes:   map[domain.ID][]*domain.Dispute{},
	}
}

func newID(prefix string) domain.ID {
	return domain.ID(prefix + strings.ToUpper(uuid.NewString()[:8]))
}

func day(t time.Time, offset int) string {
	return t.AddDate(0, 0, offset).Format("2006-01-02")
}

// seed loads the demo citizen relative to now.
func (s *store) seed(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := SeedUserID
	s.users[u] = &citizen{profile: domain.Profile{
		UserID:            u,
		Name:              "Rahul Sharma",
		MobileNumber:      SeedMobile,
		Email:             "rahul.sharma@example.in",
		DLNumber:          "KA0120200012345",
		AccountBalance:    5000,
		BankAccountNumber: "XXXXXXXX4321",
		CreatedAt:         now.AddDate(-1, 0, 0).Format(time.RFC3339),
	}}
	s.byMobile[SeedMobile] = u

	s.vehicles[u] = []domain.Vehicle{
		{ID: "VH1", PlateNumber: "KA01AB1234", Make: "Maruti Suzuki", Model: "Swift", Year: 2020, Color: "White", RegistrationDate: day(now, -1500), Status: "active"},
		{ID: "VH2", PlateNumber: "KA05XY9876", Make: "Honda", Model: "Activa", Year: 2022, Color: "Black", RegistrationDate: day(now, -800), Status: "active"},
	}

	s.violations[u] = []*domain.Violation{
		{ID: "V1", Type: "Speeding", Location: "MG Road", PlateNumber: "KA01AB1234", VehicleModel: "Swift", FineAmount: 1000, TotalAmount: 1000, Status: domain.ViolationPending, ViolationDate: day(now, -3), DueDate: day(now, 27)},
		{ID: "V2", Type: "Red Light Jump", Location: "Brigade Road", PlateNumber: "KA01AB1234", VehicleModel: "Swift", FineAmount: 500, TotalAmount: 500, Status: domain.ViolationDisputed, ViolationDate: day(now, -10), DueDate: day(now, 20)},
		{ID: "V3", Type: "No Helmet", Location: "Residency Road", PlateNumber: "KA05XY9876", VehicleModel: "Activa", FineAmount: 1000, TotalAmount: 1000, Status: domain.ViolationPaid, ViolationDate: day(now, -40), DueDate: day(now, -10)},
		{ID: "V4", Type: "Wrong Parking", Location: "Church Street", PlateNumber: "KA05XY9876", VehicleModel: "Activa", FineAmount: 300, PenaltyAmount: 200, TotalAmount: 500, Status: domain.ViolationOverdue, ViolationDate: day(now, -60), DueDate: day(now, -30)},
	}

	s.payments[u] = []*domain.Payment{
		{ID: "P1", ViolationID: "V3", Amount: 1000, Method: "wallet", Status: domain.PaymentCompleted, TransactionID: "TXN10001", PaymentDate: day(now, -35), ViolationType: "No Helmet", PlateNumber: "KA05XY9876"},
		{ID: "P2", ViolationID: "V4", Amount: 500, Method: "auto_deduction", Status: domain.PaymentFailed, TransactionID: "TXN10002", PaymentDate: day(now, -25), ViolationType: "Wrong Parking", PlateNumber: "KA05XY9876"},
	}

	s.disputes[u] = []*domain.Dispute{
		{ID: "D1", ViolationID: "V2", Reason: "Signal malfunction", Description: "The signal was stuck on red for several minutes.", Status: domain.DisputeUnderReview, SubmittedAt: day(now, -8), ViolationType: "Red Light Jump", PlateNumber: "KA01AB1234", Location: "Brigade Road"},
	}

	s.documents[u] = []*domain.Document{
		{ID: "DOC1", VehicleID: "VH1", PlateNumber: "KA01AB1234", DocumentType: domain.DocumentRC, DocumentNumber: "RC-KA01-2020-118", IssueDate: day(now, -1500), ExpiryDate: day(now, 3900)},
		{ID: "DOC2", VehicleID: "VH1", PlateNumber: "KA01AB1234", DocumentType: domain.DocumentInsurance, DocumentNumber: "INS-778812", IssueDate: day(now, -345), ExpiryDate: day(now, 20)},
		{ID: "DOC3", VehicleID: "VH2", PlateNumber: "KA05XY9876", DocumentType: domain.DocumentPUC, DocumentNumber: "PUC-55120", IssueDate: day(now, -200), ExpiryDate: day(now, -17)},
	}
}

// classify sets the expiry status of d relative to now.
func classify(d *domain.Document, now time.Time) {
	t, ok := display.ParseDate(d.ExpiryDate)
	if !ok {
		d.Status = domain.DocumentExpired
		d.DaysUntilExpiry = 0
		return
	}

	d.DaysUntilExpiry = display.DaysUntil(t, now)
	switch {
	case d.DaysUntilExpiry < 0:
		d.Status = domain.DocumentExpired
	case d.DaysUntilExpiry <= expiringWindow:
		d.Status = domain.DocumentExpiringSoon
	default:
		d.Status = domain.DocumentValid
	}
}

func (s *store) violation(u, id domain.ID) *domain.Violation {
	for _, v := range s.violations[u] {
		if v.ID == id {
			return v
		}
	}
	return nil
}

func (s *store) openDispute(u, violationID domain.ID) bool {
	for _, d := range s.disputes[u] {
		if d.ViolationID == violationID && (d.Status == domain.DisputePending || d.Status == domain.DisputeUnderReview) {
			return true
		}
	}
	return false
}

func (s *store) payable(u domain.ID) []domain.Violation {
	var out []domain.Violation
	for _, v := range s.violations[u] {
		if v.Payable() {
			out = append(out, *v)
		}
	}
	return out
}

// settle pays v from the balance of c and records the payment.
func (s *store) settle(c *citizen, v *domain.Violation, method string, now time.Time) *domain.Payment {
	c.profile.AccountBalance -= v.TotalAmount
	v.Status = domain.ViolationPaid

	p := &domain.Payment{
		ID:            newID("P"),
		ViolationID:   v.ID,
		Amount:        v.TotalAmount,
		Method:        method,
		Status:        domain.PaymentCompleted,
		TransactionID: string(newID("TXN")),
		PaymentDate:   now.Format(time.RFC3339),
		ViolationType: v.Type,
		PlateNumber:   v.PlateNumber,
	}
	u := c.profile.UserID
	s.payments[u] = append([]*domain.Payment{p}, s.payments[u]...)
	return p
}
