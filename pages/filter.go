package pages

import (
	"strings"

	"go.pilab.hu/citizenportal/domain"
)

// matches reports whether any field contains search, ignoring case. An empty
// search matches everything.
func matches(search string, fields ...string) bool {
	search = strings.ToLower(strings.TrimSpace(search))
	if search == "" {
		return true
	}
	for _, field := range fields {
		if strings.Contains(strings.ToLower(field), search) {
			return true
		}
	}
	return false
}

func statusMatches(f domain.FilterState, status string) bool {
	if !f.HasStatus() {
		return true
	}
	return strings.EqualFold(strings.TrimSpace(f.Status), status)
}

// FilterViolations keeps the violations matching f in server order.
// Search covers type, location, id, plate number and vehicle model.
func FilterViolations(vs []domain.Violation, f domain.FilterState) []domain.Violation {
	out := make([]domain.Violation, 0, len(vs))
	for _, v := range vs {
		if !statusMatches(f, string(v.Status)) {
			continue
		}
		if !matches(f.Search, v.Type, v.Location, v.ID.String(), v.PlateNumber, v.VehicleModel) {
			continue
		}
		out = append(out, v)
	}
	return out
}

// FilterDisputes keeps the disputes matching f in server order.
// Search covers reason, description, id, violation id, violation type and
// plate number.
func FilterDisputes(ds []domain.Dispute, f domain.FilterState) []domain.Dispute {
	out := make([]domain.Dispute, 0, len(ds))
	for _, d := range ds {
		if !statusMatches(f, string(d.Status)) {
			continue
		}
		if !matches(f.Search, d.Reason, d.Description, d.ID.String(), d.ViolationID.String(), d.ViolationType, d.PlateNumber) {
			continue
		}
		out = append(out, d)
	}
	return out
}

// FilterPayments keeps the payments matching f in server order.
// Search covers transaction id, id, violation id, violation type, plate
// number and payment method.
func FilterPayments(ps []domain.Payment, f domain.FilterState) []domain.Payment {
	out := make([]domain.Payment, 0, len(ps))
	for _, p := range ps {
		if !statusMatches(f, string(p.Status)) {
			continue
		}
		if !matches(f.Search, p.TransactionID, p.ID.String(), p.ViolationID.String(), p.ViolationType, p.PlateNumber, p.Method) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// refilter applies the list filter matching the payload type of a filtered
// resource. Other payloads pass through.
func refilter(_ string, data any, f domain.FilterState) any {
	switch v := data.(type) {
	case []domain.Violation:
		return FilterViolations(v, f)
	case []domain.Dispute:
		return FilterDisputes(v, f)
	case []domain.Payment:
		return FilterPayments(v, f)
	}
	return data
}
