// Package display derives the values the portal screens show from raw API
// data.
package display

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the format dates are shown in.
const DateLayout = "02 Jan 2006"

var inputLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseDate parses the date formats the API sends.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range inputLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FormatDate renders s as DateLayout. Unparseable input is returned as is
// and an empty input renders as "-".
func FormatDate(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	t, ok := ParseDate(s)
	if !ok {
		return s
	}
	return t.Format(DateLayout)
}

// FormatAmount renders an amount in rupees with Indian digit grouping and
// two decimals, e.g. ₹1,23,456.50.
func FormatAmount(amount float64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}

	paise := int64(math.Round(amount * 100))
	rupees := strconv.FormatInt(paise/100, 10)
	frac := paise % 100

	return sign + "₹" + groupIndian(rupees) + "." + pad2(frac)
}

func pad2(n int64) string {
	if n < 10 {
		return "0" + strconv.FormatInt(n, 10)
	}
	return strconv.FormatInt(n, 10)
}

// groupIndian groups the last three digits, then every two.
func groupIndian(digits string) string {
	if len(digits) <= 3 {
		return digits
	}

	head, tail := digits[:len(digits)-3], digits[len(digits)-3:]
	var parts []string
	for len(head) > 2 {
		parts = append([]string{head[len(head)-2:]}, parts...)
		head = head[:len(head)-2]
	}
	if head != "" {
		parts = append([]string{head}, parts...)
	}
	return strings.Join(parts, ",") + "," + tail
}

// Percent returns part as a whole percentage of whole, clamped to 0..100.
func Percent(part, whole float64) int {
	if whole <= 0 {
		return 0
	}
	p := int(math.Round(part / whole * 100))
	return clamp(p)
}

func clamp(p int) int {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	}
	return p
}

// DocumentTerm is the validity period document progress bars are drawn
// against.
const DocumentTerm = 365

// DocumentProgress returns the remaining validity of a document expiring on
// expiry as a percentage of DocumentTerm days.
func DocumentProgress(expiry string, now time.Time) int {
	t, ok := ParseDate(expiry)
	if !ok {
		return 0
	}
	return Percent(float64(DaysUntil(t, now)), DocumentTerm)
}

// DaysUntil counts whole calendar days from now to t. Past dates are
// negative.
func DaysUntil(t, now time.Time) int {
	ty, tm, td := t.Date()
	ny, nm, nd := now.Date()
	a := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	b := time.Date(ny, nm, nd, 0, 0, 0, 0, time.UTC)
	return int(a.Sub(b).Hours() / 24)
}
