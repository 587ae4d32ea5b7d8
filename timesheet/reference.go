package timesheet

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"
	"github.com/warp/timecost/calendar"
)

// =============================================================================
// REFERENCE IMPORT - Attendance exports into ReferenceTotals
// =============================================================================

var utf8BOM = []byte("\xef\xbb\xbf")

// ParseReferenceCSV reads an attendance export with a header row containing
// Date and Hours columns (any case). Rows whose date matches neither accepted
// layout are skipped; hours for repeated dates are summed.
func ParseReferenceCSV(r io.Reader) (ReferenceTotals, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read reference csv: %w", err)
	}
	raw = bytes.TrimPrefix(raw, utf8BOM)

	rows, err := gocsv.CSVToMaps(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse reference csv: %w", err)
	}

	totals := make(ReferenceTotals)
	for i, row := range rows {
		day, err := calendar.ParseDay(column(row, "date"))
		if err != nil {
			continue
		}
		hours, err := parseHours(column(row, "hours"))
		if err != nil {
			// header is line 1
			return nil, invalid(fmt.Sprintf("line %d hours", i+2), err)
		}
		totals[day] = totals[day].Add(hours)
	}
	return totals, nil
}

// ParseReferenceText parses the inline "YYYY-MM-DD:hours,..." form. Pairs that
// do not parse are ignored.
func ParseReferenceText(s string) ReferenceTotals {
	totals := make(ReferenceTotals)
	for _, pair := range strings.Split(s, ",") {
		k, v, ok := strings.Cut(pair, ":")
		if !ok {
			continue
		}
		day, err := calendar.ParseDay(k)
		if err != nil {
			continue
		}
		hours, err := parseHours(v)
		if err != nil {
			continue
		}
		totals[day] = hours
	}
	return totals
}

// column finds a value by case-insensitive header name.
func column(row map[string]string, name string) string {
	for k, v := range row {
		if strings.EqualFold(strings.TrimSpace(k), name) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func parseHours(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidHours, s)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidHours, s)
	}
	return d, nil
}
