package timesheet

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/timecost/calendar"
)

func TestParseReferenceCSV(t *testing.T) {
	// GIVEN: an export with a BOM, mixed-case headers, both date layouts,
	// a repeated day and a footer row
	input := "\xef\xbb\xbfEmployee,DATE,Hours\n" +
		"alice,2024-03-01,4\n" +
		"alice,03/01/2024,4.05\n" +
		"alice,2024-03-02,7.5\n" +
		"Total,,15.55\n"

	totals, err := ParseReferenceCSV(strings.NewReader(input))

	require.NoError(t, err)
	assert.Len(t, totals, 2)
	assert.Equal(t, "8.05", totals[calendar.MustParseDay("2024-03-01")].String())
	assert.Equal(t, "7.5", totals[calendar.MustParseDay("2024-03-02")].String())
}

func TestParseReferenceCSV_BadHoursNamesLine(t *testing.T) {
	input := "date,hours\n2024-03-01,8\n2024-03-02,lots\n"

	_, err := ParseReferenceCSV(strings.NewReader(input))

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidHours)
	assert.Contains(t, err.Error(), "line 3")
}

func TestParseReferenceText(t *testing.T) {
	totals := ParseReferenceText("2024-03-01:8, 2024-03-02:7.5,garbage,2024-03-03:x")

	assert.Len(t, totals, 2)
	assert.Equal(t, "8", totals[calendar.MustParseDay("2024-03-01")].String())
	assert.Equal(t, "7.5", totals[calendar.MustParseDay("2024-03-02")].String())
}
