package calendar_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/timecost/calendar"
)

func TestParseDay_AcceptsISOAndUSLayouts(t *testing.T) {
	iso, err := calendar.ParseDay("2024-03-01")
	require.NoError(t, err)
	us, err := calendar.ParseDay(" 03/01/2024 ")
	require.NoError(t, err)

	assert.Equal(t, iso, us)
	assert.Equal(t, calendar.NewDay(2024, time.March, 1), iso)
}

func TestParseDay_RejectsGarbage(t *testing.T) {
	_, err := calendar.ParseDay("March 1st")
	assert.ErrorIs(t, err, calendar.ErrInvalidDay)
}

func TestDay_UsableAsMapKey(t *testing.T) {
	m := map[calendar.Day]int{}
	m[calendar.MustParseDay("2024-03-01")] += 1
	m[calendar.DayOf(time.Date(2024, 3, 1, 17, 30, 0, 0, time.UTC))] += 1

	assert.Len(t, m, 1)
	assert.Equal(t, 2, m[calendar.NewDay(2024, time.March, 1)])
}

func TestDay_JSONRoundTrip(t *testing.T) {
	type wrapper struct {
		Day calendar.Day `json:"day"`
	}
	b, err := json.Marshal(wrapper{Day: calendar.NewDay(2024, time.July, 4)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"day":"2024-07-04"}`, string(b))

	var w wrapper
	require.NoError(t, json.Unmarshal([]byte(`{"day":"07/04/2024"}`), &w))
	assert.Equal(t, calendar.NewDay(2024, time.July, 4), w.Day)
}

func TestPeriod_DaysInclusive(t *testing.T) {
	p, err := calendar.ParsePeriod("2024-03-01", "2024-03-07")
	require.NoError(t, err)

	days := p.Days()
	require.Len(t, days, 7)
	assert.Equal(t, 7, p.Len())
	assert.Equal(t, "2024-03-01", days[0].String())
	assert.Equal(t, "2024-03-07", days[6].String())
	assert.True(t, p.Contains(calendar.MustParseDay("2024-03-07")))
	assert.False(t, p.Contains(calendar.MustParseDay("2024-03-08")))
}

func TestPeriod_RejectsInvertedRange(t *testing.T) {
	_, err := calendar.ParsePeriod("2024-03-07", "2024-03-01")
	assert.ErrorIs(t, err, calendar.ErrInvalidPeriod)
}

func TestLastNDays(t *testing.T) {
	p := calendar.LastNDays(calendar.MustParseDay("2024-03-14"), 14)
	assert.Equal(t, "2024-03-01", p.Start.String())
	assert.Equal(t, 14, p.Len())
}
