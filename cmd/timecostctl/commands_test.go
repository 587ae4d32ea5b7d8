package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/timecost/auth"
	"github.com/warp/timecost/calendar"
	"github.com/warp/timecost/store/memory"
	"github.com/warp/timecost/timesheet"
)

func newTestContext(t *testing.T) (*Context, *bytes.Buffer) {
	t.Helper()
	out := &bytes.Buffer{}
	svc := timesheet.NewService(memory.New(), timesheet.Defaults{})
	return &Context{Service: svc, Out: out}, out
}

func TestUserCreateThenRateSetAndList(t *testing.T) {
	ctx, out := newTestContext(t)

	require.NoError(t, (&UserCreateCmd{
		Email: "alice@example.com", Username: "alice", Password: "password123", Role: []string{"accounting"},
	}).Run(ctx))
	assert.Contains(t, out.String(), "Created user alice")

	require.NoError(t, (&RateSetCmd{Worker: "alice", From: "2024-01-01", Rate: "22.5"}).Run(ctx))
	require.NoError(t, (&RateSetCmd{Worker: "alice@example.com", From: "2024-06-01", Rate: "25"}).Run(ctx))

	out.Reset()
	require.NoError(t, (&RateListCmd{Worker: "alice"}).Run(ctx))
	assert.Contains(t, out.String(), "2024-01-01")
	assert.Contains(t, out.String(), "22.50")
	assert.Contains(t, out.String(), "25.00")
}

func TestRateSet_Errors(t *testing.T) {
	ctx, _ := newTestContext(t)

	err := (&RateSetCmd{Worker: "ghost", From: "2024-01-01", Rate: "20"}).Run(ctx)
	assert.ErrorIs(t, err, timesheet.ErrUserNotFound)

	require.NoError(t, (&UserCreateCmd{Email: "bob@example.com", Username: "bob", Password: "password123"}).Run(ctx))
	err = (&RateSetCmd{Worker: "bob", From: "2024-01-01", Rate: "-3"}).Run(ctx)
	assert.ErrorIs(t, err, timesheet.ErrInvalidRate)
	err = (&RateSetCmd{Worker: "bob", From: "2024-01-01", Rate: "abc"}).Run(ctx)
	assert.ErrorIs(t, err, timesheet.ErrInvalidRate)
}

func TestSettingSetAndGet(t *testing.T) {
	ctx, out := newTestContext(t)

	require.NoError(t, (&SettingSetCmd{Key: timesheet.KeyOverheadPercent, Value: "15"}).Run(ctx))

	out.Reset()
	require.NoError(t, (&SettingGetCmd{Key: timesheet.KeyOverheadPercent}).Run(ctx))
	assert.Equal(t, "15\n", out.String())

	out.Reset()
	require.NoError(t, (&SettingGetCmd{}).Run(ctx))
	assert.Contains(t, out.String(), timesheet.KeyToleranceMinutes)

	assert.ErrorIs(t, (&SettingSetCmd{Key: "nope", Value: "1"}).Run(ctx), timesheet.ErrInvalidSetting)
	assert.ErrorIs(t, (&SettingGetCmd{Key: "nope"}).Run(ctx), timesheet.ErrInvalidSetting)
}

func TestTotalsParse_PrintsSortedDays(t *testing.T) {
	path := filepath.Join(t.TempDir(), "attendance.csv")
	require.NoError(t, os.WriteFile(path, []byte("date,hours\n2024-08-06,7.5\n2024-08-05,8\n"), 0o644))
	out := &bytes.Buffer{}

	require.NoError(t, (&TotalsParseCmd{File: path}).Run(&Context{Out: out}))

	text := out.String()
	assert.Less(t, bytes.Index(out.Bytes(), []byte("2024-08-05")), bytes.Index(out.Bytes(), []byte("2024-08-06")))
	assert.Contains(t, text, "2 day(s), 15.50 hours.")
}

func TestUnsubmit_ReopensPeriod(t *testing.T) {
	// GIVEN: a submitted day for alice
	ctx, out := newTestContext(t)
	require.NoError(t, (&UserCreateCmd{Email: "alice@example.com", Username: "alice", Password: "password123"}).Run(ctx))
	bg := context.Background()
	u, err := ctx.Service.Store().GetUserByUsername(bg, "alice")
	require.NoError(t, err)
	day := calendar.MustParseDay("2024-08-05")
	_, err = ctx.Service.SaveEntry(bg, timesheet.SaveEntryRequest{Actor: u.ID, Worker: u.ID, Day: day, Hours: decimal.NewFromInt(8)})
	require.NoError(t, err)
	_, err = ctx.Service.Submit(bg, timesheet.SubmitRequest{Actor: u.ID, Worker: u.ID, Period: calendar.Period{Start: day, End: day}})
	require.NoError(t, err)

	// WHEN
	out.Reset()
	require.NoError(t, (&UnsubmitCmd{Worker: "alice", From: "2024-08-01", To: "2024-08-31"}).Run(ctx))

	// THEN
	assert.Contains(t, out.String(), "Reopened 1")
	e, err := ctx.Service.Store().FindEntry(bg, u.ID, day, nil)
	require.NoError(t, err)
	assert.False(t, e.IsLocked())
}

func TestProjectCreate_Duplicate(t *testing.T) {
	ctx, out := newTestContext(t)
	require.NoError(t, (&ProjectCreateCmd{Name: "Apollo"}).Run(ctx))
	assert.Contains(t, out.String(), "Created project Apollo")
	assert.ErrorIs(t, (&ProjectCreateCmd{Name: "Apollo"}).Run(ctx), timesheet.ErrDuplicate)
}

func TestUserPassword_Resets(t *testing.T) {
	ctx, out := newTestContext(t)
	require.NoError(t, (&UserCreateCmd{Email: "dana@example.com", Username: "dana", Password: "password123"}).Run(ctx))

	require.NoError(t, (&UserPasswordCmd{User: "dana@example.com", Password: "another-secret"}).Run(ctx))
	assert.Contains(t, out.String(), "Password for dana@example.com updated.")

	u, err := ctx.Service.Store().GetUserByUsername(context.Background(), "dana")
	require.NoError(t, err)
	assert.True(t, auth.CheckPassword(u.PasswordHash, "another-secret"))
	assert.False(t, auth.CheckPassword(u.PasswordHash, "password123"))

	assert.ErrorIs(t, (&UserPasswordCmd{User: "dana", Password: "short"}).Run(ctx), auth.ErrPasswordTooWeak)
}
