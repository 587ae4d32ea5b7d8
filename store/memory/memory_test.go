package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/timecost/calendar"
	"github.com/warp/timecost/costing"
	"github.com/warp/timecost/timesheet"
)

func TestWithTxDiscardsFailedWrites(t *testing.T) {
	m := New()
	ctx := context.Background()
	boom := errors.New("boom")

	err := m.WithTx(ctx, func(tx timesheet.Store) error {
		require.NoError(t, tx.SetSetting(ctx, "overhead_percent", "10"))
		require.NoError(t, tx.SaveRate(ctx, "alice", costing.Rate{EffectiveDate: calendar.MustParseDay("2024-01-01"), HourlyRate: decimal.NewFromInt(20)}))
		v, ok, _ := tx.GetSetting(ctx, "overhead_percent")
		assert.True(t, ok)
		assert.Equal(t, "10", v)
		return boom
	})

	assert.ErrorIs(t, err, boom)
	_, ok, err := m.GetSetting(ctx, "overhead_percent")
	require.NoError(t, err)
	assert.False(t, ok)
	history, err := m.RateHistory(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestWithTxCommits(t *testing.T) {
	m := New()
	ctx := context.Background()

	require.NoError(t, m.WithTx(ctx, func(tx timesheet.Store) error {
		return tx.SaveUser(ctx, timesheet.User{ID: "alice", Email: "a@example.com", Username: "alice", Roles: []timesheet.Role{timesheet.RoleWorker}})
	}))

	u, err := m.GetUserByEmail(ctx, "A@example.com")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, costing.WorkerID("alice"), u.ID)
}

func TestEntrySlotUniqueness(t *testing.T) {
	m := New()
	ctx := context.Background()
	d := calendar.MustParseDay("2024-03-01")

	require.NoError(t, m.SaveEntry(ctx, timesheet.Entry{ID: "a", Worker: "alice", Day: d}))
	require.NoError(t, m.SaveEntry(ctx, timesheet.Entry{ID: "b", Worker: "alice", Day: d, Project: timesheet.ProjectRef("p1")}))
	err := m.SaveEntry(ctx, timesheet.Entry{ID: "c", Worker: "alice", Day: d})
	assert.ErrorIs(t, err, timesheet.ErrDuplicate)

	found, err := m.FindEntry(ctx, "alice", d, timesheet.ProjectRef("p1"))
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, timesheet.EntryID("b"), found.ID)

	has, err := m.ProjectHasEntries(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, has)
}

func TestReturnedUsersAreCopies(t *testing.T) {
	m := New()
	ctx := context.Background()
	require.NoError(t, m.SaveUser(ctx, timesheet.User{ID: "alice", Email: "a@example.com", Username: "alice", Roles: []timesheet.Role{timesheet.RoleWorker}}))

	u, err := m.GetUser(ctx, "alice")
	require.NoError(t, err)
	u.Roles[0] = timesheet.RoleAdmin

	again, err := m.GetUser(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, timesheet.RoleWorker, again.Roles[0])
}

func TestResetEmptiesEverything(t *testing.T) {
	m := New()
	ctx := context.Background()
	require.NoError(t, m.SaveUser(ctx, timesheet.User{ID: "alice", Email: "a@example.com", Username: "alice"}))
	require.NoError(t, m.SetSetting(ctx, "overhead_percent", "10"))
	require.NoError(t, m.SaveEntry(ctx, timesheet.Entry{ID: "a", Worker: "alice", Day: calendar.MustParseDay("2024-03-01")}))

	require.NoError(t, m.Reset(ctx))

	users, err := m.ListUsers(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)
	_, ok, err := m.GetSetting(ctx, "overhead_percent")
	require.NoError(t, err)
	assert.False(t, ok)
	e, err := m.GetEntry(ctx, "a")
	require.NoError(t, err)
	assert.Nil(t, e)
}
