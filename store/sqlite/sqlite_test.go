package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/timecost/calendar"
	"github.com/warp/timecost/costing"
	"github.com/warp/timecost/timesheet"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func seedUser(t *testing.T, store *Store, id string) {
	t.Helper()
	require.NoError(t, store.SaveUser(context.Background(), timesheet.User{
		ID:        costing.WorkerID(id),
		Email:     id + "@example.com",
		Username:  id,
		Roles:     []timesheet.Role{timesheet.RoleWorker},
		CreatedAt: time.Now(),
	}))
}

func seedProject(t *testing.T, store *Store, id string) {
	t.Helper()
	require.NoError(t, store.SaveProject(context.Background(), timesheet.Project{
		ID: timesheet.ProjectID(id), Name: "Project " + id, CreatedAt: time.Now(),
	}))
}

func TestEntryRoundTripWithSubmission(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedUser(t, store, "alice")
	seedProject(t, store, "p1")

	// GIVEN: a locked entry with a frozen cost
	submitted := time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC)
	e := timesheet.Entry{
		ID:        "e1",
		Worker:    "alice",
		Project:   timesheet.ProjectRef("p1"),
		Day:       calendar.MustParseDay("2024-06-28"),
		Hours:     decimal.RequireFromString("8"),
		Note:      "framing",
		CreatedAt: submitted.Add(-time.Hour),
		UpdatedAt: submitted.Add(-time.Hour),
		Submission: &timesheet.Submission{
			At: submitted,
			Cost: costing.Cost{
				Rate:            decimal.RequireFromString("22"),
				OverheadPercent: decimal.RequireFromString("25"),
				Labor:           decimal.RequireFromString("176.00"),
				Total:           decimal.RequireFromString("220.00"),
			},
		},
	}

	// WHEN: saved and read back
	require.NoError(t, store.SaveEntry(ctx, e))
	got, err := store.GetEntry(ctx, "e1")
	require.NoError(t, err)
	require.NotNil(t, got)

	// THEN: every snapshot figure survives
	assert.True(t, got.IsLocked())
	assert.Equal(t, "p1", string(*got.Project))
	assert.True(t, got.Hours.Equal(e.Hours))
	assert.True(t, got.Submission.Cost.Equal(e.Submission.Cost))
	assert.True(t, got.Submission.At.Equal(submitted))

	// WHEN: unlocked and saved again
	got.Submission = nil
	require.NoError(t, store.SaveEntry(ctx, *got))
	reopened, err := store.GetEntry(ctx, "e1")
	require.NoError(t, err)

	// THEN: all snapshot columns are cleared together
	assert.False(t, reopened.IsLocked())
	_, frozen := reopened.FrozenCost()
	assert.False(t, frozen)
}

func TestGetEntryMissingReturnsNil(t *testing.T) {
	store := newTestStore(t)

	got, err := store.GetEntry(context.Background(), "nope")

	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFindEntryDistinguishesCompanyTasks(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedUser(t, store, "alice")
	seedProject(t, store, "p1")
	day := calendar.MustParseDay("2024-03-04")

	require.NoError(t, store.SaveEntry(ctx, timesheet.Entry{ID: "company", Worker: "alice", Day: day, Hours: decimal.NewFromInt(2)}))
	require.NoError(t, store.SaveEntry(ctx, timesheet.Entry{ID: "project", Worker: "alice", Day: day, Project: timesheet.ProjectRef("p1"), Hours: decimal.NewFromInt(6)}))

	company, err := store.FindEntry(ctx, "alice", day, nil)
	require.NoError(t, err)
	require.NotNil(t, company)
	assert.Equal(t, timesheet.EntryID("company"), company.ID)

	project, err := store.FindEntry(ctx, "alice", day, timesheet.ProjectRef("p1"))
	require.NoError(t, err)
	require.NotNil(t, project)
	assert.Equal(t, timesheet.EntryID("project"), project.ID)
}

func TestSaveEntryRejectsSecondCompanyEntryForDay(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedUser(t, store, "alice")
	day := calendar.MustParseDay("2024-03-04")

	require.NoError(t, store.SaveEntry(ctx, timesheet.Entry{ID: "a", Worker: "alice", Day: day, Hours: decimal.NewFromInt(1)}))
	err := store.SaveEntry(ctx, timesheet.Entry{ID: "b", Worker: "alice", Day: day, Hours: decimal.NewFromInt(1)})

	assert.True(t, errors.Is(err, timesheet.ErrDuplicate))
}

func TestEntriesInRangeOrderedByDay(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedUser(t, store, "alice")

	for _, d := range []string{"2024-03-06", "2024-03-04", "2024-03-10", "2024-03-05"} {
		require.NoError(t, store.SaveEntry(ctx, timesheet.Entry{
			ID: timesheet.EntryID(d), Worker: "alice", Day: calendar.MustParseDay(d), Hours: decimal.NewFromInt(8),
		}))
	}

	period, err := calendar.ParsePeriod("2024-03-04", "2024-03-08")
	require.NoError(t, err)
	entries, err := store.EntriesInRange(ctx, "alice", period)
	require.NoError(t, err)

	require.Len(t, entries, 3)
	assert.Equal(t, "2024-03-04", entries[0].Day.String())
	assert.Equal(t, "2024-03-05", entries[1].Day.String())
	assert.Equal(t, "2024-03-06", entries[2].Day.String())
}

func TestSaveRateUpsertsPerDay(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedUser(t, store, "alice")
	jan := calendar.MustParseDay("2024-01-01")

	require.NoError(t, store.SaveRate(ctx, "alice", costing.Rate{EffectiveDate: jan, HourlyRate: decimal.NewFromInt(20)}))
	require.NoError(t, store.SaveRate(ctx, "alice", costing.Rate{EffectiveDate: jan, HourlyRate: decimal.NewFromInt(21)}))
	require.NoError(t, store.SaveRate(ctx, "alice", costing.Rate{EffectiveDate: calendar.MustParseDay("2024-06-01"), HourlyRate: decimal.NewFromInt(22)}))

	history, err := store.RateHistory(ctx, "alice")
	require.NoError(t, err)

	require.Len(t, history, 2)
	assert.Equal(t, "21", history[0].HourlyRate.String())
	rate, ok := history.EffectiveRate(calendar.MustParseDay("2024-07-01"))
	assert.True(t, ok)
	assert.Equal(t, "22", rate.String())
}

func TestWithTxRollsBackOnError(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedUser(t, store, "alice")
	boom := errors.New("boom")

	// WHEN: a transaction writes and then fails
	err := store.WithTx(ctx, func(tx timesheet.Store) error {
		if err := tx.SetSetting(ctx, "overhead_percent", "30"); err != nil {
			return err
		}
		if err := tx.SaveEntry(ctx, timesheet.Entry{ID: "e1", Worker: "alice", Day: calendar.MustParseDay("2024-01-02"), Hours: decimal.NewFromInt(1)}); err != nil {
			return err
		}
		return boom
	})

	// THEN: nothing persisted
	assert.ErrorIs(t, err, boom)
	_, ok, err := store.GetSetting(ctx, "overhead_percent")
	require.NoError(t, err)
	assert.False(t, ok)
	e, err := store.GetEntry(ctx, "e1")
	require.NoError(t, err)
	assert.Nil(t, e)
}

func TestWithTxReadsOwnWrites(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.WithTx(ctx, func(tx timesheet.Store) error {
		if err := tx.SetSetting(ctx, "overhead_percent", "12.5"); err != nil {
			return err
		}
		v, ok, err := tx.GetSetting(ctx, "overhead_percent")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "12.5", v)
		return nil
	})
	require.NoError(t, err)

	all, err := store.ListSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"overhead_percent": "12.5"}, all)
}

func TestUsersAndManagers(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveUser(ctx, timesheet.User{
		ID: "pm", Email: "PM@Example.com", Username: "pm",
		Roles: []timesheet.Role{timesheet.RoleWorker, timesheet.RoleProjectManager},
	}))
	seedProject(t, store, "p1")
	seedProject(t, store, "p2")

	byEmail, err := store.GetUserByEmail(ctx, "pm@example.com")
	require.NoError(t, err)
	require.NotNil(t, byEmail)
	assert.True(t, byEmail.HasRole(timesheet.RoleProjectManager))

	err = store.SaveUser(ctx, timesheet.User{ID: "other", Email: "x@example.com", Username: "pm"})
	assert.ErrorIs(t, err, timesheet.ErrDuplicate)

	require.NoError(t, store.AssignManager(ctx, "pm", "p2"))
	require.NoError(t, store.AssignManager(ctx, "pm", "p1"))
	require.NoError(t, store.AssignManager(ctx, "pm", "p1"))
	managed, err := store.ManagedProjects(ctx, "pm")
	require.NoError(t, err)
	assert.Equal(t, []timesheet.ProjectID{"p1", "p2"}, managed)

	require.NoError(t, store.DeleteProject(ctx, "p2"))
	managed, err = store.ManagedProjects(ctx, "pm")
	require.NoError(t, err)
	assert.Equal(t, []timesheet.ProjectID{"p1"}, managed)
}

func TestAuditNewestFirstWithFilters(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, action := range []timesheet.AuditAction{timesheet.AuditCreated, timesheet.AuditSubmitted, timesheet.AuditUnsubmitted} {
		require.NoError(t, store.AppendAudit(ctx, timesheet.AuditEntry{
			ID: string(action), At: base.Add(time.Duration(i) * time.Minute), Actor: "admin",
			Table: "time_entry", RecordID: "e1", Action: action,
			Details: map[string]any{"day": "2024-01-01"},
		}))
	}

	all, err := store.QueryAudit(ctx, timesheet.AuditFilter{RecordID: "e1"})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, timesheet.AuditUnsubmitted, all[0].Action)
	assert.Equal(t, "2024-01-01", all[0].Details["day"])

	submits, err := store.QueryAudit(ctx, timesheet.AuditFilter{Actions: []timesheet.AuditAction{timesheet.AuditSubmitted}, Limit: 5})
	require.NoError(t, err)
	require.Len(t, submits, 1)
	assert.Equal(t, costing.WorkerID("admin"), submits[0].Actor)
}

func TestResetEmptiesEverything(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedUser(t, store, "alice")
	seedProject(t, store, "p1")
	require.NoError(t, store.SaveRate(ctx, "alice", costing.Rate{EffectiveDate: calendar.MustParseDay("2024-01-01"), HourlyRate: decimal.NewFromInt(20)}))
	require.NoError(t, store.SetSetting(ctx, "overhead_percent", "10"))

	// WHEN
	require.NoError(t, store.Reset(ctx))

	// THEN: the schema survives and every table is empty
	users, err := store.ListUsers(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)
	projects, err := store.ListProjects(ctx)
	require.NoError(t, err)
	assert.Empty(t, projects)
	history, err := store.RateHistory(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, history)
	_, ok, err := store.GetSetting(ctx, "overhead_percent")
	require.NoError(t, err)
	assert.False(t, ok)

	seedUser(t, store, "bob")
}
