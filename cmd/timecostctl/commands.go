package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/shopspring/decimal"
	"github.com/warp/timecost/auth"
	"github.com/warp/timecost/calendar"
	"github.com/warp/timecost/costing"
	"github.com/warp/timecost/timesheet"
)

// Context is handed to every command's Run method.
type Context struct {
	Service *timesheet.Service
	Out     io.Writer
}

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)

func (c *Context) table(headers []string, rows [][]string) {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
	fmt.Fprintln(c.Out, t.String())
}

// resolveWorker accepts a username, an email or a raw user id.
func (c *Context) resolveWorker(ctx context.Context, ref string) (costing.WorkerID, error) {
	store := c.Service.Store()
	for _, lookup := range []func(context.Context, string) (*timesheet.User, error){
		store.GetUserByUsername,
		store.GetUserByEmail,
	} {
		u, err := lookup(ctx, ref)
		if err != nil {
			return "", err
		}
		if u != nil {
			return u.ID, nil
		}
	}
	u, err := store.GetUser(ctx, costing.WorkerID(ref))
	if err != nil {
		return "", err
	}
	if u == nil {
		return "", fmt.Errorf("%w: %s", timesheet.ErrUserNotFound, ref)
	}
	return u.ID, nil
}

// =============================================================================
// RATES
// =============================================================================

type RateSetCmd struct {
	Worker string `help:"Username, email or id." required:""`
	From   string `help:"Effective date (YYYY-MM-DD)." required:""`
	Rate   string `help:"Hourly rate." required:""`
}

func (c *RateSetCmd) Run(ctx *Context) error {
	bg := context.Background()
	worker, err := ctx.resolveWorker(bg, c.Worker)
	if err != nil {
		return err
	}
	from, err := calendar.ParseDay(c.From)
	if err != nil {
		return err
	}
	rate, err := decimal.NewFromString(c.Rate)
	if err != nil {
		return fmt.Errorf("%w: %v", timesheet.ErrInvalidRate, err)
	}
	if err := ctx.Service.SetRate(bg, "", worker, costing.Rate{EffectiveDate: from, HourlyRate: rate}); err != nil {
		return err
	}
	fmt.Fprintf(ctx.Out, "Rate for %s set to %s from %s.\n", c.Worker, rate.StringFixed(2), from)
	return nil
}

type RateListCmd struct {
	Worker string `help:"Username, email or id." required:""`
}

func (c *RateListCmd) Run(ctx *Context) error {
	bg := context.Background()
	worker, err := ctx.resolveWorker(bg, c.Worker)
	if err != nil {
		return err
	}
	history, err := ctx.Service.Rates(bg, worker)
	if err != nil {
		return err
	}
	if len(history) == 0 {
		fmt.Fprintf(ctx.Out, "No rates for %s.\n", c.Worker)
		return nil
	}
	rows := make([][]string, len(history))
	for i, r := range history {
		rows[i] = []string{r.EffectiveDate.String(), r.HourlyRate.StringFixed(2)}
	}
	ctx.table([]string{"Effective", "Hourly Rate"}, rows)
	return nil
}

// =============================================================================
// SETTINGS
// =============================================================================

type SettingGetCmd struct {
	Key string `arg:"" optional:"" help:"Only show this key."`
}

func (c *SettingGetCmd) Run(ctx *Context) error {
	snapshot, err := ctx.Service.Settings().Snapshot(context.Background())
	if err != nil {
		return err
	}
	if c.Key != "" {
		v, ok := snapshot[c.Key]
		if !ok {
			return fmt.Errorf("%w: unknown key %s", timesheet.ErrInvalidSetting, c.Key)
		}
		fmt.Fprintln(ctx.Out, v)
		return nil
	}
	keys := make([]string, 0, len(snapshot))
	for k := range snapshot {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	rows := make([][]string, len(keys))
	for i, k := range keys {
		rows[i] = []string{k, snapshot[k]}
	}
	ctx.table([]string{"Key", "Value"}, rows)
	return nil
}

type SettingSetCmd struct {
	Key   string `arg:"" help:"Setting key."`
	Value string `arg:"" help:"New value."`
}

func (c *SettingSetCmd) Run(ctx *Context) error {
	if err := ctx.Service.ChangeSetting(context.Background(), "", c.Key, c.Value); err != nil {
		return err
	}
	fmt.Fprintf(ctx.Out, "%s updated.\n", c.Key)
	return nil
}

// =============================================================================
// USERS AND PROJECTS
// =============================================================================

type UserCreateCmd struct {
	Email    string   `help:"Email address." required:""`
	Username string   `help:"Login name." required:""`
	Password string   `help:"Initial password." required:""`
	Role     []string `help:"Extra role (admin, accounting, project_manager). Repeatable."`
}

func (c *UserCreateCmd) Run(ctx *Context) error {
	hash, err := auth.HashPassword(c.Password)
	if err != nil {
		return err
	}
	roles := make([]timesheet.Role, len(c.Role))
	for i, r := range c.Role {
		roles[i] = timesheet.Role(r)
	}
	u, err := ctx.Service.CreateUser(context.Background(), "", timesheet.NewUser{
		Email:        c.Email,
		Username:     c.Username,
		PasswordHash: hash,
		Roles:        roles,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(ctx.Out, "Created user %s (%s).\n", u.Username, u.ID)
	return nil
}

type UserPasswordCmd struct {
	User     string `help:"Username, email or id." required:""`
	Password string `help:"New password." required:""`
}

func (c *UserPasswordCmd) Run(ctx *Context) error {
	bg := context.Background()
	id, err := ctx.resolveWorker(bg, c.User)
	if err != nil {
		return err
	}
	hash, err := auth.HashPassword(c.Password)
	if err != nil {
		return err
	}
	if err := ctx.Service.SetPasswordHash(bg, "", id, hash); err != nil {
		return err
	}
	fmt.Fprintf(ctx.Out, "Password for %s updated.\n", c.User)
	return nil
}

type ProjectCreateCmd struct {
	Name string `arg:"" help:"Project name."`
}

func (c *ProjectCreateCmd) Run(ctx *Context) error {
	p, err := ctx.Service.CreateProject(context.Background(), "", c.Name)
	if err != nil {
		return err
	}
	fmt.Fprintf(ctx.Out, "Created project %s (%s).\n", p.Name, p.ID)
	return nil
}

// =============================================================================
// REFERENCE TOTALS AND UNSUBMIT
// =============================================================================

type TotalsParseCmd struct {
	File string `arg:"" type:"existingfile" help:"Attendance CSV with Date and Hours columns."`
}

func (c *TotalsParseCmd) Run(ctx *Context) error {
	f, err := os.Open(c.File)
	if err != nil {
		return err
	}
	defer f.Close()

	totals, err := timesheet.ParseReferenceCSV(f)
	if err != nil {
		return err
	}
	days := make([]calendar.Day, 0, len(totals))
	for d := range totals {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	rows := make([][]string, len(days))
	sum := decimal.Zero
	for i, d := range days {
		rows[i] = []string{d.String(), totals[d].StringFixed(2)}
		sum = sum.Add(totals[d])
	}
	ctx.table([]string{"Date", "Hours"}, rows)
	fmt.Fprintf(ctx.Out, "%d day(s), %s hours.\n", len(days), sum.StringFixed(2))
	return nil
}

type UnsubmitCmd struct {
	Worker string `help:"Username, email or id." required:""`
	From   string `help:"First day (YYYY-MM-DD)." required:""`
	To     string `help:"Last day (YYYY-MM-DD)." required:""`
}

func (c *UnsubmitCmd) Run(ctx *Context) error {
	bg := context.Background()
	worker, err := ctx.resolveWorker(bg, c.Worker)
	if err != nil {
		return err
	}
	period, err := calendar.ParsePeriod(c.From, c.To)
	if err != nil {
		return err
	}
	result, err := ctx.Service.Unsubmit(bg, timesheet.UnsubmitRequest{Worker: worker, Period: period})
	if err != nil {
		return err
	}
	fmt.Fprintf(ctx.Out, "Reopened %d entr(ies); %d already open.\n", len(result.Reopened), result.AlreadyOpen)
	return nil
}
