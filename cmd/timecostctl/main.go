/*
main.go - Administrative command line

PURPOSE:
  Maintenance commands run directly against the server's SQLite database:
  wage rates, settings, users, projects, reference file checks and
  unsubmitting periods. Every write goes through timesheet.Service so
  validation and the audit log match the HTTP API.

EXAMPLES:
  timecostctl rate set --worker alice --from 2024-08-01 --rate 22.50
  timecostctl rate list --worker alice
  timecostctl setting set overhead_percent 10
  timecostctl user create --email bob@example.com --username bob --password s3cret-pass --role accounting
  timecostctl user password --user bob --password n3w-pass-123
  timecostctl totals parse attendance.csv
  timecostctl unsubmit --worker alice --from 2024-08-05 --to 2024-08-09

SEE ALSO:
  - commands.go: Command implementations
  - config/config.go: DATABASE_PATH and setting defaults
*/
package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	"github.com/warp/timecost/config"
	"github.com/warp/timecost/logger"
	"github.com/warp/timecost/store/sqlite"
	"github.com/warp/timecost/timesheet"
)

var CLI struct {
	DB    string `help:"SQLite database path." default:"${db}" env:"DATABASE_PATH"`
	Debug bool   `help:"Log debug output to stderr."`

	Rate struct {
		Set  RateSetCmd  `cmd:"" help:"Set a worker's hourly rate from a date."`
		List RateListCmd `cmd:"" help:"Show a worker's rate history."`
	} `cmd:"" help:"Manage wage rates."`
	Setting struct {
		Get SettingGetCmd `cmd:"" help:"Show effective settings." default:"1"`
		Set SettingSetCmd `cmd:"" help:"Change a setting."`
	} `cmd:"" help:"Manage application settings."`
	User struct {
		Create   UserCreateCmd   `cmd:"" help:"Create a user."`
		Password UserPasswordCmd `cmd:"" help:"Reset a user's password."`
	} `cmd:"" help:"Manage users."`
	Project struct {
		Create ProjectCreateCmd `cmd:"" help:"Create a project."`
	} `cmd:"" help:"Manage projects."`
	Totals struct {
		Parse TotalsParseCmd `cmd:"" help:"Parse an attendance CSV and print daily totals."`
	} `cmd:"" help:"Inspect reference totals."`
	Unsubmit UnsubmitCmd `cmd:"" help:"Reopen a worker's submitted period."`
}

func main() {
	cfg := config.Load()
	ctx := kong.Parse(&CLI,
		kong.Name("timecostctl"),
		kong.Description("Timesheet costing administration"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
		kong.Vars{"db": cfg.DatabasePath},
	)

	if err := logger.Init(logger.Config{Debug: CLI.Debug, Dir: cfg.LogDir, Quiet: !CLI.Debug}); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// totals parse does not need the database
	if CLI.Totals.Parse.File != "" {
		if err := ctx.Run(&Context{Out: os.Stdout}); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	store, err := sqlite.New(CLI.DB)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	svc := timesheet.NewService(store, timesheet.Defaults{
		ToleranceMinutes:   cfg.DailyToleranceMinutes,
		AllowedEmailDomain: cfg.AllowedEmailDomain,
	})

	if err := ctx.Run(&Context{Service: svc, Out: os.Stdout}); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		store.Close()
		os.Exit(1)
	}
}
