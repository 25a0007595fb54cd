/*
main.go - Operator CLI for the timesheet engine

COMMANDS:
  migrate                       Create or update the schema
  autoseal --tenant=T ...       One AutoSeal pass per tenant (cron entry point)
  settings get TENANT KEY       Print a tenant setting
  settings set TENANT KEY VAL   Write a tenant setting
  employee add TENANT ID        Upsert an employee (--name, --weekly-hours, --hourly-rate)
  task add TENANT ID            Upsert a task (--label)
  token TENANT USER             Print a bearer token (--role, --ttl)

The database flags mirror the server's and read the same environment.

EXAMPLES:
  # Nightly cron
  timesheetctl autoseal --tenant=acme --tenant=globex

  # Switch a tenant to weekly numbering
  timesheetctl settings set acme TIMESHEET_NUMBERING weekly
*/
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	_ "github.com/joho/godotenv/autoload"

	"github.com/warp/timesheet-engine/logger"
	"github.com/warp/timesheet-engine/store/sqlstore"
)

var CLI struct {
	Version kong.VersionFlag

	DatabaseDriver string `help:"Database driver." env:"DATABASE_DRIVER" enum:"sqlite,postgres" default:"sqlite"`
	DatabaseURL    string `help:"SQLite path or PostgreSQL DSN." env:"DATABASE_URL" default:"timesheet.db"`
	Debug          bool   `help:"Enable debug logging." env:"DEBUG"`

	Migrate  MigrateCmd  `cmd:"" help:"Create or update the database schema."`
	AutoSeal AutoSealCmd `cmd:"" name:"autoseal" help:"Seal approved timesheets older than each tenant's delay."`
	Settings struct {
		Get SettingsGetCmd `cmd:"" help:"Print a tenant setting."`
		Set SettingsSetCmd `cmd:"" help:"Write a tenant setting."`
	} `cmd:"" help:"Manage tenant settings."`
	Employee struct {
		Add EmployeeAddCmd `cmd:"" help:"Add or update an employee."`
	} `cmd:"" help:"Manage employees."`
	Task struct {
		Add TaskAddCmd `cmd:"" help:"Add or update a task."`
	} `cmd:"" help:"Manage tasks."`
	Token TokenCmd `cmd:"" help:"Issue a bearer token for the API."`
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("timesheetctl"),
		kong.Description("Operator tooling for the timesheet engine"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars{"version": "v0.1.0"},
	)

	if err := logger.Init(logger.Config{Debug: CLI.Debug}); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	appCtx := &Context{Context: context.Background(), Out: os.Stdout}
	if ctx.Selected() == nil || ctx.Selected().Name != "token" {
		store, err := sqlstore.Open(appCtx, CLI.DatabaseDriver, CLI.DatabaseURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer store.Close()
		appCtx.Store = store
	}

	if err := ctx.Run(appCtx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
