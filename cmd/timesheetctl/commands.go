package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/warp/timesheet-engine/api"
	"github.com/warp/timesheet-engine/generic"
	"github.com/warp/timesheet-engine/logger"
	"github.com/warp/timesheet-engine/timesheet"
)

// Context is handed to every command's Run.
type Context struct {
	context.Context
	Store generic.TxStore
	Out   io.Writer
}

type MigrateCmd struct{}

// Open already migrated; reaching Run means the schema is current.
func (c *MigrateCmd) Run(ctx *Context) error {
	fmt.Fprintln(ctx.Out, "schema is up to date")
	return nil
}

type AutoSealCmd struct {
	Tenants []string `name:"tenant" help:"Tenant to process (repeatable)." env:"AUTOSEAL_TENANTS" required:""`
}

func (c *AutoSealCmd) Run(ctx *Context) error {
	svc := timesheet.NewService(ctx.Store, timesheet.LogNotifier{Log: logger.Get()})
	svc.Log = logger.Get()

	var failed int
	for _, tenant := range c.Tenants {
		res, err := svc.AutoSeal(ctx, generic.TenantID(tenant))
		if err != nil {
			failed++
			fmt.Fprintf(ctx.Out, "%s: error: %v\n", tenant, err)
			continue
		}
		fmt.Fprintf(ctx.Out, "%s: sealed=%d skipped=%d errors=%d\n", tenant, res.Sealed, res.Skipped, res.Errors)
	}
	if failed > 0 {
		return fmt.Errorf("autoseal failed for %d of %d tenants", failed, len(c.Tenants))
	}
	return nil
}

type SettingsGetCmd struct {
	Tenant string `arg:"" help:"Tenant id."`
	Key    string `arg:"" help:"Setting name, e.g. TIMESHEET_NUMBERING."`
}

func (c *SettingsGetCmd) Run(ctx *Context) error {
	value, ok, err := ctx.Store.GetSetting(ctx, generic.TenantID(c.Tenant), c.Key)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s is not set for %s", c.Key, c.Tenant)
	}
	fmt.Fprintln(ctx.Out, value)
	return nil
}

type SettingsSetCmd struct {
	Tenant string `arg:"" help:"Tenant id."`
	Key    string `arg:"" help:"Setting name."`
	Value  string `arg:"" help:"New value."`
}

func (c *SettingsSetCmd) Run(ctx *Context) error {
	return ctx.Store.SetSetting(ctx, generic.TenantID(c.Tenant), c.Key, c.Value)
}

type EmployeeAddCmd struct {
	Tenant      string `arg:"" help:"Tenant id."`
	ID          string `arg:"" help:"Employee (user) id."`
	Name        string `help:"Display name."`
	WeeklyHours string `help:"Contracted weekly hours, e.g. 35."`
	HourlyRate  string `help:"Hourly rate copied onto ledger rows."`
}

func (c *EmployeeAddCmd) Run(ctx *Context) error {
	e := generic.Employee{ID: generic.UserID(c.ID), Tenant: generic.TenantID(c.Tenant), Name: c.Name}
	var err error
	if e.WeeklyHours, err = parseOptionalHours(c.WeeklyHours); err != nil {
		return err
	}
	if e.HourlyRate, err = parseOptionalHours(c.HourlyRate); err != nil {
		return err
	}
	return ctx.Store.SaveEmployee(ctx, e)
}

type TaskAddCmd struct {
	Tenant string `arg:"" help:"Tenant id."`
	ID     string `arg:"" help:"Task id."`
	Label  string `help:"Task label."`
}

func (c *TaskAddCmd) Run(ctx *Context) error {
	return ctx.Store.SaveTask(ctx, generic.Task{ID: generic.TaskID(c.ID), Tenant: generic.TenantID(c.Tenant), Label: c.Label})
}

type TokenCmd struct {
	Tenant string        `arg:"" help:"Tenant id."`
	User   string        `arg:"" help:"Acting user id (sub claim)."`
	Role   string        `help:"Role claim." enum:"employee,manager,admin" default:"employee"`
	TTL    time.Duration `help:"Token lifetime." default:"24h"`
	Secret string        `help:"HS256 secret." env:"JWT_SECRET" required:""`
}

func (c *TokenCmd) Run(ctx *Context) error {
	token, err := api.NewAuthenticator(c.Secret).GenerateToken(generic.TenantID(c.Tenant), generic.UserID(c.User), c.Role, c.TTL)
	if err != nil {
		return err
	}
	fmt.Fprintln(ctx.Out, token)
	return nil
}

func parseOptionalHours(s string) (*generic.Amount, error) {
	if s == "" {
		return nil, nil
	}
	h, err := generic.ParseHours(s)
	if err != nil {
		return nil, err
	}
	return &h, nil
}
