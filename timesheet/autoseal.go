/*
autoseal.go - Batch sealing of old approved timesheets

PURPOSE:
  Seals every Approved sheet of a tenant whose validation date is older than
  the configured delay. Meant to be triggered periodically, from the API
  scheduler or from `timesheetctl autoseal` in a cron job.

CONFIGURATION (per tenant settings):
  TIMESHEET_AUTOSEAL_ENABLED     on/off
  TIMESHEET_AUTOSEAL_DELAY_DAYS  days after validation, > 0
  TIMESHEET_AUTOSEAL_USER_ID     acting user recorded on the seal

  Disabled or misconfigured: nothing happens, a line is logged, and the
  result is empty.

FAILURES:
  Candidates are processed one by one, sequentially, each in its own
  transaction. A failing candidate is counted in Errors and the batch goes
  on. Candidates that left Approved since the scan are counted in Skipped.
*/
package timesheet

import (
	"context"
	"errors"
	"time"

	"github.com/warp/timesheet-engine/generic"
)

type AutoSealConfig struct {
	Enabled   bool
	DelayDays int
	UserID    generic.UserID
}

// Usable reports whether the configuration allows a run.
func (c AutoSealConfig) Usable() bool {
	return c.Enabled && c.DelayDays > 0 && c.UserID != ""
}

func LoadAutoSealConfig(ctx context.Context, st generic.SettingsStore, tenant generic.TenantID) (AutoSealConfig, error) {
	var cfg AutoSealConfig
	var err error
	if cfg.Enabled, err = boolSetting(ctx, st, tenant, SettingAutoSealEnabled); err != nil {
		return cfg, err
	}
	if cfg.DelayDays, err = intSetting(ctx, st, tenant, SettingAutoSealDelayDays, 0); err != nil {
		return cfg, err
	}
	user, err := stringSetting(ctx, st, tenant, SettingAutoSealUserID, "")
	cfg.UserID = generic.UserID(user)
	return cfg, err
}

type AutoSealResult struct {
	Sealed  int
	Skipped int
	Errors  int
}

// AutoSeal seals the tenant's Approved sheets validated more than the
// configured delay ago.
func (s *Service) AutoSeal(ctx context.Context, tenant generic.TenantID) (AutoSealResult, error) {
	var res AutoSealResult
	if tenant == "" {
		return res, generic.ErrMissingTenant
	}
	log := s.logger().With("tenant", tenant)

	cfg, err := LoadAutoSealConfig(ctx, s.Store, tenant)
	if err != nil && errors.Is(err, generic.ErrPersistence) {
		return res, err
	}
	if err != nil {
		log.Warn("[autoseal] misconfigured, skipping", "err", err)
		return res, nil
	}
	if !cfg.Enabled {
		log.Info("[autoseal] disabled")
		return res, nil
	}
	if !cfg.Usable() {
		log.Warn("[autoseal] misconfigured, skipping", "delay_days", cfg.DelayDays, "user", cfg.UserID)
		return res, nil
	}

	cutoff := s.now().Now().AddDate(0, 0, -cfg.DelayDays)
	ids, err := s.Store.ApprovedBefore(ctx, tenant, cutoff)
	if err != nil {
		return res, generic.Persistence("list autoseal candidates", err)
	}

	scope := generic.Scope{Tenant: tenant, Actor: cfg.UserID}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			log.Warn("[autoseal] interrupted", "sealed", res.Sealed, "skipped", res.Skipped, "errors", res.Errors)
			return res, err
		}

		ts, err := s.Get(ctx, scope, id)
		if err != nil {
			res.Errors++
			log.Error("[autoseal] fetch failed", "timesheet", id, "err", err)
			continue
		}
		if ts.Status != generic.StatusApproved {
			res.Skipped++
			continue
		}

		if _, err := s.Seal(ctx, scope, id, SealAuto); err != nil {
			if errors.Is(err, generic.ErrBadStatusForSeal) {
				res.Skipped++
				continue
			}
			res.Errors++
			log.Error("[autoseal] seal failed", "timesheet", id, "ref", ts.Ref, "err", err)
			continue
		}
		res.Sealed++
	}

	log.Info("[autoseal] completed",
		"cutoff", cutoff.Format(time.RFC3339),
		"candidates", len(ids),
		"sealed", res.Sealed,
		"skipped", res.Skipped,
		"errors", res.Errors,
	)
	return res, nil
}
