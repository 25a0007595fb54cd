package timesheet

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/warp/timesheet-engine/generic"
)

// Per-tenant setting keys read by the engine.
const (
	SettingNumbering      = "TIMESHEET_NUMBERING"
	SettingStandardPrefix = "TIMESHEET_STANDARD_PREFIX"
	SettingAdvancedMask   = "TIMESHEET_ADVANCED_MASK"
	SettingWeeklyPrefix   = "TIMESHEET_WEEKLY_PREFIX"

	SettingAutoSealEnabled   = "TIMESHEET_AUTOSEAL_ENABLED"
	SettingAutoSealDelayDays = "TIMESHEET_AUTOSEAL_DELAY_DAYS"
	SettingAutoSealUserID    = "TIMESHEET_AUTOSEAL_USER_ID"

	SettingDefaultContractHours = "TIMESHEET_DEFAULT_CONTRACT_HOURS"
	SettingRevertPurgeLedger    = "TIMESHEET_REVERT_PURGE_LEDGER"
)

const (
	DefaultStandardPrefix = "TS"
	DefaultAdvancedMask   = "TS{yy}{ww}-{0000}"
	DefaultWeeklyPrefix   = "TSW"
)

// DefaultContractHours applies when neither the employee nor the tenant
// configures weekly hours.
var DefaultContractHours = generic.NewHours(35)

func stringSetting(ctx context.Context, st generic.SettingsStore, tenant generic.TenantID, key, def string) (string, error) {
	v, ok, err := st.GetSetting(ctx, tenant, key)
	if err != nil {
		return "", generic.Persistence("read setting "+key, err)
	}
	v = strings.TrimSpace(v)
	if !ok || v == "" {
		return def, nil
	}
	return v, nil
}

func boolSetting(ctx context.Context, st generic.SettingsStore, tenant generic.TenantID, key string) (bool, error) {
	v, err := stringSetting(ctx, st, tenant, key, "")
	if err != nil || v == "" {
		return false, err
	}
	switch strings.ToLower(v) {
	case "yes", "on":
		return true, nil
	case "no", "off":
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("setting %s: %q is not a boolean", key, v)
	}
	return b, nil
}

func intSetting(ctx context.Context, st generic.SettingsStore, tenant generic.TenantID, key string, def int) (int, error) {
	v, err := stringSetting(ctx, st, tenant, key, "")
	if err != nil {
		return 0, err
	}
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("setting %s: %q is not an integer", key, v)
	}
	return n, nil
}

func hoursSetting(ctx context.Context, st generic.SettingsStore, tenant generic.TenantID, key string, def generic.Amount) (generic.Amount, error) {
	v, err := stringSetting(ctx, st, tenant, key, "")
	if err != nil {
		return generic.Amount{}, err
	}
	if v == "" {
		return def, nil
	}
	h, err := generic.ParseHours(v)
	if err != nil || !h.IsPositive() {
		return def, nil
	}
	return h, nil
}
