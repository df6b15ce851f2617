package app

import (
	"fmt"

	"github.com/adhocore/gronx"

	"croptalk/pkg/config"
)

// validateConfig performs quick, fail-fast validation of the effective
// configuration before starting long-running services. Keep checks light
// and focused so callers can surface user-friendly errors.
func validateConfig(eff config.EffectiveConfig) error {
	if eff.DBPath == "" {
		return fmt.Errorf("database path is empty: set --db flag, CROPTALK_DB_PATH env, or server.db_path in config")
	}
	if eff.Addr == "" {
		return fmt.Errorf("listen address is empty: set --addr flag or server.address in config")
	}
	rec := eff.Config.Reconcile
	if rec.Enabled && rec.Cron != "" && !gronx.IsValid(rec.Cron) {
		return fmt.Errorf("invalid reconcile.cron expression: %s", rec.Cron)
	}
	if n := eff.Config.Limits.MaxContentBytes.Int64(); n < 0 {
		return fmt.Errorf("limits.max_content_bytes must not be negative")
	}
	return nil
}
