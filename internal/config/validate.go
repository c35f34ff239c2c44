package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

// Validate rejects configs the services could not start from. It is also
// installed as the manager's reload validator so a bad edit never
// replaces a working config.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		return errors.New("telegram.token is required")
	}
	if cfg.Telegram.StorageChannel == 0 {
		return errors.New("telegram.storage_channel is required")
	}
	if _, err := ParseDurationField("telegram.poll_timeout", cfg.Telegram.PollTimeout); err != nil {
		return err
	}

	switch strings.TrimSpace(cfg.ForceSub.Strategy) {
	case "", "fail_open", "fail_closed":
	default:
		return fmt.Errorf("force_sub.strategy: unknown value %q", cfg.ForceSub.Strategy)
	}
	if _, err := ParseDurationField("force_sub.approve_delay", cfg.ForceSub.ApproveDelay); err != nil {
		return err
	}

	if cfg.Verify.Enabled {
		if len(cfg.Verify.Endpoints) == 0 {
			return errors.New("verify.endpoints is required when verify is enabled")
		}
		for i, ep := range cfg.Verify.Endpoints {
			if !strings.Contains(ep, "{link}") {
				return fmt.Errorf("verify.endpoints[%d]: missing {link} placeholder", i)
			}
		}
	}
	if _, err := ParseDurationField("verify.timeout", cfg.Verify.Timeout); err != nil {
		return err
	}

	if _, err := ParseDurationField("delivery.auto_delete", cfg.Delivery.AutoDelete); err != nil {
		return err
	}
	if _, err := ParseDurationField("delivery.pace", cfg.Delivery.Pace); err != nil {
		return err
	}
	if cfg.Broadcast.RatePerSec < 0 {
		return errors.New("broadcast.rate_per_sec must be >= 0")
	}
	if _, err := ParseDurationField("batch.retention", cfg.Batch.Retention); err != nil {
		return err
	}

	if spec := strings.TrimSpace(cfg.Maintenance.StatsSpec); spec != "" {
		if _, err := cron.ParseStandard(spec); err != nil {
			return fmt.Errorf("maintenance.stats_spec: %w", err)
		}
	}
	if spec := strings.TrimSpace(cfg.Maintenance.PruneSpec); spec != "" {
		if _, err := cron.ParseStandard(spec); err != nil {
			return fmt.Errorf("maintenance.prune_spec: %w", err)
		}
	}

	if cfg.Storage != nil {
		d := strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))
		if d != "" && d != "none" && d != "sqlite" && d != "sqlite3" {
			return fmt.Errorf("storage.driver: unknown value %q", cfg.Storage.Driver)
		}
		if (d == "sqlite" || d == "sqlite3") && strings.TrimSpace(cfg.Storage.Path) == "" {
			return errors.New("storage.path is required for sqlite")
		}
		if _, err := ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout); err != nil {
			return err
		}
	}
	return nil
}
