package config

import (
	"reflect"
	"sort"
	"strings"

	logx "vaultbot/pkg/logx"
)

// SummarizeChange returns a compact list of changed sections plus safe
// structured attrs for logging. Secrets (token, shortener endpoints)
// are reported as set/count only.
func SummarizeChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 6)
	attrs := make([]logx.Field, 0, 16)

	if strings.TrimSpace(oldCfg.Telegram.PollTimeout) != strings.TrimSpace(newCfg.Telegram.PollTimeout) ||
		oldCfg.Telegram.OwnerID != newCfg.Telegram.OwnerID ||
		!reflect.DeepEqual(oldCfg.Telegram.AdminIDs, newCfg.Telegram.AdminIDs) ||
		oldCfg.Telegram.StorageChannel != newCfg.Telegram.StorageChannel {
		changed = append(changed, "telegram")
		attrs = append(attrs,
			logx.Int("telegram.admin_count", len(newCfg.Telegram.AdminIDs)),
			logx.Bool("telegram.storage_channel_set", newCfg.Telegram.StorageChannel != 0),
		)
	}

	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
			logx.Bool("logging.channel_enabled", newCfg.Logging.Channel.Enabled),
		)
	}

	if !reflect.DeepEqual(oldCfg.ForceSub, newCfg.ForceSub) {
		changed = append(changed, "force_sub")
		attrs = append(attrs,
			logx.Int("force_sub.channel_count", len(newCfg.ForceSub.Channels)),
			logx.String("force_sub.strategy", strings.TrimSpace(newCfg.ForceSub.Strategy)),
			logx.Bool("force_sub.approve_join_requests", newCfg.ForceSub.ApproveJoinRequests),
		)
	}

	if !reflect.DeepEqual(oldCfg.Verify, newCfg.Verify) {
		changed = append(changed, "verify")
		attrs = append(attrs,
			logx.Bool("verify.enabled", newCfg.Verify.Enabled),
			logx.Int("verify.endpoint_count", len(newCfg.Verify.Endpoints)),
			logx.String("verify.timeout", strings.TrimSpace(newCfg.Verify.Timeout)),
		)
	}

	if oldCfg.Delivery != newCfg.Delivery {
		changed = append(changed, "delivery")
		attrs = append(attrs,
			logx.Bool("delivery.protect_content", newCfg.Delivery.ProtectContent),
			logx.String("delivery.auto_delete", strings.TrimSpace(newCfg.Delivery.AutoDelete)),
			logx.String("delivery.pace", strings.TrimSpace(newCfg.Delivery.Pace)),
		)
	}

	if oldCfg.Broadcast != newCfg.Broadcast {
		changed = append(changed, "broadcast")
	}
	if oldCfg.Batch != newCfg.Batch {
		changed = append(changed, "batch")
	}
	if oldCfg.Maintenance != newCfg.Maintenance {
		changed = append(changed, "maintenance")
	}

	// Nil storage means disabled.
	var o, n StorageConfig
	if oldCfg.Storage != nil {
		o = *oldCfg.Storage
	}
	if newCfg.Storage != nil {
		n = *newCfg.Storage
	}
	if o != n {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", strings.TrimSpace(n.Driver)),
			logx.Bool("storage.path_set", strings.TrimSpace(n.Path) != ""),
		)
	}

	if oldCfg.Server != newCfg.Server {
		changed = append(changed, "server")
	}

	sort.Strings(changed)
	return changed, attrs
}
