package config

type Config struct {
	Telegram  TelegramConfig  `json:"telegram"`
	Logging   LoggingConfig   `json:"logging"`
	ForceSub  ForceSubConfig  `json:"force_sub"`
	Verify    VerifyConfig    `json:"verify"`
	Delivery  DeliveryConfig  `json:"delivery"`
	Broadcast BroadcastConfig `json:"broadcast,omitempty"`
	Batch     BatchConfig     `json:"batch,omitempty"`

	Maintenance MaintenanceConfig `json:"maintenance,omitempty"`

	// Storage is optional; nil disables persistence and every feature
	// that needs it (user records, search, batches).
	Storage *StorageConfig `json:"storage,omitempty"`

	Server ServerConfig `json:"server,omitempty"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	// OwnerID always passes admin checks, even with an empty admin list.
	OwnerID  int64   `json:"owner_id"`
	AdminIDs []int64 `json:"admin_ids,omitempty"`
	// StorageChannel is the private channel content is copied out of.
	StorageChannel int64 `json:"storage_channel"`
	// PollTimeout is a Go duration string (e.g. "10s").
	PollTimeout string `json:"poll_timeout,omitempty"`
}

type LoggingConfig struct {
	Level   string         `json:"level"`
	Console bool           `json:"console"`
	File    LoggingFile    `json:"file"`
	Channel LoggingChannel `json:"channel"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// LoggingChannel mirrors warnings and errors into a Telegram channel.
type LoggingChannel struct {
	Enabled    bool   `json:"enabled"`
	ChatID     int64  `json:"chat_id"`
	MinLevel   string `json:"min_level,omitempty"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
}

type ForceSubConfig struct {
	// Channels the user must have joined before content is released.
	// Empty disables the gate.
	Channels []int64 `json:"channels,omitempty"`
	// Strategy decides what an unverifiable membership counts as:
	// "fail_open" (default) admits, "fail_closed" blocks.
	Strategy string `json:"strategy,omitempty"`
	// ApproveJoinRequests auto-approves pending join requests on the
	// gated channels, optionally after ApproveDelay.
	ApproveJoinRequests bool   `json:"approve_join_requests,omitempty"`
	ApproveDelay        string `json:"approve_delay,omitempty"`
}

type VerifyConfig struct {
	Enabled bool `json:"enabled"`
	// Endpoints are shortener URL templates containing the {link}
	// placeholder. One is picked at random per verification.
	Endpoints []string `json:"endpoints,omitempty"`
	Timeout   string   `json:"timeout,omitempty"`
	// Tutorial is an optional how-to link shown beside the verify button.
	Tutorial string `json:"tutorial,omitempty"`
}

type DeliveryConfig struct {
	ProtectContent bool `json:"protect_content"`
	// AutoDelete removes delivered copies after this window; "0s" keeps
	// them forever.
	AutoDelete string `json:"auto_delete,omitempty"`
	// Pace is the delay between items of one delivery. Values under the
	// built-in floor are raised to it.
	Pace string `json:"pace,omitempty"`
}

type BroadcastConfig struct {
	RatePerSec float64 `json:"rate_per_sec,omitempty"`
	Burst      int     `json:"burst,omitempty"`
}

// BatchConfig controls stored multi-file link ranges.
type BatchConfig struct {
	// Retention prunes batch records older than this; empty keeps all.
	Retention string `json:"retention,omitempty"`
}

// MaintenanceConfig holds the cron specs for recurring housekeeping.
// Empty specs disable the job.
type MaintenanceConfig struct {
	// StatsSpec emits a periodic stats line to the log sinks.
	StatsSpec string `json:"stats_spec,omitempty"`
	// PruneSpec runs batch pruning (needs batch.retention set).
	PruneSpec string `json:"prune_spec,omitempty"`
}

type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

// ServerConfig is the embedded health and metrics listener.
type ServerConfig struct {
	Addr string `json:"addr,omitempty"`
	// Pprof exposes the profiler on the same listener under /debug.
	Pprof bool `json:"pprof,omitempty"`
}
