package app

import (
	"strings"
	"time"

	"vaultbot/internal/config"
	"vaultbot/internal/store"
)

// mapStorageConfig turns the optional storage section into the store
// package's config. A nil section maps to the disabled zero value, which
// store.Open answers with a nil Store.
func mapStorageConfig(cfg *config.Config) (store.Config, error) {
	if cfg == nil || cfg.Storage == nil {
		return store.Config{}, nil
	}
	sc := cfg.Storage
	busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, 5*time.Second)
	if err != nil {
		return store.Config{}, err
	}
	return store.Config{
		Driver:      strings.TrimSpace(sc.Driver),
		Path:        strings.TrimSpace(sc.Path),
		BusyTimeout: busy,
	}, nil
}
