// Package logx wraps zerolog behind a small Logger value with hot-swappable
// sinks: console, append-only file, and a rate-limited Telegram log channel
// used for admin-facing notices.
package logx
