// Package systemd reports service state to the init system so units
// with Type=notify get accurate readiness. Every call is a no-op when
// the process runs outside a systemd unit.
package systemd

import "github.com/coreos/go-systemd/v22/daemon"

func NotifyReady() {
	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)
}

func NotifyStopping() {
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
}

// NotifyStatus publishes a human-readable status line visible in
// systemctl status.
func NotifyStatus(msg string) {
	_, _ = daemon.SdNotify(false, "STATUS="+msg)
}
