// Package gate enforces mandatory channel membership before content
// delivery (force-sub). The membership gap is computed fresh on every
// request; membership can change between requests, so nothing is cached.
package gate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	kit "vaultbot/internal/transport"
	logx "vaultbot/pkg/logx"
)

// MembershipClient is the lookup surface the gate needs from the platform.
type MembershipClient interface {
	MemberOf(ctx context.Context, chatID, userID int64) (kit.MemberStatus, error)
}

// Strategy decides what a failed membership lookup means. Lookups fail for
// operational reasons (bot lacks admin rights, channel misconfigured), and
// the policy choice is deliberate: FailOpen never locks users out because
// of misconfiguration, FailClosed never lets them through on it.
type Strategy int

const (
	FailOpen Strategy = iota
	FailClosed
)

func (s Strategy) String() string {
	if s == FailClosed {
		return "fail_closed"
	}
	return "fail_open"
}

// ParseStrategy accepts "fail_open" (default) and "fail_closed".
func ParseStrategy(raw string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "fail_open", "open":
		return FailOpen, nil
	case "fail_closed", "closed":
		return FailClosed, nil
	default:
		return FailOpen, fmt.Errorf("unknown gate strategy %q", raw)
	}
}

type Checker struct {
	client   MembershipClient
	strategy Strategy
	log      logx.Logger
}

func New(client MembershipClient, strategy Strategy, log logx.Logger) *Checker {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Checker{client: client, strategy: strategy, log: log}
}

// Missing returns the required channels the user has not joined, in the
// order the channels were given (the remediation UI numbers its prompts
// from that order). An empty channel list short-circuits with no lookups.
func (c *Checker) Missing(ctx context.Context, userID int64, channels []int64) []int64 {
	if len(channels) == 0 {
		return nil
	}
	var missing []int64
	for _, chatID := range channels {
		status, err := c.client.MemberOf(ctx, chatID, userID)
		if err != nil {
			if errors.Is(err, kit.ErrNotParticipant) {
				missing = append(missing, chatID)
				continue
			}
			c.log.Debug("membership lookup failed",
				logx.Int64("chat_id", chatID),
				logx.Int64("user_id", userID),
				logx.String("strategy", c.strategy.String()),
				logx.Err(err),
			)
			if c.strategy == FailClosed {
				missing = append(missing, chatID)
			}
			continue
		}
		if !status.Joined() {
			missing = append(missing, chatID)
		}
	}
	return missing
}
