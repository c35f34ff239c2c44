package bot

import (
	"context"
	"fmt"

	"vaultbot/internal/transport"
	"vaultbot/pkg/logx"
)

// handleJoinRequest auto-approves pending join requests on the gated
// channels, after the configured delay. The welcome DM is best effort;
// many users have never opened the bot and cannot be messaged.
func (s *Service) handleJoinRequest(ctx context.Context, jr *transport.JoinRequest) {
	st := s.settings()
	if jr == nil || !st.approveJoin || !containsID(st.forceSub, jr.ChatID) {
		return
	}

	chatID, userID, chatName := jr.ChatID, jr.UserID, jr.ChatName
	approve := func(ctx context.Context) {
		if err := s.adapter.ApproveJoinRequest(ctx, chatID, userID); err != nil {
			s.log.Warn("join approval failed",
				logx.Int64("chat", chatID),
				logx.Int64("user", userID),
				logx.Err(err),
			)
			return
		}
		welcome := fmt.Sprintf("Your request to join %s was approved. Welcome!", chatName)
		if _, err := s.adapter.SendText(ctx, transport.ChatTarget{ChatID: userID}, welcome, nil); err != nil {
			s.log.Debug("welcome dm skipped", logx.Int64("user", userID), logx.Err(err))
		}
	}

	if st.approveDelay > 0 && s.sched != nil {
		s.sched.After(st.approveDelay, "bot.approve_join", approve)
		return
	}
	approve(ctx)
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
