package bot

import (
	"context"
	"fmt"

	"vaultbot/internal/transport"
	"vaultbot/pkg/logx"
)

const textHelp = "Open a file link to receive your content.\n" +
	"If I ask you to join channels first, join them and press Try Again.\n" +
	"Type part of a file name to search the index."

func (s *Service) handleCallback(ctx context.Context, cb *transport.Callback) {
	if cb == nil {
		return
	}
	defer func() {
		if err := s.adapter.AnswerCallback(ctx, cb.ID, ""); err != nil {
			s.log.Debug("callback ack failed", logx.Err(err))
		}
	}()

	ref := transport.MessageRef{ChatID: cb.ChatID, MessageID: cb.MessageID}
	backRow := transport.InlineKeyboard{{{Text: "« Back", Data: "back"}}}

	switch cb.Data {
	case "account":
		s.editOr(ctx, ref, s.accountText(ctx, cb.FromID), backRow)
	case "help":
		s.editOr(ctx, ref, textHelp, backRow)
	case "back":
		markup := transport.InlineKeyboard{
			{
				{Text: "My Account", Data: "account"},
				{Text: "Help", Data: "help"},
			},
		}
		s.editOr(ctx, ref, fmt.Sprintf(textHome, cb.FromName), markup)
	case "admin:stats":
		if s.isAdmin(s.settings(), cb.FromID) {
			s.editOr(ctx, ref, s.statsText(ctx), transport.InlineKeyboard{{{Text: "Close", Data: "close"}}})
		}
	case "close":
		if err := s.adapter.Delete(ctx, ref); err != nil {
			s.log.Debug("close delete failed", logx.Err(err))
		}
	}
}

func (s *Service) editOr(ctx context.Context, ref transport.MessageRef, text string, markup transport.InlineKeyboard) {
	err := s.adapter.EditText(ctx, ref, text, &transport.SendOptions{Markup: markup})
	if err != nil {
		s.log.Debug("callback edit failed", logx.Int("msg", ref.MessageID), logx.Err(err))
	}
}

func (s *Service) accountText(ctx context.Context, userID int64) string {
	if s.store == nil {
		return "Account status is unavailable while the database is disabled."
	}
	u, err := s.store.User(ctx, userID)
	if err != nil {
		return "I have no record of your account yet. Send /start first."
	}
	plan := "Free"
	if u.Premium {
		plan = "Premium"
	}
	return fmt.Sprintf("Your account\n\nID: %d\nPlan: %s\nJoined: %s",
		u.ID, plan, u.JoinedAt.Format("2006-01-02"))
}

func (s *Service) sendHelp(ctx context.Context, chatID int64) {
	s.reply(ctx, chatID, textHelp, nil)
}
