package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"vaultbot/internal/delivery"
	"vaultbot/internal/linkcode"
	"vaultbot/internal/store"
	"vaultbot/internal/transport"
	"vaultbot/pkg/logx"
)

const (
	textHome        = "Hi %s!\n\nI keep files for you. Open a file link to get your content."
	textBanned      = "You are banned from using this bot."
	textInvalidLink = "This link is invalid or has expired."
	textBatchGone   = "This batch does not exist or has been removed."
	textNeedStore   = "This feature needs the database, which is currently disabled."
	textJoinFirst   = "You must join the channel(s) below before I can send you the file."
	textVerify      = "Complete the step below to unlock your file."
	textNothingSent = "I could not deliver anything. The content may have been removed."
)

func (s *Service) handleStart(ctx context.Context, m *transport.Message, arg string) {
	st := s.settings()

	if s.store != nil {
		created, err := s.store.EnsureUser(ctx, m.FromID, m.FromName)
		if err != nil {
			s.log.Warn("user upsert failed", logx.Int64("user", m.FromID), logx.Err(err))
		} else if created {
			// Surfaces in the log channel sink.
			s.log.Info("new user",
				logx.Int64("user", m.FromID),
				logx.String("name", m.FromName),
			)
		}
		if u, err := s.store.User(ctx, m.FromID); err == nil && u.Banned {
			s.reply(ctx, m.ChatID, textBanned, nil)
			return
		}
	}

	p := linkcode.ParsePayload(arg)

	switch p.Kind {
	case linkcode.Home:
		s.sendHome(ctx, m)
		return
	case linkcode.Invalid:
		if s.metrics != nil {
			s.metrics.InvalidLinks.Inc()
		}
		s.reply(ctx, m.ChatID, textInvalidLink, nil)
		return
	}

	if missing := s.checker().Missing(ctx, m.FromID, st.forceSub); len(missing) > 0 {
		if s.metrics != nil {
			s.metrics.GateBlocks.Inc()
		}
		s.sendRemediation(ctx, m.ChatID, p, missing)
		return
	}

	switch p.Kind {
	case linkcode.Content:
		if s.needsVerification(ctx, st, m.FromID) {
			s.sendVerifyPrompt(ctx, st, m.ChatID, p.Raw)
			return
		}
		s.deliverIDs(ctx, st, m.FromID, []int{p.ID})
	case linkcode.Verify:
		// Arriving with the verify_ prefix is the proof the shortener
		// round-trip completed; deliver directly.
		s.deliverIDs(ctx, st, m.FromID, []int{p.ID})
	case linkcode.Batch:
		s.deliverBatch(ctx, st, m.FromID, m.ChatID, p.BatchID)
	}
}

func (s *Service) sendHome(ctx context.Context, m *transport.Message) {
	markup := transport.InlineKeyboard{
		{
			{Text: "My Account", Data: "account"},
			{Text: "Help", Data: "help"},
		},
	}
	name := m.FromName
	if name == "" {
		name = "there"
	}
	s.reply(ctx, m.ChatID, fmt.Sprintf(textHome, name), &transport.SendOptions{Markup: markup})
}

// needsVerification is true for non-premium users when verification is on
// and at least one shortener endpoint is configured.
func (s *Service) needsVerification(ctx context.Context, st settings, userID int64) bool {
	if !st.verifyEnabled || s.short == nil || !s.short.Configured() {
		return false
	}
	if s.store != nil {
		if u, err := s.store.User(ctx, userID); err == nil && u.Premium {
			return false
		}
	}
	return true
}

func (s *Service) sendVerifyPrompt(ctx context.Context, st settings, chatID int64, tok string) {
	target := s.links().Verify(tok)
	short := s.short.Shorten(ctx, target)

	row := []transport.InlineButton{{Text: "🔓 Unlock", URL: short}}
	if st.tutorial != "" {
		row = append(row, transport.InlineButton{Text: "How to open", URL: st.tutorial})
	}
	s.reply(ctx, chatID, textVerify, &transport.SendOptions{Markup: transport.InlineKeyboard{row}})
}

func (s *Service) deliverBatch(ctx context.Context, st settings, userID, chatID int64, batchID string) {
	if s.store == nil {
		s.reply(ctx, chatID, textNeedStore, nil)
		return
	}
	b, err := s.store.Batch(ctx, batchID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.reply(ctx, chatID, textBatchGone, nil)
			return
		}
		s.log.Warn("batch lookup failed", logx.String("batch", batchID), logx.Err(err))
		s.reply(ctx, chatID, textNothingSent, nil)
		return
	}
	s.deliverIDs(ctx, st, userID, b.ContentIDs())
}

func (s *Service) deliverIDs(ctx context.Context, st settings, userID int64, ids []int) {
	res := s.deliver.Deliver(ctx, userID, ids, delivery.Options{
		Protect:    st.protect,
		AutoDelete: st.autoDelete,
		Pace:       st.pace,
	})
	if res.Sent == 0 {
		s.reply(ctx, userID, textNothingSent, nil)
	}
}

// sendRemediation lists one join button per missing channel plus a retry
// button that re-dispatches the payload with any verify_ prefix stripped.
func (s *Service) sendRemediation(ctx context.Context, chatID int64, p linkcode.Payload, missing []int64) {
	var markup transport.InlineKeyboard
	for i, id := range missing {
		link := s.inviteLink(ctx, id)
		markup = append(markup, []transport.InlineButton{
			{Text: fmt.Sprintf("Join Channel %d", i+1), URL: link},
		})
	}
	markup = append(markup, []transport.InlineButton{
		{Text: "Try Again ♻️", URL: s.links().Retry(p)},
	})
	s.reply(ctx, chatID, textJoinFirst, &transport.SendOptions{Markup: markup})
}

// inviteLink resolves the channel invite link, falling back to the
// t.me/c form derived from the internal id.
func (s *Service) inviteLink(ctx context.Context, chatID int64) string {
	if info, err := s.adapter.ChatInfo(ctx, chatID); err == nil && info.InviteLink != "" {
		return info.InviteLink
	}
	internal := strings.TrimPrefix(strconv.FormatInt(chatID, 10), "-100")
	return "https://t.me/c/" + internal + "/1"
}
