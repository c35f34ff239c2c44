package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	qrcode "github.com/skip2/go-qrcode"

	"vaultbot/internal/transport"
	"vaultbot/pkg/logx"
)

const (
	textNotAllowed   = "This command is for admins only."
	textBatchUsage   = "Usage: /batch <first message link> <last message link>\n(or reply to the first message with /batch <last message link>)"
	textBatchBadLink = "That does not look like a link into the storage channel."
	textBatchOrder   = "The last message must not come before the first."
	textBcastUsage   = "Reply to the message you want to broadcast with /broadcast."
	textUserIDUsage  = "Usage: %s <user id>"
)

func (s *Service) handleCommand(ctx context.Context, m *transport.Message, text string) {
	fields := strings.Fields(text)
	cmd := strings.ToLower(fields[0])
	args := fields[1:]

	st := s.settings()
	switch cmd {
	case "/help":
		s.sendHelp(ctx, m.ChatID)
		return
	}

	if !s.isAdmin(st, m.FromID) {
		s.reply(ctx, m.ChatID, textNotAllowed, nil)
		return
	}

	switch cmd {
	case "/batch":
		s.cmdBatch(ctx, st, m, args)
	case "/broadcast":
		s.cmdBroadcast(ctx, m)
	case "/stats":
		s.reply(ctx, m.ChatID, s.statsText(ctx), nil)
	case "/admin":
		s.sendAdminPanel(ctx, m.ChatID)
	case "/ban":
		s.cmdUserFlag(ctx, m, cmd, args, func(ctx context.Context, id int64) error {
			return s.store.SetBanned(ctx, id, true)
		})
	case "/unban":
		s.cmdUserFlag(ctx, m, cmd, args, func(ctx context.Context, id int64) error {
			return s.store.SetBanned(ctx, id, false)
		})
	case "/premium":
		s.cmdUserFlag(ctx, m, cmd, args, func(ctx context.Context, id int64) error {
			return s.store.SetPremium(ctx, id, true)
		})
	case "/free":
		s.cmdUserFlag(ctx, m, cmd, args, func(ctx context.Context, id int64) error {
			return s.store.SetPremium(ctx, id, false)
		})
	}
}

// cmdBatch stores an inclusive message range and answers with the batch
// link plus a QR code of it.
func (s *Service) cmdBatch(ctx context.Context, st settings, m *transport.Message, args []string) {
	if s.store == nil {
		s.reply(ctx, m.ChatID, textNeedStore, nil)
		return
	}

	var first, last int
	var ok bool
	switch {
	case m.ReplyToID != 0 && len(args) == 1:
		first = m.ReplyToID
		last, ok = s.parseStorageLink(st, args[0])
	case len(args) == 2:
		if first, ok = s.parseStorageLink(st, args[0]); ok {
			last, ok = s.parseStorageLink(st, args[1])
		}
	default:
		s.reply(ctx, m.ChatID, textBatchUsage, nil)
		return
	}
	if !ok {
		s.reply(ctx, m.ChatID, textBatchBadLink, nil)
		return
	}
	if last < first {
		s.reply(ctx, m.ChatID, textBatchOrder, nil)
		return
	}

	id, err := s.store.CreateBatch(ctx, first, last)
	if err != nil {
		s.log.Error("batch create failed", logx.Int("first", first), logx.Int("last", last), logx.Err(err))
		s.reply(ctx, m.ChatID, "Could not store the batch, try again.", nil)
		return
	}

	link := s.links().Batch(id)
	caption := fmt.Sprintf("Batch of %d file(s):\n%s", last-first+1, link)
	markup := transport.InlineKeyboard{{{Text: "Share", URL: s.links().Share(link)}}}

	png, err := qrcode.Encode(link, qrcode.Medium, 256)
	if err != nil {
		s.reply(ctx, m.ChatID, caption, &transport.SendOptions{Markup: markup})
		return
	}
	if _, err := s.adapter.SendPhoto(ctx, transport.ChatTarget{ChatID: m.ChatID}, png, caption, &transport.SendOptions{Markup: markup}); err != nil {
		s.log.Warn("batch reply failed", logx.Err(err))
		s.reply(ctx, m.ChatID, caption, &transport.SendOptions{Markup: markup})
	}
}

// parseStorageLink extracts the message id from a t.me/c link into the
// storage channel.
func (s *Service) parseStorageLink(st settings, raw string) (int, bool) {
	raw = strings.TrimPrefix(strings.TrimPrefix(raw, "https://"), "http://")
	rest, ok := strings.CutPrefix(raw, "t.me/c/")
	if !ok {
		return 0, false
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 2 {
		return 0, false
	}
	internal := strings.TrimPrefix(strconv.FormatInt(st.storageChannel, 10), "-100")
	if parts[0] != internal {
		return 0, false
	}
	id, err := strconv.Atoi(parts[1])
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// cmdBroadcast fans the replied-to message out to every known user and
// edits the final tally into the status message.
func (s *Service) cmdBroadcast(ctx context.Context, m *transport.Message) {
	if s.bcast == nil || s.store == nil {
		s.reply(ctx, m.ChatID, textNeedStore, nil)
		return
	}
	if m.ReplyToID == 0 {
		s.reply(ctx, m.ChatID, textBcastUsage, nil)
		return
	}

	src := transport.MessageRef{ChatID: m.ChatID, MessageID: m.ReplyToID}
	jobID, err := s.bcast.Launch(ctx, src)
	if err != nil {
		s.log.Error("broadcast launch failed", logx.Err(err))
		s.reply(ctx, m.ChatID, "Broadcast could not start.", nil)
		return
	}

	status, err := s.adapter.SendText(ctx, transport.ChatTarget{ChatID: m.ChatID}, "Broadcast running...", nil)
	if err != nil {
		return
	}

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			job, ok := s.bcast.Status(jobID)
			if !ok {
				return
			}
			if !job.Done {
				continue
			}
			text := fmt.Sprintf(
				"Broadcast finished.\n\nAttempted: %d\nSucceeded: %d\nFailed: %d\nRemoved: %d",
				job.Tally.Attempted, job.Tally.Succeeded, job.Tally.Failed, job.Tally.Removed,
			)
			if err := s.adapter.EditText(ctx, status, text, nil); err != nil {
				s.log.Warn("broadcast status edit failed", logx.Err(err))
			}
			return
		}
	}
}

func (s *Service) statsText(ctx context.Context) string {
	uptime := time.Since(s.started).Round(time.Second)
	if s.store == nil {
		return fmt.Sprintf("Uptime: %s\nDatabase: disabled", uptime)
	}
	users, uerr := s.store.CountUsers(ctx)
	files, ferr := s.store.CountFiles(ctx)
	if uerr != nil || ferr != nil {
		return fmt.Sprintf("Uptime: %s\nDatabase: unavailable", uptime)
	}
	return fmt.Sprintf("Uptime: %s\nUsers: %d\nIndexed files: %d", uptime, users, files)
}

func (s *Service) sendAdminPanel(ctx context.Context, chatID int64) {
	markup := transport.InlineKeyboard{
		{
			{Text: "Stats", Data: "admin:stats"},
			{Text: "Close", Data: "close"},
		},
	}
	s.reply(ctx, chatID, "Admin panel", &transport.SendOptions{Markup: markup})
}

func (s *Service) cmdUserFlag(ctx context.Context, m *transport.Message, cmd string, args []string, op func(context.Context, int64) error) {
	if s.store == nil {
		s.reply(ctx, m.ChatID, textNeedStore, nil)
		return
	}
	if len(args) != 1 {
		s.reply(ctx, m.ChatID, fmt.Sprintf(textUserIDUsage, cmd), nil)
		return
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		s.reply(ctx, m.ChatID, fmt.Sprintf(textUserIDUsage, cmd), nil)
		return
	}
	if err := op(ctx, id); err != nil {
		s.log.Warn("user flag update failed", logx.String("cmd", cmd), logx.Int64("user", id), logx.Err(err))
		s.reply(ctx, m.ChatID, "Update failed.", nil)
		return
	}
	s.reply(ctx, m.ChatID, fmt.Sprintf("Done: %s %d", strings.TrimPrefix(cmd, "/"), id), nil)
}
