package bot

import (
	"context"

	"vaultbot/internal/linkcode"
	"vaultbot/internal/store"
	"vaultbot/internal/transport"
	"vaultbot/pkg/logx"
)

// handleChannelPost indexes media posted to the storage channel and
// decorates the post with Get and Share buttons.
func (s *Service) handleChannelPost(ctx context.Context, m *transport.Message) {
	st := s.settings()
	if m == nil || m.ChatID != st.storageChannel || m.Media == nil {
		return
	}

	code := linkcode.Encode(m.ID)
	if s.store != nil {
		added, err := s.store.SaveFile(ctx, store.File{
			MsgID: m.ID,
			Name:  m.Media.FileName,
			Code:  code,
			Size:  humanSize(m.Media.FileSize),
		})
		if err != nil {
			s.log.Warn("file index failed", logx.Int("msg", m.ID), logx.Err(err))
		} else if !added {
			s.log.Debug("file already indexed", logx.Int("msg", m.ID), logx.String("code", code))
		}
	}

	link := s.links().Content(m.ID)
	markup := transport.InlineKeyboard{
		{
			{Text: "Get File", URL: link},
			{Text: "Share", URL: s.links().Share(link)},
		},
	}
	ref := transport.MessageRef{ChatID: m.ChatID, MessageID: m.ID}
	if err := s.adapter.EditMarkup(ctx, ref, markup); err != nil {
		s.log.Warn("post markup edit failed", logx.Int("msg", m.ID), logx.Err(err))
	}
}
