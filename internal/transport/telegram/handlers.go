package telegram

import (
	tele "gopkg.in/telebot.v4"

	kit "vaultbot/internal/transport"
)

func (a *Adapter) registerHandlers() {
	// Handlers forward to the CURRENT output channel. Start() may swap it.
	a.bot.Handle(tele.OnText, func(c tele.Context) error {
		m := c.Message()
		if m == nil || m.Sender == nil {
			return nil
		}
		a.sendUpdate(kit.Update{Kind: kit.UpdateMessage, Message: mapMessage(m)})
		return nil
	})

	// Media sent in private chats (ignored by the pipeline unless it comes
	// from the storage channel, which arrives as a channel post).
	media := func(c tele.Context) error {
		m := c.Message()
		if m == nil || m.Sender == nil {
			return nil
		}
		a.sendUpdate(kit.Update{Kind: kit.UpdateMessage, Message: mapMessage(m)})
		return nil
	}
	a.bot.Handle(tele.OnDocument, media)
	a.bot.Handle(tele.OnVideo, media)
	a.bot.Handle(tele.OnAudio, media)
	a.bot.Handle(tele.OnPhoto, media)

	a.bot.Handle(tele.OnChannelPost, func(c tele.Context) error {
		m := c.Message()
		if m == nil {
			return nil
		}
		a.sendUpdate(kit.Update{Kind: kit.UpdateChannelPost, Message: mapMessage(m)})
		return nil
	})

	a.bot.Handle(tele.OnCallback, func(c tele.Context) error {
		cb := c.Callback()
		m := c.Message()
		if cb == nil || m == nil {
			return nil
		}
		up := kit.Update{
			Kind: kit.UpdateCallback,
			Callback: &kit.Callback{
				ID:        cb.ID,
				ChatID:    m.Chat.ID,
				FromID:    cb.Sender.ID,
				FromName:  cb.Sender.FirstName,
				MessageID: m.ID,
				Data:      cb.Data,
			},
		}
		a.sendUpdate(up)
		return nil
	})

	a.bot.Handle(tele.OnChatJoinRequest, func(c tele.Context) error {
		req := c.Update().ChatJoinRequest
		if req == nil || req.Chat == nil || req.Sender == nil {
			return nil
		}
		up := kit.Update{
			Kind: kit.UpdateJoinRequest,
			JoinRequest: &kit.JoinRequest{
				ChatID:   req.Chat.ID,
				ChatName: req.Chat.Title,
				UserID:   req.Sender.ID,
			},
		}
		a.sendUpdate(up)
		return nil
	})
}

func mapMessage(m *tele.Message) *kit.Message {
	out := &kit.Message{
		ID:        m.ID,
		ChatID:    m.Chat.ID,
		Text:      m.Text,
		IsGroup:   m.Chat.Type != tele.ChatPrivate,
		Media:     mediaOf(m),
		ReplyToID: replyToID(m),
	}
	if m.Sender != nil {
		out.FromID = m.Sender.ID
		out.FromName = m.Sender.FirstName
		out.FromUsername = m.Sender.Username
	}
	return out
}

func replyToID(m *tele.Message) int {
	if m.ReplyTo == nil {
		return 0
	}
	return m.ReplyTo.ID
}

func mediaOf(m *tele.Message) *kit.MediaInfo {
	switch {
	case m.Document != nil:
		return &kit.MediaInfo{FileName: m.Document.FileName, FileSize: m.Document.FileSize}
	case m.Video != nil:
		return &kit.MediaInfo{FileName: m.Video.FileName, FileSize: m.Video.FileSize}
	case m.Audio != nil:
		return &kit.MediaInfo{FileName: m.Audio.FileName, FileSize: m.Audio.FileSize}
	case m.Photo != nil:
		return &kit.MediaInfo{FileName: "photo.jpg", FileSize: m.Photo.FileSize}
	}
	return nil
}

func toReplyMarkup(kb kit.InlineKeyboard) *tele.ReplyMarkup {
	if len(kb) == 0 {
		return nil
	}
	rows := make([][]tele.InlineButton, 0, len(kb))
	for _, row := range kb {
		r := make([]tele.InlineButton, 0, len(row))
		for _, b := range row {
			btn := tele.InlineButton{Text: b.Text, URL: b.URL, Data: b.Data}
			if b.SwitchInline {
				btn.InlineQueryChat = " "
			}
			r = append(r, btn)
		}
		rows = append(rows, r)
	}
	return &tele.ReplyMarkup{InlineKeyboard: rows}
}
