package bot

import (
	"context"
	"fmt"
	"strings"

	"vaultbot/internal/transport"
	"vaultbot/pkg/logx"
)

const (
	minQueryLen    = 3
	textQueryShort = "Send at least 3 characters to search."
	textNoResults  = "No files match that query."
)

// handleSearch treats plain private-chat text as a file name query.
func (s *Service) handleSearch(ctx context.Context, m *transport.Message, query string) {
	if len([]rune(query)) < minQueryLen {
		s.reply(ctx, m.ChatID, textQueryShort, nil)
		return
	}
	if s.store == nil {
		s.reply(ctx, m.ChatID, textNeedStore, nil)
		return
	}

	files, err := s.store.SearchFiles(ctx, query)
	if err != nil {
		s.log.Warn("search failed", logx.String("query", query), logx.Err(err))
		s.reply(ctx, m.ChatID, textNoResults, nil)
		return
	}
	if len(files) == 0 {
		s.reply(ctx, m.ChatID, textNoResults, nil)
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d file(s):\n\n", len(files))
	links := s.links()
	for _, f := range files {
		fmt.Fprintf(&b, "• [%s](%s) (%s)\n", escapeMarkdown(f.Name), links.Content(f.MsgID), f.Size)
	}
	s.reply(ctx, m.ChatID, b.String(), &transport.SendOptions{
		ParseMode:      "Markdown",
		DisablePreview: true,
	})
}

func escapeMarkdown(s string) string {
	r := strings.NewReplacer("[", "\\[", "]", "\\]", "(", "\\(", ")", "\\)", "_", "\\_", "*", "\\*", "`", "\\`")
	return r.Replace(s)
}
