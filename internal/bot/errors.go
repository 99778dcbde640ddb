package bot

import (
	"context"
	"fmt"
	"html"
	"strings"
	"unicode/utf8"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

const (
	reportTextLimit  = 100
	reportTraceLimit = 2000
)

// reportError posts a handler failure to the logging chat. Without a logging
// chat the failure is only logged by the caller.
func (b *Bot) reportError(ctx context.Context, update *models.Update, cause any, stack []byte) {
	if b.reportChatID == 0 {
		return
	}

	params := &tgbot.SendMessageParams{
		ChatID:          b.reportChatID,
		Text:            formatErrorReport(update, cause, stack),
		ParseMode:       models.ParseModeHTML,
		MessageThreadID: b.reportThreadID,
	}
	if _, err := b.api.SendMessage(ctx, params); err != nil {
		b.contextLogger(ctx).Error("failed to send error report",
			zap.Int64("chatId", b.reportChatID),
			zap.Error(err),
		)
	}
}

func formatErrorReport(update *models.Update, cause any, stack []byte) string {
	var sb strings.Builder
	sb.WriteString("📛 <b>Bot error</b>\n\n")
	sb.WriteString(html.EscapeString(updateSummary(update)))
	fmt.Fprintf(&sb, "\n\nException: %s\nMessage: %s\n\n",
		html.EscapeString(fmt.Sprintf("%T", cause)),
		html.EscapeString(fmt.Sprint(cause)),
	)
	sb.WriteString("<pre>")
	sb.WriteString(html.EscapeString(lastBytes(string(stack), reportTraceLimit)))
	sb.WriteString("</pre>")
	return sb.String()
}

func updateSummary(update *models.Update) string {
	lines := []string{fmt.Sprintf("Update ID: %d", update.ID)}

	switch {
	case update.Message != nil:
		msg := update.Message
		lines = append(lines, "Type: Message")
		if msg.From != nil {
			lines = append(lines, "From: "+describeUser(msg.From))
		}
		lines = append(lines, fmt.Sprintf("Chat: %d (%s)", msg.Chat.ID, msg.Chat.Type))
		switch {
		case msg.Text != "":
			lines = append(lines, "Text: "+firstRunes(msg.Text, reportTextLimit))
		case msg.Caption != "":
			lines = append(lines, "Caption: "+firstRunes(msg.Caption, reportTextLimit))
		}
	case update.CallbackQuery != nil:
		cq := update.CallbackQuery
		lines = append(lines,
			"Type: CallbackQuery",
			"From: "+describeUser(&cq.From),
			"Data: "+cq.Data,
		)
		if cq.Message.Message != nil {
			lines = append(lines, fmt.Sprintf("Message ID: %d", cq.Message.Message.ID))
		}
	default:
		lines = append(lines, "Type: "+updateKind(update))
	}

	return strings.Join(lines, "\n")
}

func describeUser(user *models.User) string {
	username := "no username"
	if user.Username != "" {
		username = "@" + user.Username
	}
	return fmt.Sprintf("%d (%s)", user.ID, username)
}

func firstRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit]) + "..."
}

// lastBytes keeps the tail of s, starting on a rune boundary.
func lastBytes(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	start := len(s) - limit
	for start < len(s) && !utf8.RuneStart(s[start]) {
		start++
	}
	return s[start:]
}
