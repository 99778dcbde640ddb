package bot

import (
	"context"
	"errors"
	"html"
	"strconv"
	"strings"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"github.com/Er1one/telegram-bot-template/internal/domain"
	"github.com/Er1one/telegram-bot-template/internal/service"
)

func (b *Bot) handleStart(ctx context.Context, _ *tgbot.Bot, update *models.Update) {
	msg := update.Message
	if !isPrivate(msg) {
		return
	}

	locale := b.users.Locale(ctx, msg.From.ID)
	b.contextLogger(ctx).Info("user started bot", zap.Int64("userId", msg.From.ID))

	text := b.i18n.T(locale, "welcome", map[string]any{"name": html.EscapeString(msg.From.FirstName)})
	b.send(ctx, msg.Chat.ID, text, b.mainMenuKeyboard(locale))
}

func (b *Bot) handleHelp(ctx context.Context, _ *tgbot.Bot, update *models.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}

	locale := b.users.Locale(ctx, msg.From.ID)
	key := "help-text"
	if msg.Chat.Type != models.ChatTypePrivate {
		key = "help-text-chat"
	}
	b.send(ctx, msg.Chat.ID, b.i18n.T(locale, key, nil), nil)
}

func (b *Bot) handleMenu(ctx context.Context, _ *tgbot.Bot, update *models.Update) {
	msg := update.Message
	if !isPrivate(msg) {
		return
	}

	locale := b.users.Locale(ctx, msg.From.ID)
	b.send(ctx, msg.Chat.ID, b.i18n.T(locale, "main-menu", nil), b.mainMenuKeyboard(locale))
}

func (b *Bot) handleProfile(ctx context.Context, _ *tgbot.Bot, update *models.Update) {
	msg := update.Message
	if !isPrivate(msg) {
		return
	}

	locale := b.users.Locale(ctx, msg.From.ID)
	b.send(ctx, msg.Chat.ID, b.profileText(locale, msg.From), nil)
}

func (b *Bot) handleLanguage(ctx context.Context, _ *tgbot.Bot, update *models.Update) {
	msg := update.Message
	if !isPrivate(msg) {
		return
	}

	locale := b.users.Locale(ctx, msg.From.ID)
	b.send(ctx, msg.Chat.ID, b.i18n.T(locale, "select-language", nil), languageKeyboard())
}

// handleBroadcast queues "/broadcast <text>" from an admin's private chat.
func (b *Bot) handleBroadcast(ctx context.Context, _ *tgbot.Bot, update *models.Update) {
	msg := update.Message
	if !isPrivate(msg) {
		return
	}

	cmd, ok := parseCommand(msg.Text)
	if !ok || cmd.name != broadcastCommand {
		return
	}

	locale := b.users.Locale(ctx, msg.From.ID)
	if !b.isAdmin(msg.From.ID) {
		b.send(ctx, msg.Chat.ID, b.i18n.T(locale, "admin-only", nil), nil)
		return
	}

	text := cmd.args
	if text == "" || b.broadcasts == nil {
		b.send(ctx, msg.Chat.ID, b.i18n.T(locale, "broadcast-usage", nil), nil)
		return
	}

	run, err := b.broadcasts.Submit(ctx, service.BroadcastCommand{RequestedBy: msg.From.ID, Text: text})
	if err != nil {
		b.contextLogger(ctx).Warn("failed to queue broadcast", zap.Int64("adminId", msg.From.ID), zap.Error(err))
		b.send(ctx, msg.Chat.ID, "⚠️ "+html.EscapeString(err.Error()), nil)
		return
	}

	b.contextLogger(ctx).Info("broadcast requested", zap.Int64("adminId", msg.From.ID), zap.String("runId", run.ID))
	b.send(ctx, msg.Chat.ID, b.i18n.T(locale, "broadcast-queued", map[string]any{"run_id": run.ID}), nil)
}

// handleStats shows member statistics to chat administrators in groups.
// Everyone else is ignored without a reply.
func (b *Bot) handleStats(ctx context.Context, _ *tgbot.Bot, update *models.Update) {
	msg := update.Message
	if !isGroup(msg) || !b.isChatAdmin(ctx, msg.Chat.ID, msg.From.ID) {
		return
	}

	count, err := b.api.GetChatMemberCount(ctx, &tgbot.GetChatMemberCountParams{ChatID: msg.Chat.ID})
	if err != nil {
		b.contextLogger(ctx).Warn("failed to get chat member count", zap.Int64("chatId", msg.Chat.ID), zap.Error(err))
		return
	}

	locale := b.users.Locale(ctx, msg.From.ID)
	b.send(ctx, msg.Chat.ID, b.i18n.T(locale, "chat-stats", map[string]any{
		"member_count": count,
		"chat_title":   html.EscapeString(msg.Chat.Title),
		"chat_id":      strconv.FormatInt(msg.Chat.ID, 10),
	}), nil)

	b.contextLogger(ctx).Debug("chat stats requested", zap.Int64("userId", msg.From.ID), zap.Int64("chatId", msg.Chat.ID))
}

// isChatAdmin reports whether userID is the creator or an administrator of
// chatID. Lookup errors count as not an admin.
func (b *Bot) isChatAdmin(ctx context.Context, chatID, userID int64) bool {
	member, err := b.api.GetChatMember(ctx, &tgbot.GetChatMemberParams{ChatID: chatID, UserID: userID})
	if err != nil {
		b.contextLogger(ctx).Error("failed to check chat admin status",
			zap.Int64("chatId", chatID),
			zap.Int64("userId", userID),
			zap.Error(err),
		)
		return false
	}
	return member.Type == models.ChatMemberTypeOwner || member.Type == models.ChatMemberTypeAdministrator
}

func (b *Bot) handleMainMenuCallback(ctx context.Context, _ *tgbot.Bot, update *models.Update) {
	cq := update.CallbackQuery
	locale := b.users.Locale(ctx, cq.From.ID)
	b.edit(ctx, cq, b.i18n.T(locale, "main-menu", nil), b.mainMenuKeyboard(locale))
}

func (b *Bot) handleProfileCallback(ctx context.Context, _ *tgbot.Bot, update *models.Update) {
	cq := update.CallbackQuery
	locale := b.users.Locale(ctx, cq.From.ID)
	b.edit(ctx, cq, b.profileText(locale, &cq.From), b.backKeyboard(locale))
}

func (b *Bot) handleSettingsCallback(ctx context.Context, _ *tgbot.Bot, update *models.Update) {
	cq := update.CallbackQuery
	locale := b.users.Locale(ctx, cq.From.ID)
	b.edit(ctx, cq, b.i18n.T(locale, "settings-menu", nil), b.settingsKeyboard(locale))
}

func (b *Bot) handleHelpCallback(ctx context.Context, _ *tgbot.Bot, update *models.Update) {
	cq := update.CallbackQuery
	locale := b.users.Locale(ctx, cq.From.ID)
	b.edit(ctx, cq, b.i18n.T(locale, "help-text", nil), b.backKeyboard(locale))
}

func (b *Bot) handleLanguageCallback(ctx context.Context, _ *tgbot.Bot, update *models.Update) {
	cq := update.CallbackQuery
	locale := b.users.Locale(ctx, cq.From.ID)
	b.edit(ctx, cq, b.i18n.T(locale, "select-language", nil), languageKeyboard())
}

func (b *Bot) handleSetLanguage(ctx context.Context, _ *tgbot.Bot, update *models.Update) {
	cq := update.CallbackQuery
	requested := strings.TrimPrefix(cq.Data, callbackSetLanguagePrefix)

	if err := b.users.SetLocale(ctx, cq.From.ID, requested); err != nil {
		if !errors.Is(err, domain.ErrValidation) {
			b.contextLogger(ctx).Error("failed to change language", zap.Int64("userId", cq.From.ID), zap.Error(err))
		}
		locale := b.users.Locale(ctx, cq.From.ID)
		b.answer(ctx, cq.ID, b.i18n.T(locale, "language-error", nil), true)
		return
	}

	b.contextLogger(ctx).Info("user changed language", zap.Int64("userId", cq.From.ID), zap.String("locale", requested))
	b.edit(ctx, cq, b.i18n.T(requested, "language-changed", nil), b.settingsKeyboard(requested))
}

func (b *Bot) handleDefault(ctx context.Context, _ *tgbot.Bot, update *models.Update) {
	if update.MyChatMember != nil {
		b.handleMyChatMember(ctx, update.MyChatMember)
	}
}

// handleMyChatMember tracks users blocking and unblocking the bot in private
// chats; group membership changes are only logged.
func (b *Bot) handleMyChatMember(ctx context.Context, event *models.ChatMemberUpdated) {
	logger := b.contextLogger(ctx)

	if event.Chat.Type != models.ChatTypePrivate {
		logger.Info("bot membership changed in chat",
			zap.Int64("chatId", event.Chat.ID),
			zap.String("status", string(event.NewChatMember.Type)),
		)
		return
	}

	var banned bool
	switch event.NewChatMember.Type {
	case models.ChatMemberTypeBanned:
		banned = true
	case models.ChatMemberTypeMember:
		banned = false
	default:
		return
	}

	if _, err := b.users.SetBanned(ctx, event.From.ID, banned); err != nil {
		logger.Error("failed to update ban flag", zap.Int64("userId", event.From.ID), zap.Error(err))
	}
}

func (b *Bot) profileText(locale string, user *models.User) string {
	username := b.i18n.T(locale, "no-username", nil)
	if user.Username != "" {
		username = "@" + html.EscapeString(user.Username)
	}

	return b.i18n.T(locale, "profile", map[string]any{
		"user_id":    user.ID,
		"username":   username,
		"first_name": html.EscapeString(user.FirstName),
		"language":   locale,
	})
}

func (b *Bot) send(ctx context.Context, chatID int64, text string, markup *models.InlineKeyboardMarkup) {
	params := &tgbot.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: models.ParseModeHTML,
	}
	if markup != nil {
		params.ReplyMarkup = markup
	}

	if _, err := b.api.SendMessage(ctx, params); err != nil {
		b.contextLogger(ctx).Warn("failed to send message", zap.Int64("chatId", chatID), zap.Error(err))
	}
}

// edit replaces the menu message a callback came from and acknowledges the
// callback. Without an accessible message it sends a new one instead.
func (b *Bot) edit(ctx context.Context, cq *models.CallbackQuery, text string, markup *models.InlineKeyboardMarkup) {
	defer b.answer(ctx, cq.ID, "", false)

	msg := cq.Message.Message
	if msg == nil {
		b.send(ctx, cq.From.ID, text, markup)
		return
	}

	params := &tgbot.EditMessageTextParams{
		ChatID:    msg.Chat.ID,
		MessageID: msg.ID,
		Text:      text,
		ParseMode: models.ParseModeHTML,
	}
	if markup != nil {
		params.ReplyMarkup = markup
	}

	if _, err := b.api.EditMessageText(ctx, params); err != nil {
		b.contextLogger(ctx).Warn("failed to edit message", zap.Int64("chatId", msg.Chat.ID), zap.Error(err))
	}
}

func (b *Bot) answer(ctx context.Context, callbackID, text string, alert bool) {
	if _, err := b.api.AnswerCallbackQuery(ctx, &tgbot.AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
		Text:            text,
		ShowAlert:       alert,
	}); err != nil {
		b.contextLogger(ctx).Warn("failed to answer callback", zap.Error(err))
	}
}

func isPrivate(msg *models.Message) bool {
	return msg != nil && msg.From != nil && msg.Chat.Type == models.ChatTypePrivate
}

func isGroup(msg *models.Message) bool {
	return msg != nil && msg.From != nil &&
		(msg.Chat.Type == models.ChatTypeGroup || msg.Chat.Type == models.ChatTypeSupergroup)
}
