package bot

import (
	"context"
	"runtime/debug"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"github.com/Er1one/telegram-bot-template/internal/domain"
	"github.com/Er1one/telegram-bot-template/internal/observability"
)

const (
	kindMessage      = "message"
	kindCallback     = "callback_query"
	kindMyChatMember = "my_chat_member"
	kindOther        = "other"
)

// withUpdateContext tags the context with the update id and counts the
// update. A handler panic is logged and reported to the logging chat instead
// of taking the process down.
func (b *Bot) withUpdateContext(next tgbot.HandlerFunc) tgbot.HandlerFunc {
	return func(ctx context.Context, api *tgbot.Bot, update *models.Update) {
		ctx = observability.WithUpdateID(ctx, update.ID)
		b.metrics.IncUpdate(updateKind(update))

		defer func() {
			if r := recover(); r != nil {
				stack := debug.Stack()
				b.contextLogger(ctx).Error("update handler panicked",
					zap.String("kind", updateKind(update)),
					zap.Any("panic", r),
					zap.ByteString("stack", stack),
				)
				b.reportError(ctx, update, r, stack)
			}
		}()

		next(ctx, api, update)
	}
}

// antiflood drops messages silently and answers flooding callbacks with an
// alert. Gate errors let the update through.
func (b *Bot) antiflood(next tgbot.HandlerFunc) tgbot.HandlerFunc {
	return func(ctx context.Context, api *tgbot.Bot, update *models.Update) {
		from := sender(update)
		if from == nil || b.flood == nil {
			next(ctx, api, update)
			return
		}

		allowed, err := b.flood.Allow(ctx, from.ID)
		if err != nil {
			b.contextLogger(ctx).Warn("antiflood check failed", zap.Int64("userId", from.ID), zap.Error(err))
			next(ctx, api, update)
			return
		}
		if allowed {
			next(ctx, api, update)
			return
		}

		kind := updateKind(update)
		b.metrics.IncAntifloodDropped(kind)
		b.contextLogger(ctx).Debug("update dropped by antiflood",
			zap.Int64("userId", from.ID),
			zap.String("kind", kind),
		)

		if update.CallbackQuery != nil {
			locale := b.users.Locale(ctx, from.ID)
			b.answer(ctx, update.CallbackQuery.ID, b.i18n.T(locale, "antiflood-warning", nil), true)
		}
	}
}

// register keeps the user directory in sync with whoever sent the update.
func (b *Bot) register(next tgbot.HandlerFunc) tgbot.HandlerFunc {
	return func(ctx context.Context, api *tgbot.Bot, update *models.Update) {
		if from := sender(update); from != nil {
			if _, err := b.users.Register(ctx, profileOf(from)); err != nil {
				b.contextLogger(ctx).Warn("failed to register user", zap.Int64("userId", from.ID), zap.Error(err))
			}
		}
		next(ctx, api, update)
	}
}

func updateKind(update *models.Update) string {
	switch {
	case update.Message != nil:
		return kindMessage
	case update.CallbackQuery != nil:
		return kindCallback
	case update.MyChatMember != nil:
		return kindMyChatMember
	default:
		return kindOther
	}
}

// sender returns the user behind a message or callback update.
func sender(update *models.Update) *models.User {
	switch {
	case update.Message != nil:
		return update.Message.From
	case update.CallbackQuery != nil:
		return &update.CallbackQuery.From
	default:
		return nil
	}
}

func profileOf(user *models.User) domain.Profile {
	return domain.Profile{
		ID:           user.ID,
		IsBot:        user.IsBot,
		Username:     user.Username,
		FirstName:    user.FirstName,
		LastName:     user.LastName,
		LanguageCode: user.LanguageCode,
	}
}
