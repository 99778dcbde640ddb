// Package bot handles interactive Telegram updates: commands, inline menus,
// language selection and block tracking. Bulk delivery lives in the
// broadcast package; this package only queues broadcasts.
package bot

import (
	"context"
	"fmt"
	"strings"
	"sync"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"github.com/Er1one/telegram-bot-template/internal/domain"
	"github.com/Er1one/telegram-bot-template/internal/observability"
	"github.com/Er1one/telegram-bot-template/internal/service"
)

// Users is the user directory as seen by update handlers.
type Users interface {
	Register(ctx context.Context, profile domain.Profile) (*domain.User, error)
	SetBanned(ctx context.Context, userID int64, banned bool) (bool, error)
	Locale(ctx context.Context, userID int64) string
	SetLocale(ctx context.Context, userID int64, locale string) error
}

type Broadcasts interface {
	Submit(ctx context.Context, cmd service.BroadcastCommand) (*domain.BroadcastRun, error)
}

// FloodGate admits or drops one user action.
type FloodGate interface {
	Allow(ctx context.Context, userID int64) (bool, error)
}

type Translator interface {
	T(locale, key string, vars map[string]any) string
}

type Options struct {
	Token     string
	ServerURL string
	AdminIDs  []int64
	SkipGetMe bool
	// Username lets command matching reject mentions of other bots before
	// LoadIdentity runs.
	Username string
	// LoggingChatID receives handler panic reports when non-zero, in the
	// forum topic ErrorsThreadID.
	LoggingChatID  int64
	ErrorsThreadID int
}

var allowedUpdates = []string{"message", "callback_query", "my_chat_member"}

type Bot struct {
	api        *tgbot.Bot
	users      Users
	broadcasts Broadcasts
	flood      FloodGate
	i18n       Translator
	admins     map[int64]struct{}
	logger     *zap.Logger
	metrics    *observability.Metrics

	reportChatID   int64
	reportThreadID int

	mu       sync.RWMutex
	username string
}

func New(
	opts Options,
	users Users,
	broadcasts Broadcasts,
	flood FloodGate,
	i18n Translator,
	logger *zap.Logger,
) (*Bot, error) {
	if strings.TrimSpace(opts.Token) == "" {
		return nil, fmt.Errorf("bot token is required")
	}
	if users == nil {
		return nil, fmt.Errorf("users are required")
	}
	if i18n == nil {
		return nil, fmt.Errorf("translator is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	b := &Bot{
		users:      users,
		broadcasts: broadcasts,
		flood:      flood,
		i18n:       i18n,
		admins:     make(map[int64]struct{}, len(opts.AdminIDs)),
		logger:     logger,

		reportChatID:   opts.LoggingChatID,
		reportThreadID: opts.ErrorsThreadID,
		username:       strings.TrimPrefix(opts.Username, "@"),
	}
	for _, id := range opts.AdminIDs {
		b.admins[id] = struct{}{}
	}

	options := []tgbot.Option{
		tgbot.WithDefaultHandler(b.handleDefault),
		tgbot.WithMiddlewares(b.withUpdateContext, b.antiflood, b.register),
	}
	if opts.ServerURL != "" {
		options = append(options, tgbot.WithServerURL(strings.TrimRight(opts.ServerURL, "/")))
	}
	if opts.SkipGetMe {
		options = append(options, tgbot.WithSkipGetMe())
	}

	api, err := tgbot.New(opts.Token, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	b.api = api
	b.registerHandlers()

	return b, nil
}

func (b *Bot) SetMetrics(metrics *observability.Metrics) {
	if b == nil {
		return
	}
	b.metrics = metrics
}

func (b *Bot) registerHandlers() {
	commands := map[string]tgbot.HandlerFunc{
		"/start":         b.handleStart,
		"/help":          b.handleHelp,
		"/menu":          b.handleMenu,
		"/profile":       b.handleProfile,
		"/language":      b.handleLanguage,
		broadcastCommand: b.handleBroadcast,
		statsCommand:     b.handleStats,
	}
	for name, handler := range commands {
		b.api.RegisterHandlerMatchFunc(b.matchCommand(name), handler)
	}

	callbacks := map[string]tgbot.HandlerFunc{
		callbackMainMenu: b.handleMainMenuCallback,
		callbackProfile:  b.handleProfileCallback,
		callbackSettings: b.handleSettingsCallback,
		callbackHelp:     b.handleHelpCallback,
		callbackLanguage: b.handleLanguageCallback,
	}
	for data, handler := range callbacks {
		b.api.RegisterHandler(tgbot.HandlerTypeCallbackQueryData, data, tgbot.MatchTypeExact, handler)
	}
	b.api.RegisterHandler(tgbot.HandlerTypeCallbackQueryData, callbackSetLanguagePrefix, tgbot.MatchTypePrefix, b.handleSetLanguage)
}

// ProcessUpdate feeds one webhook update through middlewares and handlers.
func (b *Bot) ProcessUpdate(ctx context.Context, update *models.Update) {
	b.api.ProcessUpdate(ctx, update)
}

// Poll receives updates with getUpdates until ctx is done. Any registered
// webhook is removed first since Telegram refuses to serve both.
func (b *Bot) Poll(ctx context.Context) error {
	if _, err := b.api.DeleteWebhook(ctx, &tgbot.DeleteWebhookParams{}); err != nil {
		return fmt.Errorf("failed to delete webhook: %w", err)
	}

	b.logger.Info("bot polling started")
	b.api.Start(ctx)
	b.logger.Info("bot polling stopped")
	return nil
}

// EnsureWebhook registers url with Telegram unless it is already current.
func (b *Bot) EnsureWebhook(ctx context.Context, url, secret string) error {
	info, err := b.api.GetWebhookInfo(ctx)
	if err != nil {
		b.logger.Warn("failed to read webhook info", zap.Error(err))
	} else if info != nil && info.URL == url {
		b.logger.Info("webhook already registered", zap.String("url", url))
		return nil
	}

	if _, err := b.api.SetWebhook(ctx, &tgbot.SetWebhookParams{
		URL:            url,
		SecretToken:    secret,
		AllowedUpdates: allowedUpdates,
	}); err != nil {
		return fmt.Errorf("failed to set webhook: %w", err)
	}

	b.logger.Info("webhook registered", zap.String("url", url))
	return nil
}

func (b *Bot) isAdmin(userID int64) bool {
	_, ok := b.admins[userID]
	return ok
}

func (b *Bot) contextLogger(ctx context.Context) *zap.Logger {
	return observability.WithContextLogger(b.logger, ctx)
}
