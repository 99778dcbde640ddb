package bot

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

const (
	broadcastCommand = "/broadcast"
	statsCommand     = "/stats"
)

// command is a parsed "/name@bot args" message.
type command struct {
	name    string
	mention string
	args    string
}

// parseCommand splits a command message into its name, optional @mention and
// the trimmed remainder. Text that does not start with "/" is not a command.
func parseCommand(text string) (command, bool) {
	if !strings.HasPrefix(text, "/") {
		return command{}, false
	}

	head, args := text, ""
	if i := strings.IndexFunc(text, unicode.IsSpace); i >= 0 {
		head, args = text[:i], strings.TrimSpace(text[i:])
	}

	name, mention, _ := strings.Cut(head, "@")
	if name == "/" {
		return command{}, false
	}
	return command{name: name, mention: mention, args: args}, true
}

// matchCommand accepts "/name", "/name args" and "/name@ThisBot args".
// A mention of another bot is rejected once the bot username is known.
func (b *Bot) matchCommand(name string) tgbot.MatchFunc {
	return func(update *models.Update) bool {
		if update.Message == nil {
			return false
		}
		cmd, ok := parseCommand(update.Message.Text)
		if !ok || cmd.name != name {
			return false
		}
		return b.addressedToMe(cmd.mention)
	}
}

func (b *Bot) addressedToMe(mention string) bool {
	if mention == "" {
		return true
	}
	username := b.Username()
	return username == "" || strings.EqualFold(mention, username)
}

// Username is the bot's own username, empty until LoadIdentity succeeds or
// Options.Username is set.
func (b *Bot) Username() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.username
}

// LoadIdentity asks Telegram for the bot's username so commands addressed to
// other bots in groups are ignored.
func (b *Bot) LoadIdentity(ctx context.Context) error {
	me, err := b.api.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("failed to get bot identity: %w", err)
	}

	b.mu.Lock()
	b.username = me.Username
	b.mu.Unlock()

	b.logger.Info("bot identity loaded", zap.String("username", me.Username))
	return nil
}
