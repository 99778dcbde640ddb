// Package message builds Bot API send calls from a reusable message template.
package message

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Er1one/telegram-bot-template/internal/domain"
	"github.com/Er1one/telegram-bot-template/internal/provider"
)

const (
	ParseModeHTML = "HTML"
	emptyText     = "..."
)

// Caller is the Bot API capability a bound template sends through.
type Caller interface {
	Call(ctx context.Context, method string, payload any) (*provider.Response, error)
}

type Button struct {
	Text         string `json:"text"`
	URL          string `json:"url,omitempty"`
	CallbackData string `json:"callback_data,omitempty"`
}

// Keyboard is an inline keyboard, one slice per row.
type Keyboard [][]Button

// Template describes one outgoing message. Photo, Photos and Document are
// media sources: a URL or a Telegram file_id.
type Template struct {
	Text      string
	Photo     string
	Photos    []string
	Document  string
	Buttons   Keyboard
	ParseMode string
}

func (t Template) Validate() error {
	hasPhoto := strings.TrimSpace(t.Photo) != ""
	hasPhotos := len(t.Photos) > 0
	hasDocument := strings.TrimSpace(t.Document) != ""

	if hasPhoto && hasPhotos {
		return fmt.Errorf("%w: photo and photos are mutually exclusive", domain.ErrValidation)
	}
	if (hasPhoto || hasPhotos) && hasDocument {
		return fmt.Errorf("%w: photos and document cannot be combined", domain.ErrValidation)
	}
	if len(t.Photos) > domain.MaxMediaGroup {
		return fmt.Errorf("%w: at most %d photos allowed", domain.ErrValidation, domain.MaxMediaGroup)
	}
	for i, photo := range t.Photos {
		if strings.TrimSpace(photo) == "" {
			return fmt.Errorf("%w: photo %d is empty", domain.ErrValidation, i+1)
		}
	}
	if !hasPhoto && !hasPhotos && !hasDocument && strings.TrimSpace(t.Text) == "" {
		return fmt.Errorf("%w: text or media is required", domain.ErrValidation)
	}
	for _, row := range t.Buttons {
		for _, button := range row {
			if strings.TrimSpace(button.Text) == "" {
				return fmt.Errorf("%w: button text is required", domain.ErrValidation)
			}
			if button.URL == "" && button.CallbackData == "" {
				return fmt.Errorf("%w: button %q needs a url or callback data", domain.ErrValidation, button.Text)
			}
		}
	}

	return nil
}

// Bind validates the template and attaches it to a Bot API caller.
func (t Template) Bind(caller Caller) (*Bound, error) {
	if caller == nil {
		return nil, errors.New("caller is required")
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}

	bound := t
	// A single-photo group is sent as a plain photo.
	if len(bound.Photos) == 1 {
		bound.Photo = bound.Photos[0]
		bound.Photos = nil
	}
	if bound.ParseMode == "" {
		bound.ParseMode = ParseModeHTML
	}

	return &Bound{tmpl: bound, caller: caller}, nil
}

// Bound is a validated template ready to be sent to any chat.
type Bound struct {
	tmpl   Template
	caller Caller
}

// Send delivers the message to chatID and classifies the outcome. A media
// group with buttons counts as delivered only if the follow-up message with
// the keyboard is delivered too; that case makes two Bot API calls, see
// CallsPerSend.
func (b *Bound) Send(ctx context.Context, chatID int64) provider.Result {
	return provider.Classify(b.Deliver(ctx, chatID))
}

// CallsPerSend is the number of Bot API calls one Send makes.
func (b *Bound) CallsPerSend() int {
	if len(b.tmpl.Photos) > 0 && len(b.tmpl.Buttons) > 0 {
		return 2
	}
	return 1
}

// Deliver is Send without classification.
func (b *Bound) Deliver(ctx context.Context, chatID int64) error {
	t := b.tmpl

	switch {
	case len(t.Photos) > 0:
		if _, err := b.caller.Call(ctx, "sendMediaGroup", b.mediaGroupPayload(chatID)); err != nil {
			return err
		}
		if len(t.Buttons) == 0 {
			return nil
		}
		_, err := b.caller.Call(ctx, "sendMessage", b.textPayload(chatID))
		return err
	case t.Document != "":
		_, err := b.caller.Call(ctx, "sendDocument", b.mediaPayload(chatID, "document", t.Document))
		return err
	case t.Photo != "":
		_, err := b.caller.Call(ctx, "sendPhoto", b.mediaPayload(chatID, "photo", t.Photo))
		return err
	default:
		_, err := b.caller.Call(ctx, "sendMessage", b.textPayload(chatID))
		return err
	}
}

func (b *Bound) textPayload(chatID int64) map[string]any {
	text := b.tmpl.Text
	if strings.TrimSpace(text) == "" {
		text = emptyText
	}

	payload := map[string]any{
		"chat_id":    chatID,
		"text":       text,
		"parse_mode": b.tmpl.ParseMode,
	}
	b.attachKeyboard(payload)
	return payload
}

func (b *Bound) mediaPayload(chatID int64, field, source string) map[string]any {
	payload := map[string]any{
		"chat_id": chatID,
		field:     source,
	}
	if b.tmpl.Text != "" {
		payload["caption"] = b.tmpl.Text
		payload["parse_mode"] = b.tmpl.ParseMode
	}
	b.attachKeyboard(payload)
	return payload
}

// mediaGroupPayload puts the caption on the first photo only.
func (b *Bound) mediaGroupPayload(chatID int64) map[string]any {
	media := make([]map[string]any, 0, len(b.tmpl.Photos))
	for i, photo := range b.tmpl.Photos {
		item := map[string]any{
			"type":  "photo",
			"media": photo,
		}
		if i == 0 && b.tmpl.Text != "" {
			item["caption"] = b.tmpl.Text
			item["parse_mode"] = b.tmpl.ParseMode
		}
		media = append(media, item)
	}

	return map[string]any{
		"chat_id": chatID,
		"media":   media,
	}
}

func (b *Bound) attachKeyboard(payload map[string]any) {
	if len(b.tmpl.Buttons) == 0 {
		return
	}
	payload["reply_markup"] = map[string]any{
		"inline_keyboard": b.tmpl.Buttons,
	}
}
