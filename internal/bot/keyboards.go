package bot

import "github.com/go-telegram/bot/models"

const (
	callbackMainMenu          = "menu:main"
	callbackProfile           = "menu:profile"
	callbackSettings          = "menu:settings"
	callbackHelp              = "menu:help"
	callbackLanguage          = "settings:language"
	callbackSetLanguagePrefix = "lang:"
)

type languageOption struct {
	code  string
	label string
}

var languageOptions = []languageOption{
	{code: "ru", label: "🇷🇺 Русский"},
	{code: "en", label: "🇬🇧 English"},
}

func (b *Bot) mainMenuKeyboard(locale string) *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{{Text: b.i18n.T(locale, "menu-profile", nil), CallbackData: callbackProfile}},
			{
				{Text: b.i18n.T(locale, "menu-settings", nil), CallbackData: callbackSettings},
				{Text: b.i18n.T(locale, "menu-help", nil), CallbackData: callbackHelp},
			},
		},
	}
}

func (b *Bot) settingsKeyboard(locale string) *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{{Text: b.i18n.T(locale, "settings-language", nil), CallbackData: callbackLanguage}},
			{{Text: b.i18n.T(locale, "back-button", nil), CallbackData: callbackMainMenu}},
		},
	}
}

func (b *Bot) backKeyboard(locale string) *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{{Text: b.i18n.T(locale, "back-button", nil), CallbackData: callbackMainMenu}},
		},
	}
}

func languageKeyboard() *models.InlineKeyboardMarkup {
	row := make([]models.InlineKeyboardButton, 0, len(languageOptions))
	for _, option := range languageOptions {
		row = append(row, models.InlineKeyboardButton{
			Text:         option.label,
			CallbackData: callbackSetLanguagePrefix + option.code,
		})
	}
	return &models.InlineKeyboardMarkup{InlineKeyboard: [][]models.InlineKeyboardButton{row}}
}
