package domain

import "time"

// TelegramServiceUserID is the account Telegram uses for service messages
// (profile photo updates, gifts). It is never registered as a bot user.
const TelegramServiceUserID int64 = 777000

// User is a Telegram user known to the bot.
type User struct {
	ID           int64
	LanguageCode string
	Username     *string
	FullName     string
	IsBanned     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Profile is the subset of Telegram user data the bot keeps in sync.
type Profile struct {
	ID           int64
	IsBot        bool
	Username     string
	FirstName    string
	LastName     string
	LanguageCode string
}

func (p Profile) FullName() string {
	if p.LastName == "" {
		return p.FirstName
	}
	return p.FirstName + " " + p.LastName
}

// Registrable reports whether the profile belongs to a real person that
// should be stored in the user directory.
func (p Profile) Registrable() bool {
	return p.ID != 0 && !p.IsBot && p.ID != TelegramServiceUserID
}
