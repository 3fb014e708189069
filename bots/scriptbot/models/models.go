// Package models holds the persistent records of scriptbot.
package models

import "time"

// Language is a supported script language.
type Language string

const (
	Python Language = "python"
	PHP    Language = "php"
)

// Languages lists supported languages in menu order.
var Languages = []Language{Python, PHP}

// ParseLanguage accepts exactly "python" or "php".
func ParseLanguage(s string) (Language, bool) {
	switch Language(s) {
	case Python, PHP:
		return Language(s), true
	}
	return "", false
}

// Extension returns the file extension including the dot.
func (l Language) Extension() string {
	switch l {
	case Python:
		return ".py"
	case PHP:
		return ".php"
	}
	return ""
}

// Title is the human readable language name.
func (l Language) Title() string {
	switch l {
	case Python:
		return "Python"
	case PHP:
		return "PHP"
	}
	return string(l)
}

// User is a Telegram account known to the bot.
type User struct {
	UserID      int64     `db:"user_id"`
	Username    *string   `db:"username"`
	DisplayName *string   `db:"display_name"`
	IsAdmin     bool      `db:"is_admin"`
	ActiveBots  int       `db:"active_bots"`
	MaxBots     int       `db:"max_bots"`
	CreatedAt   time.Time `db:"created_at"`
}

// CanRegister reports whether the user is below its quota.
func (u *User) CanRegister() bool {
	return u.ActiveBots < u.MaxBots
}

// NewBot is the input of a bot registration.
type NewBot struct {
	UserID   int64
	Name     string
	Language Language
	Token    string
	// Code is nil for uploaded files.
	Code     *string
	FilePath string
}

// BotSummary is a registered bot as listed to its owner.
type BotSummary struct {
	ID        int64     `db:"id"`
	Name      string    `db:"bot_name"`
	Language  Language  `db:"language"`
	FilePath  string    `db:"file_path"`
	IsActive  bool      `db:"is_active"`
	CreatedAt time.Time `db:"created_at"`
}
