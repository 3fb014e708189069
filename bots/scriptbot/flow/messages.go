package flow

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/m3rciful/scriptbot/bots/scriptbot/models"
	"github.com/m3rciful/scriptbot/core/telegram/format"
)

const (
	textServices     = "🚀 *Our services*\nChoose a service:"
	textCreateLang   = "📁 *Create a file*\nChoose the language:"
	textRunLang      = "🔧 *Run a file*\nChoose the language of your file:"
	textUnavailable  = "⚠️ The service is temporarily unavailable, please try again later."
	textCancelled    = "❌ *Cancelled*\nBack to the main menu:"
	textMainMenu     = "🏠 *Main menu*"
	textSendToken    = "✅ *File received!*\n\n📤 Now send your bot token:"
	textTokenAsText  = "📤 Send the bot token as a text message."
	textTokenTooLong = "❌ That is too long for a bot token. Please send the token again."
	textDownloadFail = "❌ Could not download the file. Please send it again."
	textLibsAsText   = "📚 Send library names as text, one per line."
	textLibsDone     = "✅ *Libraries saved*\n\n🏠 Back to the main menu:"
	textNoLibraries  = "📚 No libraries registered yet."
	textNoBots       = "🤖 You have not registered any bots yet."
	textRunFailed    = "❌ The bot was registered but could not be started."
	textQuotaUsage   = "Usage: /quota <user_id>"
	textUserNotFound = "User not found."

	recentLibraries = 10
	tokenVisible    = 10
	maxTokenLen     = 256
)

func welcomeText(name string) string {
	if name == "" {
		name = "there"
	}
	return fmt.Sprintf("👋 Welcome, %s!\n\nChoose an option:", format.MD(name))
}

func quotaText(u *models.User) string {
	return fmt.Sprintf("⛔ *Bot limit reached*\n\nYou are using %d of %d bots.", u.ActiveBots, u.MaxBots)
}

func usageText(u *models.User) string {
	return fmt.Sprintf("📊 Bots: %d/%d", u.ActiveBots, u.MaxBots)
}

func awaitingFileText(lang models.Language) string {
	return fmt.Sprintf("📤 Send your %s file (%s):", lang.Title(), lang.Extension())
}

func awaitingCodeText(lang models.Language, finish string) string {
	return fmt.Sprintf("✍️ Send your %s code, one or more lines per message.\nSend %s when you are done.",
		lang.Title(), format.MD(finish))
}

func lineAddedText(code, finish string) string {
	return fmt.Sprintf("✅ Line added.\n\n📊 Total lines: %d\n💾 Keep sending code or send %s to finish.",
		strings.Count(code, "\n"), format.MD(finish))
}

func codeOnlyText(finish string) string {
	return fmt.Sprintf("✍️ Send your code as text, or %s to finish.", format.MD(finish))
}

func emptyCodeText(finish string) string {
	return fmt.Sprintf("📭 Nothing to save yet. Send some code first, then %s.", format.MD(finish))
}

func invalidFileText(reason string, lang models.Language) string {
	return fmt.Sprintf("❌ %s\n\n%s", format.MD(reason), awaitingFileText(lang))
}

func createdText(name string, lang models.Language, code string) string {
	return fmt.Sprintf("✅ *File saved!*\n\n📁 Name: %s\n🔤 Language: %s\n📊 Size: %d characters\n\n🏠 Main menu:",
		format.MD(name), lang.Title(), utf8.RuneCountInString(code))
}

func startedText(token string, lang models.Language, fileName string) string {
	return fmt.Sprintf("✅ *Token received!*\n\n🔐 Token: %s\n🔤 Language: %s\n📁 File: %s\n\n✅ Your bot is running!",
		format.MD(MaskToken(token)), lang.Title(), format.MD(fileName))
}

func librariesPromptText(names []string, finish string) string {
	var b strings.Builder
	b.WriteString("📚 *Install libraries*\n\nSend library names, one per line.\n")
	fmt.Fprintf(&b, "Send %s when you are done.", format.MD(finish))
	if len(names) > 0 {
		b.WriteString("\n\nAlready installed:\n")
		b.WriteString(libraryList(names, recentLibraries))
	}
	return b.String()
}

func libraryList(names []string, limit int) string {
	var b strings.Builder
	for i, n := range names {
		if limit > 0 && i == limit {
			b.WriteString("... and more")
			break
		}
		fmt.Fprintf(&b, "• %s\n", format.MD(n))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func libraryBatchText(accepted, rejected int, finish string) string {
	return fmt.Sprintf("✅ *Libraries processed*\n\naccepted: %d, rejected: %d\n\n💾 Keep sending libraries or send %s to finish.",
		accepted, rejected, format.MD(finish))
}

func finishHintText(finish string) string {
	return fmt.Sprintf("ℹ️ %s finishes writing a file or adding libraries. Nothing to finish right now.", format.MD(finish))
}

func botsText(bots []models.BotSummary, u *models.User) string {
	var b strings.Builder
	b.WriteString("🤖 *Your bots*\n\n")
	for _, bot := range bots {
		status := "⏸"
		if bot.IsActive {
			status = "▶️"
		}
		fmt.Fprintf(&b, "%s %s (%s)\n", status, format.MD(bot.Name), bot.Language.Title())
	}
	if u != nil {
		b.WriteString("\n")
		b.WriteString(usageText(u))
	}
	return b.String()
}

func userQuotaText(u *models.User) string {
	admin := ""
	if u.IsAdmin {
		admin = " (admin)"
	}
	return fmt.Sprintf("👤 User %d%s\n%s", u.UserID, admin, usageText(u))
}

// MaskToken keeps the first characters of a credential.
func MaskToken(token string) string {
	if utf8.RuneCountInString(token) <= tokenVisible {
		return token + "..."
	}
	return string([]rune(token)[:tokenVisible]) + "..."
}
