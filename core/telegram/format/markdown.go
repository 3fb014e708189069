// Package format prepares user supplied text for Telegram parse modes.
package format

import "strings"

// legacyMarkdown escapes the characters the legacy Markdown parse mode treats
// as entity delimiters.
var legacyMarkdown = strings.NewReplacer(
	`_`, `\_`,
	`*`, `\*`,
	"`", "\\`",
	`[`, `\[`,
)

// MD escapes text for tele.ModeMarkdown so file names, usernames and library
// names render verbatim.
func MD(text string) string {
	return legacyMarkdown.Replace(text)
}
