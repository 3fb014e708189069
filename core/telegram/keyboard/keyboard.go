// Package keyboard builds inline reply markups.
package keyboard

import tele "gopkg.in/telebot.v4"

// Button is one inline button; Unique becomes the callback key.
type Button struct {
	Text   string
	Unique string
	Data   string
}

// Inline builds a markup from explicit rows. Empty rows are dropped and a
// markup without buttons is nil, so callers can send plain messages.
func Inline(rows ...[]Button) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		line := make([]tele.InlineButton, 0, len(row))
		for _, b := range row {
			line = append(line, *markup.Data(b.Text, b.Unique, b.Data).Inline())
		}
		markup.InlineKeyboard = append(markup.InlineKeyboard, line)
	}
	if len(markup.InlineKeyboard) == 0 {
		return nil
	}
	return markup
}

// Column places every button on its own row.
func Column(buttons []Button) *tele.ReplyMarkup {
	return Layout(buttons)
}

// Layout splits buttons into rows of the given sizes; buttons left over
// after the sizes are used up get one row each.
func Layout(buttons []Button, sizes ...int) *tele.ReplyMarkup {
	var rows [][]Button
	rest := buttons
	for _, n := range sizes {
		if len(rest) == 0 {
			break
		}
		n = max(1, min(n, len(rest)))
		rows = append(rows, rest[:n])
		rest = rest[n:]
	}
	for i := range rest {
		rows = append(rows, rest[i:i+1])
	}
	return Inline(rows...)
}
