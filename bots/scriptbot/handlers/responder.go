package handlers

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/m3rciful/scriptbot/bots/scriptbot/flow"
	"github.com/m3rciful/scriptbot/bots/scriptbot/menu"
	"github.com/m3rciful/scriptbot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/scriptbot/core/telegram/helpers"
	"github.com/m3rciful/scriptbot/core/telegram/keyboard"

	tele "gopkg.in/telebot.v4"
)

var errNoDocument = errors.New("message has no document")

// markupFor renders a menu as an inline keyboard; unknown ids yield nil.
func markupFor(id menu.ID) *tele.ReplyMarkup {
	items := menu.Items(id)
	if len(items) == 0 {
		return nil
	}
	btns := make([]keyboard.Button, 0, len(items))
	for _, it := range items {
		btns = append(btns, keyboard.Button{Text: it.Label, Unique: it.Action})
	}
	switch id {
	case menu.LanguageChoice, menu.RunLanguage:
		// Languages share the first row, the back button gets its own.
		return keyboard.Layout(btns, len(btns)-1)
	}
	return keyboard.Column(btns)
}

// teleResponder answers through the telebot context of the current update.
type teleResponder struct {
	c tele.Context
}

func (r teleResponder) Send(_ context.Context, rep flow.Reply) error {
	return tghelpers.SendMD(r.c, rep.Text, markupFor(rep.Menu))
}

func (r teleResponder) Edit(_ context.Context, rep flow.Reply) error {
	if r.c.Callback() == nil {
		return tghelpers.SendMD(r.c, rep.Text, markupFor(rep.Menu))
	}
	return tghelpers.EditOrSendMD(r.c, rep.Text, markupFor(rep.Menu))
}

// Download fetches the message document into dst, a staging file owned by
// this event. The telebot client has no context support, so a cancelled
// download is abandoned and dst removed once the transfer ends.
func (r teleResponder) Download(ctx context.Context, dst string) error {
	msg := r.c.Message()
	if msg == nil || msg.Document == nil {
		return errNoDocument
	}
	file := msg.Document.File
	done := make(chan error, 1)
	go func() {
		err := r.c.Bot().Download(&file, dst)
		if ctx.Err() != nil {
			_ = os.Remove(dst)
		}
		done <- err
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// eventFrom translates the telebot update into a flow event.
func eventFrom(c tele.Context) flow.Event {
	var ev flow.Event
	ev.ChatID, ev.UserID = tghelpers.Identity(c)
	if u := c.Sender(); u != nil {
		ev.Username = u.Username
		ev.DisplayName = strings.TrimSpace(u.FirstName + " " + u.LastName)
	}
	if c.Callback() != nil {
		ev.Action = callbacks.Key(c)
		return ev
	}
	msg := c.Message()
	if msg == nil {
		return ev
	}
	ev.Text = msg.Text
	if msg.Document != nil {
		ev.Text = msg.Caption
		ev.Document = &flow.Document{FileName: msg.Document.FileName, Size: msg.Document.FileSize}
	}
	if fields := strings.Fields(ev.Text); len(fields) > 0 && strings.HasPrefix(fields[0], "/") {
		ev.IsCommand = true
		ev.Args = fields[1:]
	}
	return ev
}
