package callbacks

import (
	"testing"

	tele "gopkg.in/telebot.v4"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		data         string
		key, payload string
	}{
		{"\frun_file", "run_file", ""},
		{"\flang_python|x", "lang_python", "x"},
		{"main_menu", "main_menu", ""},
		{"\fa|b|c", "a", "b|c"},
		{"\f run_php ", "run_php", ""},
		{"", "", ""},
	}
	for _, tt := range tests {
		key, payload := Split(tt.data)
		if key != tt.key || payload != tt.payload {
			t.Errorf("Split(%q) = %q, %q; want %q, %q", tt.data, key, payload, tt.key, tt.payload)
		}
	}
	if key, payload := Parse(nil); key != "" || payload != "" {
		t.Fatal("nil callback should yield empty values")
	}
}

func TestKey(t *testing.T) {
	bot, err := tele.NewBot(tele.Settings{Token: "1:test", Offline: true})
	if err != nil {
		t.Fatalf("NewBot: %v", err)
	}
	c := bot.NewContext(tele.Update{Callback: &tele.Callback{Data: "\frun_file|1"}})
	if got := Key(c); got != "run_file" {
		t.Fatalf("Key = %q", got)
	}
	c = bot.NewContext(tele.Update{Callback: &tele.Callback{Unique: "main_menu", Data: "x"}})
	if got := Key(c); got != "main_menu" {
		t.Fatalf("Key with Unique = %q", got)
	}
	if got := Key(bot.NewContext(tele.Update{Message: &tele.Message{Text: "hi"}})); got != "" {
		t.Fatalf("Key without callback = %q", got)
	}
}
