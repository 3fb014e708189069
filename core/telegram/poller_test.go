package telegram

import (
	"testing"
	"time"

	coreconfig "github.com/m3rciful/scriptbot/core/config"

	tele "gopkg.in/telebot.v4"
)

func TestNewPollerLongpoll(t *testing.T) {
	cfg := &coreconfig.Config{Telegram: coreconfig.TelegramConfig{RunMode: coreconfig.RunModeLongpoll}}
	p, ok := NewPoller(cfg).(*tele.LongPoller)
	if !ok {
		t.Fatal("expected long poller")
	}
	if p.Timeout != defaultLongPollTimeout {
		t.Fatalf("timeout = %v, want %v", p.Timeout, defaultLongPollTimeout)
	}

	cfg.Telegram.LongPollTimeoutSeconds = 25
	p = NewPoller(cfg).(*tele.LongPoller)
	if p.Timeout != 25*time.Second {
		t.Fatalf("timeout = %v, want 25s", p.Timeout)
	}
}

func TestNewPollerWebhook(t *testing.T) {
	cfg := &coreconfig.Config{
		Telegram: coreconfig.TelegramConfig{RunMode: coreconfig.RunModeWebhook},
		Webhook:  coreconfig.WebhookConfig{Listen: "0.0.0.0", Port: 8443, URL: "https://bot.example.com/hook"},
	}
	p, ok := NewPoller(cfg).(*tele.Webhook)
	if !ok {
		t.Fatal("expected webhook poller")
	}
	if p.Listen != "0.0.0.0:8443" {
		t.Fatalf("listen = %q", p.Listen)
	}
	if p.Endpoint == nil || p.Endpoint.PublicURL != "https://bot.example.com/hook" {
		t.Fatalf("endpoint = %+v", p.Endpoint)
	}
}
