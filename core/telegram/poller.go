package telegram

import (
	"net"
	"strconv"
	"time"

	coreconfig "github.com/m3rciful/scriptbot/core/config"

	tele "gopkg.in/telebot.v4"
)

const (
	defaultLongPollTimeout = 10 * time.Second
	// requestHeadroom keeps getUpdates from being cut off by the HTTP client.
	requestHeadroom = 20 * time.Second
)

// NewPoller picks the update source for a normalized config: a webhook
// listener in webhook mode, long polling otherwise.
func NewPoller(cfg *coreconfig.Config) tele.Poller {
	if cfg.Telegram.RunMode == coreconfig.RunModeWebhook {
		return &tele.Webhook{
			Listen:   net.JoinHostPort(cfg.Webhook.Listen, strconv.Itoa(cfg.Webhook.Port)),
			Endpoint: &tele.WebhookEndpoint{PublicURL: cfg.Webhook.URL},
		}
	}
	return &tele.LongPoller{
		Timeout: pollTimeout(cfg),
		// Callback queries and documents drive the conversation flows.
		AllowedUpdates: []string{"message", "callback_query"},
	}
}

func pollTimeout(cfg *coreconfig.Config) time.Duration {
	if s := cfg.Telegram.LongPollTimeoutSeconds; s > 0 {
		return time.Duration(s) * time.Second
	}
	return defaultLongPollTimeout
}

func requestTimeout(cfg *coreconfig.Config) time.Duration {
	return pollTimeout(cfg) + requestHeadroom
}
