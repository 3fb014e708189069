package telegram

import (
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/m3rciful/scriptbot/core/logger"
	"github.com/m3rciful/scriptbot/core/telegram/netutil"
)

const (
	defaultDialTimeout     = 5 * time.Second
	defaultTLSHandshake    = 5 * time.Second
	defaultIdleConnTimeout = 90 * time.Second
	defaultRequestTimeout  = 30 * time.Second
	defaultRetryAttempts   = 3
	defaultRetryBackoff    = 500 * time.Millisecond
)

// HTTPClientOptions tunes the client used for Bot API calls.
type HTTPClientOptions struct {
	// RequestTimeout bounds a whole call, long-poll wait included.
	RequestTimeout time.Duration
	// DialRetries is how often a failed connect is retried.
	DialRetries  int
	RetryBackoff time.Duration
	// Base replaces the pooled transport, mainly for tests.
	Base http.RoundTripper
}

// BuildHTTPClient returns a client for the Bot API. Only failed connects are
// retried; such requests never reached Telegram.
func BuildHTTPClient(opts HTTPClientOptions) *http.Client {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = defaultRequestTimeout
	}
	if opts.DialRetries < 0 {
		opts.DialRetries = 0
	} else if opts.DialRetries == 0 {
		opts.DialRetries = defaultRetryAttempts
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = defaultRetryBackoff
	}
	base := opts.Base
	if base == nil {
		base = &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			DialContext:         (&net.Dialer{Timeout: defaultDialTimeout, KeepAlive: 30 * time.Second}).DialContext,
			ForceAttemptHTTP2:   true,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     defaultIdleConnTimeout,
			TLSHandshakeTimeout: defaultTLSHandshake,
			// getUpdates holds the response until the poll timeout expires.
			ResponseHeaderTimeout: opts.RequestTimeout,
		}
	}
	return &http.Client{
		Timeout: opts.RequestTimeout,
		Transport: &dialRetryTransport{
			base:    base,
			retries: opts.DialRetries,
			backoff: opts.RetryBackoff,
		},
	}
}

type dialRetryTransport struct {
	base    http.RoundTripper
	retries int
	backoff time.Duration
}

func (t *dialRetryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	for attempt := 1; ; attempt++ {
		resp, err := t.base.RoundTrip(req)
		if err == nil || attempt > t.retries || netutil.Classify(err) != netutil.ReasonDial {
			return resp, err
		}
		if req.Body != nil && req.Body != http.NoBody {
			if req.GetBody == nil {
				return nil, err
			}
			body, berr := req.GetBody()
			if berr != nil {
				return nil, err
			}
			req = req.Clone(req.Context())
			req.Body = body
		}

		delay := netutil.Backoff(t.backoff, attempt)
		logger.TG.LogAttrs(req.Context(), slog.LevelDebug, "",
			slog.String("event", "http.retry"),
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
			logger.ErrAttr(err),
		)
		timer := time.NewTimer(delay)
		select {
		case <-req.Context().Done():
			timer.Stop()
			return nil, req.Context().Err()
		case <-timer.C:
		}
	}
}
