package sender

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/m3rciful/scriptbot/core/logger"
	"github.com/m3rciful/scriptbot/core/telegram/netutil"

	tele "gopkg.in/telebot.v4"
)

const component = "tg.sender"

var tokenRe = regexp.MustCompile(`bot[0-9]+:[A-Za-z0-9_-]+`)

func (d *Dispatcher) execute(j job) {
	ctx, cancel := context.WithTimeout(j.ctx, d.opts.MaxDuration)
	defer cancel()

	start := time.Now()
	base := jobAttrs(j)
	logger.Debug(j.ctx, component, "send.start", base...)

	attempts, err := d.attempt(ctx, j, base)
	elapsed := slog.Int64("elapsed_ms", logger.Took(start).Milliseconds())
	switch {
	case err == nil && attempts > 1:
		logger.Info(j.ctx, component, "send.retry.success", append(base, slog.Int("attempt", attempts), elapsed)...)
	case err == nil:
		logger.Debug(j.ctx, component, "send.success", append(base, elapsed)...)
	default:
		d.failed.Add(1)
		logger.Error(j.ctx, component, "send.fail", append(base,
			slog.String("error", redact(err)),
			slog.String("error_kind", errorKind(err)),
			slog.Int("attempts", attempts),
			elapsed,
		)...)
	}
}

// attempt runs j until it succeeds, fails permanently, exhausts the retries
// or ctx expires. It returns the number of calls made.
func (d *Dispatcher) attempt(ctx context.Context, j job, base []slog.Attr) (int, error) {
	for n := 1; ; n++ {
		if err := ctx.Err(); err != nil {
			return n - 1, err
		}
		err := j.run()
		if err == nil {
			return n, nil
		}
		reason := netutil.Classify(err)
		if reason == netutil.ReasonNone || n > d.opts.MaxRetries {
			return n, err
		}

		delay := netutil.Backoff(d.opts.RetryBackoff, n)
		logger.Debug(j.ctx, component, "send.retry.backoff", append(base,
			slog.Int("attempt", n),
			slog.String("reason", string(reason)),
			slog.Duration("delay", delay),
		)...)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return n, errors.Join(err, ctx.Err())
		case <-timer.C:
		}
	}
}

// jobAttrs names the call; the context handler adds rid and the ids.
func jobAttrs(j job) []slog.Attr {
	attrs := []slog.Attr{slog.String("action", j.action)}
	if j.endpoint != "" {
		attrs = append(attrs, slog.String("endpoint", j.endpoint))
	}
	return slices.Clip(attrs)
}

// redact strips bot tokens that net/http embeds in request URLs.
func redact(err error) string {
	return tokenRe.ReplaceAllString(err.Error(), "bot<redacted>")
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsTimeout {
			return "timeout"
		}
		return "dns"
	}
	switch netutil.Classify(err) {
	case netutil.ReasonTimeout:
		return "timeout"
	case netutil.ReasonDial:
		return "dial"
	case netutil.ReasonReset:
		return "reset"
	}

	var alertErr tls.AlertError
	var certErr *tls.CertificateVerificationError
	if errors.As(err, &alertErr) || errors.As(err, &certErr) {
		return "tls"
	}

	switch code := statusCode(err); {
	case code == http.StatusTooManyRequests:
		return "flood"
	case code >= 500:
		return "http_5xx"
	case code >= 400:
		return "http_4xx"
	}
	return "unknown"
}

// statusCode extracts the Bot API error code, falling back to the trailing
// "(NNN)" telebot appends to its error messages.
func statusCode(err error) int {
	var apiErr *tele.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	var floodErr tele.FloodError
	if errors.As(err, &floodErr) {
		return http.StatusTooManyRequests
	}
	var groupErr tele.GroupError
	if errors.As(err, &groupErr) {
		return http.StatusBadRequest
	}

	msg := strings.TrimSpace(err.Error())
	open := strings.LastIndex(msg, "(")
	if open < 0 || !strings.HasSuffix(msg, ")") {
		return 0
	}
	code, convErr := strconv.Atoi(strings.TrimSpace(msg[open+1 : len(msg)-1]))
	if convErr != nil {
		return 0
	}
	return code
}
