package logger

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
)

const maxErrLen = 256

// Status classifies the outcome of an operation for the status attribute.
func Status(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	}
	return "fail"
}

// ErrAttr renders err as a sanitized, bounded "err" attribute.
func ErrAttr(err error) slog.Attr {
	if err == nil {
		return slog.String("err", "")
	}
	return slog.String("err", SanitizeLimit(err.Error(), maxErrLen))
}

// Took is the time since start, rounded to milliseconds.
func Took(start time.Time) time.Duration {
	return RoundMS(time.Since(start))
}

// RoundMS rounds d to milliseconds; negative values become 0.
func RoundMS(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d.Round(time.Millisecond)
}

// PreviewAttrs describes a list by its size and its first limit entries:
// <key>_total, <key>_preview and, when entries were left out, <key>_truncated.
func PreviewAttrs(key string, values []string, limit int) []slog.Attr {
	attrs := []slog.Attr{slog.Int(key+"_total", len(values))}
	if len(values) == 0 || limit <= 0 {
		return attrs
	}
	shown := values
	if len(shown) > limit {
		shown = shown[:limit]
	}
	attrs = append(attrs, slog.String(key+"_preview", strings.Join(shown, ", ")))
	if len(values) > limit {
		attrs = append(attrs, slog.Bool(key+"_truncated", true))
	}
	return attrs
}
