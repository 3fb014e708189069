// Package netutil classifies Telegram API transport failures for retries.
package netutil

import (
	"context"
	"errors"
	"io"
	"net"
	"syscall"
	"time"
)

// Reason names why a failure is transient; empty means do not retry.
type Reason string

const (
	ReasonNone    Reason = ""
	ReasonTimeout Reason = "timeout"
	ReasonDial    Reason = "dial"
	ReasonReset   Reason = "conn_reset"
)

// Classify reports why err is worth retrying. Cancellation by the caller is
// never retried.
func Classify(err error) Reason {
	if err == nil || errors.Is(err, context.Canceled) {
		return ReasonNone
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, io.ErrUnexpectedEOF) {
		return ReasonReset
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return ReasonDial
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return ReasonDial
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ReasonTimeout
	}
	return ReasonNone
}

// Backoff is the linear delay before retry number attempt (1-based).
func Backoff(base time.Duration, attempt int) time.Duration {
	if base <= 0 || attempt <= 0 {
		return 0
	}
	return base * time.Duration(attempt)
}
