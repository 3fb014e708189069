package middleware

import (
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/m3rciful/scriptbot/core/logger"
	tghelpers "github.com/m3rciful/scriptbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

const defaultLimiterTTL = 10 * time.Minute

// RateLimitOptions configures behaviour of the rate limit middleware.
type RateLimitOptions struct {
	// Interval is the refill period of one token; 0 disables limiting.
	Interval time.Duration
	// Burst is the number of updates accepted back to back; values < 1 mean 1.
	Burst     int
	Exclude   map[string]struct{}
	OnLimited tele.HandlerFunc
	// IdleTTL evicts limiters of users that have been quiet for that long.
	IdleTTL time.Duration
}

// UpdateKind classifies an update for rate limit exclusions.
func UpdateKind(upd tele.Update) string {
	switch {
	case upd.Callback != nil:
		return "callback"
	case upd.Message != nil:
		return "message"
	case upd.Query != nil:
		return "inline_query"
	}
	return "other"
}

type limiterEntry struct {
	lim  *rate.Limiter
	seen time.Time
}

// userLimiters keeps one token bucket per user.
type userLimiters struct {
	mu        sync.Mutex
	every     rate.Limit
	burst     int
	ttl       time.Duration
	lastSweep time.Time
	byUser    map[int64]*limiterEntry
}

func newUserLimiters(interval time.Duration, burst int, ttl time.Duration) *userLimiters {
	if burst < 1 {
		burst = 1
	}
	if ttl <= 0 {
		ttl = defaultLimiterTTL
	}
	return &userLimiters{
		every:  rate.Every(interval),
		burst:  burst,
		ttl:    ttl,
		byUser: make(map[int64]*limiterEntry),
	}
}

func (u *userLimiters) allow(userID int64, now time.Time) bool {
	u.mu.Lock()
	defer u.mu.Unlock()

	if now.Sub(u.lastSweep) > u.ttl {
		for id, e := range u.byUser {
			if now.Sub(e.seen) > u.ttl {
				delete(u.byUser, id)
			}
		}
		u.lastSweep = now
	}

	e, ok := u.byUser[userID]
	if !ok {
		e = &limiterEntry{lim: rate.NewLimiter(u.every, u.burst)}
		u.byUser[userID] = e
	}
	e.seen = now
	return e.lim.AllowN(now, 1)
}

func (u *userLimiters) size() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.byUser)
}

// RateLimitMiddleware returns a middleware that throttles each user with a
// token bucket refilled once per Interval.
func RateLimitMiddleware(opts RateLimitOptions) tele.MiddlewareFunc {
	limiters := newUserLimiters(opts.Interval, opts.Burst, opts.IdleTTL)
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if user == nil || opts.Interval <= 0 {
				return next(c)
			}
			if _, skip := opts.Exclude[UpdateKind(c.Update())]; skip {
				return next(c)
			}
			if limiters.allow(user.ID, time.Now()) {
				return next(c)
			}

			logger.Warn(tghelpers.BuildContext(c), "tg", "tg.rate_limit",
				slog.Int64("user_id", user.ID),
				slog.String("kind", UpdateKind(c.Update())),
			)
			if opts.OnLimited != nil {
				_ = opts.OnLimited(c)
			}
			return nil
		}
	}
}
