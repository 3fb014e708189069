package middleware

import tele "gopkg.in/telebot.v4"

// AdminOptions defines how admin-only checks should behave.
type AdminOptions struct {
	AdminID int64
	// IsAdmin, when set, is consulted for senders other than AdminID.
	IsAdmin  func(userID int64) bool
	OnReject tele.HandlerFunc
}

func (o AdminOptions) allowed(userID int64) bool {
	if o.AdminID != 0 && userID == o.AdminID {
		return true
	}
	if o.IsAdmin != nil {
		return o.IsAdmin(userID)
	}
	return false
}

// AdminOnlyMiddleware ensures that only admins can invoke downstream handlers.
// With neither AdminID nor IsAdmin configured every sender is rejected.
func AdminOnlyMiddleware(opts AdminOptions) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if user == nil || !opts.allowed(user.ID) {
				if opts.OnReject != nil {
					return opts.OnReject(c)
				}
				return nil
			}
			return next(c)
		}
	}
}
