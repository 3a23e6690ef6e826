package logger

import "log/slog"

// Error records err under "error". A nil error yields an empty Attr that
// slog drops.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// IdentityID records the authenticated identity under "identity_id".
func IdentityID(id int64) slog.Attr {
	return slog.Int64("identity_id", id)
}

// Email records an email address under "email".
func Email(email string) slog.Attr {
	if email == "" {
		return slog.Attr{}
	}
	return slog.String("email", email)
}

// Provider records an external OAuth provider name under "provider".
func Provider(name string) slog.Attr {
	return slog.String("provider", name)
}

// Component records the emitting component under "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// Event records a domain event name under "event".
func Event(name string) slog.Attr {
	return slog.String("event", name)
}

// Transition records a state change as "from" and "to" in a "transition" group.
func Transition(from, to string) slog.Attr {
	return slog.Group("transition", slog.String("from", from), slog.String("to", to))
}

// Count records a number of affected records under "count".
func Count(n int) slog.Attr {
	return slog.Int("count", n)
}
