// Package notifications pushes task outcomes to ntfy.
//
// NewService returns a no-op notifier when no topic is configured, so callers
// never need to check whether notifications are enabled. Only task kinds named
// in notifications.kinds are published; the api package consults Enabled
// before sending.
package notifications
