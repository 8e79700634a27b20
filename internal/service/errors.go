package service

import "errors"

// Silent rejections: the caller drops the event without telling the client.
var (
	ErrSenderUnavailable    = errors.New("sender missing or inactive")
	ErrRecipientUnavailable = errors.New("recipient missing")
	ErrEmptyMessage         = errors.New("message empty after filtering")
	ErrInvalidTarget        = errors.New("invalid moderation target")
)

// ErrBlockedByRecipient is surfaced to the sender as a single error event.
var ErrBlockedByRecipient = errors.New("recipient has blocked sender")

// IsSilent reports whether err should be dropped without any client-visible signal.
func IsSilent(err error) bool {
	return errors.Is(err, ErrSenderUnavailable) ||
		errors.Is(err, ErrRecipientUnavailable) ||
		errors.Is(err, ErrEmptyMessage) ||
		errors.Is(err, ErrInvalidTarget)
}
