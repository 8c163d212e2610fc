package errors

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrMissingBotToken     = errors.New("TELEGRAM_BOT_TOKEN environment variable is required")
	ErrMissingMasterSecret = errors.New("MASTER_SECRET environment variable is required")
	ErrMissingIdentity     = errors.New("IDENTITY environment variable is required")
	ErrChannelNotFound     = errors.New("channel not found")
	ErrNotAChannel         = errors.New("entity is not a channel")
	ErrPermissionDenied    = errors.New("permission denied for channel")
	ErrTwoFactorRequired   = errors.New("two-factor password required")
	ErrSessionInvalid      = errors.New("session is revoked or unregistered")
	ErrAuthAborted         = errors.New("authorization aborted by operator")
	ErrClientUnavailable   = errors.New("client unavailable after retries")
)

// FloodWaitError is the provider's instruction to pause before retrying.
type FloodWaitError struct {
	Wait time.Duration
}

func (e *FloodWaitError) Error() string {
	return fmt.Sprintf("flood wait: retry after %s", e.Wait)
}

// AsFloodWait extracts a FloodWaitError from an error chain.
func AsFloodWait(err error) (*FloodWaitError, bool) {
	var fw *FloodWaitError
	if errors.As(err, &fw) {
		return fw, true
	}
	return nil, false
}

// RateLimitedError is a typed refusal from the rate limiter, not a failure:
// callers may wait the advertised duration and try again.
type RateLimitedError struct {
	Identifier string
	Wait       time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s: wait %s", e.Identifier, e.Wait)
}

// BlockedError is a typed refusal for an actor with an active abuse block.
type BlockedError struct {
	Actor  string
	Reason string
	Wait   time.Duration
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("actor %s blocked (%s): wait %s", e.Actor, e.Reason, e.Wait)
}
