package relay

import "errors"

// Relay drop reasons. Forward returns them for logging and tests; senders
// are never told.
var (
	ErrNotRelayEvent        = errors.New("not a relay event")
	ErrRecipientUnavailable = errors.New("recipient unavailable")
	ErrRateLimited          = errors.New("relay rate limit exceeded")
)
