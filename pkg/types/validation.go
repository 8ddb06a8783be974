package types

import (
	"path/filepath"
	"regexp"
	"strings"
)

// SessionCodeLength is the fixed length of every session code.
const SessionCodeLength = 6

var (
	sessionCodeRegex = regexp.MustCompile(`^[A-Z0-9]{6}$`)
	unsafeNameChars  = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)
)

// NormalizeSessionCode trims and upper-cases a user supplied code and
// checks its shape. It does not check that the session exists.
func NormalizeSessionCode(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if !sessionCodeRegex.MatchString(code) {
		return "", ErrInvalidSessionCode
	}
	return code, nil
}

// IsRequestEvent reports whether event is one the server acts on itself.
func IsRequestEvent(event string) bool {
	switch event {
	case EventCreateSession,
		EventJoinSession,
		EventStartNext,
		EventEndInterview,
		EventEndInterviewNow:
		return true
	default:
		return false
	}
}

// IsRelayEvent reports whether event is forwarded peer to peer.
func IsRelayEvent(event string) bool {
	switch event {
	case EventWebRTCOffer,
		EventWebRTCAnswer,
		EventWebRTCICE,
		EventHostReady,
		EventScreenShareStarted,
		EventScreenShareStopped:
		return true
	default:
		return false
	}
}

// RelayEvents lists every relayed event name.
func RelayEvents() []string {
	return []string{
		EventWebRTCOffer,
		EventWebRTCAnswer,
		EventWebRTCICE,
		EventHostReady,
		EventScreenShareStarted,
		EventScreenShareStopped,
	}
}

// Validate checks the routing field of a relay request.
func (r *RelayRequest) Validate() error {
	if strings.TrimSpace(r.To) == "" {
		return ErrMissingRecipient
	}
	return nil
}

// SanitizeFilename strips directories and unsafe characters from an
// uploaded filename. It never returns a name that escapes its directory.
func SanitizeFilename(name string) (string, error) {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = unsafeNameChars.ReplaceAllString(name, "_")
	name = strings.Trim(name, "._")
	if name == "" || len(name) > 200 {
		return "", ErrInvalidFilename
	}
	return name, nil
}
