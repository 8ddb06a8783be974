package lifecycle

import "fmt"

// Policy decides who may drive a session's queue.
type Policy string

const (
	// PolicyEnforceHost lets only the session host call start_next and end_interview.
	PolicyEnforceHost Policy = "enforce-host"
	// PolicyPermissive lets any connection that knows the code drive the queue.
	PolicyPermissive Policy = "permissive"
)

// ParsePolicy validates a configured policy name. Empty means enforce-host.
func ParsePolicy(name string) (Policy, error) {
	switch Policy(name) {
	case "", PolicyEnforceHost:
		return PolicyEnforceHost, nil
	case PolicyPermissive:
		return PolicyPermissive, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPolicy, name)
	}
}
