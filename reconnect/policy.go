// Package reconnect decides how the gateway reacts to a dropped provider
// connection.
//
// The decision table is deliberately a pure function so reconnection
// behavior can be tested independently of the session state machine:
//
//	decision := reconnect.Classify(cause, attempts, reconnect.DefaultLimit)
//	switch decision {
//	case reconnect.Retry:
//	    // schedule another connection attempt
//	case reconnect.Discard:
//	    // credentials are unusable, purge and remove the session
//	case reconnect.GiveUp:
//	    // stop retrying but keep credentials for a manual restart
//	}
package reconnect

import "github.com/opd-ai/chatgate/provider"

// Decision is the outcome of classifying a disconnect.
type Decision uint8

const (
	// Retry schedules another connection attempt.
	Retry Decision = iota
	// Discard purges the session's credentials and removes it;
	// reconnecting with the same material would loop.
	Discard
	// GiveUp removes the session without touching credentials.
	GiveUp
)

// String returns a human-readable name for the decision.
func (d Decision) String() string {
	switch d {
	case Retry:
		return "retry"
	case Discard:
		return "discard"
	case GiveUp:
		return "give_up"
	default:
		return "unknown"
	}
}

// DefaultLimit is the standard bound on automatic reconnection attempts.
const DefaultLimit = 3

// Classify maps a disconnect cause and the current attempt count to a
// Decision. Bad or intentionally invalidated credentials always discard.
// Known transient causes retry while attempts remain under the limit.
// Unknown causes are treated as transient, still bounded by the limit.
func Classify(cause provider.Cause, attempts, limit int) Decision {
	switch cause {
	case provider.CauseBadCredentials, provider.CauseLoggedOut:
		return Discard
	case provider.CauseTransportClosed, provider.CauseTransportLost,
		provider.CauseRestartRequired, provider.CauseTimedOut:
		if attempts < limit {
			return Retry
		}
		return GiveUp
	default:
		// Fail open: an unrecognized cause is most likely transient,
		// but the retry budget still applies.
		if attempts < limit {
			return Retry
		}
		return GiveUp
	}
}
