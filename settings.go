package chatgate

import "time"

// Settings carries the tunable parameters of the session lifecycle.
// The defaults match the provider's operational characteristics; tests
// shrink the durations to keep runs fast.
type Settings struct {
	// RetryLimit bounds automatic reconnection attempts per outage.
	RetryLimit int

	// ReconnectDelay is the pause before a scheduled reconnection.
	ReconnectDelay time.Duration

	// LoginCodeTTL is the validity window of an issued login code.
	LoginCodeTTL time.Duration

	// QueryTimeout bounds provider send operations.
	QueryTimeout time.Duration

	// CountryPrefix is the country calling code assumed for recipient
	// numbers supplied without one.
	CountryPrefix string

	// JIDDomain is the domain suffix of canonical recipient addresses.
	JIDDomain string
}

// DefaultSettings returns the standard lifecycle parameters.
func DefaultSettings() Settings {
	return Settings{
		RetryLimit:     3,
		ReconnectDelay: 5 * time.Second,
		LoginCodeTTL:   20 * time.Second,
		QueryTimeout:   60 * time.Second,
		CountryPrefix:  "62",
		JIDDomain:      "s.whatsapp.net",
	}
}
