package chatgate

import "time"

// TimeProvider abstracts time access for deterministic testing of
// login-code issuance and expiry.
type TimeProvider interface {
	Now() time.Time
}

// realTimeProvider implements TimeProvider using the system clock.
type realTimeProvider struct{}

func (realTimeProvider) Now() time.Time {
	return time.Now()
}

var defaultTimeProvider TimeProvider = realTimeProvider{}
