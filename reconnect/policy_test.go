package reconnect

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/opd-ai/chatgate/provider"
)

func TestClassifyDiscardsUnusableCredentials(t *testing.T) {
	// Credential-invalidating causes discard regardless of attempts.
	for _, cause := range []provider.Cause{provider.CauseBadCredentials, provider.CauseLoggedOut} {
		for _, attempts := range []int{0, 1, DefaultLimit, DefaultLimit + 5} {
			got := Classify(cause, attempts, DefaultLimit)
			assert.Equal(t, Discard, got,
				"cause %s attempts %d", cause, attempts)
		}
	}
}

func TestClassifyTransientCauses(t *testing.T) {
	transient := []provider.Cause{
		provider.CauseTransportClosed,
		provider.CauseTransportLost,
		provider.CauseRestartRequired,
		provider.CauseTimedOut,
	}

	for _, cause := range transient {
		for attempts := 0; attempts < DefaultLimit; attempts++ {
			assert.Equal(t, Retry, Classify(cause, attempts, DefaultLimit),
				"cause %s attempts %d", cause, attempts)
		}
		assert.Equal(t, GiveUp, Classify(cause, DefaultLimit, DefaultLimit),
			"cause %s at limit", cause)
		assert.Equal(t, GiveUp, Classify(cause, DefaultLimit+1, DefaultLimit),
			"cause %s past limit", cause)
	}
}

func TestClassifyUnknownCauseFailsOpen(t *testing.T) {
	assert.Equal(t, Retry, Classify(provider.CauseUnknown, 0, DefaultLimit))
	assert.Equal(t, Retry, Classify(provider.CauseUnknown, 2, DefaultLimit))
	assert.Equal(t, GiveUp, Classify(provider.CauseUnknown, 3, DefaultLimit))
}

func TestDecisionString(t *testing.T) {
	assert.Equal(t, "retry", Retry.String())
	assert.Equal(t, "discard", Discard.String())
	assert.Equal(t, "give_up", GiveUp.String())
}
