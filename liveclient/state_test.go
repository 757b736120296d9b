package liveclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHappyPathLifecycle(t *testing.T) {
	s, attempts := Transition(StateIdle, EventDial, 0, 5)
	assert.Equal(t, StateConnecting, s)

	s, attempts = Transition(s, EventConnected, attempts, 5)
	assert.Equal(t, StateConnected, s)
	assert.Zero(t, attempts)

	s, _ = Transition(s, EventClientClosed, attempts, 5)
	assert.Equal(t, StateIdle, s)
}

func TestServerDropEntersRetryLoop(t *testing.T) {
	s, attempts := Transition(StateConnected, EventServerClosed, 0, 5)
	assert.Equal(t, StateReconnecting, s)

	s, attempts = Transition(s, EventRetry, attempts, 5)
	assert.Equal(t, StateReconnecting, s)
	assert.Equal(t, 1, attempts)

	s, attempts = Transition(s, EventConnected, attempts, 5)
	assert.Equal(t, StateConnected, s)
	assert.Zero(t, attempts, "a successful reconnect resets the budget")
}

func TestRetryBudgetExhaustion(t *testing.T) {
	s, attempts := StateReconnecting, 0
	for i := 0; i < 3; i++ {
		s, attempts = Transition(s, EventRetry, attempts, 3)
		assert.Equal(t, StateReconnecting, s)
	}
	assert.Equal(t, 3, attempts)

	s, attempts = Transition(s, EventRetry, attempts, 3)
	assert.Equal(t, StateFailed, s)
	assert.Equal(t, 3, attempts)

	// Failed is terminal; further retries do not escape it.
	s, _ = Transition(s, EventRetry, attempts, 3)
	assert.Equal(t, StateFailed, s)
}

func TestDialFailureRetriesLikeADrop(t *testing.T) {
	s, attempts := Transition(StateIdle, EventDial, 0, 5)
	s, attempts = Transition(s, EventDialFailed, attempts, 5)
	assert.Equal(t, StateReconnecting, s)

	s, attempts = Transition(s, EventRetry, attempts, 5)
	assert.Equal(t, StateReconnecting, s)
	assert.Equal(t, 1, attempts)
}

func TestIrrelevantEventsAreIgnored(t *testing.T) {
	s, attempts := Transition(StateConnected, EventDial, 2, 5)
	assert.Equal(t, StateConnected, s)
	assert.Equal(t, 2, attempts)

	s, _ = Transition(StateIdle, EventServerClosed, 0, 5)
	assert.Equal(t, StateIdle, s)

	s, _ = Transition(StateConnected, EventRetry, 0, 5)
	assert.Equal(t, StateConnected, s)
}

func TestStateStrings(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "reconnecting", StateReconnecting.String())
	assert.Equal(t, "failed", StateFailed.String())
	assert.Equal(t, "unknown", State(99).String())
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(Config{SessionID: "s1"})
	assert.Error(t, err)

	_, err = New(Config{URL: "ws://localhost/ws"})
	assert.Error(t, err)

	c, err := New(Config{URL: "ws://localhost/ws", SessionID: "s1"})
	assert.NoError(t, err)
	assert.Equal(t, StateIdle, c.State())
	assert.Zero(t, c.Attempts())
}
