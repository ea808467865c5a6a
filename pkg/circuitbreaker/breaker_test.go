package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errDown = errors.New("down")

func newTestBreaker(clock *time.Time) *Breaker {
	b := New("test", Config{FailureThreshold: 2, Cooldown: time.Minute})
	b.now = func() time.Time { return *clock }
	return b
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	clock := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	b := newTestBreaker(&clock)

	assert.ErrorIs(t, b.Do(func() error { return errDown }), errDown)
	assert.Equal(t, StateClosed, b.State())

	assert.ErrorIs(t, b.Do(func() error { return errDown }), errDown)
	assert.Equal(t, StateOpen, b.State())

	called := false
	err := b.Do(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, called)
}

func TestBreakerSuccessResetsFailures(t *testing.T) {
	clock := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	b := newTestBreaker(&clock)

	_ = b.Do(func() error { return errDown })
	require.NoError(t, b.Do(func() error { return nil }))
	_ = b.Do(func() error { return errDown })

	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerProbeAfterCooldown(t *testing.T) {
	clock := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	b := newTestBreaker(&clock)

	var transitions []string
	b.onStateChange = func(_ string, from, to State) {
		transitions = append(transitions, from.String()+"->"+to.String())
	}

	_ = b.Do(func() error { return errDown })
	_ = b.Do(func() error { return errDown })

	clock = clock.Add(2 * time.Minute)
	assert.ErrorIs(t, b.Do(func() error { return errDown }), errDown)
	assert.Equal(t, StateOpen, b.State(), "failed probe reopens")

	assert.ErrorIs(t, b.Do(func() error { return nil }), ErrOpen)

	clock = clock.Add(2 * time.Minute)
	require.NoError(t, b.Do(func() error { return nil }))
	assert.Equal(t, StateClosed, b.State())

	assert.Equal(t, []string{
		"closed->open",
		"open->half-open",
		"half-open->open",
		"open->half-open",
		"half-open->closed",
	}, transitions)
}
