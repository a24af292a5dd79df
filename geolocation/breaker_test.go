package geolocation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestBreaker(threshold int, cooldown time.Duration) (*Breaker, *time.Time) {
	now := time.Now()
	b := NewBreaker(threshold, cooldown)
	b.now = func() time.Time { return now }
	return b, &now
}

func TestBreakerStaysClosedBelowThreshold(t *testing.T) {
	b, _ := newTestBreaker(3, time.Minute)

	b.RecordFailure()
	b.RecordFailure()
	assert.True(t, b.Allow())
	assert.Equal(t, "closed", b.State())
}

func TestBreakerOpensAtThreshold(t *testing.T) {
	b, _ := newTestBreaker(3, time.Minute)

	b.RecordFailure()
	b.RecordFailure()
	b.RecordFailure()
	assert.False(t, b.Allow())
	assert.Equal(t, "open", b.State())
}

func TestBreakerSuccessResetsFailureRun(t *testing.T) {
	b, _ := newTestBreaker(3, time.Minute)

	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	b.RecordFailure()
	assert.True(t, b.Allow())
}

func TestBreakerHalfOpenAdmitsSingleTrial(t *testing.T) {
	b, now := newTestBreaker(1, time.Minute)

	b.RecordFailure()
	assert.False(t, b.Allow())

	*now = now.Add(time.Minute)
	assert.True(t, b.Allow())
	assert.Equal(t, "half-open", b.State())
	// Only one trial call at a time while half-open.
	assert.False(t, b.Allow())
}

func TestBreakerClosesOnTrialSuccess(t *testing.T) {
	b, now := newTestBreaker(1, time.Minute)

	b.RecordFailure()
	*now = now.Add(time.Minute)
	assert.True(t, b.Allow())
	b.RecordSuccess()

	assert.Equal(t, "closed", b.State())
	assert.True(t, b.Allow())
}

func TestBreakerReopensOnTrialFailure(t *testing.T) {
	b, now := newTestBreaker(1, time.Minute)

	b.RecordFailure()
	*now = now.Add(time.Minute)
	assert.True(t, b.Allow())
	b.RecordFailure()

	assert.Equal(t, "open", b.State())
	assert.False(t, b.Allow())

	// A fresh cool-down starts from the trial failure.
	*now = now.Add(time.Minute)
	assert.True(t, b.Allow())
}
