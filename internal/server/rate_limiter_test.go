package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func TestNewRateLimiter(t *testing.T) {
	limiter := newRateLimiter(5, time.Second)

	assert.Equal(t, 5, limiter.Burst())
	assert.Equal(t, rate.Limit(5), limiter.Limit())

	now := time.Now()
	for i := 0; i < 5; i++ {
		assert.True(t, limiter.AllowN(now, 1), "message %d within burst", i)
	}
	assert.False(t, limiter.AllowN(now, 1))
	assert.True(t, limiter.AllowN(now.Add(250*time.Millisecond), 1))
}

func TestNewRateLimiterInvalidParameters(t *testing.T) {
	limiter := newRateLimiter(0, 0)

	assert.Equal(t, 1, limiter.Burst())
	assert.Equal(t, rate.Limit(1), limiter.Limit())
}
