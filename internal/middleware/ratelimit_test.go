package middleware

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPerMinute_ConvertsBudgetToLimitAndBurst(t *testing.T) {
	limit, burst := PerMinute(60)
	assert.InDelta(t, 1.0, float64(limit), 0.0001)
	assert.Equal(t, 60, burst)
}

func TestPerMinute_BurstEqualsWholeMinuteAllowance(t *testing.T) {
	_, burst := PerMinute(10)
	assert.Equal(t, 10, burst)
}

func TestIPRateLimiter_SameIPReusesLimiterInstance(t *testing.T) {
	l := NewIPRateLimiter(1, 1)
	a := l.GetLimiter("10.0.0.1")
	b := l.GetLimiter("10.0.0.1")
	assert.Same(t, a, b)
}

func TestIPRateLimiter_DistinctIPsGetDistinctLimiters(t *testing.T) {
	l := NewIPRateLimiter(1, 1)
	a := l.GetLimiter("10.0.0.1")
	b := l.GetLimiter("10.0.0.2")
	assert.NotSame(t, a, b)
}

func TestIPRateLimiter_AllowsUpToBurstThenRejects(t *testing.T) {
	l := NewIPRateLimiter(0, 2)
	limiter := l.GetLimiter("10.0.0.1")
	assert.True(t, limiter.Allow())
	assert.True(t, limiter.Allow())
	assert.False(t, limiter.Allow())
}
