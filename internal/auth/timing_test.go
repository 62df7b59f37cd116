package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimingDelay_FailurePadsResponse(t *testing.T) {
	td := NewTimingDelay(TimingConfig{BaseDelayMs: 30, RandomDelayMs: 20})

	start := time.Now()
	td.Wait(false)
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 30*time.Millisecond)
	assert.Less(t, elapsed, 500*time.Millisecond)
}

func TestTimingDelay_SuccessReturnsImmediately(t *testing.T) {
	td := NewTimingDelay(TimingConfig{BaseDelayMs: 200, RandomDelayMs: 100})

	start := time.Now()
	td.Wait(true)
	elapsed := time.Since(start)

	assert.Less(t, elapsed, 50*time.Millisecond)
}

func TestCryptoRandIntn_Bounds(t *testing.T) {
	for i := 0; i < 100; i++ {
		n, err := cryptoRandIntn(10)
		assert.NoError(t, err)
		assert.GreaterOrEqual(t, n, 0)
		assert.Less(t, n, 10)
	}

	n, err := cryptoRandIntn(0)
	assert.NoError(t, err)
	assert.Equal(t, 0, n)
}
