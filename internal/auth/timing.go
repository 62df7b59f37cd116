package auth

import (
	"crypto/rand"
	"encoding/binary"
	"time"
)

// TimingConfig controls the response-time padding applied to failed logins
type TimingConfig struct {
	BaseDelayMs   int // minimum added delay in milliseconds
	RandomDelayMs int // jitter range in milliseconds
}

// TimingDelay pads failed authentication responses so that "account not
// found" and "wrong password" take approximately the same time.
type TimingDelay struct {
	config TimingConfig
}

func NewTimingDelay(config TimingConfig) *TimingDelay {
	return &TimingDelay{config: config}
}

// cryptoRandIntn returns a secure random number in [0, max)
func cryptoRandIntn(max int) (int, error) {
	if max <= 0 {
		return 0, nil
	}

	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return 0, err
	}
	return int(binary.BigEndian.Uint64(buf) % uint64(max)), nil
}

// Wait sleeps when the attempt failed. Successful logins return immediately.
func (td *TimingDelay) Wait(success bool) {
	if success {
		return
	}

	delay := time.Duration(td.config.BaseDelayMs) * time.Millisecond
	if td.config.RandomDelayMs > 0 {
		jitter, err := cryptoRandIntn(td.config.RandomDelayMs)
		if err == nil {
			delay += time.Duration(jitter) * time.Millisecond
		}
	}
	time.Sleep(delay)
}
