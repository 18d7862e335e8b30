package gateway

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/Guliveer/guildkit/internal/constants"
)

// Backoff is the reconnect delay policy. Attempts are counted from 1 after
// every failure and reset once a connection is welcomed.
type Backoff struct {
	Base       time.Duration
	Max        time.Duration
	Multiplier float64
	// Jitter spreads each delay by +/- this fraction, in [0, 1].
	Jitter float64
	// MaxAttempts stops reconnecting after this many consecutive failed
	// attempts; zero retries forever.
	MaxAttempts int
}

// DefaultBackoff returns the default reconnect policy: 1s doubling to 60s
// with 20% jitter, retrying forever.
func DefaultBackoff() Backoff {
	return Backoff{
		Base:       constants.DefaultReconnectBase,
		Max:        constants.DefaultReconnectMax,
		Multiplier: constants.DefaultReconnectMultiplier,
		Jitter:     constants.DefaultReconnectJitter,
	}
}

// Delay returns how long to wait before the given attempt.
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	mult := b.Multiplier
	if mult < 1 {
		mult = 1
	}

	d := float64(b.Base) * math.Pow(mult, float64(attempt-1))
	if b.Max > 0 && d > float64(b.Max) {
		d = float64(b.Max)
	}

	if j := math.Min(math.Max(b.Jitter, 0), 1); j > 0 {
		d *= 1 + j*(2*rand.Float64()-1)
	}
	if b.Max > 0 && d > float64(b.Max) {
		d = float64(b.Max)
	}
	if d < 0 {
		d = 0
	}
	return time.Duration(d)
}

// Exhausted reports whether attempt exceeds MaxAttempts.
func (b Backoff) Exhausted(attempt int) bool {
	return b.MaxAttempts > 0 && attempt > b.MaxAttempts
}
