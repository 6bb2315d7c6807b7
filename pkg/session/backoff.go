package session

import "time"

// Backoff is the reconnect policy.
type Backoff struct {
	// Base is the delay before the first reconnect.
	Base time.Duration

	// Cap bounds every delay.
	Cap time.Duration

	// MaxAttempts is the number of reconnects tried before giving up.
	MaxAttempts int
}

// DefaultBackoff returns 500ms doubling to a 5s cap, ten attempts.
func DefaultBackoff() Backoff {
	return Backoff{
		Base:        500 * time.Millisecond,
		Cap:         5 * time.Second,
		MaxAttempts: 10,
	}
}

// Delay returns min(Cap, Base·2^attempt).
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := b.Base
	for i := 0; i < attempt; i++ {
		if (b.Cap > 0 && d >= b.Cap) || d > 1<<61 {
			break
		}
		d *= 2
	}
	if b.Cap > 0 && d > b.Cap {
		d = b.Cap
	}
	return d
}

func (b Backoff) withDefaults() Backoff {
	def := DefaultBackoff()
	if b.Base <= 0 {
		b.Base = def.Base
	}
	if b.Cap <= 0 {
		b.Cap = def.Cap
	}
	if b.MaxAttempts <= 0 {
		b.MaxAttempts = def.MaxAttempts
	}
	return b
}
