package domain

import "time"

// OTPChallenge is a live one-time passcode for an identifier (usually an email).
// Only the peppered hash of the code is kept.
type OTPChallenge struct {
	Identifier string    `json:"identifier"`
	CodeHash   string    `json:"code_hash"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

func (c *OTPChallenge) IsExpired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// TTL returns how long the challenge has left at now, never negative.
func (c *OTPChallenge) TTL(now time.Time) time.Duration {
	if d := c.ExpiresAt.Sub(now); d > 0 {
		return d
	}
	return 0
}
