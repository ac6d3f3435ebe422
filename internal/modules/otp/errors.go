package otp

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidIdentifier      = errors.New("invalid otp identifier")
	ErrResendTooSoon          = errors.New("otp resend too soon")
	ErrOtpExpired             = errors.New("otp expired or not found")
	ErrOtpInvalid             = errors.New("otp invalid")
	ErrOtpMaxAttemptsExceeded = errors.New("otp max attempts exceeded")
)

// CooldownError is returned by Issue while a resend marker is live.
type CooldownError struct {
	SecondsLeft int
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("%s: retry in %ds", ErrResendTooSoon, e.SecondsLeft)
}

func (e *CooldownError) Unwrap() error { return ErrResendTooSoon }

// InvalidCodeError is returned by Verify on a mismatch.
type InvalidCodeError struct {
	AttemptsLeft int
}

func (e *InvalidCodeError) Error() string {
	return fmt.Sprintf("%s: %d attempts left", ErrOtpInvalid, e.AttemptsLeft)
}

func (e *InvalidCodeError) Unwrap() error { return ErrOtpInvalid }
