package domain

import (
	"errors"
	"time"
)

var ErrTokenNotFound = errors.New("credential token not found")

type TokenKind string

const (
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"
)

func (k TokenKind) Valid() bool {
	return k == TokenKindAccess || k == TokenKindRefresh
}

// DeviceMetadata is bound to a token at issuance and used for audit and
// device-scoped revocation. All fields are optional.
type DeviceMetadata struct {
	DeviceLabel   string `json:"device_label,omitempty"`
	UserAgent     string `json:"user_agent,omitempty"`
	SourceAddress string `json:"source_address,omitempty"`
}

// CredentialToken is the revocation ledger row for one issued token.
//
// Security notes:
// - The signed token itself is never stored, only its TokenID and metadata.
// - Revoked is monotonic: once true it is never reset.
// - A row past ExpiresAt is treated as revoked even if Revoked is false.
type CredentialToken struct {
	ID int64 `json:"-" gorm:"primaryKey"`

	SubjectID int64     `json:"subject_id" gorm:"index;not null"`
	TokenID   string    `json:"token_id" gorm:"size:64;uniqueIndex;not null"`
	Kind      TokenKind `json:"kind" gorm:"size:16;not null"`

	DeviceLabel   *string `json:"device_label,omitempty" gorm:"size:128;index"`
	UserAgent     *string `json:"user_agent,omitempty" gorm:"size:512"`
	SourceAddress *string `json:"source_address,omitempty" gorm:"size:64"`

	Revoked   bool       `json:"revoked" gorm:"not null;default:false;index"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at" gorm:"index;not null"`
}

func (CredentialToken) TableName() string { return "credential_tokens" }

func (t *CredentialToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

func (t *CredentialToken) IsRevoked() bool {
	return t.Revoked || t.RevokedAt != nil
}

// IsActive reports whether the token may still authenticate at now.
func (t *CredentialToken) IsActive(now time.Time) bool {
	return !t.IsRevoked() && !t.IsExpired(now)
}

func (t *CredentialToken) Device() DeviceMetadata {
	return DeviceMetadata{
		DeviceLabel:   deref(t.DeviceLabel),
		UserAgent:     deref(t.UserAgent),
		SourceAddress: deref(t.SourceAddress),
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
