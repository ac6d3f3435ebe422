package session

import (
	"context"
	"time"

	"authsession/internal/domain"
	"authsession/internal/pkg/jwt"
)

// TokenStore is the revocation ledger as seen by the issuer.
type TokenStore interface {
	Save(ctx context.Context, t *domain.CredentialToken) error
	FindByID(ctx context.Context, tokenID string) (*domain.CredentialToken, error)
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
	Revoke(ctx context.Context, tokenID string) error
	MarkRevoked(ctx context.Context, tokenID string) (bool, error)
	RevokeAll(ctx context.Context, subjectID int64) (int64, error)
	RevokeByDevice(ctx context.Context, subjectID int64, deviceLabel string) (int64, error)
	ListActive(ctx context.Context, subjectID int64) ([]domain.CredentialToken, error)
}

type tokenCodec interface {
	MintWithTTL(subjectID int64, kind domain.TokenKind, device domain.DeviceMetadata, ttl time.Duration) (*jwt.Minted, error)
	ParseAndVerify(token string, expected domain.TokenKind) (*jwt.Claims, error)
	TTL(kind domain.TokenKind) time.Duration
}
