package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"authsession/internal/domain"
	"authsession/internal/pkg/jwt"

	"go.uber.org/zap"
)

type Options struct {
	// RefreshRememberTTL is the refresh lifetime used with RememberMe.
	// Zero means remember-me falls back to the codec's refresh TTL.
	RefreshRememberTTL time.Duration
	// RotateRefreshOnRenew revokes the presented refresh token on Renew and
	// returns a replacement. When false the refresh token stays valid until
	// it expires or is revoked.
	RotateRefreshOnRenew bool
	Now                  func() time.Time
}

// Service issues, validates, renews and revokes session tokens. Signature and
// expiry checks run in the codec before any store round trip.
type Service struct {
	store TokenStore
	codec tokenCodec
	opts  Options
	log   *zap.Logger
	now   func() time.Time
}

type Claims struct {
	SubjectID int64
	TokenID   string
	Kind      domain.TokenKind
	Device    domain.DeviceMetadata
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	AccessExpiresIn  int64     `json:"access_expires_in"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

type RenewResult struct {
	AccessToken     string `json:"access_token"`
	AccessExpiresIn int64  `json:"access_expires_in"`
	// RefreshToken is only set when rotation is enabled.
	RefreshToken string `json:"refresh_token,omitempty"`
}

type IssueOption func(*issueParams)

type issueParams struct {
	rememberMe bool
}

// RememberMe issues the refresh token with the extended lifetime.
func RememberMe() IssueOption {
	return func(p *issueParams) { p.rememberMe = true }
}

func NewService(store TokenStore, codec tokenCodec, opts Options, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Service{store: store, codec: codec, opts: opts, log: log, now: now}
}

// IssuePair mints and records an access/refresh pair for an already
// authenticated subject.
func (s *Service) IssuePair(ctx context.Context, subjectID int64, device domain.DeviceMetadata, opts ...IssueOption) (*TokenPair, error) {
	var p issueParams
	for _, opt := range opts {
		opt(&p)
	}

	access, err := s.issue(ctx, subjectID, domain.TokenKindAccess, device, s.codec.TTL(domain.TokenKindAccess))
	if err != nil {
		return nil, err
	}

	refreshTTL := s.codec.TTL(domain.TokenKindRefresh)
	if p.rememberMe && s.opts.RefreshRememberTTL > 0 {
		refreshTTL = s.opts.RefreshRememberTTL
	}
	refresh, err := s.issue(ctx, subjectID, domain.TokenKindRefresh, device, refreshTTL)
	if err != nil {
		s.discard(ctx, access.TokenID)
		return nil, err
	}

	s.log.Debug("token pair issued",
		zap.Int64("subject_id", subjectID),
		zap.String("access_id", access.TokenID),
		zap.String("refresh_id", refresh.TokenID),
		zap.String("device", device.DeviceLabel))

	return &TokenPair{
		AccessToken:      access.Token,
		RefreshToken:     refresh.Token,
		AccessExpiresIn:  lifetimeSeconds(access),
		RefreshExpiresAt: refresh.ExpiresAt,
	}, nil
}

// Validate accepts only unexpired, correctly signed access tokens whose id is
// present and unrevoked in the store.
func (s *Service) Validate(ctx context.Context, token string) (*Claims, error) {
	claims, err := s.codec.ParseAndVerify(token, domain.TokenKindAccess)
	if err != nil {
		return nil, err
	}

	revoked, err := s.store.IsRevoked(ctx, claims.TokenID())
	if err != nil {
		s.log.Error("revocation lookup failed", zap.String("token_id", claims.TokenID()), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	if revoked {
		s.log.Warn("revoked access token presented",
			zap.Int64("subject_id", claims.SubjectID),
			zap.String("token_id", claims.TokenID()))
		return nil, ErrTokenRevoked
	}

	return toClaims(claims), nil
}

// Renew exchanges a live refresh token for a new access token.
func (s *Service) Renew(ctx context.Context, refreshToken string, device domain.DeviceMetadata) (*RenewResult, error) {
	claims, err := s.codec.ParseAndVerify(refreshToken, domain.TokenKindRefresh)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRefreshTokenInvalid, err)
	}

	rec, err := s.store.FindByID(ctx, claims.TokenID())
	if err != nil {
		if errors.Is(err, domain.ErrTokenNotFound) {
			s.log.Warn("unknown refresh token presented", zap.String("token_id", claims.TokenID()))
			return nil, ErrRefreshTokenRevoked
		}
		s.log.Error("refresh lookup failed", zap.String("token_id", claims.TokenID()), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	if rec.SubjectID != claims.SubjectID || rec.Kind != domain.TokenKindRefresh {
		s.log.Warn("refresh token does not match ledger", zap.String("token_id", rec.TokenID))
		return nil, ErrRefreshTokenInvalid
	}
	if !rec.IsActive(s.now()) {
		s.log.Warn("revoked refresh token presented",
			zap.Int64("subject_id", rec.SubjectID),
			zap.String("token_id", rec.TokenID))
		return nil, ErrRefreshTokenRevoked
	}

	device = mergeDevice(device, claims.Device)
	result := &RenewResult{}

	// With rotation the replacement refresh and the new access token are
	// saved before the presented refresh token is flipped, so a failure at
	// any step leaves the caller with a usable refresh token.
	var next *jwt.Minted
	if s.opts.RotateRefreshOnRenew {
		next, err = s.issue(ctx, rec.SubjectID, domain.TokenKindRefresh, device, rec.ExpiresAt.Sub(rec.CreatedAt))
		if err != nil {
			return nil, err
		}
	}

	access, err := s.issue(ctx, rec.SubjectID, domain.TokenKindAccess, device, s.codec.TTL(domain.TokenKindAccess))
	if err != nil {
		if next != nil {
			s.discard(ctx, next.TokenID)
		}
		return nil, err
	}

	if next != nil {
		flipped, err := s.store.MarkRevoked(ctx, rec.TokenID)
		if err != nil {
			s.discard(ctx, next.TokenID, access.TokenID)
			return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
		}
		if !flipped {
			s.discard(ctx, next.TokenID, access.TokenID)
			s.log.Warn("refresh token replayed during rotation",
				zap.Int64("subject_id", rec.SubjectID),
				zap.String("token_id", rec.TokenID))
			return nil, ErrRefreshTokenRevoked
		}
		result.RefreshToken = next.Token
	}

	result.AccessToken = access.Token
	result.AccessExpiresIn = lifetimeSeconds(access)

	s.log.Debug("access token renewed",
		zap.Int64("subject_id", rec.SubjectID),
		zap.String("refresh_id", rec.TokenID),
		zap.Bool("rotated", s.opts.RotateRefreshOnRenew))
	return result, nil
}

// RevokeOne marks a single token id revoked. Repeated calls are no-ops.
func (s *Service) RevokeOne(ctx context.Context, tokenID string) error {
	if err := s.store.Revoke(ctx, tokenID); err != nil {
		if errors.Is(err, domain.ErrTokenNotFound) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	s.log.Info("token revoked", zap.String("token_id", tokenID))
	return nil
}

// RevokeAllForSubject is used by logout-everywhere and account disable/delete.
func (s *Service) RevokeAllForSubject(ctx context.Context, subjectID int64) (int64, error) {
	n, err := s.store.RevokeAll(ctx, subjectID)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	s.log.Info("subject tokens revoked", zap.Int64("subject_id", subjectID), zap.Int64("count", n))
	return n, nil
}

func (s *Service) RevokeDevice(ctx context.Context, subjectID int64, deviceLabel string) (int64, error) {
	deviceLabel = strings.TrimSpace(deviceLabel)
	if deviceLabel == "" {
		return 0, ErrDeviceLabelRequired
	}
	n, err := s.store.RevokeByDevice(ctx, subjectID, deviceLabel)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	s.log.Info("device tokens revoked",
		zap.Int64("subject_id", subjectID),
		zap.String("device", deviceLabel),
		zap.Int64("count", n))
	return n, nil
}

func (s *Service) ListSessions(ctx context.Context, subjectID int64) ([]domain.CredentialToken, error) {
	tokens, err := s.store.ListActive(ctx, subjectID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return tokens, nil
}

// Logout revokes the caller's access token and, when given, the refresh
// token it was paired with. An expired refresh token needs no revocation.
func (s *Service) Logout(ctx context.Context, subjectID int64, accessTokenID, refreshToken string) error {
	if err := s.RevokeOne(ctx, accessTokenID); err != nil && !errors.Is(err, domain.ErrTokenNotFound) {
		return err
	}
	if strings.TrimSpace(refreshToken) == "" {
		return nil
	}

	claims, err := s.codec.ParseAndVerify(refreshToken, domain.TokenKindRefresh)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil
		}
		return fmt.Errorf("%w: %w", ErrRefreshTokenInvalid, err)
	}
	if claims.SubjectID != subjectID {
		return ErrRefreshTokenInvalid
	}
	if err := s.RevokeOne(ctx, claims.TokenID()); err != nil && !errors.Is(err, domain.ErrTokenNotFound) {
		return err
	}
	return nil
}

func (s *Service) issue(ctx context.Context, subjectID int64, kind domain.TokenKind, device domain.DeviceMetadata, ttl time.Duration) (*jwt.Minted, error) {
	minted, err := s.codec.MintWithTTL(subjectID, kind, device, ttl)
	if err != nil {
		return nil, err
	}

	row := &domain.CredentialToken{
		SubjectID:     subjectID,
		TokenID:       minted.TokenID,
		Kind:          kind,
		DeviceLabel:   nullableString(device.DeviceLabel),
		UserAgent:     nullableString(device.UserAgent),
		SourceAddress: nullableString(device.SourceAddress),
		CreatedAt:     minted.IssuedAt,
		ExpiresAt:     minted.ExpiresAt,
	}
	if err := s.store.Save(ctx, row); err != nil {
		s.log.Error("token record save failed", zap.String("token_id", minted.TokenID), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return minted, nil
}

// discard revokes tokens that were saved but never handed out.
func (s *Service) discard(ctx context.Context, tokenIDs ...string) {
	for _, id := range tokenIDs {
		if err := s.store.Revoke(ctx, id); err != nil {
			s.log.Error("orphan token revoke failed", zap.String("token_id", id), zap.Error(err))
		}
	}
}

func toClaims(c *jwt.Claims) *Claims {
	out := &Claims{
		SubjectID: c.SubjectID,
		TokenID:   c.TokenID(),
		Kind:      c.Kind,
		Device:    c.Device,
	}
	if c.IssuedAt != nil {
		out.IssuedAt = c.IssuedAt.Time
	}
	if c.ExpiresAt != nil {
		out.ExpiresAt = c.ExpiresAt.Time
	}
	return out
}

func mergeDevice(presented, original domain.DeviceMetadata) domain.DeviceMetadata {
	if presented.DeviceLabel == "" {
		presented.DeviceLabel = original.DeviceLabel
	}
	if presented.UserAgent == "" {
		presented.UserAgent = original.UserAgent
	}
	if presented.SourceAddress == "" {
		presented.SourceAddress = original.SourceAddress
	}
	return presented
}

func lifetimeSeconds(m *jwt.Minted) int64 {
	return int64(m.ExpiresAt.Sub(m.IssuedAt) / time.Second)
}

func nullableString(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}
