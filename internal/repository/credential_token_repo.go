package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"authsession/internal/domain"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	ErrTokenNotFound    = domain.ErrTokenNotFound
	ErrDuplicateTokenID = errors.New("duplicate token id")
)

// CredentialTokenRepository is the revocation ledger. It is safe to share
// between service instances: every operation is a single statement.
type CredentialTokenRepository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewCredentialTokenRepository(db *gorm.DB) *CredentialTokenRepository {
	return &CredentialTokenRepository{db: db, now: time.Now}
}

// WithClock replaces the wall clock used for expiry comparisons.
func (r *CredentialTokenRepository) WithClock(now func() time.Time) *CredentialTokenRepository {
	r.now = now
	return r
}

func (r *CredentialTokenRepository) Save(ctx context.Context, t *domain.CredentialToken) error {
	if !t.Kind.Valid() {
		return fmt.Errorf("save token %s: invalid kind %q", t.TokenID, t.Kind)
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = r.now()
	}
	t.CreatedAt = t.CreatedAt.UTC()
	t.ExpiresAt = t.ExpiresAt.UTC()
	if t.Revoked && t.RevokedAt == nil {
		at := r.now().UTC()
		t.RevokedAt = &at
	}

	err := r.db.WithContext(ctx).Create(t).Error
	if err != nil && isUniqueViolation(err) {
		return ErrDuplicateTokenID
	}
	return err
}

func (r *CredentialTokenRepository) FindByID(ctx context.Context, tokenID string) (*domain.CredentialToken, error) {
	var t domain.CredentialToken
	err := r.db.WithContext(ctx).Where("token_id = ?", tokenID).First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTokenNotFound
		}
		return nil, err
	}
	return &t, nil
}

// IsRevoked fails closed: unknown ids, expired rows and lookup errors all
// report true.
func (r *CredentialTokenRepository) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	t, err := r.FindByID(ctx, tokenID)
	if err != nil {
		if errors.Is(err, ErrTokenNotFound) {
			return true, nil
		}
		return true, err
	}
	return !t.IsActive(r.now()), nil
}

// Revoke is idempotent. It returns ErrTokenNotFound only for ids that were
// never issued.
func (r *CredentialTokenRepository) Revoke(ctx context.Context, tokenID string) error {
	_, err := r.MarkRevoked(ctx, tokenID)
	return err
}

// MarkRevoked flips the revoked flag and reports whether this call did it.
// Concurrent callers see exactly one true.
func (r *CredentialTokenRepository) MarkRevoked(ctx context.Context, tokenID string) (bool, error) {
	now := r.now().UTC()
	res := r.db.WithContext(ctx).Model(&domain.CredentialToken{}).
		Where("token_id = ? AND revoked = ?", tokenID, false).
		Updates(map[string]any{"revoked": true, "revoked_at": now})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		return true, nil
	}

	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.CredentialToken{}).
		Where("token_id = ?", tokenID).Count(&count).Error; err != nil {
		return false, err
	}
	if count == 0 {
		return false, ErrTokenNotFound
	}
	return false, nil
}

func (r *CredentialTokenRepository) RevokeAll(ctx context.Context, subjectID int64) (int64, error) {
	now := r.now().UTC()
	res := r.db.WithContext(ctx).Model(&domain.CredentialToken{}).
		Where("subject_id = ? AND revoked = ?", subjectID, false).
		Updates(map[string]any{"revoked": true, "revoked_at": now})
	return res.RowsAffected, res.Error
}

func (r *CredentialTokenRepository) RevokeByDevice(ctx context.Context, subjectID int64, deviceLabel string) (int64, error) {
	now := r.now().UTC()
	res := r.db.WithContext(ctx).Model(&domain.CredentialToken{}).
		Where("subject_id = ? AND device_label = ? AND revoked = ?", subjectID, deviceLabel, false).
		Updates(map[string]any{"revoked": true, "revoked_at": now})
	return res.RowsAffected, res.Error
}

// ListActive returns unrevoked, unexpired rows for subjectID, newest first.
func (r *CredentialTokenRepository) ListActive(ctx context.Context, subjectID int64) ([]domain.CredentialToken, error) {
	var tokens []domain.CredentialToken
	err := r.db.WithContext(ctx).
		Where("subject_id = ? AND revoked = ? AND expires_at > ?", subjectID, false, r.now().UTC()).
		Order("created_at DESC").
		Order("id DESC").
		Find(&tokens).Error
	return tokens, err
}

// CleanupExpired deletes rows whose expiry has passed, revoked or not.
func (r *CredentialTokenRepository) CleanupExpired(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("expires_at <= ?", r.now().UTC()).
		Delete(&domain.CredentialToken{})
	return res.RowsAffected, res.Error
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint")
}
