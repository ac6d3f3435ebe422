package repository

import (
	"context"
	"errors"
	"time"

	"authsession/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AccountRepository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db, now: time.Now}
}

func (r *AccountRepository) GetAccount(ctx context.Context, id int64) (*domain.Account, error) {
	var a domain.Account
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// SetDisabled upserts the status row for id.
func (r *AccountRepository) SetDisabled(ctx context.Context, id int64, disabled bool) error {
	a := domain.Account{ID: id, Disabled: disabled, UpdatedAt: r.now().UTC()}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"disabled", "updated_at"}),
	}).Create(&a).Error
}

func (r *AccountRepository) MarkDeleted(ctx context.Context, id int64) error {
	now := r.now().UTC()
	a := domain.Account{ID: id, DeletedAt: &now, UpdatedAt: now}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"deleted_at", "updated_at"}),
	}).Create(&a).Error
}
