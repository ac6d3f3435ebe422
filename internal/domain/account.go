package domain

import (
	"errors"
	"time"
)

var ErrAccountNotFound = errors.New("account not found")

// Account is the subject status consulted by the bearer middleware. Identity
// and credentials live elsewhere.
type Account struct {
	ID        int64      `json:"id" gorm:"primaryKey;autoIncrement:false"`
	Disabled  bool       `json:"disabled" gorm:"not null;default:false"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (Account) TableName() string { return "accounts" }

func (a *Account) IsDeleted() bool { return a.DeletedAt != nil }

func (a *Account) CanAuthenticate() bool {
	return a != nil && !a.Disabled && !a.IsDeleted()
}
