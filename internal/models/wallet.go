package models

import (
	"time"
)

// Account types
const (
	AccountTrial = "trial"
	AccountPaid  = "paid"
)

// Wallet is the per-user points balance. Balance only changes through the
// ledger, as a signed delta applied inside a transaction. Version goes up by
// one on every write to the row and orders those writes across processes.
type Wallet struct {
	UserID          string     `gorm:"primaryKey;size:128" json:"user_id"`
	Email           string     `gorm:"size:320" json:"email"`
	DisplayName     string     `json:"display_name"`
	AvatarRef       string     `json:"avatar_ref,omitempty"`
	EmailVerified   bool       `json:"email_verified"`
	Balance         int64      `gorm:"not null;default:0;check:balance >= 0" json:"balance"`
	AccountType     string     `gorm:"size:16;not null;default:'trial'" json:"account_type"`
	IsAdmin         bool       `gorm:"not null;default:false" json:"is_admin"`
	Version         int64      `gorm:"not null;default:0" json:"version"`
	LastDeductionAt *time.Time `json:"last_deduction_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func (Wallet) TableName() string { return "wallets" }

// Identity is what the external identity provider tells us about a user.
type Identity struct {
	UserID        string
	Email         string
	DisplayName   string
	AvatarRef     string
	EmailVerified bool
}
