package models

import "time"

// Entry kinds
const (
	EntryDebit  = "debit"
	EntryCredit = "credit"
)

// WalletEntry is one append-only line of the points ledger. Every balance
// mutation writes exactly one entry in the same transaction. Version is the
// wallet version the mutation produced, so it is unique per user and
// follows commit order.
type WalletEntry struct {
	ID             string    `gorm:"primaryKey;size:36" json:"id"`
	UserID         string    `gorm:"size:128;not null;uniqueIndex:idx_entries_user_version,priority:1;index:idx_entries_user_tool,priority:1" json:"user_id"`
	OrderID        string    `gorm:"size:36;index" json:"order_id,omitempty"`
	Kind           string    `gorm:"size:16;not null" json:"kind"`
	ToolType       string    `gorm:"size:64;index:idx_entries_user_tool,priority:2" json:"tool_type,omitempty"`
	Delta          int64     `gorm:"not null" json:"delta"`
	BalanceAfter   int64     `gorm:"not null" json:"balance_after"`
	Version        int64     `gorm:"not null;uniqueIndex:idx_entries_user_version,priority:2,sort:desc" json:"version"`
	Count          int       `gorm:"not null;default:1" json:"count"`
	Description    string    `json:"description"`
	IdempotencyKey string    `gorm:"size:128;uniqueIndex" json:"-"`
	CreatedAt      time.Time `gorm:"index:idx_entries_user_tool,priority:3" json:"created_at"`
}

func (WalletEntry) TableName() string { return "wallet_entries" }
