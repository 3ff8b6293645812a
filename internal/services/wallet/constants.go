package wallet

import "time"

// Default configuration values
const (
	DefaultListLimit = 50
	MaxListLimit     = 200
	ProfileCacheTTL  = 5 * time.Minute
)

// Idempotency key prefixes for ledger entries
const (
	debitKeyPrefix  = "debit:"
	creditKeyPrefix = "credit:"
	grantKeyPrefix  = "grant:"
)
