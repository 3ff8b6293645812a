package wallet

import (
	"time"
)

// Policy rate-limits one tool. Zero values disable the matching check.
type Policy struct {
	// DailyLimit is the number of items a user may produce per UTC day.
	DailyLimit int
	Cooldown   time.Duration
}

// Config holds configuration for the ledger
type Config struct {
	TrialBalance  int64
	DefaultPolicy Policy
	Policies      map[string]Policy
	Clock         func() time.Time
}

// PolicyFor returns the policy of toolType, falling back to the default.
func (c Config) PolicyFor(toolType string) Policy {
	if p, ok := c.Policies[toolType]; ok {
		return p
	}
	return c.DefaultPolicy
}

// DeductRequest asks the ledger to charge points for one order.
type DeductRequest struct {
	UserID      string
	Amount      int64
	Description string
	OrderID     string
	ToolType    string
	// Count is the number of items produced; 0 means 1.
	Count int
}

// CreditRequest tops a wallet up. A non-empty Reference makes the credit
// idempotent: a second credit with the same reference is rejected.
type CreditRequest struct {
	UserID      string
	Amount      int64
	Description string
	Reference   string
	OrderID     string
}

// MetricsCollector defines the interface for collecting ledger metrics
type MetricsCollector interface {
	// Operation metrics
	RecordOperationDuration(operation string, duration time.Duration)
	RecordOperationResult(operation, result string)

	// Cache metrics
	RecordCacheHit(key string)
	RecordCacheMiss(key string)

	// Balance metrics
	RecordBalanceChange(userID string, oldBalance, newBalance int64)

	// Error metrics
	RecordError(operation, errType string)
}
