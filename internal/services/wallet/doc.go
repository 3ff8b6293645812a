/*
Package wallet is the points ledger. It owns every balance mutation.

Each mutation runs as one transaction scoped to the user's wallet row:
lock the row, evaluate the policy checks, apply a conditional delta and
append a ledger entry. Two concurrent debits for the same user therefore
never both see a balance that only covers one of them.

Usage:

	svc := wallet.NewService(repo, profiles, broker, wallet.Config{
	    TrialBalance: 100,
	    Policies: map[string]wallet.Policy{
	        "social": {DailyLimit: 20, Cooldown: 30 * time.Second},
	    },
	}, nil)

	w, created, err := svc.InitializeWallet(ctx, identity)

	entry, err := svc.DeductPoints(ctx, wallet.DeductRequest{
	    UserID:   userID,
	    Amount:   30,
	    OrderID:  order.ID,
	    ToolType: "social",
	})

Error Handling:

Failures are *errors.DomainError values. Callers switch on the kind:
- INSUFFICIENT_FUNDS: balance below the requested amount (Available, Requested set)
- DAILY_LIMIT: per-tool daily item limit reached (Limit, Used, ResetAt set)
- COOLDOWN: tool used too recently (RetryAfter, ResetAt set)
- DUPLICATE_CHARGE: the order already has a debit
- NOT_FOUND: no wallet for the user
- STORAGE_UNAVAILABLE: the store could not be reached; safe to retry after
  re-checking the order

Balance Feed:

After every committed mutation the service drops the cached profile and
publishes the new balance on the feed. SubscribeToBalance hands out an
owned subscription that first receives the current balance.
*/
package wallet
