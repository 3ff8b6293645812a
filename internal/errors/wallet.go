package errors

var (
	ErrInsufficientFunds = &DomainError{
		Code:    KindInsufficientFunds,
		Message: "insufficient points balance",
	}
	ErrDailyLimit = &DomainError{
		Code:    KindDailyLimit,
		Message: "daily usage limit reached",
	}
	ErrCooldown = &DomainError{
		Code:    KindCooldown,
		Message: "tool is cooling down",
	}
	ErrInvalidAmount = &DomainError{
		Code:    KindInvalidArgument,
		Message: "invalid amount",
	}
	ErrWalletNotFound = &DomainError{
		Code:    KindNotFound,
		Message: "wallet not found",
	}
	ErrDuplicateCharge = &DomainError{
		Code:    KindDuplicateCharge,
		Message: "order already charged",
	}
	ErrStorageUnavailable = &DomainError{
		Code:    KindStorageUnavailable,
		Message: "storage unavailable",
	}
)
