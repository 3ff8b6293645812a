package errors

var (
	ErrOrderNotFound = &DomainError{
		Code:    KindNotFound,
		Message: "order not found",
	}
	ErrOrderTerminal = &DomainError{
		Code:    KindInvalidTransition,
		Message: "order already reached a terminal status",
	}
	ErrInvalidStatus = &DomainError{
		Code:    KindInvalidArgument,
		Message: "invalid order status",
	}
)
