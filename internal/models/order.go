package models

import "time"

type OrderStatus string

// Order statuses
const (
	OrderPending   OrderStatus = "pending"
	OrderCompleted OrderStatus = "completed"
	OrderFailed    OrderStatus = "failed"
)

// IsTerminal reports whether no further transition is allowed.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderCompleted || s == OrderFailed
}

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	return s == OrderPending || s.IsTerminal()
}

// Order records one generation attempt. Cost and input never change after
// creation; status moves once, from pending to a terminal value. Seq is the
// insertion order and breaks ties between orders created in the same instant.
type Order struct {
	Seq          int64       `gorm:"primaryKey;autoIncrement" json:"-"`
	ID           string      `gorm:"size:36;not null;uniqueIndex" json:"id"`
	UserID       string      `gorm:"size:128;not null;index:idx_orders_user_created,priority:1" json:"user_id"`
	ToolType     string      `gorm:"size:64;not null" json:"tool_type"`
	Status       OrderStatus `gorm:"size:16;not null;default:'pending';index:idx_orders_status_created,priority:1" json:"status"`
	InputData    JSON        `json:"input_data"`
	Cost         int64       `gorm:"not null" json:"cost"`
	OutputData   JSON        `json:"output_data,omitempty"`
	ErrorMessage string      `json:"error_message,omitempty"`
	CreatedAt    time.Time   `gorm:"index:idx_orders_user_created,priority:2,sort:desc;index:idx_orders_status_created,priority:2" json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

func (Order) TableName() string { return "orders" }
