package order

import "time"

// Status is the lifecycle state of an order.
type Status string

const (
	StatusPlaced    Status = "placed"
	StatusCancelled Status = "cancelled"
)

// Order is a checked-out cart.
type Order struct {
	ID         string    `json:"id" db:"id"`
	UserID     string    `json:"user_id" db:"user_id"`
	TotalCents int64     `json:"total_cents" db:"total_cents"`
	Status     Status    `json:"status" db:"status"`
	Items      []Item    `json:"items" db:"-"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// Item is a purchased line with the unit price copied from the cart.
type Item struct {
	ID         string `json:"id" db:"id"`
	OrderID    string `json:"order_id" db:"order_id"`
	RecordID   string `json:"record_id" db:"record_id"`
	Amount     int    `json:"amount" db:"amount"`
	PriceCents int64  `json:"price_cents" db:"price_cents"`
}
