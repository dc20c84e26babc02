package cart

import "time"

// Cart holds the lines a user intends to buy. Each user owns exactly one cart.
type Cart struct {
	ID         string    `json:"id" db:"id"`
	UserID     string    `json:"user_id" db:"user_id"`
	TotalCents int64     `json:"total_cents" db:"total_cents"`
	Details    []Detail  `json:"details" db:"-"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// Detail is a cart line. Amount units of the record were taken from stock.
type Detail struct {
	ID            string    `json:"id" db:"id"`
	CartID        string    `json:"cart_id" db:"cart_id"`
	RecordID      string    `json:"record_id" db:"record_id"`
	Amount        int       `json:"amount" db:"amount"`
	PriceCents    int64     `json:"price_cents" db:"price_cents"`
	SubtotalCents int64     `json:"subtotal_cents" db:"-"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// Total sums amount*price over details and fills each SubtotalCents.
func Total(details []Detail) int64 {
	var total int64
	for i := range details {
		details[i].SubtotalCents = int64(details[i].Amount) * details[i].PriceCents
		total += details[i].SubtotalCents
	}
	return total
}

// Find returns the line for recordID, if any.
func (c Cart) Find(recordID string) (Detail, bool) {
	for _, d := range c.Details {
		if d.RecordID == recordID {
			return d, true
		}
	}
	return Detail{}, false
}
