package record

import "time"

// Record is a sellable product. Prices are integer cents.
type Record struct {
	ID         string    `json:"id" db:"id"`
	Title      string    `json:"title" db:"title"`
	Year       int       `json:"year,omitempty" db:"year"`
	PriceCents int64     `json:"price_cents" db:"price_cents"`
	Stock      int       `json:"stock" db:"stock"`
	Cover      string    `json:"cover,omitempty" db:"cover"`
	GroupID    string    `json:"group_id" db:"group_id"`
	GenreID    string    `json:"genre_id,omitempty" db:"genre_id"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// Filter narrows a record listing. Zero values are ignored.
type Filter struct {
	GroupID string
	GenreID string
	// Search matches a case-insensitive title substring.
	Search  string
	InStock bool
	Limit   int
	Offset  int
}

const (
	DefaultLimit = 50
	MaxLimit     = 200
)

// Normalize clamps paging values.
func (f Filter) Normalize() Filter {
	if f.Limit <= 0 {
		f.Limit = DefaultLimit
	}
	if f.Limit > MaxLimit {
		f.Limit = MaxLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}
