package storage

import (
	"context"
	"time"

	"github.com/R3E-Network/recordstore/internal/app/domain/cart"
	"github.com/R3E-Network/recordstore/internal/app/domain/genre"
	"github.com/R3E-Network/recordstore/internal/app/domain/group"
	"github.com/R3E-Network/recordstore/internal/app/domain/order"
	"github.com/R3E-Network/recordstore/internal/app/domain/record"
	"github.com/R3E-Network/recordstore/internal/app/domain/user"
)

// UserStore persists users.
type UserStore interface {
	CreateUser(ctx context.Context, u user.User) (user.User, error)
	UpdateUser(ctx context.Context, u user.User) (user.User, error)
	GetUser(ctx context.Context, id string) (user.User, error)
	GetUserByEmail(ctx context.Context, email string) (user.User, error)
	ListUsers(ctx context.Context) ([]user.User, error)
	// DeleteUser removes the user and their cart, returning stock held by the
	// cart. Users with orders cannot be deleted (ErrConflict).
	DeleteUser(ctx context.Context, id string) error
}

// GenreStore persists music genres.
type GenreStore interface {
	CreateGenre(ctx context.Context, g genre.Genre) (genre.Genre, error)
	UpdateGenre(ctx context.Context, g genre.Genre) (genre.Genre, error)
	GetGenre(ctx context.Context, id string) (genre.Genre, error)
	ListGenres(ctx context.Context) ([]genre.Genre, error)
	DeleteGenre(ctx context.Context, id string) error
}

// GroupStore persists groups (artists).
type GroupStore interface {
	CreateGroup(ctx context.Context, g group.Group) (group.Group, error)
	UpdateGroup(ctx context.Context, g group.Group) (group.Group, error)
	GetGroup(ctx context.Context, id string) (group.Group, error)
	ListGroups(ctx context.Context, genreID string) ([]group.Group, error)
	DeleteGroup(ctx context.Context, id string) error
}

// RecordStore persists records and their inventory.
type RecordStore interface {
	CreateRecord(ctx context.Context, r record.Record) (record.Record, error)
	// UpdateRecord changes catalog fields; stock is left untouched.
	UpdateRecord(ctx context.Context, r record.Record) (record.Record, error)
	GetRecord(ctx context.Context, id string) (record.Record, error)
	ListRecords(ctx context.Context, filter record.Filter) ([]record.Record, error)
	DeleteRecord(ctx context.Context, id string) error
	// AdjustStock adds delta to the record's stock. Returns
	// ErrInsufficientStock when the result would be negative.
	AdjustStock(ctx context.Context, id string, delta int) (record.Record, error)
}

// CartStore persists carts and moves stock between carts and inventory.
type CartStore interface {
	// EnsureCart returns the user's cart, creating it if needed. Concurrent
	// callers for the same user observe the same cart.
	EnsureCart(ctx context.Context, userID string) (cart.Cart, error)
	GetCart(ctx context.Context, id string) (cart.Cart, error)
	GetCartByUser(ctx context.Context, userID string) (cart.Cart, error)
	// SetCartItem sets the line amount for recordID atomically, moving the
	// difference from or to inventory. amount 0 removes the line.
	SetCartItem(ctx context.Context, cartID, recordID string, amount int) (cart.Cart, error)
	// AddCartItem raises the line amount by delta (> 0) under the same rules
	// as SetCartItem, reading the current amount inside the same transaction.
	// A positive limit caps the resulting line amount; going past it returns
	// ErrLineLimit.
	AddCartItem(ctx context.Context, cartID, recordID string, delta, limit int) (cart.Cart, error)
	// ClearCart removes all lines and returns their stock.
	ClearCart(ctx context.Context, cartID string) (cart.Cart, error)
	// ClearStaleCart clears the cart only if it was last changed before the
	// cutoff, checked under the same lock as the clear. It returns the lines
	// whose stock went back to inventory; none when the cart was touched.
	ClearStaleCart(ctx context.Context, cartID string, before time.Time) ([]cart.Detail, error)
	// ListStaleCarts returns carts holding lines last changed before the cutoff.
	ListStaleCarts(ctx context.Context, before time.Time) ([]cart.Cart, error)
}

// OrderStore persists orders.
type OrderStore interface {
	// PlaceOrder converts the cart's lines into an order and empties the cart
	// without returning stock. Returns ErrEmptyCart for carts without lines.
	PlaceOrder(ctx context.Context, cartID string) (order.Order, error)
	GetOrder(ctx context.Context, id string) (order.Order, error)
	// ListOrders lists orders for userID, or every order when userID is empty.
	ListOrders(ctx context.Context, userID string) ([]order.Order, error)
	// CancelOrder marks a placed order cancelled and returns its stock.
	CancelOrder(ctx context.Context, id string) (order.Order, error)
}
