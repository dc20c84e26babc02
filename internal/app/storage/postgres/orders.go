package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/R3E-Network/recordstore/internal/app/domain/cart"
	"github.com/R3E-Network/recordstore/internal/app/domain/order"
	"github.com/R3E-Network/recordstore/internal/app/storage"
)

const (
	orderColumns = `id, user_id, total_cents, status, created_at, updated_at`
	itemColumns  = `id, order_id, record_id, amount, price_cents`
)

// PlaceOrder moves the cart lines into a new order. Stock was already taken
// when the lines were added, so inventory is not touched here.
func (s *Store) PlaceOrder(ctx context.Context, cartID string) (order.Order, error) {
	var out order.Order
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var c cart.Cart
		if err := tx.GetContext(ctx, &c, `SELECT `+cartColumns+` FROM carts WHERE id = $1 FOR UPDATE`, cartID); err != nil {
			return mapError("cart", cartID, err)
		}
		details := []cart.Detail{}
		if err := tx.SelectContext(ctx, &details, `
			SELECT `+detailColumns+` FROM cart_details WHERE cart_id = $1 ORDER BY created_at, id
		`, cartID); err != nil {
			return mapError("cart details", cartID, err)
		}
		if len(details) == 0 {
			return fmt.Errorf("cart %s: %w", cartID, storage.ErrEmptyCart)
		}

		now := time.Now().UTC()
		o := order.Order{
			ID:         uuid.NewString(),
			UserID:     c.UserID,
			TotalCents: cart.Total(details),
			Status:     order.StatusPlaced,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO orders (id, user_id, total_cents, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $5)
		`, o.ID, o.UserID, o.TotalCents, o.Status, now); err != nil {
			return mapError("order", o.ID, err)
		}

		for _, d := range details {
			item := order.Item{
				ID:         uuid.NewString(),
				OrderID:    o.ID,
				RecordID:   d.RecordID,
				Amount:     d.Amount,
				PriceCents: d.PriceCents,
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO order_items (id, order_id, record_id, amount, price_cents)
				VALUES ($1, $2, $3, $4, $5)
			`, item.ID, item.OrderID, item.RecordID, item.Amount, item.PriceCents); err != nil {
				return mapError("order item", d.RecordID, err)
			}
			o.Items = append(o.Items, item)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM cart_details WHERE cart_id = $1`, cartID); err != nil {
			return mapError("cart", cartID, err)
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE carts SET total_cents = 0, updated_at = $2 WHERE id = $1
		`, cartID, now); err != nil {
			return mapError("cart", cartID, err)
		}

		out = o
		return nil
	})
	if err != nil {
		return order.Order{}, err
	}
	return out, nil
}

func (s *Store) GetOrder(ctx context.Context, id string) (order.Order, error) {
	var o order.Order
	if err := s.db.GetContext(ctx, &o, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id); err != nil {
		return order.Order{}, mapError("order", id, err)
	}
	items := []order.Item{}
	if err := s.db.SelectContext(ctx, &items, `
		SELECT `+itemColumns+` FROM order_items WHERE order_id = $1 ORDER BY record_id
	`, id); err != nil {
		return order.Order{}, mapError("order items", id, err)
	}
	o.Items = items
	return o, nil
}

func (s *Store) ListOrders(ctx context.Context, userID string) ([]order.Order, error) {
	orders := []order.Order{}
	query := `SELECT ` + orderColumns + ` FROM orders`
	var args []interface{}
	if userID != "" {
		query += ` WHERE user_id = $1`
		args = append(args, userID)
	}
	query += ` ORDER BY created_at DESC`
	if err := s.db.SelectContext(ctx, &orders, query, args...); err != nil {
		return nil, mapError("orders for user", userID, err)
	}
	if len(orders) == 0 {
		return orders, nil
	}

	ids := make([]string, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
	}
	items := []order.Item{}
	if err := s.db.SelectContext(ctx, &items, `
		SELECT `+itemColumns+` FROM order_items WHERE order_id = ANY($1::uuid[]) ORDER BY record_id
	`, pq.Array(ids)); err != nil {
		return nil, err
	}
	byOrder := make(map[string][]order.Item, len(orders))
	for _, item := range items {
		byOrder[item.OrderID] = append(byOrder[item.OrderID], item)
	}
	for i := range orders {
		orders[i].Items = byOrder[orders[i].ID]
	}
	return orders, nil
}

func (s *Store) CancelOrder(ctx context.Context, id string) (order.Order, error) {
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var status order.Status
		if err := tx.GetContext(ctx, &status, `SELECT status FROM orders WHERE id = $1 FOR UPDATE`, id); err != nil {
			return mapError("order", id, err)
		}
		if status != order.StatusPlaced {
			return fmt.Errorf("order %s is %s: %w", id, status, storage.ErrConflict)
		}

		now := time.Now().UTC()
		if _, err := tx.ExecContext(ctx, `
			UPDATE records r
			SET stock = r.stock + i.amount, updated_at = $2
			FROM order_items i
			WHERE i.order_id = $1 AND r.id = i.record_id
		`, id, now); err != nil {
			return mapError("order", id, err)
		}
		_, err := tx.ExecContext(ctx, `
			UPDATE orders SET status = $2, updated_at = $3 WHERE id = $1
		`, id, order.StatusCancelled, now)
		return mapError("order", id, err)
	})
	if err != nil {
		return order.Order{}, err
	}
	return s.GetOrder(ctx, id)
}
