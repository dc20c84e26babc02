package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/R3E-Network/recordstore/internal/app/domain/cart"
	"github.com/R3E-Network/recordstore/internal/app/storage"
)

const (
	cartColumns   = `id, user_id, total_cents, created_at, updated_at`
	detailColumns = `id, cart_id, record_id, amount, price_cents, created_at, updated_at`
)

// EnsureCart relies on the unique user_id constraint: concurrent inserts for
// the same user collapse into one row and every caller reads that row back.
func (s *Store) EnsureCart(ctx context.Context, userID string) (cart.Cart, error) {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO carts (id, user_id, total_cents, created_at, updated_at)
		VALUES ($1, $2, 0, $3, $3)
		ON CONFLICT (user_id) DO NOTHING
	`, uuid.NewString(), userID, now)
	if err != nil {
		mapped := mapError("cart for user", userID, err)
		if errors.Is(mapped, storage.ErrConflict) {
			// Foreign key failure: the user does not exist.
			return cart.Cart{}, fmt.Errorf("user %s: %w", userID, storage.ErrNotFound)
		}
		return cart.Cart{}, mapped
	}
	return s.GetCartByUser(ctx, userID)
}

func (s *Store) GetCart(ctx context.Context, id string) (cart.Cart, error) {
	return loadCart(ctx, s.db, `WHERE id = $1`, id)
}

func (s *Store) GetCartByUser(ctx context.Context, userID string) (cart.Cart, error) {
	return loadCart(ctx, s.db, `WHERE user_id = $1`, userID)
}

func loadCart(ctx context.Context, q sqlx.QueryerContext, where string, arg string) (cart.Cart, error) {
	var c cart.Cart
	if err := sqlx.GetContext(ctx, q, &c, `SELECT `+cartColumns+` FROM carts `+where, arg); err != nil {
		return cart.Cart{}, mapError("cart", arg, err)
	}
	details := []cart.Detail{}
	if err := sqlx.SelectContext(ctx, q, &details, `
		SELECT `+detailColumns+` FROM cart_details WHERE cart_id = $1 ORDER BY created_at, id
	`, c.ID); err != nil {
		return cart.Cart{}, mapError("cart details", c.ID, err)
	}
	c.Details = details
	c.TotalCents = cart.Total(c.Details)
	return c, nil
}

// lockCart takes a row lock on the cart so concurrent mutations of the same
// cart run one after another.
func lockCart(ctx context.Context, tx *sqlx.Tx, cartID string) error {
	var id string
	if err := tx.GetContext(ctx, &id, `SELECT id FROM carts WHERE id = $1 FOR UPDATE`, cartID); err != nil {
		return mapError("cart", cartID, err)
	}
	return nil
}

func refreshCartTotal(ctx context.Context, tx *sqlx.Tx, cartID string, now time.Time) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE carts
		SET total_cents = (SELECT COALESCE(SUM(amount * price_cents), 0) FROM cart_details WHERE cart_id = $1),
			updated_at = $2
		WHERE id = $1
	`, cartID, now)
	return err
}

func (s *Store) SetCartItem(ctx context.Context, cartID, recordID string, amount int) (cart.Cart, error) {
	if amount < 0 {
		return cart.Cart{}, fmt.Errorf("amount %d must not be negative", amount)
	}
	return s.changeCartItem(ctx, cartID, recordID, func(int) (int, error) { return amount, nil })
}

func (s *Store) AddCartItem(ctx context.Context, cartID, recordID string, delta, limit int) (cart.Cart, error) {
	if delta <= 0 {
		return cart.Cart{}, fmt.Errorf("delta %d must be positive", delta)
	}
	return s.changeCartItem(ctx, cartID, recordID, func(current int) (int, error) {
		return storage.AddToLine(current, delta, limit)
	})
}

// changeCartItem sets the line for recordID to next(current amount) while
// holding the cart row lock, moving the difference between inventory and
// the cart.
func (s *Store) changeCartItem(ctx context.Context, cartID, recordID string, next func(current int) (int, error)) (cart.Cart, error) {
	var out cart.Cart
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := lockCart(ctx, tx, cartID); err != nil {
			return err
		}

		current := 0
		err := tx.GetContext(ctx, &current, `
			SELECT amount FROM cart_details WHERE cart_id = $1 AND record_id = $2
		`, cartID, recordID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return mapError("cart line", recordID, err)
		}
		amount, err := next(current)
		if err != nil {
			return err
		}
		delta := amount - current
		now := time.Now().UTC()

		// The conditional update is the stock check: zero rows means the record
		// is missing or cannot cover the increase.
		var price int64
		err = tx.GetContext(ctx, &price, `
			UPDATE records
			SET stock = stock - $2, updated_at = $3
			WHERE id = $1 AND stock >= $2
			RETURNING price_cents
		`, recordID, delta, now)
		if err != nil {
			if !errors.Is(err, sql.ErrNoRows) {
				return mapError("record", recordID, err)
			}
			var exists bool
			if err := tx.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM records WHERE id = $1)`, recordID); err != nil {
				return mapError("record", recordID, err)
			}
			if !exists {
				return fmt.Errorf("record %s: %w", recordID, storage.ErrNotFound)
			}
			return fmt.Errorf("record %s: %w", recordID, storage.ErrInsufficientStock)
		}

		if amount == 0 {
			if _, err := tx.ExecContext(ctx, `
				DELETE FROM cart_details WHERE cart_id = $1 AND record_id = $2
			`, cartID, recordID); err != nil {
				return mapError("cart line", recordID, err)
			}
		} else {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO cart_details (id, cart_id, record_id, amount, price_cents, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $6)
				ON CONFLICT (cart_id, record_id) DO UPDATE
				SET amount = EXCLUDED.amount, price_cents = EXCLUDED.price_cents, updated_at = EXCLUDED.updated_at
			`, uuid.NewString(), cartID, recordID, amount, price, now); err != nil {
				return mapError("cart line", recordID, err)
			}
		}

		if err := refreshCartTotal(ctx, tx, cartID, now); err != nil {
			return mapError("cart", cartID, err)
		}

		loaded, err := loadCart(ctx, tx, `WHERE id = $1`, cartID)
		if err != nil {
			return err
		}
		out = loaded
		return nil
	})
	if err != nil {
		return cart.Cart{}, err
	}
	return out, nil
}

func (s *Store) ClearCart(ctx context.Context, cartID string) (cart.Cart, error) {
	var out cart.Cart
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := lockCart(ctx, tx, cartID); err != nil {
			return err
		}
		if err := releaseCart(ctx, tx, cartID, time.Now().UTC()); err != nil {
			return err
		}
		loaded, err := loadCart(ctx, tx, `WHERE id = $1`, cartID)
		if err != nil {
			return err
		}
		out = loaded
		return nil
	})
	if err != nil {
		return cart.Cart{}, err
	}
	return out, nil
}

// ClearStaleCart re-reads updated_at after taking the row lock, so a change
// committed after the cart was listed as stale keeps it intact.
func (s *Store) ClearStaleCart(ctx context.Context, cartID string, before time.Time) ([]cart.Detail, error) {
	released := []cart.Detail{}
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var updatedAt time.Time
		if err := tx.GetContext(ctx, &updatedAt, `SELECT updated_at FROM carts WHERE id = $1 FOR UPDATE`, cartID); err != nil {
			return mapError("cart", cartID, err)
		}
		if !updatedAt.Before(before) {
			return nil
		}
		if err := tx.SelectContext(ctx, &released, `
			SELECT `+detailColumns+` FROM cart_details WHERE cart_id = $1 ORDER BY created_at, id
		`, cartID); err != nil {
			return mapError("cart details", cartID, err)
		}
		if len(released) == 0 {
			return nil
		}
		return releaseCart(ctx, tx, cartID, time.Now().UTC())
	})
	if err != nil {
		return nil, err
	}
	return released, nil
}

// releaseCart returns every line's units to inventory and empties the cart.
// The caller holds the cart row lock.
func releaseCart(ctx context.Context, tx *sqlx.Tx, cartID string, now time.Time) error {
	if _, err := tx.ExecContext(ctx, `
		UPDATE records r
		SET stock = r.stock + d.amount, updated_at = $2
		FROM cart_details d
		WHERE d.cart_id = $1 AND r.id = d.record_id
	`, cartID, now); err != nil {
		return mapError("cart", cartID, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM cart_details WHERE cart_id = $1`, cartID); err != nil {
		return mapError("cart", cartID, err)
	}
	if err := refreshCartTotal(ctx, tx, cartID, now); err != nil {
		return mapError("cart", cartID, err)
	}
	return nil
}

func (s *Store) ListStaleCarts(ctx context.Context, before time.Time) ([]cart.Cart, error) {
	carts := []cart.Cart{}
	if err := s.db.SelectContext(ctx, &carts, `
		SELECT `+cartColumns+` FROM carts c
		WHERE c.updated_at < $1
		  AND EXISTS (SELECT 1 FROM cart_details d WHERE d.cart_id = c.id)
		ORDER BY c.updated_at
	`, before); err != nil {
		return nil, err
	}
	if len(carts) == 0 {
		return carts, nil
	}

	ids := make([]string, len(carts))
	for i, c := range carts {
		ids[i] = c.ID
	}
	details := []cart.Detail{}
	if err := s.db.SelectContext(ctx, &details, `
		SELECT `+detailColumns+` FROM cart_details WHERE cart_id = ANY($1::uuid[]) ORDER BY created_at, id
	`, pq.Array(ids)); err != nil {
		return nil, err
	}

	byCart := make(map[string][]cart.Detail, len(carts))
	for _, d := range details {
		byCart[d.CartID] = append(byCart[d.CartID], d)
	}
	for i := range carts {
		carts[i].Details = byCart[carts[i].ID]
		carts[i].TotalCents = cart.Total(carts[i].Details)
	}
	return carts, nil
}
