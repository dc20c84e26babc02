package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/R3E-Network/recordstore/internal/app/domain/cart"
	"github.com/R3E-Network/recordstore/internal/app/domain/order"
	"github.com/R3E-Network/recordstore/internal/app/storage"
)

// CartStore implementation ----------------------------------------------------

func cloneCart(c cart.Cart) cart.Cart {
	details := make([]cart.Detail, len(c.Details))
	copy(details, c.Details)
	c.Details = details
	c.TotalCents = cart.Total(c.Details)
	return c
}

func (s *Store) EnsureCart(_ context.Context, userID string) (cart.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.cartsByUser[userID]; ok {
		return cloneCart(s.carts[id]), nil
	}
	if _, ok := s.users[userID]; !ok {
		return cart.Cart{}, notFound("user", userID)
	}
	now := time.Now().UTC()
	c := cart.Cart{
		ID:        s.nextIDLocked(),
		UserID:    userID,
		Details:   []cart.Detail{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.carts[c.ID] = c
	s.cartsByUser[userID] = c.ID
	return cloneCart(c), nil
}

func (s *Store) GetCart(_ context.Context, id string) (cart.Cart, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.carts[id]
	if !ok {
		return cart.Cart{}, notFound("cart", id)
	}
	return cloneCart(c), nil
}

func (s *Store) GetCartByUser(_ context.Context, userID string) (cart.Cart, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.cartsByUser[userID]
	if !ok {
		return cart.Cart{}, notFound("cart for user", userID)
	}
	return cloneCart(s.carts[id]), nil
}

func (s *Store) SetCartItem(_ context.Context, cartID, recordID string, amount int) (cart.Cart, error) {
	if amount < 0 {
		return cart.Cart{}, fmt.Errorf("amount %d must not be negative", amount)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.changeItemLocked(cartID, recordID, func(int) (int, error) { return amount, nil })
}

func (s *Store) AddCartItem(_ context.Context, cartID, recordID string, delta, limit int) (cart.Cart, error) {
	if delta <= 0 {
		return cart.Cart{}, fmt.Errorf("delta %d must be positive", delta)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.changeItemLocked(cartID, recordID, func(current int) (int, error) {
		return storage.AddToLine(current, delta, limit)
	})
}

// changeItemLocked sets the line for recordID to next(current amount),
// moving the difference between inventory and the cart.
func (s *Store) changeItemLocked(cartID, recordID string, next func(current int) (int, error)) (cart.Cart, error) {
	c, ok := s.carts[cartID]
	if !ok {
		return cart.Cart{}, notFound("cart", cartID)
	}
	rec, ok := s.records[recordID]
	if !ok {
		return cart.Cart{}, notFound("record", recordID)
	}

	idx := -1
	current := 0
	for i, d := range c.Details {
		if d.RecordID == recordID {
			idx = i
			current = d.Amount
			break
		}
	}

	amount, err := next(current)
	if err != nil {
		return cart.Cart{}, err
	}
	delta := amount - current
	if delta > rec.Stock {
		return cart.Cart{}, fmt.Errorf("record %s: %w", recordID, storage.ErrInsufficientStock)
	}

	now := time.Now().UTC()
	rec.Stock -= delta
	rec.UpdatedAt = now
	s.records[recordID] = rec

	details := make([]cart.Detail, 0, len(c.Details)+1)
	details = append(details, c.Details...)
	switch {
	case amount == 0 && idx >= 0:
		details = append(details[:idx], details[idx+1:]...)
	case amount > 0 && idx >= 0:
		details[idx].Amount = amount
		details[idx].PriceCents = rec.PriceCents
		details[idx].UpdatedAt = now
	case amount > 0:
		details = append(details, cart.Detail{
			ID:         s.nextIDLocked(),
			CartID:     cartID,
			RecordID:   recordID,
			Amount:     amount,
			PriceCents: rec.PriceCents,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	}

	c.Details = details
	c.TotalCents = cart.Total(c.Details)
	c.UpdatedAt = now
	s.carts[cartID] = c
	return cloneCart(c), nil
}

func (s *Store) ClearCart(_ context.Context, cartID string) (cart.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.carts[cartID]; !ok {
		return cart.Cart{}, notFound("cart", cartID)
	}
	s.clearCartLocked(cartID, true)
	return cloneCart(s.carts[cartID]), nil
}

func (s *Store) ClearStaleCart(_ context.Context, cartID string, before time.Time) ([]cart.Detail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.carts[cartID]
	if !ok {
		return nil, notFound("cart", cartID)
	}
	if !c.UpdatedAt.Before(before) || len(c.Details) == 0 {
		return []cart.Detail{}, nil
	}
	released := cloneCart(c).Details
	s.clearCartLocked(cartID, true)
	return released, nil
}

// clearCartLocked empties the cart, optionally returning its stock.
func (s *Store) clearCartLocked(cartID string, restock bool) {
	c := s.carts[cartID]
	now := time.Now().UTC()
	if restock {
		for _, d := range c.Details {
			if rec, ok := s.records[d.RecordID]; ok {
				rec.Stock += d.Amount
				rec.UpdatedAt = now
				s.records[d.RecordID] = rec
			}
		}
	}
	c.Details = []cart.Detail{}
	c.TotalCents = 0
	c.UpdatedAt = now
	s.carts[cartID] = c
}

func (s *Store) ListStaleCarts(_ context.Context, before time.Time) ([]cart.Cart, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []cart.Cart
	for _, c := range s.carts {
		if len(c.Details) > 0 && c.UpdatedAt.Before(before) {
			result = append(result, cloneCart(c))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].UpdatedAt.Before(result[j].UpdatedAt) })
	return result, nil
}

// OrderStore implementation ---------------------------------------------------

func cloneOrder(o order.Order) order.Order {
	items := make([]order.Item, len(o.Items))
	copy(items, o.Items)
	o.Items = items
	return o
}

func (s *Store) PlaceOrder(_ context.Context, cartID string) (order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.carts[cartID]
	if !ok {
		return order.Order{}, notFound("cart", cartID)
	}
	if len(c.Details) == 0 {
		return order.Order{}, fmt.Errorf("cart %s: %w", cartID, storage.ErrEmptyCart)
	}

	now := time.Now().UTC()
	o := order.Order{
		ID:        s.nextIDLocked(),
		UserID:    c.UserID,
		Status:    order.StatusPlaced,
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, d := range c.Details {
		o.Items = append(o.Items, order.Item{
			ID:         s.nextIDLocked(),
			OrderID:    o.ID,
			RecordID:   d.RecordID,
			Amount:     d.Amount,
			PriceCents: d.PriceCents,
		})
		o.TotalCents += int64(d.Amount) * d.PriceCents
	}

	s.orders[o.ID] = o
	s.clearCartLocked(cartID, false)
	return cloneOrder(o), nil
}

func (s *Store) GetOrder(_ context.Context, id string) (order.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return order.Order{}, notFound("order", id)
	}
	return cloneOrder(o), nil
}

func (s *Store) ListOrders(_ context.Context, userID string) ([]order.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]order.Order, 0)
	for _, o := range s.orders {
		if userID != "" && o.UserID != userID {
			continue
		}
		result = append(result, cloneOrder(o))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

func (s *Store) CancelOrder(_ context.Context, id string) (order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return order.Order{}, notFound("order", id)
	}
	if o.Status != order.StatusPlaced {
		return order.Order{}, fmt.Errorf("order %s is %s: %w", id, o.Status, storage.ErrConflict)
	}

	now := time.Now().UTC()
	for _, item := range o.Items {
		if rec, ok := s.records[item.RecordID]; ok {
			rec.Stock += item.Amount
			rec.UpdatedAt = now
			s.records[item.RecordID] = rec
		}
	}
	o.Status = order.StatusCancelled
	o.UpdatedAt = now
	s.orders[id] = o
	return cloneOrder(o), nil
}
