package carts

import (
	"context"
	stderrors "errors"
	"strings"

	"github.com/R3E-Network/recordstore/internal/app/domain/cart"
	"github.com/R3E-Network/recordstore/internal/app/metrics"
	"github.com/R3E-Network/recordstore/internal/app/services"
	"github.com/R3E-Network/recordstore/internal/app/storage"
	"github.com/R3E-Network/recordstore/internal/errors"
	"github.com/R3E-Network/recordstore/internal/logging"
)

// MaxLineAmount caps how many units of one record a cart line may hold.
const MaxLineAmount = 100

// Service manages each user's cart. Stock moves between inventory and the
// cart as lines change; the stores do the moving atomically.
type Service struct {
	carts storage.CartStore
	log   *logging.Logger
}

func New(carts storage.CartStore, log *logging.Logger) *Service {
	if log == nil {
		log = logging.NewDefault("carts")
	}
	return &Service{carts: carts, log: log}
}

// Get returns the user's cart, creating an empty one on first use.
func (s *Service) Get(ctx context.Context, userID string) (cart.Cart, error) {
	c, err := s.carts.EnsureCart(ctx, userID)
	if err != nil {
		return cart.Cart{}, services.StoreError(err, "user", userID)
	}
	return c, nil
}

// AddItem adds amount units of the record to the user's cart on top of what
// the line already holds.
func (s *Service) AddItem(ctx context.Context, userID, recordID string, amount int) (cart.Cart, error) {
	recordID = strings.TrimSpace(recordID)
	if recordID == "" {
		return cart.Cart{}, errors.Required("record_id")
	}
	if amount <= 0 || amount > MaxLineAmount {
		return cart.Cart{}, errors.Validation("amount", "must be between 1 and 100")
	}
	c, err := s.Get(ctx, userID)
	if err != nil {
		return cart.Cart{}, err
	}
	updated, err := s.carts.AddCartItem(ctx, c.ID, recordID, amount, MaxLineAmount)
	metrics.RecordCartOperation("add", err)
	if stderrors.Is(err, storage.ErrLineLimit) {
		return cart.Cart{}, errors.Validation("amount", "line would exceed 100 units")
	}
	if err != nil {
		return cart.Cart{}, services.StoreError(err, "record", recordID)
	}
	s.logChange(ctx, "cart item added", updated, recordID, amount)
	return updated, nil
}

// SetItem sets the line amount. Zero removes the line.
func (s *Service) SetItem(ctx context.Context, userID, recordID string, amount int) (cart.Cart, error) {
	recordID = strings.TrimSpace(recordID)
	if recordID == "" {
		return cart.Cart{}, errors.Required("record_id")
	}
	if amount < 0 || amount > MaxLineAmount {
		return cart.Cart{}, errors.Validation("amount", "must be between 0 and 100")
	}
	c, err := s.Get(ctx, userID)
	if err != nil {
		return cart.Cart{}, err
	}
	updated, err := s.carts.SetCartItem(ctx, c.ID, recordID, amount)
	metrics.RecordCartOperation("set", err)
	if err != nil {
		return cart.Cart{}, services.StoreError(err, "record", recordID)
	}
	s.logChange(ctx, "cart item set", updated, recordID, amount)
	return updated, nil
}

// RemoveItem drops the line for recordID and returns its stock.
func (s *Service) RemoveItem(ctx context.Context, userID, recordID string) (cart.Cart, error) {
	recordID = strings.TrimSpace(recordID)
	if recordID == "" {
		return cart.Cart{}, errors.Required("record_id")
	}
	c, err := s.Get(ctx, userID)
	if err != nil {
		return cart.Cart{}, err
	}
	if _, ok := c.Find(recordID); !ok {
		return cart.Cart{}, errors.NotFound("cart line", recordID)
	}
	updated, err := s.carts.SetCartItem(ctx, c.ID, recordID, 0)
	metrics.RecordCartOperation("remove", err)
	if err != nil {
		return cart.Cart{}, services.StoreError(err, "record", recordID)
	}
	s.logChange(ctx, "cart item removed", updated, recordID, 0)
	return updated, nil
}

// Clear empties the cart and returns every unit to inventory.
func (s *Service) Clear(ctx context.Context, userID string) (cart.Cart, error) {
	c, err := s.Get(ctx, userID)
	if err != nil {
		return cart.Cart{}, err
	}
	cleared, err := s.carts.ClearCart(ctx, c.ID)
	metrics.RecordCartOperation("clear", err)
	if err != nil {
		return cart.Cart{}, services.StoreError(err, "cart", c.ID)
	}
	s.log.WithContext(ctx).WithField("cart_id", c.ID).WithField("lines", len(c.Details)).Info("cart cleared")
	return cleared, nil
}

func (s *Service) logChange(ctx context.Context, msg string, c cart.Cart, recordID string, amount int) {
	s.log.WithContext(ctx).
		WithField("cart_id", c.ID).
		WithField("record_id", recordID).
		WithField("amount", amount).
		WithField("total_cents", c.TotalCents).
		Debug(msg)
}
