package orders

import (
	"context"
	stderrors "errors"

	"github.com/R3E-Network/recordstore/internal/app/domain/order"
	"github.com/R3E-Network/recordstore/internal/app/metrics"
	"github.com/R3E-Network/recordstore/internal/app/services"
	"github.com/R3E-Network/recordstore/internal/app/storage"
	"github.com/R3E-Network/recordstore/internal/errors"
	"github.com/R3E-Network/recordstore/internal/logging"
)

// Actor identifies who is asking. Admins may see and cancel any order.
type Actor struct {
	UserID string
	Admin  bool
}

// Service checks out carts and manages the resulting orders.
type Service struct {
	orders storage.OrderStore
	carts  storage.CartStore
	log    *logging.Logger
}

func New(orders storage.OrderStore, carts storage.CartStore, log *logging.Logger) *Service {
	if log == nil {
		log = logging.NewDefault("orders")
	}
	return &Service{orders: orders, carts: carts, log: log}
}

// Checkout turns the user's cart into an order. Prices are those captured on
// the cart lines and stock stays with the order.
func (s *Service) Checkout(ctx context.Context, userID string) (order.Order, error) {
	c, err := s.carts.EnsureCart(ctx, userID)
	if err != nil {
		return order.Order{}, services.StoreError(err, "user", userID)
	}
	o, err := s.orders.PlaceOrder(ctx, c.ID)
	metrics.RecordCheckout(o.TotalCents, err)
	if err != nil {
		return order.Order{}, services.StoreError(err, "cart", c.ID)
	}
	s.log.WithContext(ctx).
		WithField("order_id", o.ID).
		WithField("items", len(o.Items)).
		WithField("total_cents", o.TotalCents).
		Info("order placed")
	return o, nil
}

// Get returns the order when actor owns it or is an admin. Other users get
// not found so order ids cannot be probed.
func (s *Service) Get(ctx context.Context, actor Actor, id string) (order.Order, error) {
	o, err := s.orders.GetOrder(ctx, id)
	if err != nil {
		return order.Order{}, services.StoreError(err, "order", id)
	}
	if !actor.Admin && o.UserID != actor.UserID {
		return order.Order{}, errors.NotFound("order", id)
	}
	return o, nil
}

// List returns the user's orders, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]order.Order, error) {
	if userID == "" {
		return nil, errors.Required("user_id")
	}
	list, err := s.orders.ListOrders(ctx, userID)
	if err != nil {
		return nil, services.StoreError(err, "orders", "")
	}
	return list, nil
}

// ListAll returns every order, newest first.
func (s *Service) ListAll(ctx context.Context) ([]order.Order, error) {
	list, err := s.orders.ListOrders(ctx, "")
	if err != nil {
		return nil, services.StoreError(err, "orders", "")
	}
	return list, nil
}

// Cancel marks a placed order cancelled and returns its stock to inventory.
func (s *Service) Cancel(ctx context.Context, actor Actor, id string) (order.Order, error) {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return order.Order{}, err
	}
	o, err := s.orders.CancelOrder(ctx, id)
	if stderrors.Is(err, storage.ErrConflict) {
		return order.Order{}, errors.Conflict("order is already cancelled").WithDetails("order_id", id)
	}
	if err != nil {
		return order.Order{}, services.StoreError(err, "order", id)
	}
	s.log.WithContext(ctx).WithField("order_id", id).Info("order cancelled")
	return o, nil
}
