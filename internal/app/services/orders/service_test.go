package orders

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/recordstore/internal/app/domain/group"
	"github.com/R3E-Network/recordstore/internal/app/domain/order"
	"github.com/R3E-Network/recordstore/internal/app/domain/record"
	"github.com/R3E-Network/recordstore/internal/app/domain/user"
	"github.com/R3E-Network/recordstore/internal/app/storage/memory"
	"github.com/R3E-Network/recordstore/internal/errors"
)

type fixture struct {
	store *memory.Store
	svc   *Service
	ann   user.User
	bob   user.User
	rec   record.Record
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	ann, err := store.CreateUser(ctx, user.User{Name: "Ann", Email: "ann@example.com", Role: user.RoleUser})
	require.NoError(t, err)
	bob, err := store.CreateUser(ctx, user.User{Name: "Bob", Email: "bob@example.com", Role: user.RoleUser})
	require.NoError(t, err)
	g, err := store.CreateGroup(ctx, group.Group{Name: "Neu!"})
	require.NoError(t, err)
	rec, err := store.CreateRecord(ctx, record.Record{Title: "Neu! 75", GroupID: g.ID, PriceCents: 2000, Stock: 4})
	require.NoError(t, err)
	return fixture{store: store, svc: New(store, store, nil), ann: ann, bob: bob, rec: rec}
}

func (f fixture) addToCart(t *testing.T, userID string, amount int) {
	t.Helper()
	ctx := context.Background()
	c, err := f.store.EnsureCart(ctx, userID)
	require.NoError(t, err)
	_, err = f.store.AddCartItem(ctx, c.ID, f.rec.ID, amount, 0)
	require.NoError(t, err)
}

func (f fixture) stock(t *testing.T) int {
	t.Helper()
	r, err := f.store.GetRecord(context.Background(), f.rec.ID)
	require.NoError(t, err)
	return r.Stock
}

func TestCheckout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Checkout(ctx, f.ann.ID)
	assert.True(t, errors.IsCode(err, errors.CodeEmptyCart))

	f.addToCart(t, f.ann.ID, 3)
	o, err := f.svc.Checkout(ctx, f.ann.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusPlaced, o.Status)
	assert.Equal(t, int64(6000), o.TotalCents)
	require.Len(t, o.Items, 1)
	assert.Equal(t, 3, o.Items[0].Amount)
	assert.Equal(t, 1, f.stock(t), "checkout keeps stock with the order")

	c, err := f.store.GetCartByUser(ctx, f.ann.ID)
	require.NoError(t, err)
	assert.Empty(t, c.Details)
	assert.Zero(t, c.TotalCents)
}

func TestGetAndListRespectOwnership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.addToCart(t, f.ann.ID, 1)
	o, err := f.svc.Checkout(ctx, f.ann.ID)
	require.NoError(t, err)

	_, err = f.svc.Get(ctx, Actor{UserID: f.ann.ID}, o.ID)
	require.NoError(t, err)
	_, err = f.svc.Get(ctx, Actor{UserID: f.bob.ID}, o.ID)
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))
	_, err = f.svc.Get(ctx, Actor{UserID: f.bob.ID, Admin: true}, o.ID)
	require.NoError(t, err)

	mine, err := f.svc.List(ctx, f.ann.ID)
	require.NoError(t, err)
	assert.Len(t, mine, 1)
	theirs, err := f.svc.List(ctx, f.bob.ID)
	require.NoError(t, err)
	assert.Empty(t, theirs)
	all, err := f.svc.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestCancelReturnsStockOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.addToCart(t, f.ann.ID, 2)
	o, err := f.svc.Checkout(ctx, f.ann.ID)
	require.NoError(t, err)
	require.Equal(t, 2, f.stock(t))

	_, err = f.svc.Cancel(ctx, Actor{UserID: f.bob.ID}, o.ID)
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))

	cancelled, err := f.svc.Cancel(ctx, Actor{UserID: f.ann.ID}, o.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusCancelled, cancelled.Status)
	assert.Equal(t, 4, f.stock(t))

	_, err = f.svc.Cancel(ctx, Actor{UserID: f.ann.ID}, o.ID)
	assert.True(t, errors.IsCode(err, errors.CodeConflict))
	assert.Equal(t, 4, f.stock(t))
}
