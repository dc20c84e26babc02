package sweeper

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/recordstore/internal/app/domain/cart"
	"github.com/R3E-Network/recordstore/internal/app/domain/group"
	"github.com/R3E-Network/recordstore/internal/app/domain/record"
	"github.com/R3E-Network/recordstore/internal/app/domain/user"
	"github.com/R3E-Network/recordstore/internal/app/storage/memory"
)

func TestSweepClearsOnlyIdleCarts(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	g, err := store.CreateGroup(ctx, group.Group{Name: "Faust"})
	require.NoError(t, err)
	rec, err := store.CreateRecord(ctx, record.Record{Title: "IV", GroupID: g.ID, PriceCents: 1800, Stock: 10})
	require.NoError(t, err)

	var cartIDs []string
	for _, email := range []string{"a@example.com", "b@example.com"} {
		u, err := store.CreateUser(ctx, user.User{Name: email, Email: email, Role: user.RoleUser})
		require.NoError(t, err)
		c, err := store.EnsureCart(ctx, u.ID)
		require.NoError(t, err)
		_, err = store.AddCartItem(ctx, c.ID, rec.ID, 3, 0)
		require.NoError(t, err)
		cartIDs = append(cartIDs, c.ID)
	}

	s := New(store, "", time.Hour, nil)

	// Nothing is older than an hour yet.
	cleared, units, err := s.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, cleared)
	assert.Zero(t, units)

	s.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	cleared, units, err = s.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, cleared)
	assert.Equal(t, 6, units)

	r, err := store.GetRecord(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, r.Stock)
	for _, id := range cartIDs {
		c, err := store.GetCart(ctx, id)
		require.NoError(t, err)
		assert.Empty(t, c.Details)
	}

	// Emptied carts are no longer stale.
	cleared, _, err = s.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, cleared)
}

// touchAfterList adds a unit to one cart right after the stale carts are
// listed, the way a shopper might while a sweep is in flight.
type touchAfterList struct {
	*memory.Store
	cartID   string
	recordID string
}

func (s touchAfterList) ListStaleCarts(ctx context.Context, before time.Time) ([]cart.Cart, error) {
	stale, err := s.Store.ListStaleCarts(ctx, before)
	if err != nil {
		return nil, err
	}
	if _, err := s.Store.AddCartItem(ctx, s.cartID, s.recordID, 1, 0); err != nil {
		return nil, err
	}
	return stale, nil
}

func TestSweepSkipsCartTouchedDuringSweep(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	g, err := store.CreateGroup(ctx, group.Group{Name: "Neu!"})
	require.NoError(t, err)
	rec, err := store.CreateRecord(ctx, record.Record{Title: "Neu! 75", GroupID: g.ID, PriceCents: 2100, Stock: 10})
	require.NoError(t, err)

	var cartIDs []string
	for _, email := range []string{"busy@example.com", "idle@example.com"} {
		u, err := store.CreateUser(ctx, user.User{Name: email, Email: email, Role: user.RoleUser})
		require.NoError(t, err)
		c, err := store.EnsureCart(ctx, u.ID)
		require.NoError(t, err)
		_, err = store.AddCartItem(ctx, c.ID, rec.ID, 3, 0)
		require.NoError(t, err)
		cartIDs = append(cartIDs, c.ID)
	}
	time.Sleep(30 * time.Millisecond)

	wrapped := touchAfterList{Store: store, cartID: cartIDs[0], recordID: rec.ID}
	s := New(wrapped, "", 10*time.Millisecond, nil)
	cleared, units, err := s.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, cleared)
	assert.Equal(t, 3, units, "only the idle cart's units are released")

	busy, err := store.GetCart(ctx, cartIDs[0])
	require.NoError(t, err)
	line, ok := busy.Find(rec.ID)
	require.True(t, ok, "touched cart keeps its line")
	assert.Equal(t, 4, line.Amount)

	idle, err := store.GetCart(ctx, cartIDs[1])
	require.NoError(t, err)
	assert.Empty(t, idle.Details)

	r, err := store.GetRecord(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, 6, r.Stock)
}

func TestStartStop(t *testing.T) {
	s := New(memory.New(), "@every 1h", 0, nil)
	assert.Equal(t, DefaultTTL, s.ttl)

	ctx := context.Background()
	require.NoError(t, s.Start(ctx))
	require.NoError(t, s.Start(ctx), "second start is a no-op")

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, s.Stop(stopCtx))
	require.NoError(t, s.Stop(stopCtx))
}

func TestStartRejectsBadSchedule(t *testing.T) {
	s := New(memory.New(), "not a schedule", time.Minute, nil)
	assert.Error(t, s.Start(context.Background()))
}
