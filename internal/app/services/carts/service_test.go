package carts

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/recordstore/internal/app/domain/group"
	"github.com/R3E-Network/recordstore/internal/app/domain/record"
	"github.com/R3E-Network/recordstore/internal/app/domain/user"
	"github.com/R3E-Network/recordstore/internal/app/storage/memory"
	"github.com/R3E-Network/recordstore/internal/errors"
)

func seed(t *testing.T, stock int) (*memory.Store, user.User, record.Record) {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	u, err := store.CreateUser(ctx, user.User{Name: "Ann", Email: "ann@example.com", Role: user.RoleUser})
	require.NoError(t, err)
	g, err := store.CreateGroup(ctx, group.Group{Name: "Can"})
	require.NoError(t, err)
	r, err := store.CreateRecord(ctx, record.Record{Title: "Tago Mago", GroupID: g.ID, PriceCents: 1250, Stock: stock})
	require.NoError(t, err)
	return store, u, r
}

func stockOf(t *testing.T, store *memory.Store, id string) int {
	t.Helper()
	r, err := store.GetRecord(context.Background(), id)
	require.NoError(t, err)
	return r.Stock
}

func TestGetCreatesCartOnce(t *testing.T) {
	store, u, _ := seed(t, 1)
	svc := New(store, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	ids := make([]string, 8)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := svc.Get(ctx, u.ID)
			assert.NoError(t, err)
			ids[i] = c.ID
		}(i)
	}
	wg.Wait()
	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}

	_, err := svc.Get(ctx, "ghost")
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))
}

func TestAddItemAccumulatesAndTakesStock(t *testing.T) {
	store, u, r := seed(t, 5)
	svc := New(store, nil)
	ctx := context.Background()

	c, err := svc.AddItem(ctx, u.ID, r.ID, 2)
	require.NoError(t, err)
	c, err = svc.AddItem(ctx, u.ID, r.ID, 1)
	require.NoError(t, err)

	line, ok := c.Find(r.ID)
	require.True(t, ok)
	assert.Equal(t, 3, line.Amount)
	assert.Equal(t, int64(3750), c.TotalCents)
	assert.Equal(t, 2, stockOf(t, store, r.ID))

	_, err = svc.AddItem(ctx, u.ID, r.ID, 3)
	assert.True(t, errors.IsCode(err, errors.CodeInsufficientStock))
	assert.Equal(t, 2, stockOf(t, store, r.ID), "refused add must not touch stock")

	_, err = svc.AddItem(ctx, u.ID, r.ID, 0)
	assert.True(t, errors.IsCode(err, errors.CodeValidation))
	_, err = svc.AddItem(ctx, u.ID, "missing", 1)
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))
}

func TestSetAndRemoveItemReturnStock(t *testing.T) {
	store, u, r := seed(t, 5)
	svc := New(store, nil)
	ctx := context.Background()

	_, err := svc.SetItem(ctx, u.ID, r.ID, 4)
	require.NoError(t, err)
	assert.Equal(t, 1, stockOf(t, store, r.ID))

	c, err := svc.SetItem(ctx, u.ID, r.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1250), c.TotalCents)
	assert.Equal(t, 4, stockOf(t, store, r.ID))

	_, err = svc.SetItem(ctx, u.ID, r.ID, -1)
	assert.True(t, errors.IsCode(err, errors.CodeValidation))

	c, err = svc.RemoveItem(ctx, u.ID, r.ID)
	require.NoError(t, err)
	assert.Empty(t, c.Details)
	assert.Zero(t, c.TotalCents)
	assert.Equal(t, 5, stockOf(t, store, r.ID))

	_, err = svc.RemoveItem(ctx, u.ID, r.ID)
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))
}

func TestClearReturnsAllStock(t *testing.T) {
	store, u, r := seed(t, 3)
	svc := New(store, nil)
	ctx := context.Background()

	_, err := svc.AddItem(ctx, u.ID, r.ID, 3)
	require.NoError(t, err)
	assert.Zero(t, stockOf(t, store, r.ID))

	c, err := svc.Clear(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, c.Details)
	assert.Equal(t, 3, stockOf(t, store, r.ID))
}

func TestConcurrentAddsStayWithinLineLimit(t *testing.T) {
	store, u, r := seed(t, 3*MaxLineAmount)
	svc := New(store, nil)
	ctx := context.Background()
	_, err := svc.Get(ctx, u.ID)
	require.NoError(t, err)

	const callers = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	refused := 0
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.AddItem(ctx, u.ID, r.ID, 10)
			if err != nil {
				assert.True(t, errors.IsCode(err, errors.CodeValidation), "unexpected error %v", err)
				mu.Lock()
				refused++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	c, err := svc.Get(ctx, u.ID)
	require.NoError(t, err)
	line, ok := c.Find(r.ID)
	require.True(t, ok)
	assert.Equal(t, MaxLineAmount, line.Amount)
	assert.Equal(t, callers-MaxLineAmount/10, refused)
	assert.Equal(t, 2*MaxLineAmount, stockOf(t, store, r.ID))
}

func TestLineChangesRequireRecordID(t *testing.T) {
	store, u, _ := seed(t, 1)
	svc := New(store, nil)
	ctx := context.Background()

	_, err := svc.SetItem(ctx, u.ID, "  ", 1)
	assert.True(t, errors.IsCode(err, errors.CodeValidation))
	_, err = svc.RemoveItem(ctx, u.ID, "")
	assert.True(t, errors.IsCode(err, errors.CodeValidation))
	_, err = svc.AddItem(ctx, u.ID, "", 1)
	assert.True(t, errors.IsCode(err, errors.CodeValidation))
}
