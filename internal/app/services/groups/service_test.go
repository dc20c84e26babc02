package groups

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/recordstore/internal/app/cache"
	"github.com/R3E-Network/recordstore/internal/app/domain/genre"
	"github.com/R3E-Network/recordstore/internal/app/domain/record"
	"github.com/R3E-Network/recordstore/internal/app/storage/memory"
	"github.com/R3E-Network/recordstore/internal/errors"
)

func newService(t *testing.T) (*Service, *memory.Store, genre.Genre) {
	t.Helper()
	store := memory.New()
	rock, err := store.CreateGenre(context.Background(), genre.Genre{Name: "Rock"})
	require.NoError(t, err)
	return New(store, store, cache.NewMemory(), nil), store, rock
}

func TestCreateValidatesGenre(t *testing.T) {
	svc, _, rock := newService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, Input{Name: "Ghosts", GenreID: "missing"})
	assert.True(t, errors.IsCode(err, errors.CodeValidation))

	_, err = svc.Create(ctx, Input{Name: " ", GenreID: rock.ID})
	assert.True(t, errors.IsCode(err, errors.CodeValidation))

	g, err := svc.Create(ctx, Input{Name: " Queen ", Description: "British", GenreID: rock.ID})
	require.NoError(t, err)
	assert.Equal(t, "Queen", g.Name)
	assert.Equal(t, rock.ID, g.GenreID)
}

func TestListAndCacheInvalidation(t *testing.T) {
	svc, _, rock := newService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, Input{Name: "Queen", GenreID: rock.ID})
	require.NoError(t, err)
	_, err = svc.Create(ctx, Input{Name: "Solo act"})
	require.NoError(t, err)

	all, err := svc.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	byGenre, err := svc.List(ctx, rock.ID)
	require.NoError(t, err)
	require.Len(t, byGenre, 1)

	updated, err := svc.Update(ctx, byGenre[0].ID, Input{Name: "Queen + Adam"})
	require.NoError(t, err)
	assert.Empty(t, updated.GenreID)

	all, err = svc.List(ctx, "")
	require.NoError(t, err)
	names := []string{all[0].Name, all[1].Name}
	assert.Contains(t, names, "Queen + Adam")
}

func TestSetImageReturnsPrevious(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	g, err := svc.Create(ctx, Input{Name: "Blur"})
	require.NoError(t, err)

	_, prev, err := svc.SetImage(ctx, g.ID, "a.png")
	require.NoError(t, err)
	assert.Empty(t, prev)

	updated, prev, err := svc.SetImage(ctx, g.ID, "b.png")
	require.NoError(t, err)
	assert.Equal(t, "a.png", prev)
	assert.Equal(t, "b.png", updated.Image)

	got, err := svc.Get(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, "b.png", got.Image)
}

func TestDeleteGroupWithRecords(t *testing.T) {
	svc, store, _ := newService(t)
	ctx := context.Background()

	g, err := svc.Create(ctx, Input{Name: "Oasis"})
	require.NoError(t, err)
	_, err = store.CreateRecord(ctx, record.Record{Title: "Definitely Maybe", GroupID: g.ID, PriceCents: 1999, Stock: 3})
	require.NoError(t, err)

	err = svc.Delete(ctx, g.ID)
	assert.True(t, errors.IsCode(err, errors.CodeConflict))

	err = svc.Delete(ctx, "missing")
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))
}
