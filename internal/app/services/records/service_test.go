package records

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/recordstore/internal/app/domain/genre"
	"github.com/R3E-Network/recordstore/internal/app/domain/group"
	"github.com/R3E-Network/recordstore/internal/app/domain/record"
	"github.com/R3E-Network/recordstore/internal/app/storage/memory"
	"github.com/R3E-Network/recordstore/internal/errors"
)

type fixture struct {
	store *memory.Store
	svc   *Service
	rock  genre.Genre
	jazz  genre.Genre
	queen group.Group
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	rock, err := store.CreateGenre(ctx, genre.Genre{Name: "Rock"})
	require.NoError(t, err)
	jazz, err := store.CreateGenre(ctx, genre.Genre{Name: "Jazz"})
	require.NoError(t, err)
	queen, err := store.CreateGroup(ctx, group.Group{Name: "Queen", GenreID: rock.ID})
	require.NoError(t, err)
	return fixture{store: store, svc: New(store, store, store, nil), rock: rock, jazz: jazz, queen: queen}
}

func TestCreateDefaultsGenreFromGroup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	r, err := f.svc.Create(ctx, Input{Title: " News of the World ", Year: 1977, PriceCents: 2499, Stock: 5, GroupID: f.queen.ID})
	require.NoError(t, err)
	assert.Equal(t, "News of the World", r.Title)
	assert.Equal(t, f.rock.ID, r.GenreID)
	assert.Equal(t, 5, r.Stock)

	r, err = f.svc.Create(ctx, Input{Title: "Jazz", PriceCents: 1999, GroupID: f.queen.ID, GenreID: f.jazz.ID})
	require.NoError(t, err)
	assert.Equal(t, f.jazz.ID, r.GenreID)
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := map[string]Input{
		"missing title":  {PriceCents: 100, GroupID: f.queen.ID},
		"negative price": {Title: "x", PriceCents: -1, GroupID: f.queen.ID},
		"negative stock": {Title: "x", Stock: -1, GroupID: f.queen.ID},
		"missing group":  {Title: "x"},
		"unknown group":  {Title: "x", GroupID: "nope"},
		"unknown genre":  {Title: "x", GroupID: f.queen.ID, GenreID: "nope"},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.Create(ctx, in)
			assert.True(t, errors.IsCode(err, errors.CodeValidation), "got %v", err)
		})
	}
}

func TestUpdateKeepsStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	r, err := f.svc.Create(ctx, Input{Title: "Innuendo", PriceCents: 1500, Stock: 4, GroupID: f.queen.ID})
	require.NoError(t, err)

	updated, err := f.svc.Update(ctx, r.ID, Input{Title: "Innuendo (Remaster)", PriceCents: 1800, Stock: 99, GroupID: f.queen.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1800), updated.PriceCents)
	assert.Equal(t, 4, updated.Stock)

	_, err = f.svc.Update(ctx, "missing", Input{Title: "x", GroupID: f.queen.ID})
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))
}

func TestRestock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	r, err := f.svc.Create(ctx, Input{Title: "Jazz", PriceCents: 1500, Stock: 2, GroupID: f.queen.ID})
	require.NoError(t, err)

	_, err = f.svc.Restock(ctx, r.ID, 0)
	assert.True(t, errors.IsCode(err, errors.CodeValidation))

	r, err = f.svc.Restock(ctx, r.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, 5, r.Stock)

	_, err = f.svc.Restock(ctx, r.ID, -6)
	assert.True(t, errors.IsCode(err, errors.CodeInsufficientStock))

	r, err = f.svc.Restock(ctx, r.ID, -5)
	require.NoError(t, err)
	assert.Zero(t, r.Stock)
}

func TestSetCoverAndList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	r, err := f.svc.Create(ctx, Input{Title: "Sheer Heart Attack", PriceCents: 1500, Stock: 1, GroupID: f.queen.ID})
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, Input{Title: "Hot Space", PriceCents: 1500, GroupID: f.queen.ID})
	require.NoError(t, err)

	_, prev, err := f.svc.SetCover(ctx, r.ID, "one.jpg")
	require.NoError(t, err)
	assert.Empty(t, prev)
	updated, prev, err := f.svc.SetCover(ctx, r.ID, "two.jpg")
	require.NoError(t, err)
	assert.Equal(t, "one.jpg", prev)
	assert.Equal(t, "two.jpg", updated.Cover)
	assert.Equal(t, 1, updated.Stock)

	inStock, err := f.svc.List(ctx, record.Filter{InStock: true})
	require.NoError(t, err)
	require.Len(t, inStock, 1)
	assert.Equal(t, r.ID, inStock[0].ID)

	found, err := f.svc.List(ctx, record.Filter{Search: "space"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Hot Space", found[0].Title)
}

func TestDeleteRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	r, err := f.svc.Create(ctx, Input{Title: "A Day at the Races", PriceCents: 1500, Stock: 1, GroupID: f.queen.ID})
	require.NoError(t, err)
	require.NoError(t, f.svc.Delete(ctx, r.ID))

	_, err = f.svc.Get(ctx, r.ID)
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))
	assert.True(t, errors.IsCode(f.svc.Delete(ctx, r.ID), errors.CodeNotFound))
}
