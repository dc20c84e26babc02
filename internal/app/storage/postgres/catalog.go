package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/R3E-Network/recordstore/internal/app/domain/genre"
	"github.com/R3E-Network/recordstore/internal/app/domain/group"
	"github.com/R3E-Network/recordstore/internal/app/domain/record"
	"github.com/R3E-Network/recordstore/internal/app/storage"
)

// --- GenreStore -------------------------------------------------------------

const genreColumns = `id, name, created_at, updated_at`

func (s *Store) CreateGenre(ctx context.Context, g genre.Genre) (genre.Genre, error) {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	g.CreatedAt = now
	g.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO music_genres (id, name, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
	`, g.ID, g.Name, g.CreatedAt, g.UpdatedAt)
	if err != nil {
		return genre.Genre{}, mapError("genre", g.Name, err)
	}
	return g, nil
}

func (s *Store) UpdateGenre(ctx context.Context, g genre.Genre) (genre.Genre, error) {
	existing, err := s.GetGenre(ctx, g.ID)
	if err != nil {
		return genre.Genre{}, err
	}
	g.CreatedAt = existing.CreatedAt
	g.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE music_genres SET name = $2, updated_at = $3 WHERE id = $1
	`, g.ID, g.Name, g.UpdatedAt)
	if err != nil {
		return genre.Genre{}, mapError("genre", g.ID, err)
	}
	if err := requireAffected(result, "genre", g.ID); err != nil {
		return genre.Genre{}, err
	}
	return g, nil
}

func (s *Store) GetGenre(ctx context.Context, id string) (genre.Genre, error) {
	var g genre.Genre
	if err := s.db.GetContext(ctx, &g, `SELECT `+genreColumns+` FROM music_genres WHERE id = $1`, id); err != nil {
		return genre.Genre{}, mapError("genre", id, err)
	}
	return g, nil
}

func (s *Store) ListGenres(ctx context.Context) ([]genre.Genre, error) {
	genres := []genre.Genre{}
	if err := s.db.SelectContext(ctx, &genres, `SELECT `+genreColumns+` FROM music_genres ORDER BY name`); err != nil {
		return nil, err
	}
	return genres, nil
}

func (s *Store) DeleteGenre(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM music_genres WHERE id = $1`, id)
	if err != nil {
		return mapError("genre", id, err)
	}
	return requireAffected(result, "genre", id)
}

// --- GroupStore -------------------------------------------------------------

const groupColumns = `id, name, description, image, COALESCE(genre_id::text, '') AS genre_id, created_at, updated_at`

func (s *Store) CreateGroup(ctx context.Context, g group.Group) (group.Group, error) {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	g.CreatedAt = now
	g.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO music_groups (id, name, description, image, genre_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, '')::uuid, $6, $7)
	`, g.ID, g.Name, g.Description, g.Image, g.GenreID, g.CreatedAt, g.UpdatedAt)
	if err != nil {
		return group.Group{}, mapError("group", g.Name, err)
	}
	return g, nil
}

func (s *Store) UpdateGroup(ctx context.Context, g group.Group) (group.Group, error) {
	existing, err := s.GetGroup(ctx, g.ID)
	if err != nil {
		return group.Group{}, err
	}
	g.CreatedAt = existing.CreatedAt
	g.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE music_groups
		SET name = $2, description = $3, image = $4, genre_id = NULLIF($5, '')::uuid, updated_at = $6
		WHERE id = $1
	`, g.ID, g.Name, g.Description, g.Image, g.GenreID, g.UpdatedAt)
	if err != nil {
		return group.Group{}, mapError("group", g.ID, err)
	}
	if err := requireAffected(result, "group", g.ID); err != nil {
		return group.Group{}, err
	}
	return g, nil
}

func (s *Store) GetGroup(ctx context.Context, id string) (group.Group, error) {
	var g group.Group
	if err := s.db.GetContext(ctx, &g, `SELECT `+groupColumns+` FROM music_groups WHERE id = $1`, id); err != nil {
		return group.Group{}, mapError("group", id, err)
	}
	return g, nil
}

func (s *Store) ListGroups(ctx context.Context, genreID string) ([]group.Group, error) {
	groups := []group.Group{}
	query := `SELECT ` + groupColumns + ` FROM music_groups`
	var args []interface{}
	if genreID != "" {
		query += ` WHERE genre_id = $1`
		args = append(args, genreID)
	}
	query += ` ORDER BY name`
	if err := s.db.SelectContext(ctx, &groups, query, args...); err != nil {
		return nil, mapError("groups for genre", genreID, err)
	}
	return groups, nil
}

func (s *Store) DeleteGroup(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM music_groups WHERE id = $1`, id)
	if err != nil {
		return mapError("group", id, err)
	}
	return requireAffected(result, "group", id)
}

// --- RecordStore ------------------------------------------------------------

const recordColumns = `id, title, year, price_cents, stock, cover, group_id, COALESCE(genre_id::text, '') AS genre_id, created_at, updated_at`

func (s *Store) CreateRecord(ctx context.Context, r record.Record) (record.Record, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	r.CreatedAt = now
	r.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO records (id, title, year, price_cents, stock, cover, group_id, genre_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, '')::uuid, $9, $10)
	`, r.ID, r.Title, r.Year, r.PriceCents, r.Stock, r.Cover, r.GroupID, r.GenreID, r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return record.Record{}, mapError("record", r.Title, err)
	}
	return r, nil
}

func (s *Store) UpdateRecord(ctx context.Context, r record.Record) (record.Record, error) {
	var updated record.Record
	err := s.db.GetContext(ctx, &updated, `
		UPDATE records
		SET title = $2, year = $3, price_cents = $4, cover = $5, group_id = $6,
			genre_id = NULLIF($7, '')::uuid, updated_at = $8
		WHERE id = $1
		RETURNING `+recordColumns,
		r.ID, r.Title, r.Year, r.PriceCents, r.Cover, r.GroupID, r.GenreID, time.Now().UTC())
	if err != nil {
		return record.Record{}, mapError("record", r.ID, err)
	}
	return updated, nil
}

func (s *Store) GetRecord(ctx context.Context, id string) (record.Record, error) {
	var r record.Record
	if err := s.db.GetContext(ctx, &r, `SELECT `+recordColumns+` FROM records WHERE id = $1`, id); err != nil {
		return record.Record{}, mapError("record", id, err)
	}
	return r, nil
}

func (s *Store) ListRecords(ctx context.Context, filter record.Filter) ([]record.Record, error) {
	filter = filter.Normalize()

	var (
		clauses []string
		args    []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filter.GroupID != "" {
		clauses = append(clauses, "group_id = "+arg(filter.GroupID))
	}
	if filter.GenreID != "" {
		clauses = append(clauses, "genre_id = "+arg(filter.GenreID))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		clauses = append(clauses, "title ILIKE "+arg(likePattern(search)))
	}
	if filter.InStock {
		clauses = append(clauses, "stock > 0")
	}

	query := `SELECT ` + recordColumns + ` FROM records`
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY title, id LIMIT ` + arg(filter.Limit) + ` OFFSET ` + arg(filter.Offset)

	records := []record.Record{}
	if err := s.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, mapError("records", "", err)
	}
	return records, nil
}

func (s *Store) DeleteRecord(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE id = $1`, id)
	if err != nil {
		return mapError("record", id, err)
	}
	return requireAffected(result, "record", id)
}

func (s *Store) AdjustStock(ctx context.Context, id string, delta int) (record.Record, error) {
	var r record.Record
	err := s.db.GetContext(ctx, &r, `
		UPDATE records
		SET stock = stock + $2, updated_at = $3
		WHERE id = $1 AND stock + $2 >= 0
		RETURNING `+recordColumns,
		id, delta, time.Now().UTC())
	if err == nil {
		return r, nil
	}
	mapped := mapError("record", id, err)
	if isNotFound(mapped) {
		// Distinguish a missing record from a refused decrement.
		if _, getErr := s.GetRecord(ctx, id); getErr != nil {
			return record.Record{}, getErr
		}
		return record.Record{}, fmt.Errorf("record %s: %w", id, storage.ErrInsufficientStock)
	}
	return record.Record{}, mapped
}
