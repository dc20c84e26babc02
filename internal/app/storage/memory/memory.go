package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/R3E-Network/recordstore/internal/app/domain/cart"
	"github.com/R3E-Network/recordstore/internal/app/domain/genre"
	"github.com/R3E-Network/recordstore/internal/app/domain/group"
	"github.com/R3E-Network/recordstore/internal/app/domain/order"
	"github.com/R3E-Network/recordstore/internal/app/domain/record"
	"github.com/R3E-Network/recordstore/internal/app/domain/user"
	"github.com/R3E-Network/recordstore/internal/app/storage"
)

// Store is an in-memory implementation of the storage interfaces. It is safe
// for concurrent use and is primarily intended for tests and local development.
// A single mutex serialises writers, which gives cart and order operations the
// same all-or-nothing behaviour the postgres store gets from transactions.
type Store struct {
	mu           sync.RWMutex
	nextID       int64
	users        map[string]user.User
	usersByEmail map[string]string
	genres       map[string]genre.Genre
	groups       map[string]group.Group
	records      map[string]record.Record
	carts        map[string]cart.Cart
	cartsByUser  map[string]string
	orders       map[string]order.Order
}

var _ storage.UserStore = (*Store)(nil)
var _ storage.GenreStore = (*Store)(nil)
var _ storage.GroupStore = (*Store)(nil)
var _ storage.RecordStore = (*Store)(nil)
var _ storage.CartStore = (*Store)(nil)
var _ storage.OrderStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		nextID:       1,
		users:        make(map[string]user.User),
		usersByEmail: make(map[string]string),
		genres:       make(map[string]genre.Genre),
		groups:       make(map[string]group.Group),
		records:      make(map[string]record.Record),
		carts:        make(map[string]cart.Cart),
		cartsByUser:  make(map[string]string),
		orders:       make(map[string]order.Order),
	}
}

func (s *Store) nextIDLocked() string {
	id := s.nextID
	s.nextID++
	return fmt.Sprintf("%d", id)
}

func notFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, storage.ErrNotFound)
}

// UserStore implementation ----------------------------------------------------

func (s *Store) CreateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(u.Email)
	if _, exists := s.usersByEmail[email]; exists {
		return user.User{}, fmt.Errorf("email %s: %w", email, storage.ErrConflict)
	}
	if u.ID == "" {
		u.ID = s.nextIDLocked()
	}
	now := time.Now().UTC()
	u.Email = email
	u.CreatedAt = now
	u.UpdatedAt = now

	s.users[u.ID] = u
	s.usersByEmail[email] = u.ID
	return u, nil
}

func (s *Store) UpdateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.users[u.ID]
	if !ok {
		return user.User{}, notFound("user", u.ID)
	}
	email := strings.ToLower(u.Email)
	if owner, exists := s.usersByEmail[email]; exists && owner != u.ID {
		return user.User{}, fmt.Errorf("email %s: %w", email, storage.ErrConflict)
	}

	u.Email = email
	u.CreatedAt = original.CreatedAt
	u.UpdatedAt = time.Now().UTC()

	delete(s.usersByEmail, original.Email)
	s.usersByEmail[email] = u.ID
	s.users[u.ID] = u
	return u, nil
}

func (s *Store) GetUser(_ context.Context, id string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return user.User{}, notFound("user", id)
	}
	return u, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.usersByEmail[strings.ToLower(email)]
	if !ok {
		return user.User{}, notFound("user", email)
	}
	return s.users[id], nil
}

func (s *Store) ListUsers(_ context.Context) ([]user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]user.User, 0, len(s.users))
	for _, u := range s.users {
		result = append(result, u)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (s *Store) DeleteUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return notFound("user", id)
	}
	for _, o := range s.orders {
		if o.UserID == id {
			return fmt.Errorf("user %s has orders: %w", id, storage.ErrConflict)
		}
	}
	if cartID, ok := s.cartsByUser[id]; ok {
		s.clearCartLocked(cartID, true)
		delete(s.carts, cartID)
		delete(s.cartsByUser, id)
	}
	delete(s.usersByEmail, u.Email)
	delete(s.users, id)
	return nil
}

// GenreStore implementation ---------------------------------------------------

func (s *Store) genreNameTakenLocked(name, exceptID string) bool {
	for id, g := range s.genres {
		if id != exceptID && strings.EqualFold(g.Name, name) {
			return true
		}
	}
	return false
}

func (s *Store) CreateGenre(_ context.Context, g genre.Genre) (genre.Genre, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.genreNameTakenLocked(g.Name, "") {
		return genre.Genre{}, fmt.Errorf("genre %s: %w", g.Name, storage.ErrConflict)
	}
	if g.ID == "" {
		g.ID = s.nextIDLocked()
	}
	now := time.Now().UTC()
	g.CreatedAt = now
	g.UpdatedAt = now
	s.genres[g.ID] = g
	return g, nil
}

func (s *Store) UpdateGenre(_ context.Context, g genre.Genre) (genre.Genre, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.genres[g.ID]
	if !ok {
		return genre.Genre{}, notFound("genre", g.ID)
	}
	if s.genreNameTakenLocked(g.Name, g.ID) {
		return genre.Genre{}, fmt.Errorf("genre %s: %w", g.Name, storage.ErrConflict)
	}
	g.CreatedAt = original.CreatedAt
	g.UpdatedAt = time.Now().UTC()
	s.genres[g.ID] = g
	return g, nil
}

func (s *Store) GetGenre(_ context.Context, id string) (genre.Genre, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.genres[id]
	if !ok {
		return genre.Genre{}, notFound("genre", id)
	}
	return g, nil
}

func (s *Store) ListGenres(_ context.Context) ([]genre.Genre, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]genre.Genre, 0, len(s.genres))
	for _, g := range s.genres {
		result = append(result, g)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (s *Store) DeleteGenre(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.genres[id]; !ok {
		return notFound("genre", id)
	}
	for _, g := range s.groups {
		if g.GenreID == id {
			return fmt.Errorf("genre %s referenced by group %s: %w", id, g.ID, storage.ErrConflict)
		}
	}
	for _, r := range s.records {
		if r.GenreID == id {
			return fmt.Errorf("genre %s referenced by record %s: %w", id, r.ID, storage.ErrConflict)
		}
	}
	delete(s.genres, id)
	return nil
}

// GroupStore implementation ---------------------------------------------------

func (s *Store) CreateGroup(_ context.Context, g group.Group) (group.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if g.ID == "" {
		g.ID = s.nextIDLocked()
	}
	now := time.Now().UTC()
	g.CreatedAt = now
	g.UpdatedAt = now
	s.groups[g.ID] = g
	return g, nil
}

func (s *Store) UpdateGroup(_ context.Context, g group.Group) (group.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.groups[g.ID]
	if !ok {
		return group.Group{}, notFound("group", g.ID)
	}
	g.CreatedAt = original.CreatedAt
	g.UpdatedAt = time.Now().UTC()
	s.groups[g.ID] = g
	return g, nil
}

func (s *Store) GetGroup(_ context.Context, id string) (group.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.groups[id]
	if !ok {
		return group.Group{}, notFound("group", id)
	}
	return g, nil
}

func (s *Store) ListGroups(_ context.Context, genreID string) ([]group.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]group.Group, 0, len(s.groups))
	for _, g := range s.groups {
		if genreID != "" && g.GenreID != genreID {
			continue
		}
		result = append(result, g)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (s *Store) DeleteGroup(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.groups[id]; !ok {
		return notFound("group", id)
	}
	for _, r := range s.records {
		if r.GroupID == id {
			return fmt.Errorf("group %s has records: %w", id, storage.ErrConflict)
		}
	}
	delete(s.groups, id)
	return nil
}

// RecordStore implementation --------------------------------------------------

func (s *Store) CreateRecord(_ context.Context, r record.Record) (record.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.groups[r.GroupID]; !ok {
		return record.Record{}, notFound("group", r.GroupID)
	}
	if r.ID == "" {
		r.ID = s.nextIDLocked()
	}
	now := time.Now().UTC()
	r.CreatedAt = now
	r.UpdatedAt = now
	s.records[r.ID] = r
	return r, nil
}

func (s *Store) UpdateRecord(_ context.Context, r record.Record) (record.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.records[r.ID]
	if !ok {
		return record.Record{}, notFound("record", r.ID)
	}
	r.Stock = original.Stock
	r.CreatedAt = original.CreatedAt
	r.UpdatedAt = time.Now().UTC()
	s.records[r.ID] = r
	return r, nil
}

func (s *Store) GetRecord(_ context.Context, id string) (record.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[id]
	if !ok {
		return record.Record{}, notFound("record", id)
	}
	return r, nil
}

func (s *Store) ListRecords(_ context.Context, filter record.Filter) ([]record.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	filter = filter.Normalize()
	search := strings.ToLower(strings.TrimSpace(filter.Search))

	matched := make([]record.Record, 0)
	for _, r := range s.records {
		if filter.GroupID != "" && r.GroupID != filter.GroupID {
			continue
		}
		if filter.GenreID != "" && r.GenreID != filter.GenreID {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(r.Title), search) {
			continue
		}
		if filter.InStock && r.Stock <= 0 {
			continue
		}
		matched = append(matched, r)
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Title == matched[j].Title {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].Title < matched[j].Title
	})

	if filter.Offset >= len(matched) {
		return []record.Record{}, nil
	}
	end := filter.Offset + filter.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[filter.Offset:end], nil
}

func (s *Store) DeleteRecord(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[id]; !ok {
		return notFound("record", id)
	}
	for _, c := range s.carts {
		if _, held := c.Find(id); held {
			return fmt.Errorf("record %s is in a cart: %w", id, storage.ErrConflict)
		}
	}
	for _, o := range s.orders {
		for _, item := range o.Items {
			if item.RecordID == id {
				return fmt.Errorf("record %s is in an order: %w", id, storage.ErrConflict)
			}
		}
	}
	delete(s.records, id)
	return nil
}

func (s *Store) AdjustStock(_ context.Context, id string, delta int) (record.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[id]
	if !ok {
		return record.Record{}, notFound("record", id)
	}
	if r.Stock+delta < 0 {
		return record.Record{}, fmt.Errorf("record %s: %w", id, storage.ErrInsufficientStock)
	}
	r.Stock += delta
	r.UpdatedAt = time.Now().UTC()
	s.records[id] = r
	return r, nil
}
