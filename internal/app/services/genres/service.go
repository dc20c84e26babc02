package genres

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"github.com/R3E-Network/recordstore/internal/app/cache"
	"github.com/R3E-Network/recordstore/internal/app/domain/genre"
	"github.com/R3E-Network/recordstore/internal/app/metrics"
	"github.com/R3E-Network/recordstore/internal/app/services"
	"github.com/R3E-Network/recordstore/internal/app/storage"
	"github.com/R3E-Network/recordstore/internal/errors"
	"github.com/R3E-Network/recordstore/internal/logging"
)

const (
	listKey  = "genres:all"
	itemKey  = "genres:"
	maxName  = 100
	cacheTTL = 10 * time.Minute
)

// Service manages music genres. Reads go through the cache when one is set.
type Service struct {
	store storage.GenreStore
	cache cache.Cache
	ttl   time.Duration
	log   *logging.Logger
}

// New constructs a genre service. c may be nil.
func New(store storage.GenreStore, c cache.Cache, log *logging.Logger) *Service {
	if log == nil {
		log = logging.NewDefault("genres")
	}
	return &Service{store: store, cache: c, ttl: cacheTTL, log: log}
}

// WithCacheTTL overrides how long cached entries live.
func (s *Service) WithCacheTTL(ttl time.Duration) *Service {
	if ttl > 0 {
		s.ttl = ttl
	}
	return s
}

func (s *Service) Create(ctx context.Context, name string) (genre.Genre, error) {
	name, err := validName(name)
	if err != nil {
		return genre.Genre{}, err
	}
	created, err := s.store.CreateGenre(ctx, genre.Genre{Name: name})
	if err != nil {
		return genre.Genre{}, services.StoreError(err, "genre", name)
	}
	s.invalidate(ctx)
	s.log.WithContext(ctx).WithField("genre_id", created.ID).Info("genre created")
	return created, nil
}

func (s *Service) Get(ctx context.Context, id string) (genre.Genre, error) {
	var g genre.Genre
	if s.lookup(ctx, itemKey+id, &g) {
		return g, nil
	}
	g, err := s.store.GetGenre(ctx, id)
	if err != nil {
		return genre.Genre{}, services.StoreError(err, "genre", id)
	}
	s.remember(ctx, itemKey+id, g)
	return g, nil
}

func (s *Service) List(ctx context.Context) ([]genre.Genre, error) {
	var list []genre.Genre
	if s.lookup(ctx, listKey, &list) {
		return list, nil
	}
	list, err := s.store.ListGenres(ctx)
	if err != nil {
		return nil, services.StoreError(err, "genres", "")
	}
	s.remember(ctx, listKey, list)
	return list, nil
}

func (s *Service) Update(ctx context.Context, id, name string) (genre.Genre, error) {
	name, err := validName(name)
	if err != nil {
		return genre.Genre{}, err
	}
	updated, err := s.store.UpdateGenre(ctx, genre.Genre{ID: id, Name: name})
	if err != nil {
		return genre.Genre{}, services.StoreError(err, "genre", id)
	}
	s.invalidate(ctx, id)
	return updated, nil
}

// Delete removes a genre no group or record refers to.
func (s *Service) Delete(ctx context.Context, id string) error {
	err := s.store.DeleteGenre(ctx, id)
	if stderrors.Is(err, storage.ErrConflict) {
		return errors.Conflict("genre is still used by groups or records")
	}
	if err != nil {
		return services.StoreError(err, "genre", id)
	}
	s.invalidate(ctx, id)
	s.log.WithContext(ctx).WithField("genre_id", id).Info("genre deleted")
	return nil
}

func (s *Service) lookup(ctx context.Context, key string, dest interface{}) bool {
	if s.cache == nil {
		return false
	}
	hit, err := s.cache.Get(ctx, key, dest)
	if err != nil {
		s.log.WithError(err).WithField("key", key).Warn("genre cache read failed")
		return false
	}
	metrics.RecordCacheLookup(hit)
	return hit
}

func (s *Service) remember(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, value, s.ttl); err != nil {
		s.log.WithError(err).WithField("key", key).Warn("genre cache write failed")
	}
}

func (s *Service) invalidate(ctx context.Context, ids ...string) {
	if s.cache == nil {
		return
	}
	keys := []string{listKey}
	for _, id := range ids {
		keys = append(keys, itemKey+id)
	}
	if err := s.cache.Delete(ctx, keys...); err != nil {
		s.log.WithError(err).Warn("genre cache invalidation failed")
	}
}

func validName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", errors.Required("name")
	}
	if len(name) > maxName {
		return "", errors.Validation("name", "must be at most 100 characters")
	}
	return name, nil
}
