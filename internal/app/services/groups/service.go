package groups

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"github.com/R3E-Network/recordstore/internal/app/cache"
	"github.com/R3E-Network/recordstore/internal/app/domain/group"
	"github.com/R3E-Network/recordstore/internal/app/metrics"
	"github.com/R3E-Network/recordstore/internal/app/services"
	"github.com/R3E-Network/recordstore/internal/app/storage"
	"github.com/R3E-Network/recordstore/internal/errors"
	"github.com/R3E-Network/recordstore/internal/logging"
)

const (
	listKey  = "groups:all"
	itemKey  = "groups:"
	cacheTTL = 10 * time.Minute
)

// Input carries the editable fields of a group.
type Input struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	GenreID     string `json:"genre_id"`
}

// Service manages groups (artists). The unfiltered listing and single groups
// are cached when a cache is configured.
type Service struct {
	groups storage.GroupStore
	genres storage.GenreStore
	cache  cache.Cache
	ttl    time.Duration
	log    *logging.Logger
}

func New(groups storage.GroupStore, genres storage.GenreStore, c cache.Cache, log *logging.Logger) *Service {
	if log == nil {
		log = logging.NewDefault("groups")
	}
	return &Service{groups: groups, genres: genres, cache: c, ttl: cacheTTL, log: log}
}

// WithCacheTTL overrides how long cached entries live.
func (s *Service) WithCacheTTL(ttl time.Duration) *Service {
	if ttl > 0 {
		s.ttl = ttl
	}
	return s
}

func (s *Service) Create(ctx context.Context, in Input) (group.Group, error) {
	g, err := s.validate(ctx, group.Group{}, in)
	if err != nil {
		return group.Group{}, err
	}
	created, err := s.groups.CreateGroup(ctx, g)
	if err != nil {
		return group.Group{}, services.StoreError(err, "group", g.Name)
	}
	s.invalidate(ctx)
	s.log.WithContext(ctx).WithField("group_id", created.ID).Info("group created")
	return created, nil
}

func (s *Service) Get(ctx context.Context, id string) (group.Group, error) {
	var g group.Group
	if s.lookup(ctx, itemKey+id, &g) {
		return g, nil
	}
	g, err := s.groups.GetGroup(ctx, id)
	if err != nil {
		return group.Group{}, services.StoreError(err, "group", id)
	}
	s.remember(ctx, itemKey+id, g)
	return g, nil
}

// List returns all groups, or those of genreID when it is set.
func (s *Service) List(ctx context.Context, genreID string) ([]group.Group, error) {
	if genreID != "" {
		list, err := s.groups.ListGroups(ctx, genreID)
		if err != nil {
			return nil, services.StoreError(err, "groups", "")
		}
		return list, nil
	}
	var list []group.Group
	if s.lookup(ctx, listKey, &list) {
		return list, nil
	}
	list, err := s.groups.ListGroups(ctx, "")
	if err != nil {
		return nil, services.StoreError(err, "groups", "")
	}
	s.remember(ctx, listKey, list)
	return list, nil
}

func (s *Service) Update(ctx context.Context, id string, in Input) (group.Group, error) {
	existing, err := s.groups.GetGroup(ctx, id)
	if err != nil {
		return group.Group{}, services.StoreError(err, "group", id)
	}
	g, err := s.validate(ctx, existing, in)
	if err != nil {
		return group.Group{}, err
	}
	updated, err := s.groups.UpdateGroup(ctx, g)
	if err != nil {
		return group.Group{}, services.StoreError(err, "group", id)
	}
	s.invalidate(ctx, id)
	return updated, nil
}

// SetImage stores the uploaded image name on the group and returns the name
// it replaced, so the caller can remove the old file.
func (s *Service) SetImage(ctx context.Context, id, image string) (group.Group, string, error) {
	g, err := s.groups.GetGroup(ctx, id)
	if err != nil {
		return group.Group{}, "", services.StoreError(err, "group", id)
	}
	previous := g.Image
	g.Image = image
	updated, err := s.groups.UpdateGroup(ctx, g)
	if err != nil {
		return group.Group{}, "", services.StoreError(err, "group", id)
	}
	s.invalidate(ctx, id)
	return updated, previous, nil
}

// Delete removes a group without records.
func (s *Service) Delete(ctx context.Context, id string) error {
	err := s.groups.DeleteGroup(ctx, id)
	if stderrors.Is(err, storage.ErrConflict) {
		return errors.Conflict("group still has records")
	}
	if err != nil {
		return services.StoreError(err, "group", id)
	}
	s.invalidate(ctx, id)
	s.log.WithContext(ctx).WithField("group_id", id).Info("group deleted")
	return nil
}

func (s *Service) validate(ctx context.Context, g group.Group, in Input) (group.Group, error) {
	g.Name = strings.TrimSpace(in.Name)
	if g.Name == "" {
		return group.Group{}, errors.Required("name")
	}
	g.Description = strings.TrimSpace(in.Description)
	g.GenreID = strings.TrimSpace(in.GenreID)
	if g.GenreID != "" {
		if _, err := s.genres.GetGenre(ctx, g.GenreID); err != nil {
			if stderrors.Is(err, storage.ErrNotFound) {
				return group.Group{}, errors.Validation("genre_id", "unknown genre")
			}
			return group.Group{}, services.StoreError(err, "genre", g.GenreID)
		}
	}
	return g, nil
}

func (s *Service) lookup(ctx context.Context, key string, dest interface{}) bool {
	if s.cache == nil {
		return false
	}
	hit, err := s.cache.Get(ctx, key, dest)
	if err != nil {
		s.log.WithError(err).WithField("key", key).Warn("group cache read failed")
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
		s.log.WithError(err).WithField("key", key).Warn("group cache write failed")
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
		s.log.WithError(err).Warn("group cache invalidation failed")
	}
}
