package records

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"github.com/R3E-Network/recordstore/internal/app/domain/record"
	"github.com/R3E-Network/recordstore/internal/app/services"
	"github.com/R3E-Network/recordstore/internal/app/storage"
	"github.com/R3E-Network/recordstore/internal/errors"
	"github.com/R3E-Network/recordstore/internal/logging"
)

// Input carries the editable catalog fields of a record. Stock is only set
// on creation; later changes go through Restock.
type Input struct {
	Title      string `json:"title"`
	Year       int    `json:"year"`
	PriceCents int64  `json:"price_cents"`
	Stock      int    `json:"stock"`
	GroupID    string `json:"group_id"`
	GenreID    string `json:"genre_id"`
}

// Service manages the record catalog and its inventory.
type Service struct {
	records storage.RecordStore
	groups  storage.GroupStore
	genres  storage.GenreStore
	log     *logging.Logger
}

func New(records storage.RecordStore, groups storage.GroupStore, genres storage.GenreStore, log *logging.Logger) *Service {
	if log == nil {
		log = logging.NewDefault("records")
	}
	return &Service{records: records, groups: groups, genres: genres, log: log}
}

// Create adds a record. The genre defaults to the group's genre.
func (s *Service) Create(ctx context.Context, in Input) (record.Record, error) {
	if in.Stock < 0 {
		return record.Record{}, errors.Validation("stock", "must not be negative")
	}
	r, err := s.validate(ctx, record.Record{Stock: in.Stock}, in)
	if err != nil {
		return record.Record{}, err
	}
	created, err := s.records.CreateRecord(ctx, r)
	if err != nil {
		return record.Record{}, services.StoreError(err, "record", r.Title)
	}
	s.log.WithContext(ctx).
		WithField("record_id", created.ID).
		WithField("stock", created.Stock).
		Info("record created")
	return created, nil
}

func (s *Service) Get(ctx context.Context, id string) (record.Record, error) {
	r, err := s.records.GetRecord(ctx, id)
	if err != nil {
		return record.Record{}, services.StoreError(err, "record", id)
	}
	return r, nil
}

func (s *Service) List(ctx context.Context, filter record.Filter) ([]record.Record, error) {
	list, err := s.records.ListRecords(ctx, filter.Normalize())
	if err != nil {
		return nil, services.StoreError(err, "records", "")
	}
	return list, nil
}

// Update replaces the catalog fields. Stock in the input is ignored.
func (s *Service) Update(ctx context.Context, id string, in Input) (record.Record, error) {
	existing, err := s.records.GetRecord(ctx, id)
	if err != nil {
		return record.Record{}, services.StoreError(err, "record", id)
	}
	r, err := s.validate(ctx, existing, in)
	if err != nil {
		return record.Record{}, err
	}
	updated, err := s.records.UpdateRecord(ctx, r)
	if err != nil {
		return record.Record{}, services.StoreError(err, "record", id)
	}
	return updated, nil
}

// Delete removes a record that no cart line or order refers to.
func (s *Service) Delete(ctx context.Context, id string) error {
	err := s.records.DeleteRecord(ctx, id)
	if stderrors.Is(err, storage.ErrConflict) {
		return errors.Conflict("record is held in a cart or was ordered")
	}
	if err != nil {
		return services.StoreError(err, "record", id)
	}
	s.log.WithContext(ctx).WithField("record_id", id).Info("record deleted")
	return nil
}

// Restock adds delta units to inventory. Negative deltas correct stock down
// and fail when fewer units are on hand.
func (s *Service) Restock(ctx context.Context, id string, delta int) (record.Record, error) {
	if delta == 0 {
		return record.Record{}, errors.Validation("delta", "must not be zero")
	}
	r, err := s.records.AdjustStock(ctx, id, delta)
	if err != nil {
		return record.Record{}, services.StoreError(err, "record", id)
	}
	s.log.WithContext(ctx).
		WithField("record_id", id).
		WithField("delta", delta).
		WithField("stock", r.Stock).
		Info("stock adjusted")
	return r, nil
}

// SetCover stores the uploaded cover name and returns the one it replaced.
func (s *Service) SetCover(ctx context.Context, id, cover string) (record.Record, string, error) {
	r, err := s.records.GetRecord(ctx, id)
	if err != nil {
		return record.Record{}, "", services.StoreError(err, "record", id)
	}
	previous := r.Cover
	r.Cover = cover
	updated, err := s.records.UpdateRecord(ctx, r)
	if err != nil {
		return record.Record{}, "", services.StoreError(err, "record", id)
	}
	return updated, previous, nil
}

func (s *Service) validate(ctx context.Context, r record.Record, in Input) (record.Record, error) {
	r.Title = strings.TrimSpace(in.Title)
	if r.Title == "" {
		return record.Record{}, errors.Required("title")
	}
	if in.PriceCents < 0 {
		return record.Record{}, errors.Validation("price_cents", "must not be negative")
	}
	if in.Year < 0 || in.Year > time.Now().Year()+1 {
		return record.Record{}, errors.Validation("year", "out of range")
	}
	r.PriceCents = in.PriceCents
	r.Year = in.Year

	groupID := strings.TrimSpace(in.GroupID)
	if groupID == "" {
		return record.Record{}, errors.Required("group_id")
	}
	g, err := s.groups.GetGroup(ctx, groupID)
	if stderrors.Is(err, storage.ErrNotFound) {
		return record.Record{}, errors.Validation("group_id", "unknown group")
	}
	if err != nil {
		return record.Record{}, services.StoreError(err, "group", groupID)
	}
	r.GroupID = g.ID

	r.GenreID = strings.TrimSpace(in.GenreID)
	if r.GenreID == "" {
		r.GenreID = g.GenreID
		return r, nil
	}
	if _, err := s.genres.GetGenre(ctx, r.GenreID); err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return record.Record{}, errors.Validation("genre_id", "unknown genre")
		}
		return record.Record{}, services.StoreError(err, "genre", r.GenreID)
	}
	return r, nil
}
