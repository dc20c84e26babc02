// Package services holds helpers shared by the business services under it.
package services

import (
	stderrors "errors"

	"github.com/R3E-Network/recordstore/internal/app/storage"
	"github.com/R3E-Network/recordstore/internal/errors"
)

// StoreError translates storage sentinels into service errors. resource and
// id describe what was being looked up or changed.
func StoreError(err error, resource, id string) error {
	if err == nil {
		return nil
	}
	if errors.GetServiceError(err) != nil {
		return err
	}
	switch {
	case stderrors.Is(err, storage.ErrNotFound):
		return errors.NotFound(resource, id).Wrap(err)
	case stderrors.Is(err, storage.ErrInsufficientStock):
		return errors.InsufficientStock(id).Wrap(err)
	case stderrors.Is(err, storage.ErrEmptyCart):
		return errors.EmptyCart().Wrap(err)
	case stderrors.Is(err, storage.ErrConflict):
		return errors.Conflict(resource + " conflicts with existing data").Wrap(err)
	default:
		return errors.Internal(resource+" storage failure", err)
	}
}
