package service

import (
	"context"
	"database/sql"
	"errors"

	appErrors "github.com/printlab/printlab-api/pkg/errors"
)

// mapStoreErr normalises persistence failures into the error taxonomy.
// Typed domain errors pass through untouched; missing rows become NOT_FOUND
// and context deadline hits surface as STORAGE_TIMEOUT so callers can tell
// "rejected" from "please retry".
func mapStoreErr(err error, notFoundMsg string) error {
	if err == nil {
		return nil
	}
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, notFoundMsg)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return appErrors.Wrap(err, appErrors.ErrStorageTimeout.Code, appErrors.ErrStorageTimeout.Status, appErrors.ErrStorageTimeout.Message)
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, appErrors.ErrInternal.Message)
}
