package service

import (
	"errors"
	"fmt"
	"ptero-billing/internal/apperr"
	"ptero-billing/internal/model"

	"gorm.io/gorm"
)

// storeErr maps repository errors onto the application taxonomy.
func storeErr(err error, notFoundMsg, op string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperr.NotFoundErr(notFoundMsg)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return apperr.ConflictErr("resource already exists")
	}
	return apperr.Wrap(fmt.Errorf("%s: %w", op, err))
}

func requireAdmin(actor model.Actor) error {
	if actor.IsAdmin() {
		return nil
	}
	if actor.UserID == "" {
		return apperr.UnauthorizedErr("authentication required")
	}
	return apperr.ForbiddenErr("administrator role required")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
